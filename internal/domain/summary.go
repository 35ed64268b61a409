package domain

// TypeCounts counts items per ItemType.
type TypeCounts map[ItemType]int

// CountByType tallies items per type.
func CountByType(items []Item) TypeCounts {
	counts := TypeCounts{}
	for _, item := range items {
		t := item.Type
		if t == "" {
			t = TypePost
		}
		counts[t]++
	}
	return counts
}

// RunSummary describes the outcome of one pipeline run.
type RunSummary struct {
	RunID          string
	Fetched        int
	Filtered       int
	Relevant       int
	Sent           int
	Batches        int
	FailedBatches  int
	FetchedByType  TypeCounts
	RelevantByType TypeCounts
}

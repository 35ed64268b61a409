// Package ledger keeps the set of already handled item ids across runs.
package ledger

// orderedSet is an insertion-ordered string set.
type orderedSet struct {
	order []string
	index map[string]struct{}
}

func newOrderedSet(ids ...string) *orderedSet {
	s := &orderedSet{index: make(map[string]struct{}, len(ids))}
	s.add(ids...)
	return s
}

// add appends ids not yet present and returns the ones that were new.
func (s *orderedSet) add(ids ...string) []string {
	var added []string
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := s.index[id]; ok {
			continue
		}
		s.index[id] = struct{}{}
		s.order = append(s.order, id)
		added = append(added, id)
	}
	return added
}

// trim keeps only the newest max ids.
func (s *orderedSet) trim(max int) []string {
	if max <= 0 || len(s.order) <= max {
		return nil
	}
	cut := len(s.order) - max
	evicted := append([]string(nil), s.order[:cut]...)
	for _, id := range evicted {
		delete(s.index, id)
	}
	s.order = append([]string(nil), s.order[cut:]...)
	return evicted
}

func (s *orderedSet) snapshot() map[string]struct{} {
	out := make(map[string]struct{}, len(s.index))
	for id := range s.index {
		out[id] = struct{}{}
	}
	return out
}

func (s *orderedSet) ids() []string {
	return append([]string(nil), s.order...)
}

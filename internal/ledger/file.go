package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"RedditMonitor/internal/ports"
)

// fileFormat is the on-disk JSON document.
type fileFormat struct {
	ProcessedIDs []string `json:"processed_ids"`
	LastUpdated  string   `json:"last_updated"`
}

// FileLedger persists processed ids as a JSON document, replaced atomically on save.
type FileLedger struct {
	mu          sync.Mutex
	path        string
	max         int
	set         *orderedSet
	lastUpdated time.Time
	logger      *slog.Logger
	now         func() time.Time
}

var _ ports.Ledger = (*FileLedger)(nil)

// NewFileLedger binds a ledger to path; max bounds the number of retained ids.
func NewFileLedger(path string, max int, logger *slog.Logger) *FileLedger {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FileLedger{
		path:   path,
		max:    max,
		set:    newOrderedSet(),
		logger: logger,
		now:    time.Now,
	}
}

// Load replaces the in-memory state with the file contents. A missing or
// malformed file yields an empty ledger.
func (l *FileLedger) Load(_ context.Context) map[string]struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := readFile(l.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		l.set = newOrderedSet()
	case err != nil:
		l.logger.Warn("ledger unreadable, starting empty", "path", l.path, "error", err)
		l.set = newOrderedSet()
	default:
		l.set = newOrderedSet(doc.ProcessedIDs...)
		if ts, perr := time.Parse(time.RFC3339Nano, doc.LastUpdated); perr == nil {
			l.lastUpdated = ts
		}
	}

	return l.set.snapshot()
}

// Record appends unseen ids.
func (l *FileLedger) Record(ids ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.set.add(ids...)
}

// Save trims to the newest max ids and writes through a temp file + rename.
func (l *FileLedger) Save(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.set.trim(l.max)
	now := l.now()
	doc := fileFormat{
		ProcessedIDs: l.set.ids(),
		LastUpdated:  now.Format(time.RFC3339Nano),
	}
	if doc.ProcessedIDs == nil {
		doc.ProcessedIDs = []string{}
	}

	if err := writeFileAtomic(l.path, doc); err != nil {
		return fmt.Errorf("save ledger %s: %w", l.path, err)
	}
	l.lastUpdated = now
	l.logger.Debug("ledger saved", "path", l.path, "ids", len(doc.ProcessedIDs))
	return nil
}

// Len reports the number of ids currently held.
func (l *FileLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.set.order)
}

// LastUpdated returns the timestamp of the last load or save.
func (l *FileLedger) LastUpdated() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastUpdated
}

// IDs returns the held ids oldest first.
func (l *FileLedger) IDs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.set.ids()
}

func readFile(path string) (fileFormat, error) {
	var doc fileFormat
	raw, err := os.ReadFile(path)
	if err != nil {
		return doc, err
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("decode: %w", err)
	}
	return doc, nil
}

func writeFileAtomic(path string, doc fileFormat) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

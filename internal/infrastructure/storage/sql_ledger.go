package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"RedditMonitor/internal/ports"
)

const ledgerTable = "processed_items"

const createLedgerTable = `CREATE TABLE IF NOT EXISTS processed_items (
    item_id     TEXT PRIMARY KEY,
    seq         BIGINT NOT NULL,
    recorded_at TIMESTAMP NOT NULL
)`

// Driver names accepted by OpenSQLLedger.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// SQLLedger persists processed ids into a single table ordered by seq.
type SQLLedger struct {
	mu      sync.Mutex
	db      *sql.DB
	sb      sq.StatementBuilderType
	max     int
	order   []string
	index   map[string]struct{}
	pending []string
	nextSeq int64
	logger  *slog.Logger
}

var _ ports.Ledger = (*SQLLedger)(nil)

// OpenSQLLedger connects to dsn with the given driver and ensures the table exists.
func OpenSQLLedger(ctx context.Context, driver, dsn string, max int, logger *slog.Logger) (*SQLLedger, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s ledger: %w", driver, err)
	}
	l, err := NewSQLLedger(ctx, db, driver, max, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

// NewSQLLedger wires an existing sql.DB implementation.
func NewSQLLedger(ctx context.Context, db *sql.DB, driver string, max int, logger *slog.Logger) (*SQLLedger, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if _, err := db.ExecContext(ctx, createLedgerTable); err != nil {
		return nil, fmt.Errorf("create ledger table: %w", err)
	}

	return &SQLLedger{
		db:      db,
		sb:      statementBuilder(driver),
		max:     max,
		index:   map[string]struct{}{},
		nextSeq: 1,
		logger:  logger,
	}, nil
}

// statementBuilder picks the bind parameter style of driver.
func statementBuilder(driver string) sq.StatementBuilderType {
	var placeholder sq.PlaceholderFormat = sq.Question
	if driver == DriverPostgres {
		placeholder = sq.Dollar
	}
	return sq.StatementBuilder.PlaceholderFormat(placeholder)
}

// Load reads all ids ordered by insertion. Query failures yield an empty ledger.
func (l *SQLLedger) Load(ctx context.Context) map[string]struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.order = nil
	l.index = map[string]struct{}{}
	l.pending = nil
	l.nextSeq = 1

	ids, maxSeq, err := l.selectAll(ctx)
	if err != nil {
		l.logger.Warn("ledger unreadable, starting empty", "error", err)
		return map[string]struct{}{}
	}

	for _, id := range ids {
		l.index[id] = struct{}{}
		l.order = append(l.order, id)
	}
	l.nextSeq = maxSeq + 1

	out := make(map[string]struct{}, len(l.index))
	for id := range l.index {
		out[id] = struct{}{}
	}
	return out
}

// Record appends unseen ids; they are written on the next Save.
func (l *SQLLedger) Record(ids ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := l.index[id]; ok {
			continue
		}
		l.index[id] = struct{}{}
		l.order = append(l.order, id)
		l.pending = append(l.pending, id)
	}
}

// Save inserts pending ids and deletes everything older than the newest max.
func (l *SQLLedger) Save(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}

	seq := l.nextSeq
	if len(l.pending) > 0 {
		now := time.Now().UTC()
		insert := l.sb.Insert(ledgerTable).Columns("item_id", "seq", "recorded_at")
		for _, id := range l.pending {
			insert = insert.Values(id, seq, now)
			seq++
		}
		query, args, err := insert.Suffix("ON CONFLICT (item_id) DO NOTHING").ToSql()
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("build insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert ids: %w", err)
		}
	}

	if cutoff := seq - 1 - int64(l.max); l.max > 0 && cutoff > 0 {
		query, args, err := l.sb.Delete(ledgerTable).Where(sq.LtOrEq{"seq": cutoff}).ToSql()
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("build trim: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("trim ids: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger: %w", err)
	}

	l.nextSeq = seq
	l.pending = nil
	if l.max > 0 && len(l.order) > l.max {
		cut := len(l.order) - l.max
		for _, id := range l.order[:cut] {
			delete(l.index, id)
		}
		l.order = append([]string(nil), l.order[cut:]...)
	}
	return nil
}

// Len reports the number of ids currently held.
func (l *SQLLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.order)
}

// IDs returns the held ids oldest first.
func (l *SQLLedger) IDs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.order...)
}

// Close releases the database handle.
func (l *SQLLedger) Close() error {
	return l.db.Close()
}

func (l *SQLLedger) selectAll(ctx context.Context) ([]string, int64, error) {
	query, args, err := l.sb.Select("item_id", "seq").From(ledgerTable).OrderBy("seq ASC").ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build select: %w", err)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query processed: %w", err)
	}

	var (
		ids    []string
		maxSeq int64
	)
	for rows.Next() {
		var (
			id  string
			seq int64
		)
		if err := rows.Scan(&id, &seq); err != nil {
			_ = rows.Close()
			return nil, 0, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
		if seq > maxSeq {
			maxSeq = seq
		}
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, 0, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, 0, fmt.Errorf("close rows: %w", closeErr)
	}

	return ids, maxSeq, nil
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite implementation of Store[S].
//
// It persists checkpoint history in a single-file database. Designed for:
//   - Development and testing with zero setup
//   - Single-process deployments that need durability across restarts
//   - Prototyping before migrating to a server-backed store
//
// The store uses WAL mode for concurrent reads and enforces the
// version-checked append contract with a UNIQUE(thread_id, seq) constraint,
// so a racing append loses deterministically with ErrVersionConflict.
//
// Type parameter S must be JSON-serializable.
type SQLiteStore[S any] struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	path   string
}

// NewSQLiteStore opens (creating if necessary) a SQLite-backed checkpoint
// store at path. Use ":memory:" for an ephemeral database in tests.
//
// The store configures WAL journaling, a 5s busy timeout, and a single
// writer connection, and migrates its schema on first use.
func NewSQLiteStore[S any](path string) (*SQLiteStore[S], error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	s := &SQLiteStore[S]{db: db, path: path}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore[S]) migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS checkpoints (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			thread_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			execution_id TEXT NOT NULL,
			state TEXT NOT NULL,
			next_node TEXT NOT NULL DEFAULT '',
			pending_interrupt TEXT,
			status TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			UNIQUE(thread_id, seq)
		)
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create checkpoints table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_checkpoints_thread ON checkpoints(thread_id, seq)"); err != nil {
		return fmt.Errorf("create thread index: %w", err)
	}
	return nil
}

// Latest returns the highest-sequence checkpoint for the thread.
func (s *SQLiteStore[S]) Latest(ctx context.Context, threadID string) (Checkpoint[S], error) {
	var zero Checkpoint[S]
	if err := s.check(); err != nil {
		return zero, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT thread_id, seq, execution_id, state, next_node, pending_interrupt, status, error, created_at
		FROM checkpoints WHERE thread_id = ? ORDER BY seq DESC LIMIT 1`, threadID)

	cp, err := scanCheckpoint[S](row)
	if err == sql.ErrNoRows {
		return zero, ErrNotFound
	}
	if err != nil {
		return zero, fmt.Errorf("query latest checkpoint: %w", err)
	}
	return cp, nil
}

// Append writes cp, failing with ErrVersionConflict unless cp.Seq continues
// the thread's sequence exactly. The read-check-insert runs in one
// transaction; the UNIQUE constraint backs it against racing writers.
func (s *SQLiteStore[S]) Append(ctx context.Context, threadID string, cp Checkpoint[S]) error {
	if err := s.check(); err != nil {
		return err
	}

	stateJSON, interruptJSON, err := encodeCheckpoint(cp)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var latest int
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) FROM checkpoints WHERE thread_id = ?", threadID,
	).Scan(&latest); err != nil {
		return fmt.Errorf("read latest seq: %w", err)
	}
	if cp.Seq != latest+1 {
		return ErrVersionConflict
	}

	createdAt := cp.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO checkpoints (thread_id, seq, execution_id, state, next_node, pending_interrupt, status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		threadID, cp.Seq, cp.ExecutionID, stateJSON, cp.NextNode, interruptJSON, string(cp.Status), cp.Err, createdAt.Format(time.RFC3339Nano))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrVersionConflict
		}
		return fmt.Errorf("insert checkpoint: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit checkpoint: %w", err)
	}
	return nil
}

// History returns the thread's checkpoints in ascending sequence order.
func (s *SQLiteStore[S]) History(ctx context.Context, threadID string) ([]Checkpoint[S], error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT thread_id, seq, execution_id, state, next_node, pending_interrupt, status, error, created_at
		FROM checkpoints WHERE thread_id = ? ORDER BY seq ASC`, threadID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Checkpoint[S]
	for rows.Next() {
		cp, err := scanCheckpoint[S](rows)
		if err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		out = append(out, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return out, nil
}

// Close releases the underlying database handle. Further calls fail.
func (s *SQLiteStore[S]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *SQLiteStore[S]) check() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("sqlite store is closed")
	}
	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanCheckpoint[S any](row scanner) (Checkpoint[S], error) {
	var (
		cp            Checkpoint[S]
		stateJSON     []byte
		interruptJSON sql.NullString
		status        string
		createdAt     string
	)
	err := row.Scan(&cp.ThreadID, &cp.Seq, &cp.ExecutionID, &stateJSON, &cp.NextNode, &interruptJSON, &status, &cp.Err, &createdAt)
	if err != nil {
		return cp, err
	}
	cp.Status = Status(status)
	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		cp.CreatedAt = ts
	}

	if err := json.Unmarshal(stateJSON, &cp.State); err != nil {
		return cp, fmt.Errorf("unmarshal state: %w", err)
	}
	if interruptJSON.Valid && interruptJSON.String != "" {
		var intr Interrupt
		if err := json.Unmarshal([]byte(interruptJSON.String), &intr); err != nil {
			return cp, fmt.Errorf("unmarshal interrupt: %w", err)
		}
		cp.PendingInterrupt = &intr
	}
	return cp, nil
}

func encodeCheckpoint[S any](cp Checkpoint[S]) (stateJSON []byte, interruptJSON any, err error) {
	stateJSON, err = json.Marshal(cp.State)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal state: %w", err)
	}
	if cp.PendingInterrupt != nil {
		data, err := json.Marshal(cp.PendingInterrupt)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal interrupt: %w", err)
		}
		interruptJSON = string(data)
	}
	return stateJSON, interruptJSON, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL implementation of Store[S].
//
// Designed for multi-process deployments that share one checkpoint history.
// The version-checked append contract is enforced with a
// UNIQUE(thread_id, seq) constraint, so concurrent appenders from different
// processes race safely: exactly one wins, the rest observe
// ErrVersionConflict and reload.
//
// Connect with a DSN such as:
//
//	user:password@tcp(localhost:3306)/stategraph
//
// Type parameter S must be JSON-serializable.
type MySQLStore[S any] struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewMySQLStore opens a MySQL-backed checkpoint store and migrates its
// schema on first use.
func NewMySQLStore[S any](dsn string) (*MySQLStore[S], error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	s := &MySQLStore[S]{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return s, nil
}

func (s *MySQLStore[S]) migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS checkpoints (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			thread_id VARCHAR(255) NOT NULL,
			seq INT NOT NULL,
			execution_id VARCHAR(255) NOT NULL,
			state JSON NOT NULL,
			next_node VARCHAR(255) NOT NULL DEFAULT '',
			pending_interrupt JSON,
			status VARCHAR(32) NOT NULL,
			error TEXT,
			created_at VARCHAR(40) NOT NULL,
			UNIQUE KEY uniq_thread_seq (thread_id, seq),
			KEY idx_thread (thread_id)
		)
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create checkpoints table: %w", err)
	}
	return nil
}

// Latest returns the highest-sequence checkpoint for the thread.
func (s *MySQLStore[S]) Latest(ctx context.Context, threadID string) (Checkpoint[S], error) {
	var zero Checkpoint[S]
	if err := s.check(); err != nil {
		return zero, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT thread_id, seq, execution_id, state, next_node, pending_interrupt, status, COALESCE(error, ''), created_at
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
// the thread's sequence exactly. A duplicate-key error from a racing writer
// is reported as ErrVersionConflict.
func (s *MySQLStore[S]) Append(ctx context.Context, threadID string, cp Checkpoint[S]) error {
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
		"SELECT COALESCE(MAX(seq), 0) FROM checkpoints WHERE thread_id = ? FOR UPDATE", threadID,
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
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			// Duplicate (thread_id, seq): a racing writer won.
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
func (s *MySQLStore[S]) History(ctx context.Context, threadID string) ([]Checkpoint[S], error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT thread_id, seq, execution_id, state, next_node, pending_interrupt, status, COALESCE(error, ''), created_at
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

// Close releases the underlying connection pool.
func (s *MySQLStore[S]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *MySQLStore[S]) check() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("mysql store is closed")
	}
	return nil
}

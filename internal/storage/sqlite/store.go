// Package sqlite keeps availabilities, bookings, occurrences and time slots
// in one SQLite database in WAL mode. A single Store serves the
// availability and booking repositories and the schedule engine, so a
// write and the regeneration it triggers share one transaction.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"agenda/pkg/logger"
	"agenda/pkg/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db  *sql.DB
	log *logger.Logger
}

// Open opens or creates the database at path and applies the schema.
func Open(path string, log *logger.Logger) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(60000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	if log == nil {
		log = logger.Discard()
	}
	s := &Store{db: db, log: log}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate sqlite database: %w", err)
	}
	log.Info("SQLite store opened", "path", path)
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS availabilities (
		id          TEXT PRIMARY KEY,
		owner_type  TEXT NOT NULL,
		owner_id    TEXT NOT NULL,
		start_date  TEXT NOT NULL,
		start_time  TEXT NOT NULL,
		end_time    TEXT NOT NULL,
		recurrence  TEXT NOT NULL DEFAULT '',
		timezone    TEXT NOT NULL,
		recur_until TEXT NOT NULL DEFAULT '',
		created_at  INTEGER NOT NULL,
		updated_at  INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_availabilities_owner ON availabilities(owner_type, owner_id);

	CREATE TABLE IF NOT EXISTS bookings (
		id              TEXT PRIMARY KEY,
		owner_type      TEXT NOT NULL,
		owner_id        TEXT NOT NULL,
		label           TEXT NOT NULL,
		state           TEXT NOT NULL,
		requested_times TEXT NOT NULL,
		last_requested  INTEGER NOT NULL,
		confirmed_time  INTEGER,
		duration_min    INTEGER NOT NULL,
		padding_min     INTEGER,
		allow_overlap   INTEGER NOT NULL DEFAULT 0,
		created_at      INTEGER NOT NULL,
		updated_at      INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_bookings_owner ON bookings(owner_type, owner_id, state);
	CREATE INDEX IF NOT EXISTS idx_bookings_confirmed ON bookings(owner_type, owner_id, confirmed_time);

	CREATE TABLE IF NOT EXISTS occurrences (
		id               TEXT PRIMARY KEY,
		owner_type       TEXT NOT NULL,
		owner_id         TEXT NOT NULL,
		availability_ids TEXT NOT NULL,
		start_at         INTEGER NOT NULL,
		end_at           INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_occurrences_owner_span ON occurrences(owner_type, owner_id, start_at, end_at);

	CREATE TABLE IF NOT EXISTS time_slots (
		id          TEXT PRIMARY KEY,
		owner_type  TEXT NOT NULL,
		owner_id    TEXT NOT NULL,
		start_at    INTEGER NOT NULL,
		end_at      INTEGER NOT NULL,
		busy        INTEGER NOT NULL,
		padding     INTEGER NOT NULL,
		booking_ids TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_time_slots_owner_span ON time_slots(owner_type, owner_id, start_at, end_at);
	CREATE INDEX IF NOT EXISTS idx_time_slots_free_end ON time_slots(busy, end_at);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

type txKey struct{}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func txFrom(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKey{}).(*sql.Tx)
	return tx
}

func (s *Store) conn(ctx context.Context) querier {
	if tx := txFrom(ctx); tx != nil {
		return tx
	}
	return s.db
}

// WithinTx runs fn in one transaction. A ctx that already carries a
// transaction is reused.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}

	var tx *sql.Tx
	err := retryOnContention(ctx, func() error {
		var err error
		tx, err = s.db.BeginTx(ctx, nil)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// exec retries on contention unless it runs inside a transaction.
func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if tx := txFrom(ctx); tx != nil {
		return tx.ExecContext(ctx, query, args...)
	}
	var res sql.Result
	err := retryOnContention(ctx, func() error {
		var err error
		res, err = s.db.ExecContext(ctx, query, args...)
		return err
	})
	return res, err
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func encodeIDs(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("failed to encode ids: %w", err)
	}
	return string(data), nil
}

func decodeIDs(raw string) ([]string, error) {
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("failed to decode ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return ids, nil
}

func ownerArgs(owner model.OwnerRef) []any {
	return []any{owner.Type, owner.ID}
}

// placeholders returns "?, ?, ..." for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, 0, 3*n)
	for i := range n {
		if i > 0 {
			b = append(b, ", "...)
		}
		b = append(b, '?')
	}
	return string(b)
}

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

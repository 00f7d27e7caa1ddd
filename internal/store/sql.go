package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/dbx"
	"github.com/dmitrijs2005/fieldsync/internal/store/migrations"
	"github.com/pressly/goose/v3"
)

// Dialect holds the SQL that differs between SQLite and PostgreSQL.
type Dialect struct {
	Name      string
	Driver    string
	GooseName string
	Dir       string

	get    string
	lock   string
	upsert string
	del    string
	purge  string
}

var (
	SQLite = Dialect{
		Name:      "sqlite",
		Driver:    "sqlite",
		GooseName: "sqlite3",
		Dir:       "sqlite",
		get:       `SELECT value, expires_at FROM kv WHERE key = ?`,
		lock:      `SELECT value, expires_at FROM kv WHERE key = ?`,
		upsert: `
		INSERT INTO kv (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
	`,
		del:   `DELETE FROM kv WHERE key = ?`,
		purge: `DELETE FROM kv WHERE expires_at IS NOT NULL AND expires_at <= ?`,
	}

	Postgres = Dialect{
		Name:      "postgres",
		Driver:    "pgx",
		GooseName: "pgx",
		Dir:       "postgres",
		get:       `SELECT value, expires_at FROM kv WHERE key = $1`,
		lock:      `SELECT value, expires_at FROM kv WHERE key = $1 FOR UPDATE`,
		upsert: `
		INSERT INTO kv (key, value, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at
	`,
		del:   `DELETE FROM kv WHERE key = $1`,
		purge: `DELETE FROM kv WHERE expires_at IS NOT NULL AND expires_at <= $1`,
	}
)

// SQLStore implements Store over a kv table. Expiry is stored as unix
// milliseconds; expired rows are hidden by Get and removed by Purge.
type SQLStore struct {
	db      dbx.DBTX
	dialect Dialect
	now     func() time.Time
}

// NewSQLStore binds a store to db. Both *sql.DB and *sql.Tx are accepted.
func NewSQLStore(db dbx.DBTX, d Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: d, now: time.Now}
}

// RunMigrations applies the embedded goose migrations for dialect d.
func RunMigrations(ctx context.Context, db *sql.DB, d Dialect) error {
	goose.SetBaseFS(migrations.Migrations)
	// stdout belongs to command output
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(d.GooseName); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, d.Dir)
}

func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, error) {
	var (
		value     []byte
		expiresAt sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, s.dialect.get, key).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get kv[%s]: %w", key, err)
	}
	if expiresAt.Valid && expiresAt.Int64 <= s.now().UnixMilli() {
		return nil, nil
	}
	return value, nil
}

func (s *SQLStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt sql.NullInt64
	if ttl > 0 {
		expiresAt = sql.NullInt64{Int64: s.now().Add(ttl).UnixMilli(), Valid: true}
	}
	if value == nil {
		value = []byte{}
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.upsert, key, value, expiresAt); err != nil {
		return fmt.Errorf("failed to set kv[%s]: %w", key, err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.del, key); err != nil {
		return fmt.Errorf("failed to delete kv[%s]: %w", key, err)
	}
	return nil
}

// Purge removes expired rows and returns how many were deleted.
func (s *SQLStore) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.dialect.purge, s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to purge kv: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to purge kv: %w", err)
	}
	return n, nil
}

// incr bumps the decimal counter stored under key. A missing, expired or
// non-numeric value restarts the counter at 1 with a fresh ttl; otherwise
// the existing expiry is kept. Run it inside a transaction.
func (s *SQLStore) incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var (
		value     []byte
		expiresAt sql.NullInt64
	)
	now := s.now()
	err := s.db.QueryRowContext(ctx, s.dialect.lock, key).Scan(&value, &expiresAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to read counter kv[%s]: %w", key, err)
	}

	n, perr := strconv.ParseInt(string(value), 10, 64)
	live := err == nil && perr == nil && (!expiresAt.Valid || expiresAt.Int64 > now.UnixMilli())
	if live {
		n++
	} else {
		n = 1
		expiresAt = sql.NullInt64{}
		if ttl > 0 {
			expiresAt = sql.NullInt64{Int64: now.Add(ttl).UnixMilli(), Valid: true}
		}
	}

	if _, err := s.db.ExecContext(ctx, s.dialect.upsert, key, []byte(strconv.FormatInt(n, 10)), expiresAt); err != nil {
		return 0, fmt.Errorf("failed to write counter kv[%s]: %w", key, err)
	}
	return n, nil
}

// sqlBackend owns the *sql.DB behind an SQLStore.
type sqlBackend struct {
	*SQLStore
	db *sql.DB
}

// IncrWithExpiry increments a counter in its own transaction.
func (b *sqlBackend) IncrWithExpiry(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var n int64
	err := dbx.WithTx(ctx, b.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		st := NewSQLStore(tx, b.dialect)
		st.now = b.now
		var err error
		n, err = st.incr(ctx, key, ttl)
		return err
	})
	return n, err
}

func (b *sqlBackend) Close() error {
	return b.db.Close()
}

package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the DDL for the ayahs table. [PostgresStore.Migrate] applies it.
const Schema = `
CREATE TABLE IF NOT EXISTS ayahs (
    surah       INTEGER NOT NULL CHECK (surah BETWEEN 1 AND 114),
    ayah        INTEGER NOT NULL CHECK (ayah > 0),
    text        TEXT NOT NULL,
    surah_name  TEXT NOT NULL DEFAULT '',
    translation TEXT NOT NULL DEFAULT '',
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (surah, ayah)
);
`

const upsertQuery = `
	INSERT INTO ayahs (surah, ayah, text, surah_name, translation)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (surah, ayah) DO UPDATE SET
		text = EXCLUDED.text,
		surah_name = EXCLUDED.surah_name,
		translation = EXCLUDED.translation,
		updated_at = now()`

// DB is the subset of *pgxpool.Pool used by [PostgresStore].
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// PostgresStore is a [Store] backed by PostgreSQL.
type PostgresStore struct {
	db    DB
	close func()
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore wraps an existing connection or pool. The caller keeps
// ownership of db and must run [PostgresStore.Migrate] before use.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Connect opens a pool for dsn, verifies it and applies [Schema]. Close
// releases the pool.
func Connect(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("catalog: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("catalog: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("catalog: ping: %w", err)
	}

	s := &PostgresStore{db: pool, close: pool.Close}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the pool opened by [Connect]. It is a no-op for stores
// created with [NewPostgresStore].
func (s *PostgresStore) Close() {
	if s.close != nil {
		s.close()
	}
}

// Migrate creates the ayahs table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("catalog: migrate: %w", err)
	}
	return nil
}

// Get implements [Store.Get].
func (s *PostgresStore) Get(ctx context.Context, key string) (Ayah, error) {
	surah, number, err := ParseKey(key)
	if err != nil {
		return Ayah{}, err
	}

	const query = `
		SELECT surah, ayah, text, surah_name, translation
		FROM ayahs
		WHERE surah = $1 AND ayah = $2`

	var a Ayah
	err = s.db.QueryRow(ctx, query, surah, number).Scan(
		&a.Surah, &a.Number, &a.Text, &a.SurahName, &a.Translation,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Ayah{}, fmt.Errorf("%w: %s", ErrNotFound, FormatKey(surah, number))
		}
		return Ayah{}, fmt.Errorf("catalog: get %s: %w", FormatKey(surah, number), err)
	}
	return a, nil
}

// Put implements [Store.Put].
func (s *PostgresStore) Put(ctx context.Context, a Ayah) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, upsertQuery, a.Surah, a.Number, a.Text, a.SurahName, a.Translation); err != nil {
		return fmt.Errorf("catalog: put %s: %w", a.Key(), err)
	}
	return nil
}

// BulkImport implements [Store.BulkImport]. Valid ayahs up to the first
// invalid one are sent in a single batch.
func (s *PostgresStore) BulkImport(ctx context.Context, ayahs []Ayah) (int, error) {
	valid := len(ayahs)
	var invalidErr error
	for i, a := range ayahs {
		if err := a.Validate(); err != nil {
			valid = i
			invalidErr = fmt.Errorf("catalog: bulk import at index %d: %w", i, err)
			break
		}
	}
	if valid == 0 {
		return 0, invalidErr
	}

	batch := &pgx.Batch{}
	for _, a := range ayahs[:valid] {
		batch.Queue(upsertQuery, a.Surah, a.Number, a.Text, a.SurahName, a.Translation)
	}

	br := s.db.SendBatch(ctx, batch)
	for i := range valid {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return i, fmt.Errorf("catalog: bulk import %s: %w", ayahs[i].Key(), err)
		}
	}
	if err := br.Close(); err != nil {
		return valid, fmt.Errorf("catalog: bulk import: %w", err)
	}
	return valid, invalidErr
}

// List implements [Store.List].
func (s *PostgresStore) List(ctx context.Context, surah int) ([]Ayah, error) {
	query := `SELECT surah, ayah, text, surah_name, translation FROM ayahs`
	var args []any
	if surah != 0 {
		query += ` WHERE surah = $1`
		args = append(args, surah)
	}
	query += ` ORDER BY surah, ayah`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: list: %w", err)
	}
	defer rows.Close()

	ayahs := []Ayah{}
	for rows.Next() {
		var a Ayah
		if err := rows.Scan(&a.Surah, &a.Number, &a.Text, &a.SurahName, &a.Translation); err != nil {
			return nil, fmt.Errorf("catalog: list scan: %w", err)
		}
		ayahs = append(ayahs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: list: %w", err)
	}
	return ayahs, nil
}

// Count implements [Store.Count].
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM ayahs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("catalog: count: %w", err)
	}
	return n, nil
}

package record

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coldkeep/coldkeep/internal/tier"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const fileColumns = "id, tier, filename, path, hot_until, created_at, updated_at"

// PostgresStore persists file records in a Postgres table.
type PostgresStore struct {
	pool *pgxpool.Pool
	url  string
	now  func() time.Time
}

// NewPostgresStore opens a connection pool against url, verifies it
// responds, and applies pending schema migrations.
func NewPostgresStore(ctx context.Context, url string) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	s := &PostgresStore{pool: pool, url: url, now: time.Now}
	if err := s.migrate(); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// migrate applies the embedded SQL migrations.
func (s *PostgresStore) migrate() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, migrateURL(s.url))
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// migrateURL rewrites a postgres DSN to the scheme the migrate pgx5 driver
// registers under.
func migrateURL(dsn string) string {
	if rest, ok := strings.CutPrefix(dsn, "postgres://"); ok {
		return "pgx5://" + rest
	}
	if rest, ok := strings.CutPrefix(dsn, "postgresql://"); ok {
		return "pgx5://" + rest
	}
	return dsn
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanFile(row pgx.Row) (File, error) {
	var f File
	var t string
	err := row.Scan(&f.ID, &t, &f.Filename, &f.Path, &f.HotUntil, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return File{}, err
	}
	f.Tier = tier.Tier(t)
	return f, nil
}

// Create inserts a new record and returns it.
func (s *PostgresStore) Create(ctx context.Context, t tier.Tier, filename, path string, hotUntil *time.Time) (File, error) {
	now := s.now().UTC()
	f := File{
		ID:        uuid.NewString(),
		Tier:      t,
		Filename:  filename,
		Path:      path,
		HotUntil:  cloneTime(hotUntil),
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO files (`+fileColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		f.ID, string(f.Tier), f.Filename, f.Path, f.HotUntil, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return File{}, fmt.Errorf("insert record: %w", err)
	}
	return f, nil
}

// FindByID returns the record with the given id.
func (s *PostgresStore) FindByID(ctx context.Context, id string) (File, error) {
	f, err := scanFile(s.pool.QueryRow(ctx,
		`SELECT `+fileColumns+` FROM files WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return File{}, ErrNotFound
	}
	if err != nil {
		return File{}, fmt.Errorf("select record: %w", err)
	}
	return f, nil
}

// Update applies patch to the record with the given id inside one
// transaction, locking the row while the patch is folded in.
func (s *PostgresStore) Update(ctx context.Context, id string, patch Update) (File, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return File{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	f, err := scanFile(tx.QueryRow(ctx,
		`SELECT `+fileColumns+` FROM files WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return File{}, ErrNotFound
	}
	if err != nil {
		return File{}, fmt.Errorf("select record: %w", err)
	}

	f.apply(patch, s.now().UTC())

	_, err = tx.Exec(ctx,
		`UPDATE files SET tier = $1, path = $2, hot_until = $3, updated_at = $4 WHERE id = $5`,
		string(f.Tier), f.Path, f.HotUntil, f.UpdatedAt, f.ID)
	if err != nil {
		return File{}, fmt.Errorf("update record: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return File{}, fmt.Errorf("commit tx: %w", err)
	}
	return f, nil
}

// Delete removes the record with the given id.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FindExpiredHot returns hot records whose expiry is not after now.
func (s *PostgresStore) FindExpiredHot(ctx context.Context, now time.Time) ([]File, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+fileColumns+` FROM files
		 WHERE tier = $1 AND hot_until IS NOT NULL AND hot_until <= $2
		 ORDER BY created_at, id`,
		string(tier.Hot), now.UTC())
	if err != nil {
		return nil, fmt.Errorf("select expired records: %w", err)
	}
	return collectFiles(rows)
}

// FindAll returns every record, oldest first.
func (s *PostgresStore) FindAll(ctx context.Context) ([]File, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+fileColumns+` FROM files ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("select records: %w", err)
	}
	return collectFiles(rows)
}

func collectFiles(rows pgx.Rows) ([]File, error) {
	defer rows.Close()

	files := []File{}
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return files, nil
}

var _ Store = (*PostgresStore)(nil)

// Package sqlite is a mapping.Store backed by a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/yuriy-kovalchuk/yk-speeddial/internal/mapping"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Store implements mapping.Store on a single SQLite file.
type Store struct {
	db  *sqlx.DB
	log logr.Logger
}

var _ mapping.Store = (*Store)(nil)

// dbMapping is a mapping row. Timestamps are stored as RFC 3339 text.
type dbMapping struct {
	ID            string         `db:"id"`
	Hostname      string         `db:"hostname"`
	TargetAddress string         `db:"target_address"`
	TargetPort    int            `db:"target_port"`
	CreatedAt     string         `db:"created_at"`
	Active        bool           `db:"active"`
	RemovedAt     sql.NullString `db:"removed_at"`
}

func (r dbMapping) toMapping() (mapping.Mapping, error) {
	created, err := time.Parse(time.RFC3339Nano, r.CreatedAt)
	if err != nil {
		return mapping.Mapping{}, fmt.Errorf("parsing created_at of %s: %w", r.ID, err)
	}
	m := mapping.Mapping{
		ID:            r.ID,
		Hostname:      r.Hostname,
		TargetAddress: r.TargetAddress,
		TargetPort:    r.TargetPort,
		CreatedAt:     created,
		Active:        r.Active,
	}
	if r.RemovedAt.Valid {
		removed, err := time.Parse(time.RFC3339Nano, r.RemovedAt.String)
		if err != nil {
			return mapping.Mapping{}, fmt.Errorf("parsing removed_at of %s: %w", r.ID, err)
		}
		m.RemovedAt = &removed
	}
	return m, nil
}

const columns = `id, hostname, target_address, target_port, created_at, active, removed_at`

// Open connects to the SQLite database at path and applies pending migrations.
func Open(log logr.Logger, path string) (*Store, error) {
	db, err := sqlx.Connect("sqlite", fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path))
	if err != nil {
		return nil, fmt.Errorf("connecting to db: %w", err)
	}
	db.SetMaxOpenConns(1)

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(string(goose.DialectSQLite3)); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting dialect for migrations: %w", err)
	}
	if err := goose.Up(db.DB, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying migrations: %w", err)
	}

	log.V(1).Info("mapping database ready", "path", path)
	return &Store{db: db, log: log}, nil
}

// Close terminates the database connection.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing mapping db: %w", err)
	}
	return nil
}

func (s *Store) selectMappings(ctx context.Context, query string, args ...interface{}) ([]mapping.Mapping, error) {
	var rows []dbMapping
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]mapping.Mapping, 0, len(rows))
	for _, r := range rows {
		m, err := r.toMapping()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *Store) getOne(ctx context.Context, query string, args ...interface{}) (mapping.Mapping, error) {
	var row dbMapping
	err := s.db.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return mapping.Mapping{}, mapping.ErrNotFound
	}
	if err != nil {
		return mapping.Mapping{}, err
	}
	return row.toMapping()
}

func (s *Store) List(ctx context.Context) ([]mapping.Mapping, error) {
	out, err := s.selectMappings(ctx, `SELECT `+columns+` FROM mappings WHERE active = 1 ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("listing mappings: %w", err)
	}
	return out, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (mapping.Mapping, error) {
	m, err := s.getOne(ctx, `SELECT `+columns+` FROM mappings WHERE id = ? AND active = 1`, id)
	if err != nil && !errors.Is(err, mapping.ErrNotFound) {
		return m, fmt.Errorf("getting mapping %s: %w", id, err)
	}
	return m, err
}

func (s *Store) GetByHostname(ctx context.Context, hostname string) (mapping.Mapping, error) {
	hostname = mapping.NormalizeHostname(hostname)
	m, err := s.getOne(ctx, `SELECT `+columns+` FROM mappings WHERE hostname = ? AND active = 1`, hostname)
	if err != nil && !errors.Is(err, mapping.ErrNotFound) {
		return m, fmt.Errorf("getting mapping for %s: %w", hostname, err)
	}
	return m, err
}

func (s *Store) History(ctx context.Context, hostname string) ([]mapping.Mapping, error) {
	out, err := s.selectMappings(ctx, `SELECT `+columns+` FROM mappings WHERE hostname = ? ORDER BY seq`, mapping.NormalizeHostname(hostname))
	if err != nil {
		return nil, fmt.Errorf("getting history for %s: %w", hostname, err)
	}
	return out, nil
}

func (s *Store) Add(ctx context.Context, m mapping.Mapping) error {
	if err := mapping.Validate(m); err != nil {
		return err
	}
	hostname := mapping.NormalizeHostname(m.Hostname)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE mappings SET active = 0, removed_at = ? WHERE hostname = ? AND active = 1`,
		now, hostname); err != nil {
		return fmt.Errorf("deactivating previous mapping for %s: %w", hostname, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO mappings (id, hostname, target_address, target_port, created_at, active) VALUES (?, ?, ?, ?, ?, 1)`,
		m.ID, hostname, m.TargetAddress, m.TargetPort, m.CreatedAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("inserting mapping %s: %w", hostname, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing mapping %s: %w", hostname, err)
	}
	return nil
}

func (s *Store) RemoveByHostname(ctx context.Context, hostname string) (bool, error) {
	hostname = mapping.NormalizeHostname(hostname)
	result, err := s.db.ExecContext(ctx,
		`UPDATE mappings SET active = 0, removed_at = ? WHERE hostname = ? AND active = 1`,
		time.Now().UTC().Format(time.RFC3339Nano), hostname)
	if err != nil {
		return false, fmt.Errorf("removing mapping %s: %w", hostname, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("fetching rows affected: %w", err)
	}
	return n > 0, nil
}

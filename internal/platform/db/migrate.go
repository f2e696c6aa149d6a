package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// MigrationStatus represents the status of a migration (applied or pending).
type MigrationStatus struct {
	Version   int64
	Name      string
	Applied   bool
	AppliedAt *time.Time
}

// Migrator applies the embedded goose migrations to a tenant schema.
type Migrator struct {
	pool *pgxpool.Pool
	fsys fs.FS
}

// NewMigrator creates a Migrator that opens its connections from the pool's
// configuration.
func NewMigrator(pool *pgxpool.Pool) *Migrator {
	return &Migrator{pool: pool, fsys: migrationFS()}
}

func migrationFS() fs.FS {
	sub, err := fs.Sub(embeddedMigrations, "migrations")
	if err != nil {
		panic(fmt.Sprintf("embedded migrations: %v", err))
	}
	return sub
}

// openSchemaDB returns a database/sql handle whose sessions default to the
// given schema, so goose creates its version table and every migrated table
// inside that schema.
func (m *Migrator) openSchemaDB(schema string) *sql.DB {
	connConfig := m.pool.Config().ConnConfig.Copy()
	if connConfig.RuntimeParams == nil {
		connConfig.RuntimeParams = map[string]string{}
	}
	connConfig.RuntimeParams["search_path"] = schema + ", public"
	return stdlib.OpenDB(*connConfig)
}

func (m *Migrator) provider(schema string) (*goose.Provider, error) {
	sqlDB := m.openSchemaDB(schema)
	p, err := goose.NewProvider(goose.DialectPostgres, sqlDB, m.fsys)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("create goose provider for %s: %w", schema, err)
	}
	return p, nil
}

// Up applies all pending migrations against the given schema and returns the
// number applied.
func (m *Migrator) Up(ctx context.Context, schema string) (int, error) {
	p, err := m.provider(schema)
	if err != nil {
		return 0, err
	}
	defer p.Close()

	results, err := p.Up(ctx)
	if err != nil {
		return len(results), fmt.Errorf("apply migrations in %s: %w", schema, err)
	}
	return len(results), nil
}

// Down rolls back the most recently applied migration in the given schema.
func (m *Migrator) Down(ctx context.Context, schema string) error {
	p, err := m.provider(schema)
	if err != nil {
		return err
	}
	defer p.Close()

	if _, err := p.Down(ctx); err != nil {
		return fmt.Errorf("roll back migration in %s: %w", schema, err)
	}
	return nil
}

// Status returns the status of all known migrations (both applied and pending)
// for the given schema.
func (m *Migrator) Status(ctx context.Context, schema string) ([]MigrationStatus, error) {
	p, err := m.provider(schema)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	results, err := p.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("query migration status in %s: %w", schema, err)
	}

	statuses := make([]MigrationStatus, 0, len(results))
	for _, r := range results {
		st := MigrationStatus{
			Version: r.Source.Version,
			Name:    r.Source.Path,
			Applied: r.State == goose.StateApplied,
		}
		if st.Applied {
			at := r.AppliedAt
			st.AppliedAt = &at
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

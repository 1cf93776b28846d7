package sqlstore

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func (d Dialect) gooseDialect() goose.Dialect {
	if d == DialectSQLite {
		return goose.DialectSQLite3
	}
	return goose.DialectPostgres
}

// Migrate применяет встроенную схему (заказы, позиции, клиенты, товары).
func (s *Store) Migrate(ctx context.Context) error {
	provider, err := s.migrationProvider()
	if err != nil {
		return err
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// SchemaVersion возвращает версию последней применённой миграции.
func (s *Store) SchemaVersion(ctx context.Context) (int64, error) {
	provider, err := s.migrationProvider()
	if err != nil {
		return 0, err
	}
	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("query schema version: %w", err)
	}
	return version, nil
}

// Provider не закрываем: его Close закрывает и переданный *sql.DB.
func (s *Store) migrationProvider() (*goose.Provider, error) {
	if s == nil || s.db == nil {
		return nil, errNotInitialized
	}

	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	provider, err := goose.NewProvider(s.dialect.gooseDialect(), s.db, fsys)
	if err != nil {
		return nil, fmt.Errorf("create migration provider: %w", err)
	}
	return provider, nil
}

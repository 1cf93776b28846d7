package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/health"
	"github.com/vladislavdragonenkov/checkout/internal/storage/memory"
	"github.com/vladislavdragonenkov/checkout/internal/storage/sqlstore"
)

// runtimeDependencies: репозитории выбранного хранилища и его жизненный цикл.
type runtimeDependencies struct {
	orders    domain.OrderRepository
	customers domain.CustomerRepository
	products  domain.ProductRepository
	pinger    health.Pinger
	closeFn   func() error
}

func (d *runtimeDependencies) close() error {
	if d == nil || d.closeFn == nil {
		return nil
	}
	return d.closeFn()
}

func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	switch cfg.StorageDriver {
	case StorageDriverMemory, "":
		store := memory.NewStore()
		logger.Info("используем in-memory хранилище")
		return &runtimeDependencies{
			orders:    memory.NewOrderRepository(store),
			customers: memory.NewCustomerRepository(store),
			products:  memory.NewProductRepository(store),
			pinger:    store,
		}, nil
	case StorageDriverPostgres, StorageDriverSQLite:
		return initSQLDependencies(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %q", cfg.StorageDriver)
	}
}

func initSQLDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	if cfg.DatabaseDSN == "" {
		return nil, fmt.Errorf("database dsn is required for %s storage", cfg.StorageDriver)
	}
	dialect, err := sqlstore.ParseDialect(string(cfg.StorageDriver))
	if err != nil {
		return nil, err
	}

	store, err := sqlstore.Open(ctx, dialect, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", dialect, err)
	}

	if cfg.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("migrate %s storage: %w", dialect, err)
		}
	}
	version, err := store.SchemaVersion(ctx)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	logger.WithFields(log.Fields{
		"dialect":        dialect,
		"schema_version": version,
	}).Info("sql хранилище готово")

	return &runtimeDependencies{
		orders:    sqlstore.NewOrderRepository(store),
		customers: sqlstore.NewCustomerRepository(store),
		products:  sqlstore.NewProductRepository(store),
		pinger:    store,
		closeFn:   store.Close,
	}, nil
}

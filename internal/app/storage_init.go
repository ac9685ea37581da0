package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/jsgaviriam/checkout/internal/domain"
	"github.com/jsgaviriam/checkout/internal/storage/memory"
	"github.com/jsgaviriam/checkout/internal/storage/postgres"
)

// runtimeDependencies содержит репозитории, выбранные по StorageDriver.
type runtimeDependencies struct {
	products     domain.ProductRepository
	categories   domain.CategoryRepository
	transactions domain.TransactionRepository
	outboxRepo   domain.OutboxRepository
	// store не nil только для postgres; используется для ping и Close.
	store *postgres.Store
}

// initRuntimeDependencies инициализирует хранилище согласно конфигурации.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	switch cfg.StorageDriver {
	case StorageDriverMemory, "":
		logger.Info("используем in-memory хранилище")
		return &runtimeDependencies{
			products:     memory.NewProductRepository(),
			categories:   memory.NewCategoryRepository(),
			transactions: memory.NewTransactionRepository(),
			outboxRepo:   memory.NewOutboxRepository(),
		}, nil
	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("storage driver %q требует CHECKOUT_POSTGRES_DSN", cfg.StorageDriver)
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("подключение к postgres: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("применение миграций: %w", err)
			}
		}
		logger.Info("используем postgres хранилище")
		return &runtimeDependencies{
			products:     postgres.NewProductRepository(store),
			categories:   postgres.NewCategoryRepository(store),
			transactions: postgres.NewTransactionRepository(store),
			outboxRepo:   postgres.NewOutboxRepository(store),
			store:        store,
		}, nil
	default:
		return nil, fmt.Errorf("неподдерживаемый storage driver: %q", cfg.StorageDriver)
	}
}

// close освобождает ресурсы хранилища.
func (d *runtimeDependencies) close(logger *log.Entry) {
	if d == nil || d.store == nil {
		return
	}
	if err := d.store.Close(); err != nil {
		logger.WithError(err).Warn("failed to close postgres store")
	}
}

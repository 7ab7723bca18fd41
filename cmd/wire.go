package main

import (
	"context"
	"fmt"
	"log/slog"

	"marketplace/internal/cleanup"
	"marketplace/internal/config"
	"marketplace/internal/repository"
	"marketplace/internal/repository/mongostore"
	"marketplace/internal/repository/pgstore"
)

// storage набор репозиториев выбранного драйвера
type storage struct {
	products  repository.ProductRepository
	carts     repository.CartRepository
	addresses repository.AddressRepository
	orders    repository.OrderRepository
	tx        repository.TxManager
	close     func(ctx context.Context) error
	migrate   func(ctx context.Context) error
}

func openStorage(ctx context.Context, cfg config.Store, log *slog.Logger) (*storage, error) {
	switch cfg.Driver {
	case config.DriverMongo:
		s, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		log.Info("storage ready", "driver", cfg.Driver, "database", cfg.MongoDatabase, "transactions", cfg.MongoTransactions)
		return &storage{
			products:  s.Products(),
			carts:     s.Carts(),
			addresses: s.Addresses(),
			orders:    s.Orders(),
			tx:        s.Tx(cfg.MongoTransactions),
			close:     s.Close,
			migrate:   s.EnsureIndexes,
		}, nil
	case config.DriverPostgres:
		s, err := pgstore.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		log.Info("storage ready", "driver", cfg.Driver)
		return &storage{
			products:  s.Products(),
			carts:     s.Carts(),
			addresses: s.Addresses(),
			orders:    s.Orders(),
			tx:        s.Tx(),
			close:     func(context.Context) error { return s.Close() },
			migrate:   s.Migrate,
		}, nil
	case config.DriverMemory:
		store := repository.NewMemoryStore()
		log.Warn("using in-memory storage, data is lost on restart")
		return &storage{
			products:  store,
			carts:     repository.NewMemoryCarts(store),
			addresses: repository.NewMemoryAddresses(store),
			orders:    repository.NewMemoryOrders(store),
			tx:        repository.NewMemoryTx(store),
			close:     func(context.Context) error { return nil },
			migrate:   func(context.Context) error { return nil },
		}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// openQueue очередь отложенной очистки корзин: Redis, если задан URL, иначе память процесса
func openQueue(ctx context.Context, cfg config.Redis, log *slog.Logger) (cleanup.Queue, func() error, error) {
	if cfg.URL == "" {
		log.Info("cart cleanup queue in memory")
		return cleanup.NewMemoryQueue(), func() error { return nil }, nil
	}
	client, err := cleanup.DialRedis(ctx, cfg.URL)
	if err != nil {
		return nil, nil, err
	}
	log.Info("cart cleanup queue in redis", "key", cleanup.DefaultKey)
	return cleanup.NewRedisQueue(client, cleanup.DefaultKey), client.Close, nil
}

// Package mongostore реализует репозитории поверх MongoDB.
//
// Каждая сущность хранится в своей коллекции с ObjectID в _id; ссылки
// между документами (адрес, товар) лежат строками hex и разрешаются
// явными запросами в сервисном слое.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"marketplace/internal/repository"
)

const (
	productsCollection  = "products"
	cartsCollection     = "carts"
	addressesCollection = "addresses"
	ordersCollection    = "orders"
)

// Store держит клиента и базу; репозитории создаются из него
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	now    func() time.Time
}

// Connect подключается к MongoDB и проверяет соединение
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return &Store{
		client: client,
		db:     client.Database(database),
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// EnsureIndexes создаёт индексы; уникальность orderId обеспечивает база
func (s *Store) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		ordersCollection: {
			{Keys: bson.D{{Key: "orderId", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "orderStatus", Value: 1}}},
		},
		cartsCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "productId", Value: 1}}},
		},
		addressesCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}}},
		},
	}
	for coll, models := range specs {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
	}
	return nil
}

func (s *Store) Products() *Products {
	return &Products{coll: s.db.Collection(productsCollection), now: s.now}
}
func (s *Store) Carts() *Carts { return &Carts{coll: s.db.Collection(cartsCollection), now: s.now} }
func (s *Store) Addresses() *Addresses {
	return &Addresses{coll: s.db.Collection(addressesCollection), now: s.now}
}
func (s *Store) Orders() *Orders { return &Orders{coll: s.db.Collection(ordersCollection), now: s.now} }

// Tx возвращает менеджер транзакций. Транзакции требуют replica set;
// при enabled=false функции выполняются без сессии
func (s *Store) Tx(enabled bool) repository.TxManager {
	if !enabled {
		return noTx{}
	}
	return &SessionTx{client: s.client}
}

// SessionTx выполняет функцию в транзакции mongo-сессии
type SessionTx struct {
	client *mongo.Client
}

func (t *SessionTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}
	sess, err := t.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(context.Background())

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func (t *SessionTx) RollsBack() bool { return true }

type noTx struct{}

func (noTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// objectID разбирает hex id; невалидный id не может существовать в базе
func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, repository.ErrNotFound
	}
	return oid, nil
}

func objectIDs(ids []string) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			out = append(out, oid)
		}
	}
	return out
}

// mapErr приводит ошибки драйвера к ошибкам репозитория
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return repository.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", repository.ErrConflict, err)
	default:
		return err
	}
}

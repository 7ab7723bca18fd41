// Package cleanup хранит пользователей, чью корзину не удалось очистить
// после оформления заказа, и дочищает их в фоне.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
)

// DefaultKey множество пользователей в Redis
const DefaultKey = "marketplace:cart-cleanup"

// Queue очередь на повторную очистку корзины. Повторная постановка
// одного пользователя не создаёт дубликатов
type Queue interface {
	Enqueue(ctx context.Context, userID string) error
	// Pop забирает одного пользователя; ok=false, если очередь пуста
	Pop(ctx context.Context) (userID string, ok bool, err error)
	Len(ctx context.Context) (int64, error)
}

// RedisQueue очередь на Redis SET: SADD для постановки, SPOP для выборки
type RedisQueue struct {
	client *redis.Client
	key    string
}

func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = DefaultKey
	}
	return &RedisQueue{client: client, key: key}
}

// DialRedis создаёт клиента по URL вида redis://host:6379/0 и проверяет соединение
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, userID string) error {
	if err := q.client.SAdd(ctx, q.key, userID).Err(); err != nil {
		return fmt.Errorf("enqueue cart cleanup: %w", err)
	}
	return nil
}

func (q *RedisQueue) Pop(ctx context.Context) (string, bool, error) {
	userID, err := q.client.SPop(ctx, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("pop cart cleanup: %w", err)
	}
	return userID, true, nil
}

func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.SCard(ctx, q.key).Result()
}

// MemoryQueue очередь в памяти процесса, для разработки и тестов
type MemoryQueue struct {
	mu    sync.Mutex
	order []string
	set   map[string]struct{}
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{set: make(map[string]struct{})}
}

func (q *MemoryQueue) Enqueue(_ context.Context, userID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.set[userID]; ok {
		return nil
	}
	q.set[userID] = struct{}{}
	q.order = append(q.order, userID)
	return nil
}

func (q *MemoryQueue) Pop(_ context.Context) (string, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.order) == 0 {
		return "", false, nil
	}
	userID := q.order[0]
	q.order = q.order[1:]
	delete(q.set, userID)
	return userID, true, nil
}

func (q *MemoryQueue) Len(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.order)), nil
}

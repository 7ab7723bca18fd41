package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// CartDeleter удаляет все позиции корзины пользователя
type CartDeleter interface {
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}

// Sweeper периодически разбирает очередь и удаляет корзины
type Sweeper struct {
	queue      Queue
	carts      CartDeleter
	log        *slog.Logger
	interval   time.Duration
	attempts   uint
	newBackoff func() backoff.BackOff
}

type SweeperOption func(*Sweeper)

func WithAttempts(n uint) SweeperOption { return func(s *Sweeper) { s.attempts = n } }

func WithBackoff(fn func() backoff.BackOff) SweeperOption {
	return func(s *Sweeper) { s.newBackoff = fn }
}

func NewSweeper(queue Queue, carts CartDeleter, log *slog.Logger, interval time.Duration, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		queue:    queue,
		carts:    carts,
		log:      log,
		interval: interval,
		attempts: 3,
		newBackoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result итог одного прохода
type Result struct {
	Cleared  int
	Requeued int
	Lines    int64
}

// Drain разбирает очередь до конца. Пользователи, чью корзину так и
// не удалось удалить, возвращаются в очередь после прохода
func (s *Sweeper) Drain(ctx context.Context) (Result, error) {
	var res Result
	var failed []string
	for {
		if err := ctx.Err(); err != nil {
			break
		}
		userID, ok, err := s.queue.Pop(ctx)
		if err != nil {
			return res, err
		}
		if !ok {
			break
		}
		n, err := backoff.Retry(ctx, func() (int64, error) {
			return s.carts.DeleteByUser(ctx, userID)
		}, backoff.WithBackOff(s.newBackoff()), backoff.WithMaxTries(s.attempts))
		if err != nil {
			s.log.WarnContext(ctx, "cart cleanup retry failed", "user_id", userID, "error", err)
			failed = append(failed, userID)
			continue
		}
		res.Cleared++
		res.Lines += n
	}
	for _, userID := range failed {
		if err := s.queue.Enqueue(context.WithoutCancel(ctx), userID); err != nil {
			s.log.ErrorContext(ctx, "requeue cart cleanup", "user_id", userID, "error", err)
			continue
		}
		res.Requeued++
	}
	return res, nil
}

// Run вызывает Drain каждые interval до отмены контекста
func (s *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			res, err := s.Drain(ctx)
			if err != nil {
				s.log.ErrorContext(ctx, "cart cleanup sweep", "error", err)
				continue
			}
			if res.Cleared > 0 || res.Requeued > 0 {
				s.log.InfoContext(ctx, "cart cleanup sweep",
					"cleared", res.Cleared, "requeued", res.Requeued, "lines", res.Lines)
			}
		}
	}
}

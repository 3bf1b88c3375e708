package redisad

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"guesthouse/internal/domain"
)

// Locker hands out short-lived distributed locks, e.g. one importer run at a time.
type Locker struct{ l *redislock.Client }

func NewLocker(c *redis.Client) *Locker { return &Locker{l: redislock.New(c)} }

// Obtain takes key for ttl without waiting. A key held by someone else is
// reported as domain.ErrConflict.
func (l *Locker) Obtain(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error) {
	lock, err := l.l.Obtain(ctx, "lock:"+key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("lock %s is held: %w", key, domain.ErrConflict)
	}
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) error {
		err := lock.Release(ctx)
		if errors.Is(err, redislock.ErrLockNotHeld) {
			return nil
		}
		return err
	}, nil
}

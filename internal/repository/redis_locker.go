package repository

import (
	"context"
	"time"

	domrepo "SentiCast/internal/domain/repository"
	"SentiCast/pkg/cache"
)

// RedisLocker hands out token-guarded Redis locks so only one process trains at a time.
type RedisLocker struct {
	cache cache.Service
}

var _ domrepo.Locker = (*RedisLocker)(nil)

func NewRedisLocker(c cache.Service) *RedisLocker {
	return &RedisLocker{cache: c}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	token, ok, err := l.cache.TryLock(ctx, key, ttl)
	if err != nil || !ok {
		return nil, false, err
	}
	return func(ctx context.Context) error {
		return l.cache.Unlock(ctx, key, token)
	}, true, nil
}

// Package cache describes the byte-level key/value cache the services use.
package cache

import (
	"context"
	"time"
)

// BytesCache: Get возвращает ok=false для отсутствующего ключа, это не ошибка.
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

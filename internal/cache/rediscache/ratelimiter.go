package rediscache

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const chatLimitPrefix = "ratelimit:telegram:"

// chatWindowScript: INCR и PEXPIRE одним шагом. Окно открывается первым
// сообщением и не продлевается последующими.
var chatWindowScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {n, ttl}
`)

// ChatLimiter ограничивает число сообщений в один Telegram-чат за окно.
// Счётчик общий для всех реплик воркера, клиент берётся у RedisCache.
type ChatLimiter struct {
	c *redis.Client
}

// ChatLimiter делит соединения с кэшем; закрывается вместе с ним.
func (r *RedisCache) ChatLimiter() *ChatLimiter {
	return &ChatLimiter{c: r.c}
}

// AllowChat засчитывает одно сообщение в chatID. limit <= 0 отключает
// ограничение. При отказе retryAfter: сколько осталось до конца окна.
func (l *ChatLimiter) AllowChat(ctx context.Context, chatID string, limit int64, window time.Duration) (bool, time.Duration, error) {
	if limit <= 0 {
		return true, 0, nil
	}
	if window < time.Millisecond {
		return false, 0, errors.Errorf("rate window %s is too short", window)
	}
	key := chatLimitPrefix + chatID
	vals, err := chatWindowScript.Run(ctx, l.c, []string{key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return false, 0, errors.Wrapf(err, "redis ratelimit %s", key)
	}
	if len(vals) != 2 {
		return false, 0, errors.Errorf("redis ratelimit %s: unexpected reply %v", key, vals)
	}
	n, ttl := vals[0], time.Duration(vals[1])*time.Millisecond
	if n > limit {
		slog.Debug("telegram chat limit reached", "chat_id", chatID, "count", n, "limit", limit, "retry_after", ttl)
		return false, ttl, nil
	}
	return true, 0, nil
}

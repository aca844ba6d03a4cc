package rediscache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestRedisCache_GetSetDel(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	_, ok, err := c.Get(ctx, "settings:PRICE_PER_KG")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Set(ctx, "settings:PRICE_PER_KG", []byte("4.5"), time.Minute))
	b, ok, err := c.Get(ctx, "settings:PRICE_PER_KG")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("4.5"), b)

	require.NoError(t, c.Del(ctx, "settings:PRICE_PER_KG"))
	_, ok, err = c.Get(ctx, "settings:PRICE_PER_KG")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Del(ctx))
	require.NoError(t, c.Ping(ctx))
}

func TestRedisCache_TTL(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	mr.FastForward(2 * time.Minute)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestChatLimiter_AllowChat(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())
	t.Cleanup(func() { _ = c.Close() })
	rl := c.ChatLimiter()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		ok, wait, err := rl.AllowChat(ctx, "-1001", 2, time.Minute)
		require.NoError(t, err)
		require.True(t, ok)
		require.Zero(t, wait)
	}

	ok, wait, err := rl.AllowChat(ctx, "-1001", 2, time.Minute)
	require.NoError(t, err)
	require.False(t, ok)
	require.Greater(t, wait, time.Duration(0))
	require.LessOrEqual(t, wait, time.Minute)

	// другой чат считается отдельно
	ok, _, err = rl.AllowChat(ctx, "-1002", 2, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// окно истекло: счётчик заново
	mr.FastForward(61 * time.Second)
	ok, _, err = rl.AllowChat(ctx, "-1001", 2, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", mustGet(t, mr, "ratelimit:telegram:-1001"))
}

func TestChatLimiter_Bounds(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())
	t.Cleanup(func() { _ = c.Close() })
	rl := c.ChatLimiter()
	ctx := context.Background()

	ok, _, err := rl.AllowChat(ctx, "-1001", 0, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, mr.Exists("ratelimit:telegram:-1001"))

	_, _, err = rl.AllowChat(ctx, "-1001", 1, 0)
	require.Error(t, err)

	mr.Close()
	_, _, err = rl.AllowChat(ctx, "-1001", 1, time.Minute)
	require.Error(t, err)
}

func mustGet(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := mr.Get(key)
	require.NoError(t, err)
	return v
}

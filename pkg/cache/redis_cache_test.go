package cache

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedThing struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, "test", time.Minute), mr
}

func TestRedisCacheRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	var got cachedThing
	hit, err := c.Get(ctx, "workplace", 1, 9, &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Set(ctx, "workplace", 1, 9, cachedThing{ID: 9, Name: "Fabrika"}))

	hit, err = c.Get(ctx, "workplace", 1, 9, &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "Fabrika", got.Name)

	// other tenant does not see it
	hit, err = c.Get(ctx, "workplace", 2, 9, &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestRedisCacheInvalidate(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "expert", 1, 4, cachedThing{ID: 4}))
	assert.True(t, mr.Exists("test:cache:expert:1:4"))

	require.NoError(t, c.Invalidate(ctx, "expert", 1, 4))
	assert.False(t, mr.Exists("test:cache:expert:1:4"))
}

func TestRedisCacheTTL(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, c.Set(context.Background(), "physician", 1, 1, cachedThing{ID: 1}))
	assert.Equal(t, time.Minute, mr.TTL("test:cache:physician:1:1"))
}

func TestNewClientAndDefaults(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	client := NewClient(&Config{Host: mr.Host(), Port: port})
	c := NewRedisCache(client, "", 0)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Ping(context.Background()))

	require.NoError(t, c.Set(context.Background(), "expert", 3, 7, cachedThing{ID: 7}))
	assert.True(t, mr.Exists("osgb:cache:expert:3:7"))
	assert.Equal(t, 5*time.Minute, mr.TTL("osgb:cache:expert:3:7"))
}

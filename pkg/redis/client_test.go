package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/successplus/membership-backend/pkg/config"
)

func TestSetNXClaimsOnce(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}
	key := client.IdempotencyKey("paykickstart", "evt_1")

	ok, err := client.SetNX(ctx, key, "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.SetNX(ctx, key, "1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second claim should lose")

	require.NoError(t, client.Del(ctx, key))
	ok, err = client.SetNX(ctx, key, "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "claim should be available again after release")
}

func TestGetSetRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	require.NoError(t, client.Set(ctx, "k", "v", 0))
	got, err := client.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	_, err = client.Get(ctx, "missing")
	assert.ErrorIs(t, err, redis.Nil)
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}
	ctx := context.Background()
	_, err := client.SetNX(ctx, "k", "v", time.Second)
	require.Error(t, err)
	require.Error(t, client.Ping(ctx))
	require.NoError(t, client.Close())
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	assert.Equal(t, "sp:idempotency:scope:id", client.IdempotencyKey("scope", "id"))
	assert.Equal(t, "sp:idempotency:scope", client.IdempotencyKey("scope", ""))
}

func TestOptionsFromConfig(t *testing.T) {
	_, err := optionsFromConfig(config.RedisConfig{})
	require.Error(t, err)

	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/2", PoolSize: 7})
	require.NoError(t, err)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)

	opts, err = optionsFromConfig(config.RedisConfig{Address: "cache:6379", DialTimeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, time.Second, opts.DialTimeout)
}

type mockCmdable struct {
	data map[string]string
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{data: make(map[string]string)}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

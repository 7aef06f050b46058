package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/vendorledger/pkg/config"
)

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	for i, want := range []bool{true, true, false} {
		allowed, count, err := client.FixedWindowAllow(ctx, "payout_request:v1", 2, 90*time.Second)
		require.NoError(t, err)
		assert.Equal(t, want, allowed, "hit %d", i+1)
		assert.EqualValues(t, i+1, count)
	}
	assert.Equal(t, map[string]int64{"vl:rate_limit:payout_request:v1": 90000}, mock.expiries,
		"expiry is set once, on the first hit")

	_, _, err := client.FixedWindowAllow(ctx, "payout_request:v1", 2, 0)
	require.Error(t, err)
}

func TestFixedWindowAllowSurfacesStoreErrors(t *testing.T) {
	mock := newMockCmdable()
	mock.evalErr = errors.New("connection refused")
	client := &Client{store: mock}

	allowed, _, err := client.FixedWindowAllow(context.Background(), "scope", 5, time.Minute)
	require.ErrorContains(t, err, "connection refused")
	assert.False(t, allowed)
}

func TestRevokeToken(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	revoked, err := client.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, client.RevokeToken(ctx, "jti-1", time.Hour))
	revoked, err = client.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	require.Error(t, client.RevokeToken(ctx, " ", time.Hour))
	revoked, err = client.IsRevoked(ctx, "")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestLockLifecycle(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	ok, err := client.AcquireLock(ctx, "wallet_reconciliation", "worker-a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = client.AcquireLock(ctx, "wallet_reconciliation", "worker-b", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, client.ReleaseLock(ctx, "wallet_reconciliation", "worker-b"))
	assert.Contains(t, mock.data, "vl:lock:wallet_reconciliation", "non-owner release must keep the lock")

	require.NoError(t, client.ReleaseLock(ctx, "wallet_reconciliation", "worker-a"))
	ok, err = client.AcquireLock(ctx, "wallet_reconciliation", "worker-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	assert.Equal(t, "vl:idempotency:scope:id", client.IdempotencyKey("scope", "id"))
	assert.Equal(t, "vl:idempotency:scope", client.IdempotencyKey("scope", " "))
	assert.Equal(t, "vl:rate_limit:scope", client.RateLimitKey("scope"))
	assert.Equal(t, "vl:revoked:access:abc", client.RevokedTokenKey("abc"))
	assert.Equal(t, "vl:lock:outbox_retention", client.LockKey("outbox_retention"))
	assert.Equal(t, "vl", buildKey())
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}
	ctx := context.Background()
	assert.ErrorIs(t, client.Ping(ctx), errNotInitialized)
	assert.ErrorIs(t, client.Del(ctx, "k"), errNotInitialized)
	_, _, err := client.FixedWindowAllow(ctx, "scope", 1, time.Second)
	assert.ErrorIs(t, err, errNotInitialized)
	assert.NoError(t, client.Close())
}

func TestOptionsFromConfig(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{
		URL:         "redis://:secret@cache:6380/3",
		PoolSize:    25,
		DB:          7,
		DialTimeout: 2 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 3, opts.DB, "the URL database wins")
	assert.Equal(t, 25, opts.PoolSize)
	assert.Equal(t, 2*time.Second, opts.DialTimeout)

	opts, err = optionsFromConfig(config.RedisConfig{Address: "localhost:6379", DB: 2})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)

	_, err = optionsFromConfig(config.RedisConfig{})
	require.Error(t, err)
	_, err = optionsFromConfig(config.RedisConfig{URL: "http://nope"})
	require.Error(t, err)
}

// mockCmdable keeps string values in memory and interprets the two Lua
// scripts the client sends.
type mockCmdable struct {
	data     map[string]string
	counters map[string]int64
	expiries map[string]int64
	evalErr  error
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data:     make(map[string]string),
		counters: make(map[string]int64),
		expiries: make(map[string]int64),
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (m *mockCmdable) Eval(_ context.Context, script string, keys []string, args ...any) *redis.Cmd {
	if m.evalErr != nil {
		return redis.NewCmdResult(nil, m.evalErr)
	}
	key := keys[0]
	switch script {
	case fixedWindowScript:
		m.counters[key]++
		if m.counters[key] == 1 {
			m.expiries[key] = args[0].(int64)
		}
		return redis.NewCmdResult(m.counters[key], nil)
	case releaseLockScript:
		if m.data[key] == fmt.Sprint(args[0]) {
			delete(m.data, key)
			return redis.NewCmdResult(int64(1), nil)
		}
		return redis.NewCmdResult(int64(0), nil)
	}
	return redis.NewCmdResult(nil, fmt.Errorf("unexpected script %q", script))
}

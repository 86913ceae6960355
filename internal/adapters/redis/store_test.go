package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/ruleflow/internal/adapters/redis"
	"github.com/aretw0/ruleflow/pkg/domain"
	"github.com/aretw0/ruleflow/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()

	// Setup miniredis
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	// Initialize client
	return mr, backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := setup(t)

	// Run contract
	store := redis.NewFromClient(client)
	ports.RunStoreContract(t, store)
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := setup(t)

	// Create store with 1s TTL
	store := redis.NewFromClient(client, redis.WithTTL(1*time.Second))
	ctx := context.Background()

	run := domain.NewRunRecord("run-ttl", "approve-order")
	run.Context["foo"] = "bar"

	// 1. Save
	require.NoError(t, store.Save(ctx, run))

	// 2. Verify List (immediately)
	runs, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, runs, run.ID)

	// 3. Fast Forward time in miniredis (for Key Expiration)
	mr.FastForward(2 * time.Second)

	// 4. Verify Load (should fail)
	_, err = store.Load(ctx, run.ID)
	assert.ErrorIs(t, err, domain.ErrRunNotFound)

	// 5. Verify List (lazily cleaned up)
	runs, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)

	members, err := client.ZCard(ctx, "ruleflow:runs").Result()
	require.NoError(t, err)
	assert.Zero(t, members, "expired ids are pruned from the index")
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := setup(t)

	// Custom Prefix
	store := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.NewRunRecord("my-run", "rule")))

	assert.True(t, mr.Exists("custom:app:run:my-run"), "Expected key with custom prefix to exist")
	assert.True(t, mr.Exists("custom:app:runs"), "Expected index with custom prefix to exist")

	// Verify List works
	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, list, "my-run")
	assert.NoError(t, store.Ping(ctx))
}

func TestRedisStore_IDsDoNotCollideWithIndex(t *testing.T) {
	_, client := setup(t)
	store := redis.NewFromClient(client)
	ctx := context.Background()

	for _, id := range []string{"runs", "index", "run:runs"} {
		require.NoError(t, store.Save(ctx, domain.NewRunRecord(id, "rule")))
	}
	require.NoError(t, store.Save(ctx, domain.NewRunRecord("other", "rule")))

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"runs", "index", "run:runs", "other"}, list)

	loaded, err := store.Load(ctx, "runs")
	require.NoError(t, err)
	assert.Equal(t, "runs", loaded.ID)
}

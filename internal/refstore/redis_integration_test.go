package refstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/telemetry"
)

var (
	testRedisClient    *redis.Client
	testRedisContainer testcontainers.Container
	skipRedisTests     bool
)

func setupRedis(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	var containerErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				containerErr = fmt.Errorf("docker not available: %v", r)
			}
		}()
		req := testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		}
		testRedisContainer, containerErr = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
	}()
	if containerErr != nil {
		t.Logf("docker not available, skipping redis refstore tests: %v", containerErr)
		skipRedisTests = true
		return
	}

	host, err := testRedisContainer.Host(ctx)
	if err != nil {
		skipRedisTests = true
		return
	}
	port, err := testRedisContainer.MappedPort(ctx, "6379")
	if err != nil {
		skipRedisTests = true
		return
	}
	testRedisClient = redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	if err := testRedisClient.Ping(ctx).Err(); err != nil {
		skipRedisTests = true
		return
	}
}

// TestRedisBackedStoreDedupAndRetrieve exercises spec.md §8 invariants 8
// and 9 against a real Redis instance: storing equal values dedups to
// the same reference id, and Retrieve returns the stored value intact.
func TestRedisBackedStoreDedupAndRetrieve(t *testing.T) {
	if testRedisClient == nil && !skipRedisTests {
		setupRedis(t)
	}
	if skipRedisTests {
		t.Skip("docker not available, skipping redis refstore integration test")
	}

	ctx := context.Background()
	backend := NewRedisBackend(testRedisClient, "bunkerplan:test:"+t.Name()+":")
	store := New(backend, time.Minute, telemetry.NoopMetrics{})

	value := map[string]any{"port": "Singapore", "price_usd_mt": 610.0}
	id1, err := store.Store(ctx, "bunker_analysis", value, nil)
	require.NoError(t, err)
	id2, err := store.Store(ctx, "bunker_analysis", value, nil)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	got, found, err := store.Retrieve(ctx, id1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, value["port"], got.(map[string]any)["port"])
}

// TestRedisBackedStoreTTLExpires verifies a reference written with a
// short TTL is gone after it elapses (spec.md §4.4 "TTL").
func TestRedisBackedStoreTTLExpires(t *testing.T) {
	if testRedisClient == nil && !skipRedisTests {
		setupRedis(t)
	}
	if skipRedisTests {
		t.Skip("docker not available, skipping redis refstore integration test")
	}

	ctx := context.Background()
	backend := NewRedisBackend(testRedisClient, "bunkerplan:test:"+t.Name()+":")
	store := New(backend, 500*time.Millisecond, telemetry.NoopMetrics{})

	id, err := store.Store(ctx, "route_data", "distance_nm:4200", nil)
	require.NoError(t, err)

	_, found, err := store.Retrieve(ctx, id)
	require.NoError(t, err)
	require.True(t, found)

	time.Sleep(700 * time.Millisecond)

	_, found, err = store.Retrieve(ctx, id)
	require.NoError(t, err)
	assert.False(t, found)
}

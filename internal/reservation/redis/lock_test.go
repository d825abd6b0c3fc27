package redis_test

import (
	"context"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	bookingredis "tablebook/internal/reservation/redis"
)

// TestRequestLockIntegration exercises the SetNX lock against a real
// Redis container.
func TestRequestLockIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Redis integration test in short mode")
	}

	ctx := context.Background()
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:latest",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}
	defer redisContainer.Terminate(ctx)

	host, err := redisContainer.Host(ctx)
	require.NoError(t, err)
	port, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
		DB:   0,
	})
	lock := bookingredis.NewRedis(client)

	phone, date, timeOfDay := "+15550001111", "2026-09-11", "19:00"

	locked, err := lock.LockRequest(ctx, phone, date, timeOfDay)
	require.NoError(t, err)
	assert.True(t, locked, "first request for a slot should take the lock")

	// A second request for the same guest/slot is in flight, refuse it.
	locked, err = lock.LockRequest(ctx, phone, date, timeOfDay)
	require.NoError(t, err)
	assert.False(t, locked)

	// Different slot for the same guest is unrelated.
	locked, err = lock.LockRequest(ctx, phone, date, "20:00")
	require.NoError(t, err)
	assert.True(t, locked)

	require.NoError(t, lock.UnlockRequest(ctx, phone, date, timeOfDay))

	locked, err = lock.LockRequest(ctx, phone, date, timeOfDay)
	require.NoError(t, err)
	assert.True(t, locked, "slot should be lockable again after release")

	// Unlocking a key that already expired is not an error.
	assert.NoError(t, lock.UnlockRequest(ctx, "+15559999999", date, timeOfDay))
}

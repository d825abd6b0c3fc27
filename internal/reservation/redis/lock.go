package redis

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis serializes concurrent booking requests for the same guest/slot:
// a short-lived SetNX lock on phone+date+time closes the race between
// the duplicate check and the insert.
type Redis struct {
	Client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{Client: client}
}

func requestKey(phone, date, timeOfDay string) string {
	return fmt.Sprintf("booking_lock:%s:%s:%s", phone, date, timeOfDay)
}

func (r *Redis) lockTTL() time.Duration {
	ttlStr := os.Getenv("BOOKING_LOCK_TTL_SECONDS")
	if ttlStr == "" {
		return 30 * time.Second
	}
	ttlSec, err := strconv.Atoi(ttlStr)
	if err != nil || ttlSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(ttlSec) * time.Second
}

// LockRequest takes the slot lock for a guest. Returns false when
// another request for the same guest/slot is already in flight.
func (r *Redis) LockRequest(ctx context.Context, phone, date, timeOfDay string) (bool, error) {
	return r.Client.SetNX(ctx, requestKey(phone, date, timeOfDay), "1", r.lockTTL()).Result()
}

// UnlockRequest drops the slot lock. Missing keys are fine: the TTL may
// already have expired it.
func (r *Redis) UnlockRequest(ctx context.Context, phone, date, timeOfDay string) error {
	err := r.Client.Del(ctx, requestKey(phone, date, timeOfDay)).Err()
	if err == redis.Nil {
		return nil
	}
	return err
}

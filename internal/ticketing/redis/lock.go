package redis

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis serializes purchases per ticket type across service instances. The
// lock is advisory: the database transaction remains the source of truth for
// the capacity check, the lock keeps concurrent purchasers of one type from
// piling up on the same row.
type Redis struct {
	Client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{Client: client}
}

// getLockDuration returns the purchase lock TTL, overridable via
// PURCHASE_LOCK_TTL_SECONDS. The TTL only matters when a holder dies without
// unlocking.
func (r *Redis) getLockDuration() time.Duration {
	defaultDuration := 10 * time.Second

	ttlStr := os.Getenv("PURCHASE_LOCK_TTL_SECONDS")
	if ttlStr == "" {
		return defaultDuration
	}
	ttlSec, err := strconv.Atoi(ttlStr)
	if err != nil || ttlSec <= 0 {
		return defaultDuration
	}
	return time.Duration(ttlSec) * time.Second
}

func lockKey(ticketTypeID int64) string {
	return fmt.Sprintf("ticket_type_lock:%d", ticketTypeID)
}

// LockTicketType attempts to take the purchase lock for one ticket type.
// Returns false when another purchaser holds it.
func (r *Redis) LockTicketType(ctx context.Context, ticketTypeID int64, token string) (bool, error) {
	return r.Client.SetNX(ctx, lockKey(ticketTypeID), token, r.getLockDuration()).Result()
}

// UnlockTicketType releases the lock if the token still owns it. A lock that
// expired and was re-taken by somebody else is left untouched.
func (r *Redis) UnlockTicketType(ctx context.Context, ticketTypeID int64, token string) error {
	key := lockKey(ticketTypeID)
	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already expired
	}
	if err != nil {
		return err
	}
	if val == token {
		_, err = r.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}

package auth

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-events/internal/models"
)

const revokedKeyPrefix = "auth:revoked:"

// RevocationStore blacklists token ids on logout. Entries expire together
// with the token they revoke, so the set never needs sweeping.
type RevocationStore struct {
	Client *redis.Client
}

func NewRevocationStore(client *redis.Client) *RevocationStore {
	return &RevocationStore{Client: client}
}

func (s *RevocationStore) Revoke(ctx context.Context, claims *models.Claims) error {
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil // already expired
	}
	return s.Client.Set(ctx, revokedKeyPrefix+claims.ID, "1", ttl).Err()
}

func (s *RevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	_, err := s.Client.Get(ctx, revokedKeyPrefix+jti).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

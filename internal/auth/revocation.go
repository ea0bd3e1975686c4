package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationList is the server-side state invalidated on logout. Revoked
// token IDs live in Redis until the token would have expired anyway, so the
// list never grows beyond the set of live tokens.
type RevocationList struct {
	client *redis.Client
}

// NewRevocationList creates a new revocation list
func NewRevocationList(client *redis.Client) *RevocationList {
	return &RevocationList{client: client}
}

// Revoke marks a token ID as revoked until its expiry
func (l *RevocationList) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		// Token already expired, nothing to revoke
		return nil
	}

	key := fmt.Sprintf("revoked:jti:%s", tokenID)
	if err := l.client.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	return nil
}

// IsRevoked checks whether a token ID has been revoked
func (l *RevocationList) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	key := fmt.Sprintf("revoked:jti:%s", tokenID)

	exists, err := l.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}

	return exists > 0, nil
}

// Reinstate removes a token ID from the revocation list (mainly for testing)
func (l *RevocationList) Reinstate(ctx context.Context, tokenID string) error {
	key := fmt.Sprintf("revoked:jti:%s", tokenID)

	if err := l.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to reinstate token: %w", err)
	}

	return nil
}

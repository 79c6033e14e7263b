package auth

import (
	"context"
	"time"
)

// Denylist holds refresh token ids that were revoked before their expiry.
type Denylist interface {
	// Revoke marks tokenID as revoked until the given time. It reports false
	// when the id had already been revoked, so it doubles as a one-time claim.
	Revoke(ctx context.Context, tokenID string, until time.Time) (bool, error)
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/NordCoder/Aurum/internal/domain/auth"
	"github.com/go-redis/redis/v8"
)

const denylistPrefix = "aurum:revoked:"

var _ auth.Denylist = (*Denylist)(nil)

// Denylist stores revoked token ids as keys that expire together with the token.
type Denylist struct {
	c   redis.Cmdable
	now func() time.Time
}

func NewDenylist(c redis.Cmdable) *Denylist {
	return &Denylist{c: c, now: time.Now}
}

func (d *Denylist) Revoke(ctx context.Context, tokenID string, until time.Time) (bool, error) {
	ttl := until.Sub(d.now())
	if ttl <= 0 {
		// already expired, nothing can replay it
		return true, nil
	}
	// round up so the key never expires before the token does
	if rem := ttl % time.Second; rem != 0 {
		ttl += time.Second - rem
	}
	ok, err := d.c.SetNX(ctx, denylistPrefix+tokenID, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("denylist set: %w", err)
	}
	return ok, nil
}

func (d *Denylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := d.c.Exists(ctx, denylistPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("denylist lookup: %w", err)
	}
	return n > 0, nil
}

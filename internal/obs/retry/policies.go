package retry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// EventsPolicy is used for fire-and-forget event publishing on the request path,
// so it gives up quickly.
func EventsPolicy(log *zap.Logger) Policy {
	return Policy{
		Name:     "price_events",
		Attempts: 3,
		Backoff:  ExpoJitter{Base: 50 * time.Millisecond, Max: 500 * time.Millisecond, Jitter: 0.2},
		Retryable: func(err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		},
		OnAttempt: func(i int, err error) {
			if log != nil {
				log.Warn("publish retry", zap.Int("attempt", i+1), zap.Error(err))
			}
		},
		OnExhaust: func(err error) {
			if log != nil && !errors.Is(err, context.Canceled) {
				log.Error("publish retries exhausted", zap.Error(err))
			}
		},
	}
}

// TriggerPolicy covers the refresher calling the api-gateway.
func TriggerPolicy(log *zap.Logger) Policy {
	p := EventsPolicy(log)
	p.Name = "refresh_trigger"
	p.Backoff = ExpoJitter{Base: 200 * time.Millisecond, Max: 2 * time.Second, Jitter: 0.2}
	p.Retryable = func(err error) bool {
		var perm *PermanentError
		return err != nil && !errors.As(err, &perm) && !errors.Is(err, context.Canceled)
	}
	p.OnAttempt = func(i int, err error) {
		if log != nil {
			log.Warn("refresh trigger retry", zap.Int("attempt", i+1), zap.Error(err))
		}
	}
	p.OnExhaust = func(err error) {
		if log != nil && !errors.Is(err, context.Canceled) {
			log.Warn("refresh trigger gave up", zap.Error(err))
		}
	}
	return p
}

package pricerefresher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/NordCoder/Aurum/internal/obs"
	"github.com/NordCoder/Aurum/internal/obs/retry"
	"github.com/NordCoder/Aurum/internal/services/api-gateway/price"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var ErrTrigger = errors.New("refresh trigger failed")

type Usecase struct {
	Client *http.Client
	Base   string
	Secret string
	Policy retry.Policy
	Log    *zap.Logger
}

func NewUC(client *http.Client, base, secret string, log *zap.Logger) *Usecase {
	log = obs.Component(log, "price-refresher")
	return &Usecase{
		Client: client,
		Base:   strings.TrimRight(base, "/"),
		Secret: secret,
		Policy: retry.TriggerPolicy(log),
		Log:    log,
	}
}

// Tick triggers a refresh for every instrument. A failing instrument does not stop the rest.
func (u *Usecase) Tick(ctx context.Context, instruments []string) (ok, failed int) {
	tr := obs.Tracer("price-refresher")
	ctxTick, span := tr.Start(ctx, "refresher.tick",
		trace.WithAttributes(attribute.Int("batch.size", len(instruments))),
	)
	defer span.End()

	for _, id := range instruments {
		if ctxTick.Err() != nil {
			failed++
			continue
		}
		if err := u.Trigger(ctxTick, id); err != nil {
			failed++
			obs.WithTrace(ctxTick, u.Log).Warn("refresh failed", zap.String("instrument", id), zap.Error(err))
			triggers.WithLabelValues("error").Inc()
			continue
		}
		ok++
		triggers.WithLabelValues("ok").Inc()
	}

	span.SetAttributes(
		attribute.Int("batch.ok", ok),
		attribute.Int("batch.failed", failed),
	)
	return ok, failed
}

func (u *Usecase) Trigger(ctx context.Context, instrumentID string) error {
	ctx, span := obs.Tracer("price-refresher").Start(ctx, "refresher.trigger",
		trace.WithAttributes(attribute.String("instrument.id", instrumentID)),
	)
	defer span.End()

	err := retry.Do(ctx, func() error { return u.call(ctx, instrumentID) }, u.Policy)
	obs.SpanError(span, err)
	return err
}

func (u *Usecase) call(ctx context.Context, instrumentID string) error {
	endpoint := u.Base + "/v1/prices/" + url.PathEscape(instrumentID) + "/refresh"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return retry.Permanent(fmt.Errorf("%w: %v", ErrTrigger, err))
	}
	req.Header.Set(price.SecretHeader, u.Secret)
	req.Header.Set("Accept", "application/json")

	resp, err := u.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTrigger, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		return retry.Permanent(fmt.Errorf("%w: %s status %d", ErrTrigger, instrumentID, resp.StatusCode))
	default:
		return fmt.Errorf("%w: %s status %d", ErrTrigger, instrumentID, resp.StatusCode)
	}
}

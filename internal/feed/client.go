package feed

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/NordCoder/Aurum/internal/domain/quote"
	"github.com/NordCoder/Aurum/internal/obs"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ErrFeed wraps every upstream failure: transport, status, decoding, missing instrument.
var ErrFeed = errors.New("price feed")

const maxBody = 1 << 20

type Config struct {
	BaseURL   string        `mapstructure:"base_url"`
	AccountID string        `mapstructure:"account_id"`
	APIKey    string        `mapstructure:"api_key"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

var _ quote.Fetcher = (*Client)(nil)

// Client reads ask prices from an OANDA-style pricing endpoint.
type Client struct {
	c   *http.Client
	cfg Config
	log *zap.Logger
}

func New(cfg Config, log *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
	}
	return &Client{
		c:   &http.Client{Timeout: cfg.Timeout, Transport: otelhttp.NewTransport(transport)},
		cfg: cfg,
		log: obs.Component(log, "feed"),
	}
}

type pricingResponse struct {
	Prices []struct {
		Instrument string `json:"instrument"`
		Asks       []struct {
			Price string `json:"price"`
		} `json:"asks"`
		CloseoutAsk string `json:"closeoutAsk"`
	} `json:"prices"`
}

func (cl *Client) Fetch(ctx context.Context, instrumentID string) (decimal.Decimal, error) {
	ctx, span := obs.Tracer("feed").Start(ctx, "feed.fetch")
	defer span.End()
	span.SetAttributes(attribute.String("instrument.id", instrumentID))

	price, err := cl.fetch(ctx, instrumentID)
	if err != nil {
		obs.SpanError(span, err)
		obs.WithTrace(ctx, cl.log).Warn("fetch failed", zap.String("instrument", instrumentID), zap.Error(err))
		return decimal.Zero, err
	}
	return price, nil
}

func (cl *Client) fetch(ctx context.Context, instrumentID string) (decimal.Decimal, error) {
	u := fmt.Sprintf("%s/v3/accounts/%s/pricing?instruments=%s",
		cl.cfg.BaseURL, url.PathEscape(cl.cfg.AccountID), url.QueryEscape(instrumentID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: build request: %v", ErrFeed, err)
	}
	req.Header.Set("Accept", "application/json")
	if cl.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+cl.cfg.APIKey)
	}
	if cl.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", cl.cfg.UserAgent)
	}

	resp, err := cl.c.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrFeed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return decimal.Zero, fmt.Errorf("%w: status %d", ErrFeed, resp.StatusCode)
	}

	var body pricingResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("%w: decode: %v", ErrFeed, err)
	}
	return askPrice(body, instrumentID)
}

func askPrice(body pricingResponse, instrumentID string) (decimal.Decimal, error) {
	for _, p := range body.Prices {
		if p.Instrument != instrumentID {
			continue
		}
		raw := p.CloseoutAsk
		if len(p.Asks) > 0 && p.Asks[0].Price != "" {
			raw = p.Asks[0].Price
		}
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: bad price %q", ErrFeed, raw)
		}
		if !price.IsPositive() {
			return decimal.Zero, fmt.Errorf("%w: non-positive price %s", ErrFeed, price)
		}
		return price, nil
	}
	return decimal.Zero, fmt.Errorf("%w: instrument %s missing in response", ErrFeed, instrumentID)
}

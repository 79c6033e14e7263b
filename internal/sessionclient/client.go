// Package sessionclient is an HTTP client for the cookie based session API.
// A 401 on an authenticated call triggers exactly one refresh and one replay
// of the original request.
package sessionclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/NordCoder/Aurum/internal/obs"
	"go.uber.org/zap"
)

var (
	ErrSessionExpired = errors.New("session expired")
	ErrNotReplayable  = errors.New("request body cannot be replayed")
)

const (
	loginPath   = "/v1/auth/login"
	refreshPath = "/v1/auth/refresh"
	logoutPath  = "/v1/auth/logout"
)

type Client struct {
	hc   *http.Client
	base string
	log  *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = obs.Component(l, "sessionclient") }
}

// New returns a client for the API at base. The underlying client gets a cookie jar if it has none.
func New(base string, opts ...Option) (*Client, error) {
	c := &Client{base: strings.TrimRight(base, "/"), log: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	if c.hc == nil {
		c.hc = obs.HTTPClient(10 * time.Second)
	}
	if c.hc.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		c.hc.Jar = jar
	}
	return c, nil
}

func (c *Client) URL(path string) string { return c.base + path }

// Login stores the session cookies in the jar.
func (c *Client) Login(ctx context.Context, email, password string) error {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(loginPath), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) Logout(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(logoutPath), nil)
	if err != nil {
		return err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	drain(resp)
	return nil
}

// Do sends an authenticated request. On 401 it refreshes the session once and
// replays req once. A second 401 or a rejected refresh yields ErrSessionExpired.
// Requests with a body must carry GetBody, which http.NewRequest sets for the usual readers.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return nil, ErrNotReplayable
	}

	// The jar writes its cookies into req.Header on every send. The replay must
	// start from the caller's headers so only the rotated cookies go out.
	header := req.Header.Clone()

	resp, err := c.hc.Do(req)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	drain(resp)

	if err := c.refresh(req.Context()); err != nil {
		return nil, err
	}

	retry := req.Clone(req.Context())
	retry.Header = header
	if retry.Header == nil {
		retry.Header = make(http.Header)
	}
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotReplayable, err)
		}
		retry.Body = body
	}
	resp, err = c.hc.Do(retry)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		return nil, ErrSessionExpired
	}
	return resp, nil
}

func (c *Client) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(refreshPath), nil)
	if err != nil {
		return err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer drain(resp)
	if resp.StatusCode/100 != 2 {
		c.log.Debug("session refresh rejected", zap.Int("status", resp.StatusCode))
		return ErrSessionExpired
	}
	return nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

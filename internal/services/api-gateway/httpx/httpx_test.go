package httpx

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roleReq struct {
	Role string `json:"role" validate:"required,oneof=customer admin"`
}

func decode(body string) error {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	var dst roleReq
	return DecodeJSON(httptest.NewRecorder(), r, &dst)
}

func TestDecodeJSON(t *testing.T) {
	require.NoError(t, decode(`{"role":"admin"}`))

	for name, body := range map[string]string{
		"malformed":     `{"role":`,
		"unknown field": `{"role":"admin","id":1}`,
		"trailing data": `{"role":"admin"}{"role":"admin"}`,
		"failed tag":    `{"role":"root"}`,
		"missing":       `{}`,
	} {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, decode(body), ErrBadRequest)
		})
	}
}

func TestValidInstrument(t *testing.T) {
	assert.True(t, ValidInstrument("XAU_USD"))
	assert.False(t, ValidInstrument("xau_usd"))
	assert.False(t, ValidInstrument("XAUUSD"))
	assert.False(t, ValidInstrument(""))
	assert.False(t, ValidInstrument("XAU_USD/../x"))
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusTeapot, "nope")

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"nope"}`, rec.Body.String())
}

func TestRateLimiter_PerClient(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	now := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return now }

	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	hit := func(ip string) int {
		r := httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil)
		r.RemoteAddr = ip + ":4242"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, hit("10.0.0.1"))
	assert.Equal(t, http.StatusNoContent, hit("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, hit("10.0.0.1"))
	assert.Equal(t, http.StatusNoContent, hit("10.0.0.2"))

	now = now.Add(time.Second)
	assert.Equal(t, http.StatusNoContent, hit("10.0.0.1"))
}

func TestRateLimiter_IgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	admitted := 0
	for i := 0; i < 50; i++ {
		r := httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil)
		r.RemoteAddr = "198.51.100.9:5000"
		r.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		if rec.Code == http.StatusNoContent {
			admitted++
		}
	}
	assert.Equal(t, 2, admitted)
}

func TestClientIP(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	require.NoError(t, rl.TrustProxies([]string{"10.0.0.0/8", " 192.0.2.1 ", ""}))

	cases := []struct {
		name, remote, xff, want string
	}{
		{"untrusted peer", "198.51.100.9:5000", "203.0.113.7", "198.51.100.9"},
		{"trusted proxy", "10.1.2.3:5000", "203.0.113.7", "203.0.113.7"},
		{"spoofed left hop", "10.1.2.3:5000", "1.1.1.1, 203.0.113.7", "203.0.113.7"},
		{"proxy chain", "192.0.2.1:5000", "203.0.113.7, 10.9.9.9", "203.0.113.7"},
		{"no header", "10.1.2.3:5000", "", "10.1.2.3"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tc.remote
			if tc.xff != "" {
				r.Header.Set("X-Forwarded-For", tc.xff)
			}
			assert.Equal(t, tc.want, rl.clientIP(r))
		})
	}
}

func TestTrustProxies_Invalid(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	assert.Error(t, rl.TrustProxies([]string{"not-an-ip"}))
	assert.Error(t, rl.TrustProxies([]string{"10.0.0.0/99"}))
}

func TestNewValidator_InstrumentTag(t *testing.T) {
	var v = Validate
	require.NotPanics(t, func() { v = newValidator() })
	assert.NoError(t, v.Var("XAG_USD", "instrument"))
	assert.Error(t, v.Var("gold", "instrument"))
}

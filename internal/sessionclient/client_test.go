package sessionclient

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI accepts access token "a2" only. Refresh token "r1" rotates to a2/r2.
type fakeAPI struct {
	mu        sync.Mutex
	refreshes int
	accept    string
	bodies    []string
	cookies   []string
	requestID []string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.URL.Path {
	case loginPath:
		http.SetCookie(w, &http.Cookie{Name: "accessToken", Value: "a1", Path: "/"})
		http.SetCookie(w, &http.Cookie{Name: "refreshToken", Value: "r1", Path: "/"})
		w.WriteHeader(http.StatusOK)
	case refreshPath:
		f.refreshes++
		c, err := r.Cookie("refreshToken")
		if err != nil || c.Value != "r1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "accessToken", Value: "a2", Path: "/"})
		http.SetCookie(w, &http.Cookie{Name: "refreshToken", Value: "r2", Path: "/"})
		w.WriteHeader(http.StatusNoContent)
	default:
		f.cookies = append(f.cookies, r.Header.Get("Cookie"))
		f.requestID = append(f.requestID, r.Header.Get("X-Request-Id"))
		c, err := r.Cookie("accessToken")
		if err != nil || c.Value != f.accept {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		b, _ := io.ReadAll(r.Body)
		f.bodies = append(f.bodies, string(b))
		w.WriteHeader(http.StatusOK)
	}
}

func setup(t *testing.T, accept string) (*Client, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{accept: accept}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c, api
}

func TestDo_RefreshesOnceAndReplays(t *testing.T) {
	c, api := setup(t, "a2")
	require.NoError(t, c.Login(context.Background(), "a@b.co", "password"))

	req, err := http.NewRequest(http.MethodPut, c.URL("/v1/admin/users/1/role"), strings.NewReader(`{"role":"admin"}`))
	require.NoError(t, err)
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, api.refreshes)
	assert.Equal(t, []string{`{"role":"admin"}`}, api.bodies)

	require.Len(t, api.cookies, 2)
	assert.Equal(t, []string{"a1"}, cookieValues(api.cookies[0], "accessToken"))
	assert.Equal(t, []string{"a2"}, cookieValues(api.cookies[1], "accessToken"), "replay carries only the rotated token")
	assert.Equal(t, []string{"r2"}, cookieValues(api.cookies[1], "refreshToken"))
}

func TestDo_ReplayKeepsCallerHeaders(t *testing.T) {
	c, api := setup(t, "a2")
	require.NoError(t, c.Login(context.Background(), "a@b.co", "password"))

	req, err := http.NewRequest(http.MethodGet, c.URL("/v1/auth/me"), nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-Id", "abc")
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, api.cookies, 2)
	assert.Equal(t, []string{"a2"}, cookieValues(api.cookies[1], "accessToken"))
	assert.Equal(t, []string{"abc", "abc"}, api.requestID)
}

func cookieValues(header, name string) []string {
	r := &http.Request{Header: http.Header{"Cookie": {header}}}
	var out []string
	for _, c := range r.Cookies() {
		if c.Name == name {
			out = append(out, c.Value)
		}
	}
	return out
}

func TestDo_NoRefreshWhenAuthorized(t *testing.T) {
	c, api := setup(t, "a1")
	require.NoError(t, c.Login(context.Background(), "a@b.co", "password"))

	req, err := http.NewRequest(http.MethodGet, c.URL("/v1/auth/me"), nil)
	require.NoError(t, err)
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Zero(t, api.refreshes)
}

func TestDo_RejectedRefresh(t *testing.T) {
	c, api := setup(t, "a2")

	req, err := http.NewRequest(http.MethodGet, c.URL("/v1/auth/me"), nil)
	require.NoError(t, err)
	_, err = c.Do(req)
	require.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, 1, api.refreshes)
}

func TestDo_SecondUnauthorized(t *testing.T) {
	c, api := setup(t, "never")
	require.NoError(t, c.Login(context.Background(), "a@b.co", "password"))

	req, err := http.NewRequest(http.MethodGet, c.URL("/v1/auth/me"), nil)
	require.NoError(t, err)
	_, err = c.Do(req)
	require.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, 1, api.refreshes)
}

func TestDo_BodyWithoutGetBody(t *testing.T) {
	c, _ := setup(t, "a1")

	req, err := http.NewRequest(http.MethodPost, c.URL("/v1/anything"), nil)
	require.NoError(t, err)
	req.Body = io.NopCloser(bytes.NewBufferString("x"))
	_, err = c.Do(req)
	assert.ErrorIs(t, err, ErrNotReplayable)
}

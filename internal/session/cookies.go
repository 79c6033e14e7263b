package session

import (
	"net/http"
	"time"

	"github.com/NordCoder/Aurum/internal/domain/auth"
)

const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"
)

// Cookies moves token pairs between the manager and the browser.
type Cookies struct {
	Domain     string
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func NewCookies(m *Manager, domain string, secure bool) Cookies {
	return Cookies{Domain: domain, Secure: secure, AccessTTL: m.AccessTTL(), RefreshTTL: m.RefreshTTL()}
}

// Set writes both cookies. Login and registration use SameSiteStrictMode, refresh uses SameSiteLaxMode.
func (c Cookies) Set(w http.ResponseWriter, p auth.Pair, sameSite http.SameSite) {
	http.SetCookie(w, c.cookie(AccessCookie, p.AccessToken, c.AccessTTL, p.AccessExpiresAt, sameSite))
	http.SetCookie(w, c.cookie(RefreshCookie, p.RefreshToken, c.RefreshTTL, p.RefreshExpiresAt, sameSite))
}

// Clear overwrites both cookies with immediately expiring empty values.
func (c Cookies) Clear(w http.ResponseWriter) {
	for _, name := range []string{AccessCookie, RefreshCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Domain:   c.Domain,
			HttpOnly: true,
			Secure:   c.Secure,
			SameSite: http.SameSiteStrictMode,
			MaxAge:   -1,
			Expires:  time.Unix(0, 0).UTC(),
		})
	}
}

func (c Cookies) cookie(name, value string, ttl time.Duration, exp time.Time, sameSite http.SameSite) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.Domain,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: sameSite,
		MaxAge:   int(ttl.Seconds()),
		Expires:  exp.UTC(),
	}
}

func AccessToken(r *http.Request) string  { return cookieValue(r, AccessCookie) }
func RefreshToken(r *http.Request) string { return cookieValue(r, RefreshCookie) }

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

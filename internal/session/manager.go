package session

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/NordCoder/Aurum/internal/domain/auth"
	"github.com/NordCoder/Aurum/internal/domain/user"
	"github.com/NordCoder/Aurum/internal/obs"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 30 * 24 * time.Hour
	DefaultIssuer     = "aurum"
)

var (
	ErrUnauthenticated = errors.New("not authenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrRejected        = errors.New("refresh rejected")
)

var verifications = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "session_verifications_total",
	Help: "Token verifications by operation and result.",
}, []string{"op", "result"})

type claims struct {
	Role      string         `json:"role"`
	TokenType auth.TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// RoleStore is the storage the admin check goes back to.
type RoleStore interface {
	GetByID(ctx context.Context, id int64) (*user.User, error)
}

type Option func(*Manager) error

func WithKeys(priv *rsa.PrivateKey, pub *rsa.PublicKey) Option {
	return func(m *Manager) error {
		if priv == nil {
			return errors.New("session: private key is required")
		}
		if pub == nil {
			pub = &priv.PublicKey
		}
		m.priv, m.pub = priv, pub
		return nil
	}
}

func WithIssuer(iss string) Option {
	return func(m *Manager) error {
		if iss != "" {
			m.issuer = iss
		}
		return nil
	}
}

func WithTTLs(access, refresh time.Duration) Option {
	return func(m *Manager) error {
		if access > 0 {
			m.accessTTL = access
		}
		if refresh > 0 {
			m.refreshTTL = refresh
		}
		if m.accessTTL >= m.refreshTTL {
			return fmt.Errorf("session: access ttl %s must be shorter than refresh ttl %s", m.accessTTL, m.refreshTTL)
		}
		return nil
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) error {
		if now != nil {
			m.now = now
		}
		return nil
	}
}

func WithRoleStore(s RoleStore) Option {
	return func(m *Manager) error { m.users = s; return nil }
}

// WithDenylist turns on server side revocation of refresh tokens.
func WithDenylist(d auth.Denylist) Option {
	return func(m *Manager) error { m.denylist = d; return nil }
}

func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) error { m.log = obs.Component(l, "session"); return nil }
}

// Manager issues, verifies and rotates RS256 access/refresh token pairs.
type Manager struct {
	priv       *rsa.PrivateKey
	pub        *rsa.PublicKey
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	users      RoleStore
	denylist   auth.Denylist
	log        *zap.Logger
	parser     *jwt.Parser
}

func NewManager(opts ...Option) (*Manager, error) {
	m := &Manager{
		issuer:     DefaultIssuer,
		accessTTL:  DefaultAccessTTL,
		refreshTTL: DefaultRefreshTTL,
		now:        time.Now,
		log:        zap.NewNop(),
	}
	for _, o := range opts {
		if err := o(m); err != nil {
			return nil, err
		}
	}
	if m.priv == nil {
		return nil, errors.New("session: signing keys are not configured")
	}
	m.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	return m, nil
}

func (m *Manager) AccessTTL() time.Duration  { return m.accessTTL }
func (m *Manager) RefreshTTL() time.Duration { return m.refreshTTL }

func (m *Manager) Issue(subjectID int64, role user.Role) (auth.Pair, error) {
	now := m.now()
	access, accessExp, err := m.sign(subjectID, role, auth.TokenAccess, now, m.accessTTL)
	if err != nil {
		return auth.Pair{}, err
	}
	refresh, refreshExp, err := m.sign(subjectID, role, auth.TokenRefresh, now, m.refreshTTL)
	if err != nil {
		return auth.Pair{}, err
	}
	return auth.Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (m *Manager) sign(subjectID int64, role user.Role, typ auth.TokenType, now time.Time, ttl time.Duration) (string, time.Time, error) {
	exp := jwt.NewNumericDate(now.Add(ttl))
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims{
		Role:      string(role),
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   strconv.FormatInt(subjectID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: exp,
			ID:        uuid.NewString(),
		},
	})
	s, err := tok.SignedString(m.priv)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", typ, err)
	}
	return s, exp.Time, nil
}

// Authenticate verifies an access token. Every failure is ErrUnauthenticated.
func (m *Manager) Authenticate(ctx context.Context, token string) (auth.Principal, error) {
	p, err := m.verify(token, auth.TokenAccess)
	if err != nil {
		verifications.WithLabelValues("authenticate", "fail").Inc()
		obs.WithTrace(ctx, m.log).Debug("access token rejected", zap.Error(err))
		return auth.Principal{}, ErrUnauthenticated
	}
	verifications.WithLabelValues("authenticate", "ok").Inc()
	return p, nil
}

// AuthenticateAdmin requires an admin token whose subject still holds the admin role in storage.
func (m *Manager) AuthenticateAdmin(ctx context.Context, token string) (auth.Principal, error) {
	p, err := m.Authenticate(ctx, token)
	if err != nil {
		return auth.Principal{}, err
	}
	if p.Role != user.RoleAdmin || m.users == nil {
		verifications.WithLabelValues("admin", "forbidden").Inc()
		return auth.Principal{}, ErrForbidden
	}
	u, err := m.users.GetByID(ctx, p.SubjectID)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			obs.WithTrace(ctx, m.log).Error("admin role lookup failed", zap.Int64("subject", p.SubjectID), zap.Error(err))
		}
		verifications.WithLabelValues("admin", "forbidden").Inc()
		return auth.Principal{}, ErrForbidden
	}
	if u.Role != user.RoleAdmin {
		verifications.WithLabelValues("admin", "forbidden").Inc()
		return auth.Principal{}, ErrForbidden
	}
	verifications.WithLabelValues("admin", "ok").Inc()
	return p, nil
}

// Refresh rotates both tokens. The presented access token is left untouched.
func (m *Manager) Refresh(ctx context.Context, token string) (auth.Pair, auth.Principal, error) {
	log := obs.WithTrace(ctx, m.log)
	p, err := m.verify(token, auth.TokenRefresh)
	if err != nil {
		verifications.WithLabelValues("refresh", "fail").Inc()
		log.Debug("refresh token rejected", zap.Error(err))
		return auth.Pair{}, auth.Principal{}, ErrRejected
	}
	if m.denylist != nil {
		fresh, err := m.denylist.Revoke(ctx, p.TokenID, p.ExpiresAt)
		if err != nil {
			log.Error("denylist unavailable", zap.Error(err))
			verifications.WithLabelValues("refresh", "fail").Inc()
			return auth.Pair{}, auth.Principal{}, ErrRejected
		}
		if !fresh {
			log.Warn("revoked refresh token replayed", zap.Int64("subject", p.SubjectID))
			verifications.WithLabelValues("refresh", "replay").Inc()
			return auth.Pair{}, auth.Principal{}, ErrRejected
		}
	}
	pair, err := m.Issue(p.SubjectID, p.Role)
	if err != nil {
		return auth.Pair{}, auth.Principal{}, err
	}
	verifications.WithLabelValues("refresh", "ok").Inc()
	return pair, p, nil
}

// Revoke denylists a refresh token. It is a no-op without a denylist or for an invalid token.
func (m *Manager) Revoke(ctx context.Context, refreshToken string) error {
	if m.denylist == nil || refreshToken == "" {
		return nil
	}
	p, err := m.verify(refreshToken, auth.TokenRefresh)
	if err != nil {
		return nil
	}
	revoked, err := m.denylist.IsRevoked(ctx, p.TokenID)
	if err != nil {
		return fmt.Errorf("check refresh token: %w", err)
	}
	if revoked {
		return nil
	}
	if _, err := m.denylist.Revoke(ctx, p.TokenID, p.ExpiresAt); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func (m *Manager) verify(raw string, want auth.TokenType) (auth.Principal, error) {
	if raw == "" {
		return auth.Principal{}, errors.New("missing token")
	}
	var c claims
	if _, err := m.parser.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) { return m.pub, nil }); err != nil {
		return auth.Principal{}, err
	}
	if c.TokenType != want {
		return auth.Principal{}, fmt.Errorf("token type %q, want %q", c.TokenType, want)
	}
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return auth.Principal{}, fmt.Errorf("subject: %w", err)
	}
	role, err := user.ParseRole(c.Role)
	if err != nil {
		return auth.Principal{}, err
	}
	return auth.Principal{
		SubjectID: id,
		Role:      role,
		TokenID:   c.ID,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}

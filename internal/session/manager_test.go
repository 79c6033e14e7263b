package session

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/NordCoder/Aurum/internal/domain/auth"
	"github.com/NordCoder/Aurum/internal/domain/user"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	keyOnce         sync.Once
	testKey, altKey *rsa.PrivateKey
)

func keys(t *testing.T) (*rsa.PrivateKey, *rsa.PrivateKey) {
	t.Helper()
	keyOnce.Do(func() {
		var err error
		testKey, err = rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		altKey, err = rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
	})
	return testKey, altKey
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

type fakeUsers map[int64]*user.User

func (f fakeUsers) GetByID(_ context.Context, id int64) (*user.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, user.ErrNotFound
}

type errUsers struct{}

func (errUsers) GetByID(context.Context, int64) (*user.User, error) {
	return nil, errors.New("db down")
}

type memDenylist struct {
	mu     sync.Mutex
	ids    map[string]time.Time
	fail   bool
	writes int
}

func (d *memDenylist) Revoke(_ context.Context, id string, until time.Time) (bool, error) {
	if d.fail {
		return false, errors.New("redis down")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes++
	if _, ok := d.ids[id]; ok {
		return false, nil
	}
	d.ids[id] = until
	return true, nil
}

func (d *memDenylist) IsRevoked(_ context.Context, id string) (bool, error) {
	if d.fail {
		return false, errors.New("redis down")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.ids[id]
	return ok, nil
}

func newManager(t *testing.T, clk *fakeClock, opts ...Option) *Manager {
	t.Helper()
	priv, _ := keys(t)
	base := []Option{WithKeys(priv, nil), WithClock(clk.now)}
	m, err := NewManager(append(base, opts...)...)
	require.NoError(t, err)
	return m
}

func start() *fakeClock { return &fakeClock{t: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)} }

func TestIssueAndAuthenticate(t *testing.T) {
	clk := start()
	m := newManager(t, clk)
	ctx := context.Background()

	pair, err := m.Issue(42, user.RoleCustomer)
	require.NoError(t, err)
	assert.True(t, clk.t.Add(15*time.Minute).Equal(pair.AccessExpiresAt))
	assert.True(t, clk.t.Add(30*24*time.Hour).Equal(pair.RefreshExpiresAt))

	p, err := m.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.EqualValues(t, 42, p.SubjectID)
	assert.Equal(t, user.RoleCustomer, p.Role)

	clk.t = pair.AccessExpiresAt.Add(-time.Second)
	_, err = m.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)

	clk.t = pair.AccessExpiresAt.Add(time.Second)
	_, err = m.Authenticate(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestIssue_ClaimNames(t *testing.T) {
	m := newManager(t, start())
	pair, err := m.Issue(7, user.RoleAdmin)
	require.NoError(t, err)

	for token, typ := range map[string]string{pair.AccessToken: "access", pair.RefreshToken: "refresh"} {
		mc := jwt.MapClaims{}
		_, _, err := jwt.NewParser().ParseUnverified(token, mc)
		require.NoError(t, err)
		assert.Equal(t, typ, mc["typ"])
		assert.Equal(t, "7", mc["sub"])
		assert.Equal(t, "admin", mc["role"])
		assert.Equal(t, DefaultIssuer, mc["iss"])
		assert.NotEmpty(t, mc["jti"])
		assert.NotContains(t, mc, "token_type")
	}
}

func TestAuthenticate_FailuresAreUniform(t *testing.T) {
	clk := start()
	m := newManager(t, clk)
	pair, err := m.Issue(7, user.RoleAdmin)
	require.NoError(t, err)

	_, alt := keys(t)
	other, err := NewManager(WithKeys(alt, nil), WithClock(clk.now))
	require.NoError(t, err)
	foreign, err := other.Issue(7, user.RoleAdmin)
	require.NoError(t, err)

	hs := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: "admin", TokenType: auth.TokenAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: DefaultIssuer, Subject: "7", ExpiresAt: jwt.NewNumericDate(clk.t.Add(time.Hour)),
		},
	})
	hsToken, err := hs.SignedString(x509.MarshalPKCS1PublicKey(&testKey.PublicKey))
	require.NoError(t, err)

	parts := strings.Split(pair.AccessToken, ".")
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	cases := map[string]string{
		"missing":         "",
		"garbage":         "not-a-jwt",
		"tampered":        tampered,
		"foreign key":     foreign.AccessToken,
		"hmac confusion":  hsToken,
		"refresh as auth": pair.RefreshToken,
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := m.Authenticate(context.Background(), tok)
			require.Error(t, err)
			assert.Same(t, ErrUnauthenticated, err)
		})
	}
}

func TestRefresh_RotatesBothTokens(t *testing.T) {
	clk := start()
	m := newManager(t, clk)
	ctx := context.Background()

	orig, err := m.Issue(5, user.RoleAdmin)
	require.NoError(t, err)

	clk.t = clk.t.Add(10 * time.Minute)
	next, p, err := m.Refresh(ctx, orig.RefreshToken)
	require.NoError(t, err)
	assert.EqualValues(t, 5, p.SubjectID)
	assert.NotEqual(t, orig.AccessToken, next.AccessToken)
	assert.NotEqual(t, orig.RefreshToken, next.RefreshToken)
	assert.True(t, next.AccessExpiresAt.After(clk.t))
	assert.True(t, next.AccessExpiresAt.After(orig.AccessExpiresAt))
	assert.True(t, next.RefreshExpiresAt.After(orig.RefreshExpiresAt))

	oldP, err := m.Authenticate(ctx, orig.AccessToken)
	require.NoError(t, err)
	newP, err := m.Authenticate(ctx, next.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, oldP.SubjectID, newP.SubjectID)
	assert.Equal(t, user.RoleAdmin, newP.Role)

	clk.t = orig.AccessExpiresAt.Add(time.Second)
	_, err = m.Authenticate(ctx, orig.AccessToken)
	require.ErrorIs(t, err, ErrUnauthenticated)
	_, err = m.Authenticate(ctx, next.AccessToken)
	require.NoError(t, err)

	// without a denylist the rotated-out refresh token keeps working until expiry
	_, _, err = m.Refresh(ctx, orig.RefreshToken)
	require.NoError(t, err)
}

func TestRefresh_Rejections(t *testing.T) {
	clk := start()
	m := newManager(t, clk)
	ctx := context.Background()
	pair, err := m.Issue(5, user.RoleCustomer)
	require.NoError(t, err)

	_, _, err = m.Refresh(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrRejected)
	_, _, err = m.Refresh(ctx, "")
	require.ErrorIs(t, err, ErrRejected)

	clk.t = pair.RefreshExpiresAt.Add(time.Second)
	_, _, err = m.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrRejected)
}

func TestRefresh_Denylist(t *testing.T) {
	clk := start()
	dl := &memDenylist{ids: map[string]time.Time{}}
	m := newManager(t, clk, WithDenylist(dl))
	ctx := context.Background()

	pair, err := m.Issue(9, user.RoleCustomer)
	require.NoError(t, err)

	next, _, err := m.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	_, _, err = m.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrRejected, "replayed refresh token must be rejected")

	for _, until := range dl.ids {
		assert.True(t, pair.RefreshExpiresAt.Equal(until))
	}

	require.NoError(t, m.Revoke(ctx, next.RefreshToken))
	_, _, err = m.Refresh(ctx, next.RefreshToken)
	require.ErrorIs(t, err, ErrRejected)

	require.NoError(t, m.Revoke(ctx, "garbage"))

	dl.fail = true
	fresh, err := m.Issue(9, user.RoleCustomer)
	require.NoError(t, err)
	_, _, err = m.Refresh(ctx, fresh.RefreshToken)
	require.ErrorIs(t, err, ErrRejected)
}

func TestRevoke_SkipsWriteWhenAlreadyRevoked(t *testing.T) {
	clk := start()
	dl := &memDenylist{ids: map[string]time.Time{}}
	m := newManager(t, clk, WithDenylist(dl))
	ctx := context.Background()

	pair, err := m.Issue(3, user.RoleCustomer)
	require.NoError(t, err)

	require.NoError(t, m.Revoke(ctx, pair.RefreshToken))
	require.NoError(t, m.Revoke(ctx, pair.RefreshToken))
	assert.Equal(t, 1, dl.writes)
	assert.Len(t, dl.ids, 1)

	dl.fail = true
	other, err := m.Issue(3, user.RoleCustomer)
	require.NoError(t, err)
	assert.Error(t, m.Revoke(ctx, other.RefreshToken))
}

func TestAuthenticateAdmin(t *testing.T) {
	clk := start()
	users := fakeUsers{
		1: {ID: 1, Role: user.RoleAdmin},
		2: {ID: 2, Role: user.RoleCustomer},
		3: {ID: 3, Role: user.RoleCustomer},
	}
	m := newManager(t, clk, WithRoleStore(users))
	ctx := context.Background()

	issue := func(id int64, role user.Role) string {
		p, err := m.Issue(id, role)
		require.NoError(t, err)
		return p.AccessToken
	}

	p, err := m.AuthenticateAdmin(ctx, issue(1, user.RoleAdmin))
	require.NoError(t, err)
	assert.EqualValues(t, 1, p.SubjectID)

	_, err = m.AuthenticateAdmin(ctx, issue(2, user.RoleCustomer))
	require.ErrorIs(t, err, ErrForbidden)

	_, err = m.AuthenticateAdmin(ctx, issue(3, user.RoleAdmin))
	require.ErrorIs(t, err, ErrForbidden, "downgraded subject")

	_, err = m.AuthenticateAdmin(ctx, issue(99, user.RoleAdmin))
	require.ErrorIs(t, err, ErrForbidden, "deleted subject")

	_, err = m.AuthenticateAdmin(ctx, "junk")
	require.ErrorIs(t, err, ErrUnauthenticated)

	broken := newManager(t, clk, WithRoleStore(errUsers{}))
	tok, err := broken.Issue(1, user.RoleAdmin)
	require.NoError(t, err)
	_, err = broken.AuthenticateAdmin(ctx, tok.AccessToken)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestNewManager_Validation(t *testing.T) {
	_, err := NewManager()
	require.Error(t, err)

	priv, _ := keys(t)
	_, err = NewManager(WithKeys(priv, nil), WithTTLs(time.Hour, time.Minute))
	require.Error(t, err)
}

func TestParseKeys(t *testing.T) {
	priv, alt := keys(t)

	pkcs1 := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})
	pkcs8Bytes, err := x509.MarshalPKCS8PrivateKey(priv)
	require.NoError(t, err)
	pkcs8 := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8Bytes})
	pubBytes, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	pub := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})
	altBytes, err := x509.MarshalPKIXPublicKey(&alt.PublicKey)
	require.NoError(t, err)
	altPub := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: altBytes})

	for _, privPEM := range [][]byte{pkcs1, pkcs8} {
		k, p, err := ParseKeys(privPEM, pub)
		require.NoError(t, err)
		assert.True(t, k.Equal(priv))
		assert.True(t, p.Equal(&priv.PublicKey))
	}

	_, p, err := ParseKeys(pkcs1, nil)
	require.NoError(t, err)
	assert.True(t, p.Equal(&priv.PublicKey))

	_, _, err = ParseKeys(pkcs1, altPub)
	require.Error(t, err)
	_, _, err = ParseKeys([]byte("nope"), nil)
	require.Error(t, err)
}

package api_gateway_config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "api-gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsAndFile(t *testing.T) {
	path := writeConfig(t, `
app:
  env: prod
auth:
  private_key_path: /keys/jwt.pem
price:
  instruments: [XAU_USD, XAG_USD]
  refresh_secret: s3cret
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 720*time.Hour, cfg.Auth.RefreshTTL)
	assert.Equal(t, time.Hour, cfg.Price.TTL)
	assert.True(t, cfg.Price.SingleFlight)
	assert.Equal(t, []string{"XAU_USD", "XAG_USD"}, cfg.Price.Instruments)
	assert.Equal(t, "s3cret", cfg.Price.RefreshSecret)
	assert.True(t, cfg.SecureCookies(), "prod forces secure cookies")
	assert.False(t, cfg.Redis.Enable)
	assert.Equal(t, 2*time.Second, cfg.DB.QueryTimeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AUTH_PRIVATE_KEY_PATH", "/keys/jwt.pem")
	t.Setenv("PRICE_TTL", "30m")
	t.Setenv("REDIS_ENABLE", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, cfg.Price.TTL)
	assert.True(t, cfg.Redis.Enable)
	assert.False(t, cfg.SecureCookies())
}

func TestLoad_Validation(t *testing.T) {
	_, err := Load(writeConfig(t, "log:\n  level: debug\n"))
	require.ErrorIs(t, err, ErrNoSigningKey)

	_, err = Load(writeConfig(t, `
auth:
  private_key_path: /k.pem
  access_ttl: 48h
  refresh_ttl: 24h
`))
	require.ErrorIs(t, err, ErrTTLOrder)
}

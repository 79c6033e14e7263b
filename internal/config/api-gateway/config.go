package api_gateway_config

import (
	"time"

	"github.com/NordCoder/Aurum/internal/feed"
	"github.com/NordCoder/Aurum/internal/obs"
	pg "github.com/NordCoder/Aurum/internal/repository/postgres"
	redisrepo "github.com/NordCoder/Aurum/internal/repository/redis"
)

type App struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type Server struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
}

type OTEL struct {
	Enable       bool    `mapstructure:"enable"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

func (oc *OTEL) AsOTELConfig() *obs.OTELConfig {
	return &obs.OTELConfig{
		Enable:      oc.Enable,
		Endpoint:    oc.OTLPEndpoint,
		ServiceName: oc.ServiceName,
		SampleRatio: oc.SampleRatio,
	}
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type Auth struct {
	PrivateKeyPath string        `mapstructure:"private_key_path"`
	PublicKeyPath  string        `mapstructure:"public_key_path"`
	Issuer         string        `mapstructure:"issuer"`
	AccessTTL      time.Duration `mapstructure:"access_ttl"`
	RefreshTTL     time.Duration `mapstructure:"refresh_ttl"`
	CookieDomain   string        `mapstructure:"cookie_domain"`
	CookieSecure   bool          `mapstructure:"cookie_secure"`
}

type Price struct {
	TTL           time.Duration `mapstructure:"ttl"`
	SingleFlight  bool          `mapstructure:"single_flight"`
	Instruments   []string      `mapstructure:"instruments"`
	RefreshSecret string        `mapstructure:"refresh_secret"`
}

type Kafka struct {
	Enable  bool     `mapstructure:"enable"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type RateLimit struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
	// TrustedProxies may set X-Forwarded-For; everyone else is keyed by peer address.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

type Config struct {
	App       App              `mapstructure:"app"`
	Server    Server           `mapstructure:"server"`
	DB        pg.Config        `mapstructure:"db"`
	OTEL      OTEL             `mapstructure:"otel"`
	Log       Log              `mapstructure:"log"`
	Auth      Auth             `mapstructure:"auth"`
	Price     Price            `mapstructure:"price"`
	Feed      feed.Config      `mapstructure:"feed"`
	Redis     redisrepo.Config `mapstructure:"redis"`
	Kafka     Kafka            `mapstructure:"kafka"`
	RateLimit RateLimit        `mapstructure:"rate_limit"`
}

func (c *Config) Production() bool { return c.App.Env == "prod" }

// SecureCookies is forced on in production.
func (c *Config) SecureCookies() bool { return c.Auth.CookieSecure || c.Production() }

func (c *Config) AsLoggerConfig() *obs.LogConfig {
	return &obs.LogConfig{
		Level:  c.Log.Level,
		Pretty: c.Log.Pretty,
		App:    c.App.Name,
		Env:    c.App.Env,
		Ver:    c.App.Version,
	}
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }

package price_refresher_config

import (
	"time"

	"github.com/NordCoder/Aurum/internal/obs"
)

type OTEL struct {
	Enable       bool    `mapstructure:"enable"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type Refresher struct {
	Tick        time.Duration `mapstructure:"tick"`
	Instruments []string      `mapstructure:"instruments"`
	APIBase     string        `mapstructure:"api_base"`
	Secret      string        `mapstructure:"secret"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MetricsAddr string        `mapstructure:"metrics_addr"`
}

type Config struct {
	Env       string    `mapstructure:"env"`
	Version   string    `mapstructure:"version"`
	Log       Log       `mapstructure:"log"`
	OTEL      OTEL      `mapstructure:"otel"`
	Refresher Refresher `mapstructure:"refresher"`
}

func (c *Config) AsLoggerConfig() *obs.LogConfig {
	return &obs.LogConfig{
		Level:  c.Log.Level,
		Pretty: c.Log.Pretty,
		App:    "aurum/price-refresher",
		Env:    c.Env,
		Ver:    c.Version,
	}
}

func (c *Config) AsOTELConfig() *obs.OTELConfig {
	return &obs.OTELConfig{
		Enable:      c.OTEL.Enable,
		Endpoint:    c.OTEL.OTLPEndpoint,
		ServiceName: c.OTEL.ServiceName,
		SampleRatio: c.OTEL.SampleRatio,
	}
}

package price_refresher_config

import (
	"errors"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		_ = v.ReadInConfig()
	}

	v.SetDefault("env", "dev")
	v.SetDefault("version", "dev")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("otel.enable", false)
	v.SetDefault("otel.service_name", "price-refresher")
	v.SetDefault("otel.sample_ratio", 1.0)
	v.SetDefault("otel.otlp_endpoint", "localhost:4317")

	v.SetDefault("refresher.tick", "5m")
	v.SetDefault("refresher.instruments", []string{"XAU_USD"})
	v.SetDefault("refresher.api_base", "http://localhost:8080")
	v.SetDefault("refresher.secret", "")
	v.SetDefault("refresher.timeout", "10s")
	v.SetDefault("refresher.metrics_addr", ":8082")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.Refresher.Secret == "" {
		return nil, errors.New("refresher.secret is empty")
	}
	if cfg.Refresher.Tick <= 0 {
		return nil, errors.New("refresher.tick must be positive")
	}
	return &cfg, nil
}

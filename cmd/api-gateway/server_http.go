package main

import (
	"context"
	"net/http"
	"time"

	config "github.com/NordCoder/Aurum/internal/config/api-gateway"
	"github.com/NordCoder/Aurum/internal/obs"
	"github.com/NordCoder/Aurum/internal/pricecache"
	pg "github.com/NordCoder/Aurum/internal/repository/postgres"
	apigateway "github.com/NordCoder/Aurum/internal/services/api-gateway"
	"github.com/NordCoder/Aurum/internal/services/api-gateway/httpx"
	"github.com/NordCoder/Aurum/internal/session"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func buildHTTPServer(cfg *config.Config, logger *zap.Logger, db *pg.DB, sessions *session.Manager, quotes *pricecache.Cache) (*http.Server, error) {
	var limiter *httpx.RateLimiter
	if cfg.RateLimit.RPS > 0 {
		limiter = httpx.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		if err := limiter.TrustProxies(cfg.RateLimit.TrustedProxies); err != nil {
			return nil, err
		}
	}

	router := apigateway.NewRouter(apigateway.Deps{
		Log:           logger,
		Users:         pg.NewUserRepo(db),
		Sessions:      sessions,
		Cookies:       session.NewCookies(sessions, cfg.Auth.CookieDomain, cfg.SecureCookies()),
		Quotes:        quotes,
		RefreshSecret: cfg.Price.RefreshSecret,
		RateLimit:     limiter,
		Health: func(ctx context.Context) error {
			hctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
			defer cancel()
			return db.Ping(hctx)
		},
		BcryptCost: bcrypt.DefaultCost,
	})

	return &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           obs.HTTPHandler(router, "api-gateway"),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}, nil
}

func serveHTTP(srv *http.Server, logger *zap.Logger) error {
	logger.Info("http listening", zap.String("addr", srv.Addr))
	return srv.ListenAndServe()
}

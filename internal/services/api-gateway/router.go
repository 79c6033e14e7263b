package apigateway

import (
	"net/http"

	"github.com/NordCoder/Aurum/internal/domain/user"
	"github.com/NordCoder/Aurum/internal/obs"
	"github.com/NordCoder/Aurum/internal/services/api-gateway/admin"
	"github.com/NordCoder/Aurum/internal/services/api-gateway/auth"
	"github.com/NordCoder/Aurum/internal/services/api-gateway/httpx"
	"github.com/NordCoder/Aurum/internal/services/api-gateway/price"
	"github.com/NordCoder/Aurum/internal/session"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Deps struct {
	Log           *zap.Logger
	Users         user.Repo
	Sessions      *session.Manager
	Cookies       session.Cookies
	Quotes        price.Quoter
	RefreshSecret string
	// RateLimit guards the credential endpoints; nil disables it.
	RateLimit  *httpx.RateLimiter
	Health     obs.HealthFunc
	BcryptCost int
}

func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := mux.NewRouter()
	r.Use(httpx.Observe(log))
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	limited := func(h http.Handler) http.Handler { return h }
	if d.RateLimit != nil {
		limited = d.RateLimit.Middleware
	}

	authUC := auth.NewUseCase(d.Users, d.Sessions, auth.Config{BcryptCost: d.BcryptCost})
	auth.NewServer(log, authUC, d.Cookies).Register(r, limited, auth.RequireUser(d.Sessions))
	price.NewServer(log, d.Quotes, d.RefreshSecret).Register(r)
	admin.NewServer(log, d.Users).Register(r, auth.RequireAdmin(d.Sessions))

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", obs.HealthHandler(d.Health)).Methods(http.MethodGet)
	return r
}

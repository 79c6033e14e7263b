package auth

import (
	"context"
	"errors"
	"net/http"

	domainauth "github.com/NordCoder/Aurum/internal/domain/auth"
	"github.com/NordCoder/Aurum/internal/services/api-gateway/httpx"
	"github.com/NordCoder/Aurum/internal/session"
)

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p domainauth.Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func PrincipalFromCtx(ctx context.Context) (domainauth.Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(domainauth.Principal)
	return p, ok
}

// Verifier checks the access cookie.
type Verifier interface {
	Authenticate(ctx context.Context, token string) (domainauth.Principal, error)
	AuthenticateAdmin(ctx context.Context, token string) (domainauth.Principal, error)
}

func RequireUser(v Verifier) func(http.Handler) http.Handler {
	return guard(v.Authenticate)
}

func RequireAdmin(v Verifier) func(http.Handler) http.Handler {
	return guard(v.AuthenticateAdmin)
}

func guard(check func(context.Context, string) (domainauth.Principal, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := check(r.Context(), session.AccessToken(r))
			switch {
			case err == nil:
				next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
			case errors.Is(err, session.ErrForbidden):
				httpx.WriteError(w, http.StatusForbidden, "forbidden")
			default:
				httpx.WriteError(w, http.StatusUnauthorized, "not authenticated")
			}
		})
	}
}

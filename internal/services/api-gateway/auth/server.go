package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/NordCoder/Aurum/internal/domain/user"
	"github.com/NordCoder/Aurum/internal/obs"
	"github.com/NordCoder/Aurum/internal/services/api-gateway/httpx"
	"github.com/NordCoder/Aurum/internal/session"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type Server struct {
	log     *zap.Logger
	uc      *Usecase
	cookies session.Cookies
}

func NewServer(log *zap.Logger, uc *Usecase, cookies session.Cookies) *Server {
	return &Server{log: obs.Component(log, "auth"), uc: uc, cookies: cookies}
}

type credentialsReq struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

type userResp struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Role      user.Role `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func toUserResp(u *user.User) userResp {
	return userResp{ID: u.ID, Email: u.Email, Role: u.Role, CreatedAt: u.CreatedAt}
}

// Register mounts the auth routes. limited wraps the endpoints that take credentials.
func (s *Server) Register(r *mux.Router, limited, requireUser func(http.Handler) http.Handler) {
	sub := r.PathPrefix("/v1/auth").Subrouter()
	sub.Handle("/register", limited(http.HandlerFunc(s.register))).Methods(http.MethodPost)
	sub.Handle("/login", limited(http.HandlerFunc(s.login))).Methods(http.MethodPost)
	sub.Handle("/refresh", limited(http.HandlerFunc(s.refresh))).Methods(http.MethodPost)
	sub.HandleFunc("/logout", s.logout).Methods(http.MethodPost)
	sub.Handle("/me", requireUser(http.HandlerFunc(s.me))).Methods(http.MethodGet)
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsReq
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	u, pair, err := s.uc.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	obs.WithTrace(r.Context(), s.log).Info("user registered", zap.Int64("user_id", u.ID))
	s.cookies.Set(w, pair, http.SameSiteStrictMode)
	httpx.WriteJSON(w, http.StatusCreated, toUserResp(u))
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsReq
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	u, pair, err := s.uc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	s.cookies.Set(w, pair, http.SameSiteStrictMode)
	httpx.WriteJSON(w, http.StatusOK, toUserResp(u))
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	pair, err := s.uc.Refresh(r.Context(), session.RefreshToken(r))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	s.cookies.Set(w, pair, http.SameSiteLaxMode)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.uc.Logout(r.Context(), session.RefreshToken(r)); err != nil {
		obs.WithTrace(r.Context(), s.log).Warn("refresh token not revoked", zap.Error(err))
	}
	s.cookies.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromCtx(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	u, err := s.uc.Me(r.Context(), p)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			httpx.WriteError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		s.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResp(u))
}

func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		httpx.WriteError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, session.ErrRejected):
		httpx.WriteError(w, http.StatusUnauthorized, "not authenticated")
	case errors.Is(err, ErrEmailExists):
		httpx.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrWeakPassword):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		obs.WithTrace(r.Context(), s.log).Error("auth request failed", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

package admin

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/NordCoder/Aurum/internal/domain/user"
	"github.com/NordCoder/Aurum/internal/obs"
	"github.com/NordCoder/Aurum/internal/services/api-gateway/auth"
	"github.com/NordCoder/Aurum/internal/services/api-gateway/httpx"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type Server struct {
	log   *zap.Logger
	users user.Repo
}

func NewServer(log *zap.Logger, users user.Repo) *Server {
	return &Server{log: obs.Component(log, "admin"), users: users}
}

type setRoleReq struct {
	Role string `json:"role" validate:"required,oneof=customer admin"`
}

type userResp struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Role      user.Role `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toResp(u *user.User) userResp {
	return userResp{ID: u.ID, Email: u.Email, Role: u.Role, CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt}
}

func (s *Server) Register(r *mux.Router, requireAdmin func(http.Handler) http.Handler) {
	sub := r.PathPrefix("/v1/admin").Subrouter()
	sub.Use(requireAdmin)
	sub.HandleFunc("/users/{id:[0-9]+}", s.getUser).Methods(http.MethodGet)
	sub.HandleFunc("/users/{id:[0-9]+}/role", s.setRole).Methods(http.MethodPut)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid id")
		return
	}
	u, err := s.users.GetByID(r.Context(), id)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResp(u))
}

func (s *Server) setRole(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req setRoleReq
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	role, err := user.ParseRole(req.Role)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	u, err := s.users.SetRole(r.Context(), id, role)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	actor, _ := auth.PrincipalFromCtx(r.Context())
	obs.WithTrace(r.Context(), s.log).Info("role changed",
		zap.Int64("actor", actor.SubjectID), zap.Int64("user_id", u.ID), zap.String("role", string(u.Role)))
	httpx.WriteJSON(w, http.StatusOK, toResp(u))
}

func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, user.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, user.ErrBadRole):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		obs.WithTrace(r.Context(), s.log).Error("admin request failed", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

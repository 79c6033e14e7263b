package price

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/NordCoder/Aurum/internal/domain/quote"
	"github.com/NordCoder/Aurum/internal/obs"
	"github.com/NordCoder/Aurum/internal/pricecache"
	"github.com/NordCoder/Aurum/internal/services/api-gateway/httpx"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const SecretHeader = "X-Refresh-Secret"

type Quoter interface {
	Lookup(ctx context.Context, instrumentID string) (pricecache.Result, error)
}

type Server struct {
	log    *zap.Logger
	quotes Quoter
	secret []byte
}

func NewServer(log *zap.Logger, quotes Quoter, refreshSecret string) *Server {
	return &Server{log: obs.Component(log, "price"), quotes: quotes, secret: []byte(refreshSecret)}
}

type quoteResp struct {
	InstrumentID  string    `json:"instrumentId"`
	CurrentPrice  string    `json:"currentPrice"`
	PreviousPrice string    `json:"previousPrice"`
	Change        string    `json:"change"`
	UpdatedAt     time.Time `json:"updatedAt"`
	Stale         bool      `json:"stale"`
}

func (s *Server) Register(r *mux.Router) {
	sub := r.PathPrefix("/v1/prices").Subrouter()
	sub.HandleFunc("/{instrument}", s.get).Methods(http.MethodGet)
	sub.HandleFunc("/{instrument}/refresh", s.trigger).Methods(http.MethodGet)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r)
}

// trigger is called by the scheduled refresher. The read itself refreshes a stale quote.
func (s *Server) trigger(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r.Header.Get(SecretHeader)) {
		httpx.WriteError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	s.serve(w, r)
}

func (s *Server) authorized(got string) bool {
	if len(s.secret) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), s.secret) == 1
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["instrument"]
	if !httpx.ValidInstrument(id) {
		httpx.WriteError(w, http.StatusBadRequest, "invalid instrument")
		return
	}
	res, err := s.quotes.Lookup(r.Context(), id)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if res.Stale() {
		w.Header().Set("Warning", `110 - "Response is Stale"`)
	}
	q := res.Quote
	httpx.WriteJSON(w, http.StatusOK, quoteResp{
		InstrumentID:  q.InstrumentID,
		CurrentPrice:  q.CurrentPrice.StringFixed(2),
		PreviousPrice: q.PreviousPrice.StringFixed(2),
		Change:        q.Change().StringFixed(2),
		UpdatedAt:     q.UpdatedAt.UTC(),
		Stale:         res.Stale(),
	})
}

func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, quote.ErrUnknownInstrument):
		httpx.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, quote.ErrUpstreamUnavailable):
		httpx.WriteError(w, http.StatusServiceUnavailable, err.Error())
	default:
		obs.WithTrace(r.Context(), s.log).Error("quote lookup failed", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

// internal/club/handler.go
package club

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"clubledger/internal/domain"
)

// HandlerConfig carries the transport-level knobs. An empty SecretHash
// leaves the destructive routes unprotected (development mode).
type HandlerConfig struct {
	RateLimit  rate.Limit
	RateBurst  int
	SecretHash string
	SecretSalt string
}

type Handler struct {
	service Service
	log     zerolog.Logger
	limiter *rate.Limiter
	cfg     HandlerConfig
}

func NewHandler(service Service, log zerolog.Logger, cfg HandlerConfig) *Handler {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = rate.Limit(50)
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 100
	}
	return &Handler{
		service: service,
		log:     log,
		limiter: rate.NewLimiter(cfg.RateLimit, cfg.RateBurst),
		cfg:     cfg,
	}
}

// Routes builds the HTTP surface of the ledger.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/initialize", h.handleInitialize)
		r.Get("/statistics/deposits", h.handleDepositStatistics)

		r.Group(func(r chi.Router) {
			r.Use(h.throttle)
			r.Post("/members", h.handleAddMember)
			r.With(h.requireSecret).Delete("/members/{number}", h.handleDeleteMember)
			r.Post("/members/{number}/membership", h.handleJoinMember)
			r.Delete("/members/{number}/membership", h.handleCancelMembership)
			r.Post("/members/{number}/deposits", h.handleDeposit)
		})
	})
	return r
}

func (h *Handler) handleInitialize(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Initialize(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAddMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Birthday  string `json:"birthday"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	birthday, err := time.Parse("2006-01-02", req.Birthday)
	if err != nil {
		h.writeError(w, &domain.FieldError{Field: "birthday", Reason: "must be a date in YYYY-MM-DD form"})
		return
	}

	number, err := h.service.AddMember(r.Context(), req.FirstName, req.LastName, birthday)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]int64{"member_number": number})
}

func (h *Handler) handleDeleteMember(w http.ResponseWriter, r *http.Request) {
	number, ok := h.memberNumber(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteMember(r.Context(), number); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleJoinMember(w http.ResponseWriter, r *http.Request) {
	number, ok := h.memberNumber(w, r)
	if !ok {
		return
	}
	ms, err := h.service.JoinMember(r.Context(), number)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(ms)
}

func (h *Handler) handleCancelMembership(w http.ResponseWriter, r *http.Request) {
	number, ok := h.memberNumber(w, r)
	if !ok {
		return
	}
	ms, err := h.service.CancelMembership(r.Context(), number)
	if err != nil {
		h.writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(ms)
}

func (h *Handler) handleDeposit(w http.ResponseWriter, r *http.Request) {
	number, ok := h.memberNumber(w, r)
	if !ok {
		return
	}

	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.service.Deposit(r.Context(), number, req.Amount); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDepositStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.DepositStatistics(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(stats)
}

func (h *Handler) memberNumber(w http.ResponseWriter, r *http.Request) (int64, bool) {
	number, err := strconv.ParseInt(chi.URLParam(r, "number"), 10, 64)
	if err != nil {
		http.Error(w, "invalid member number", http.StatusBadRequest)
		return 0, false
	}
	return number, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrDuplicateName),
		errors.Is(err, domain.ErrAlreadyMember),
		errors.Is(err, domain.ErrNoMember):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("operation failed")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// throttle applies one process-wide limiter to all mutating routes.
func (h *Handler) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.limiter.Allow() {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireSecret gates destructive routes behind the treasurer secret.
func (h *Handler) requireSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.cfg.SecretHash == "" {
			next.ServeHTTP(w, r)
			return
		}
		ok, err := VerifySecret(r.Header.Get("X-Admin-Secret"), h.cfg.SecretSalt, h.cfg.SecretHash)
		if err != nil || !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

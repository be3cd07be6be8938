package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bridgeledger/core"
	"bridgeledger/core/state"
	"bridgeledger/native/common"
	"bridgeledger/native/limits"
	"bridgeledger/native/pause"
	"bridgeledger/native/token"
	"bridgeledger/observability"
)

type actorKey struct{}

// Server exposes the ledger operations over HTTP. Mutating routes resolve
// their caller identity from a bearer token; the node enforces the actual
// authorization.
type Server struct {
	node    *core.Node
	logger  *slog.Logger
	actors  map[string][20]byte
	feed    *EventFeed
	metrics *observability.LedgerMetrics
	limiter *RateLimiter
}

// NewServer constructs a server for the provided node. The actors map binds
// bearer tokens to actor addresses.
func NewServer(node *core.Node, logger *slog.Logger, actors map[string][20]byte, feed *EventFeed, limit RateLimit) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		node:    node,
		logger:  logger,
		actors:  actors,
		feed:    feed,
		metrics: observability.Metrics(),
		limiter: NewRateLimiter(limit, logger),
	}
}

// Router assembles the chi routing tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.limiter.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		// Reads need no caller identity.
		v1.Get("/supply", s.instrument("supply", s.handleSupply))
		v1.Get("/pause", s.instrument("pause_state", s.handlePauseState))
		v1.Get("/events", s.instrument("events", s.handleEvents))
		v1.Get("/balance/{address}", s.instrument("balance", s.handleBalance))
		v1.Get("/allowance/{owner}/{spender}", s.instrument("allowance", s.handleAllowance))
		v1.Get("/bridges/{address}", s.instrument("bridge_limit", s.handleBridgeLimit))
		v1.Get("/bridges/{address}/buffer", s.instrument("bridge_buffer", s.handleBridgeBuffer))

		v1.Group(func(auth chi.Router) {
			auth.Use(s.authenticate)
			auth.Post("/mint", s.instrument("mint", s.handleMint))
			auth.Post("/burn", s.instrument("burn", s.handleBurn))
			auth.Post("/transfer", s.instrument("transfer", s.handleTransfer))
			auth.Post("/transfer-from", s.instrument("transfer_from", s.handleTransferFrom))
			auth.Post("/approve", s.instrument("approve", s.handleApprove))

			auth.Post("/bridges", s.instrument("bridge_add", s.handleAddBridge))
			auth.Delete("/bridges/{address}", s.instrument("bridge_remove", s.handleRemoveBridge))
			auth.Put("/bridges/{address}/buffer-cap", s.instrument("bridge_set_cap", s.handleSetBufferCap))
			auth.Put("/bridges/{address}/rate-limit", s.instrument("bridge_set_rate", s.handleSetRateLimit))

			auth.Post("/pause", s.instrument("pause_engage", s.handlePause))
			auth.Post("/unpause", s.instrument("pause_lift", s.handleUnpause))
			auth.Post("/pause/guardian", s.instrument("pause_grant", s.handleGrantGuardian))
			auth.Put("/pause/duration", s.instrument("pause_duration", s.handleSetPauseDuration))

			auth.Post("/ownership/transfer", s.instrument("ownership_transfer", s.handleTransferOwnership))
			auth.Post("/ownership/accept", s.instrument("ownership_accept", s.handleAcceptOwnership))
			auth.Post("/roles/grant", s.instrument("role_grant", s.handleGrantRole))
			auth.Post("/roles/revoke", s.instrument("role_revoke", s.handleRevokeRole))
		})
	})
	return r
}

// authenticate resolves the caller address from the bearer token and stores it
// on the request context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			s.writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}
		actor, ok := s.actors[token]
		if !ok {
			s.writeError(w, http.StatusUnauthorized, errors.New("unknown bearer token"))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
	})
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return ""
}

func callerFrom(r *http.Request) ([20]byte, bool) {
	actor, ok := r.Context().Value(actorKey{}).([20]byte)
	return actor, ok
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

func (s *Server) instrument(route string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		handler(recorder, r)
		s.metrics.ObserveRequest(route, recorder.status, time.Since(start))
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.logger.Error("encode response", "err", err)
		}
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

// writeDomainError maps domain failures onto HTTP statuses following the
// error taxonomy: authorization, validation, state conflict, invariant.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, state.ErrNotOwner),
		errors.Is(err, state.ErrNotPendingOwner),
		errors.Is(err, pause.ErrNotOwner),
		errors.Is(err, pause.ErrNotGuardian):
		s.writeError(w, http.StatusForbidden, err)
	case errors.Is(err, limits.ErrRateLimitHit):
		s.metrics.RecordThrottle("rate_limit")
		s.writeError(w, http.StatusTooManyRequests, err)
	case errors.Is(err, common.ErrPaused):
		s.metrics.RecordThrottle("paused")
		s.writeError(w, http.StatusConflict, err)
	case errors.Is(err, limits.ErrBridgeExists),
		errors.Is(err, limits.ErrBridgeNotRegistered),
		errors.Is(err, pause.ErrAlreadyPaused),
		errors.Is(err, pause.ErrNotPaused),
		errors.Is(err, pause.ErrGrantWhilePaused),
		errors.Is(err, token.ErrInsufficientBalance),
		errors.Is(err, token.ErrInsufficientAllowance),
		errors.Is(err, token.ErrMaxSupplyExceeded):
		s.writeError(w, http.StatusConflict, err)
	case errors.Is(err, limits.ErrDepleteZero),
		errors.Is(err, limits.ErrReplenishZero),
		errors.Is(err, limits.ErrZeroBridge),
		errors.Is(err, limits.ErrBufferCapTooLow),
		errors.Is(err, limits.ErrRateLimitTooHigh),
		errors.Is(err, limits.ErrValueTooWide),
		errors.Is(err, pause.ErrZeroGuardian),
		errors.Is(err, pause.ErrDurationOutOfRange),
		errors.Is(err, token.ErrZeroAmount),
		errors.Is(err, token.ErrZeroAddress),
		errors.Is(err, token.ErrTransferToLedger),
		errors.Is(err, token.ErrBalanceOverflow):
		s.writeError(w, http.StatusBadRequest, err)
	default:
		s.logger.Error("internal error", "err", err)
		s.writeError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

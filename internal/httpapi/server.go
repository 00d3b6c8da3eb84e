// Package httpapi exposes the engine's RPC surface over HTTP+JSON:
// submit / cancel / replace / positions / kill-switch, plus a streaming
// signal endpoint.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"jax-execution-core/internal/domain"
	"jax-execution-core/internal/execution"
	"jax-execution-core/internal/observability"

	"github.com/google/uuid"
)

// KillSwitchPublisher fans a kill-switch activation out to other processes
// sharing a deployment (see internal/killswitch.Broadcaster). Optional: a
// nil publisher means this process's kill switch only affects itself.
type KillSwitchPublisher interface {
	Publish(ctx context.Context, reason, initiatedBy string) error
}

// Server exposes the Engine's RPC surface over HTTP.
type Server struct {
	engine      *execution.Engine
	auth        *Authenticator
	broadcaster KillSwitchPublisher
	mux         *http.ServeMux
}

func NewServer(engine *execution.Engine, auth *Authenticator) *Server {
	s := &Server{engine: engine, auth: auth, mux: http.NewServeMux()}
	s.routes()
	return s
}

// WithKillSwitchBroadcaster attaches a publisher so ActivateKillSwitch also
// notifies sibling processes, not just the one that received the RPC.
func (s *Server) WithKillSwitchBroadcaster(b KillSwitchPublisher) *Server {
	s.broadcaster = b
	return s
}

func (s *Server) Handler() http.Handler {
	return withRequestID(s.mux)
}

func (s *Server) routes() {
	s.mux.Handle("/health", http.HandlerFunc(s.handleHealth))
	s.handle("/v1/signals", s.handleSubmitSignal)
	s.handle("/v1/signals/stream", s.handleStreamSignals)
	s.handle("/v1/orders/cancel", s.handleCancel)
	s.handle("/v1/orders/replace", s.handleReplace)
	s.handle("/v1/positions", s.handleGetAllPositions)
	s.handle("/v1/positions/", s.handleGetPosition)
	s.handle("/v1/kill-switch", s.handleKillSwitch)
}

// handle registers a handler behind the authenticator's middleware (a no-op
// wrapper when auth is disabled).
func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.mux.Handle(pattern, s.auth.Middleware(h))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleSubmitSignal implements RPC SubmitSignal.
func (s *Server) handleSubmitSignal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var sig domain.StrategySignal
	if err := json.NewDecoder(r.Body).Decode(&sig); err != nil {
		http.Error(w, "malformed signal body", http.StatusBadRequest)
		return
	}

	ctx := observability.WithFlowID(r.Context(), observability.NewFlowID())
	observability.LogEvent(ctx, "info", "signal_received", map[string]any{"strategy_id": sig.StrategyID, "symbol": sig.Symbol})

	localID, err := s.engine.SubmitSignal(ctx, sig)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"accepted": true, "order_id": localID})
}

// handleCancel implements RPC CancelOrder.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var sig domain.CancelSignal
	if err := json.NewDecoder(r.Body).Decode(&sig); err != nil {
		http.Error(w, "malformed cancel signal", http.StatusBadRequest)
		return
	}

	if err := s.engine.CancelOrder(r.Context(), sig); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accepted": true})
}

// handleReplace implements RPC ReplaceOrder.
func (s *Server) handleReplace(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var sig domain.ReplaceSignal
	if err := json.NewDecoder(r.Body).Decode(&sig); err != nil {
		http.Error(w, "malformed replace signal", http.StatusBadRequest)
		return
	}

	newLocalID, err := s.engine.ReplaceOrder(r.Context(), sig)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accepted": true, "new_order_id": newLocalID})
}

// handleGetPosition implements RPC GetPosition for /v1/positions/{symbol}.
func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	symbol := r.URL.Path[len("/v1/positions/"):]
	if symbol == "" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.GetPosition(symbol))
}

// handleGetAllPositions implements RPC GetAllPositions.
func (s *Server) handleGetAllPositions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"positions": s.engine.GetAllPositions()})
}

// handleKillSwitch implements RPC ActivateKillSwitch.
func (s *Server) handleKillSwitch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req domain.KillSwitchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed kill switch request", http.StatusBadRequest)
		return
	}
	if err := domain.ValidateKillSwitch(req); err != nil {
		writeError(w, err)
		return
	}

	if err := s.engine.ActivateKillSwitch(r.Context(), req.Reason, req.InitiatedBy); err != nil {
		writeError(w, err)
		return
	}
	if s.broadcaster != nil {
		if err := s.broadcaster.Publish(r.Context(), req.Reason, req.InitiatedBy); err != nil {
			observability.LogEvent(r.Context(), "error", "kill_switch_broadcast_failed", map[string]any{"error": err.Error()})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"accepted": true})
}

// handleStreamSignals is the bidirectional-streaming equivalent of
// SubmitSignal: one newline-delimited JSON StrategySignal per line in, one
// newline-delimited {accepted, order_id | rejection_reason} result per line
// out. A line that fails to decode is answered with {error} and ends the
// stream.
func (s *Server) handleStreamSignals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	decoder := json.NewDecoder(r.Body)
	encoder := json.NewEncoder(w)

	for decoder.More() {
		var sig domain.StrategySignal
		if err := decoder.Decode(&sig); err != nil {
			_ = encoder.Encode(map[string]string{"error": "malformed signal"})
			flusher.Flush()
			return
		}

		localID, err := s.engine.SubmitSignal(r.Context(), sig)
		if err != nil {
			_ = encoder.Encode(map[string]any{"accepted": false, "rejection_reason": err.Error()})
		} else {
			_ = encoder.Encode(map[string]any{"accepted": true, "order_id": localID})
		}
		flusher.Flush()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError translates a domain.Error's declared type into an HTTP status:
// validation -> 400, gateway or persistence -> 500, state -> 412.
func writeError(w http.ResponseWriter, err error) {
	var derr *domain.Error
	if !errors.As(err, &derr) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"reason": err.Error()})
		return
	}

	status := http.StatusInternalServerError
	switch derr.Type {
	case domain.ErrValidation:
		status = http.StatusBadRequest
	case domain.ErrState:
		status = http.StatusPreconditionFailed
	case domain.ErrGateway, domain.ErrPersistence:
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]string{"reason": derr.Message, "type": string(derr.Type)})
}

type requestIDKey struct{}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// NewHTTPServer wraps Handler() in an *http.Server with sane timeouts.
func NewHTTPServer(addr string, s *Server) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
}

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hr-benefits-assistant/server/internal/agent/model"
	errx "github.com/hr-benefits-assistant/server/internal/core/error"
)

const maxRequestBytes = 64 << 10

// Runner executes one conversational turn.
type Runner interface {
	Invoke(ctx context.Context, in model.ChatRequest) (model.ChatResponse, error)
	Reset(ctx context.Context, sessionID string) error
}

// Prober reports whether the inference backend is reachable.
type Prober interface {
	IsAvailable(ctx context.Context) bool
}

// ChatHandler serves the chat and session endpoints.
type ChatHandler struct {
	runner Runner
	prober Prober
}

func NewChatHandler(runner Runner, prober Prober) *ChatHandler {
	return &ChatHandler{runner: runner, prober: prober}
}

// RegisterRoutes registers chat routes.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", h.Chat)
		r.Delete("/sessions/{sessionID}", h.ResetSession)
		r.Get("/health/inference", h.InferenceHealth)
	})
}

// Chat runs one turn. Inference failures still answer 200 with the
// degraded reply; only invalid input and session store failures do not.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req model.ChatRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&req); err != nil {
		ErrorFrom(w, errx.Invalid("request body must be JSON with a message field"))
		return
	}

	resp, err := h.runner.Invoke(r.Context(), req)
	if err != nil {
		ErrorFrom(w, err)
		return
	}
	JSON(w, http.StatusOK, resp)
}

// ResetSession clears a session and its employee context.
func (h *ChatHandler) ResetSession(w http.ResponseWriter, r *http.Request) {
	if err := h.runner.Reset(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		ErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// InferenceHealth reports backend availability.
func (h *ChatHandler) InferenceHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"available": true,
		"timestamp": time.Now().UTC(),
	}
	code := http.StatusOK
	if h.prober != nil && !h.prober.IsAvailable(r.Context()) {
		status["available"] = false
		code = http.StatusServiceUnavailable
	}
	JSON(w, code, status)
}

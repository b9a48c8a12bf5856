// Package gateway is the single path to the language model backend.
//
// Every call is bounded by a timeout and never retried. Failures are
// absorbed: the caller receives the configured apology with Degraded set,
// so the conversation can continue without the backend.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/hr-benefits-assistant/server/internal/agent/model"
	errx "github.com/hr-benefits-assistant/server/internal/core/error"
	logx "github.com/hr-benefits-assistant/server/pkg/logger"
)

const (
	DefaultTimeout       = 30 * time.Second
	DefaultProbeInterval = 30 * time.Second
	DefaultApology       = "I'm sorry, the benefits assistant is temporarily unavailable. Please try again in a few minutes."

	maxProbeTimeout = 5 * time.Second
)

// Request is one model call. Task names the caller for logs and callbacks.
type Request struct {
	Task        string
	System      string
	Payload     string
	Temperature float32
}

// Completion is the outcome of a call. On failure Text is the apology,
// Degraded is true and Err holds the cause.
type Completion struct {
	Text     string
	Degraded bool
	Err      error
	CostUSD  float64
}

// Completer is implemented by Gateway and by test fakes.
type Completer interface {
	Complete(ctx context.Context, req Request) Completion
	IsAvailable(ctx context.Context) bool
}

// Backend is a chat model plus an optional cheap liveness check.
type Backend struct {
	Chat  einomodel.BaseChatModel
	Model string
	// Probe, when set, is used by IsAvailable instead of a completion.
	Probe func(ctx context.Context) error
}

type Gateway struct {
	backend       Backend
	timeout       time.Duration
	probeInterval time.Duration
	maxTokens     int
	apology       string
	now           func() time.Time

	mu        sync.Mutex
	available bool
	checkedAt time.Time
}

type Option func(*Gateway)

func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// New builds a gateway over backend using cfg's timeout, probe interval and apology.
func New(backend Backend, cfg model.GatewayConfig, opts ...Option) (*Gateway, error) {
	if backend.Chat == nil {
		return nil, fmt.Errorf("gateway: chat model is nil")
	}
	g := &Gateway{
		backend:       backend,
		timeout:       cfg.Timeout,
		probeInterval: cfg.ProbeInterval,
		maxTokens:     cfg.MaxTokens,
		apology:       strings.TrimSpace(cfg.Apology),
		now:           time.Now,
	}
	if g.timeout <= 0 {
		g.timeout = DefaultTimeout
	}
	if g.probeInterval <= 0 {
		g.probeInterval = DefaultProbeInterval
	}
	if g.apology == "" {
		g.apology = DefaultApology
	}
	if g.backend.Model == "" {
		g.backend.Model = cfg.Model
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Apology is the fixed text returned for failed calls.
func (g *Gateway) Apology() string { return g.apology }

// Complete sends one system instruction and one user payload to the backend.
func (g *Gateway) Complete(ctx context.Context, req Request) Completion {
	start := g.now()
	cctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cctx = callbacks.ReuseHandlers(cctx, &callbacks.RunInfo{
		Name:      req.Task,
		Type:      g.backend.Model,
		Component: components.ComponentOfChatModel,
	})

	msgs := []*schema.Message{
		schema.SystemMessage(req.System),
		schema.UserMessage(req.Payload),
	}
	opts := []einomodel.Option{einomodel.WithTemperature(req.Temperature)}
	if g.maxTokens > 0 {
		opts = append(opts, einomodel.WithMaxTokens(g.maxTokens))
	}

	out, err := g.generate(cctx, msgs, opts)
	if err == nil && (out == nil || strings.TrimSpace(out.Content) == "") {
		err = errors.New("empty completion")
	}
	if err != nil {
		if cctx.Err() != nil && errors.Is(cctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
		}
		// A caller that went away says nothing about the backend.
		if ctx.Err() == nil {
			g.markFailed()
		}
		logx.Warn().
			Err(err).
			Str("task", req.Task).
			Str("model", g.backend.Model).
			Dur("elapsed", g.now().Sub(start)).
			Msg("inference call failed; using apology")
		return Completion{Text: g.apology, Degraded: true, Err: errx.WrapInference(err)}
	}

	g.markAvailable(true)
	c := Completion{Text: strings.TrimSpace(out.Content)}
	var usage *schema.TokenUsage
	if out.ResponseMeta != nil {
		usage = out.ResponseMeta.Usage
	}
	ev := logx.Debug().
		Str("task", req.Task).
		Str("model", g.backend.Model).
		Dur("elapsed", g.now().Sub(start))
	if cost, ok := model.ComputeCost(g.backend.Model, usage); ok {
		c.CostUSD = cost.TotalCost
		ev = ev.
			Int("prompt_tokens", cost.PromptTokens).
			Int("completion_tokens", cost.CompletionTokens).
			Int("total_tokens", cost.TotalTokens).
			Float64("cost_usd", cost.TotalCost)
	}
	ev.Msg("inference call completed")
	return c
}

// generate isolates the backend call so a panicking model degrades instead
// of taking the turn down.
func (g *Gateway) generate(ctx context.Context, msgs []*schema.Message, opts []einomodel.Option) (out *schema.Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("chat model panic: %v", r)
		}
	}()
	return g.backend.Chat.Generate(ctx, msgs, opts...)
}

// IsAvailable reports backend reachability. The answer is cached for the
// probe interval; a failed completion drops the cache so the next call
// probes again.
func (g *Gateway) IsAvailable(ctx context.Context) bool {
	g.mu.Lock()
	fresh := !g.checkedAt.IsZero() && g.now().Sub(g.checkedAt) < g.probeInterval
	avail := g.available
	g.mu.Unlock()
	if fresh {
		return avail
	}

	pctx, cancel := context.WithTimeout(ctx, min(g.timeout, maxProbeTimeout))
	defer cancel()

	var err error
	if g.backend.Probe != nil {
		err = g.backend.Probe(pctx)
	} else {
		_, err = g.generate(pctx, []*schema.Message{schema.UserMessage("ping")}, []einomodel.Option{einomodel.WithMaxTokens(1)})
	}
	ok := err == nil
	if !ok {
		if ctx.Err() != nil {
			return false
		}
		logx.Warn().Err(err).Str("model", g.backend.Model).Msg("inference backend probe failed")
	}
	g.markAvailable(ok)
	return ok
}

// markFailed records a failed backend call and forces a fresh probe.
func (g *Gateway) markFailed() {
	g.mu.Lock()
	g.available = false
	g.checkedAt = time.Time{}
	g.mu.Unlock()
}

func (g *Gateway) markAvailable(ok bool) {
	g.mu.Lock()
	g.available = ok
	g.checkedAt = g.now()
	g.mu.Unlock()
}

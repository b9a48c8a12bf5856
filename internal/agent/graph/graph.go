// Package graph is the conversation orchestrator. Each turn runs through a
// compiled eino graph:
//
//	availability -> extractor -> resolver -> classifier -> dispatcher -> composer
//	     \                                        \
//	      +-------------------------------------- degraded
//
// Session loading, turn serialisation and the stage machine live in the
// conversations package; this package wires the components and runs a turn.
package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"

	"github.com/hr-benefits-assistant/server/internal/agent/composer"
	"github.com/hr-benefits-assistant/server/internal/agent/eligibility"
	"github.com/hr-benefits-assistant/server/internal/agent/gateway"
	"github.com/hr-benefits-assistant/server/internal/agent/graph/conversations"
	"github.com/hr-benefits-assistant/server/internal/agent/graph/nodes"
	"github.com/hr-benefits-assistant/server/internal/agent/graph/observers"
	"github.com/hr-benefits-assistant/server/internal/agent/identity"
	"github.com/hr-benefits-assistant/server/internal/agent/model"
	"github.com/hr-benefits-assistant/server/internal/agent/nlu"
	errx "github.com/hr-benefits-assistant/server/internal/core/error"
	logx "github.com/hr-benefits-assistant/server/pkg/logger"
)

// Runner executes one conversational turn per call.
type Runner interface {
	Invoke(ctx context.Context, in model.ChatRequest) (model.ChatResponse, error)
	Reset(ctx context.Context, sessionID string) error
}

// RecordStore is everything the orchestrator needs from the record store.
type RecordStore interface {
	identity.EmployeeSource
	nodes.Records
	LookupRules() map[string]model.EligibilityRule
}

// Config holds everything needed to compose the full response graph end-to-end.
type Config struct {
	Gateway    gateway.Completer
	Apology    string
	Store      RecordStore
	Sessions   model.SessionRepository
	Session    model.SessionConfig
	Extraction model.ExtractionConfig
	Classifier model.ClassifierConfig
	Composer   model.ComposerConfig
	// Clock defaults to time.Now; tests pin it.
	Clock func() time.Time
}

// GraphConfig holds the components the graph nodes call.
type GraphConfig struct {
	Gateway       gateway.Completer
	Apology       string
	Extractor     nodes.IdentityExtractor
	Resolver      nodes.IdentityResolver
	Classifier    nodes.IntentClassifier
	Dispatcher    *nodes.Dispatcher
	Composer      nodes.ResponseComposer
	MinConfidence float64
}

// GraphBuilder handles the construction of the turn graph.
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[*model.Turn, *model.Turn]
}

type graphRunner struct {
	runnable compose.Runnable[*model.Turn, *model.Turn]
	sessions *conversations.SessionManager
	apology  string
	now      func() time.Time
}

// Invoke runs one turn. Inference failures never surface as errors; only an
// empty message or a session store failure does.
func (r *graphRunner) Invoke(ctx context.Context, in model.ChatRequest) (model.ChatResponse, error) {
	msg := strings.TrimSpace(in.Message)
	if msg == "" {
		return model.ChatResponse{}, errx.Invalid("message is required")
	}

	lease, err := r.sessions.Begin(ctx, in.SessionID)
	if err != nil {
		return model.ChatResponse{}, err
	}
	defer lease.Release()

	state := lease.State
	t := &model.Turn{
		SessionID: state.ID,
		Message:   msg,
		Session:   lease.Context(),
		Employee:  state.Employee,
	}

	out, err := r.runnable.Invoke(ctx, t, compose.WithCallbacks(observers.NewGraphCallbacks()...))
	if err != nil || out == nil {
		logx.Error().Err(err).Str("session_id", state.ID).Msg("turn graph failed; answering in degraded mode")
		out = t
		out.Degraded = true
		out.Result = model.HandlerResult{Text: r.apology, Action: model.ActionDegradedMode, UserMessage: msg}
		out.Reply = r.apology
	}

	if err := lease.Commit(ctx, out); err != nil {
		return model.ChatResponse{}, err
	}

	logx.Info().
		Str("session_id", state.ID).
		Str("intent", out.Classification.Intent.String()).
		Str("action", out.Result.Action).
		Str("stage", string(state.Stage)).
		Bool("degraded", out.Degraded).
		Msg("turn completed")

	return model.ChatResponse{
		Reply:      out.Reply,
		SessionID:  state.ID,
		Timestamp:  r.now().UTC(),
		Confidence: out.Result.Confidence,
		Action:     out.Result.Action,
	}, nil
}

func (r *graphRunner) Reset(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return errx.Invalid("session id is required")
	}
	return r.sessions.Reset(ctx, sessionID)
}

// BuildResponseGraph builds every component from cfg, compiles the graph and returns a Runner.
func BuildResponseGraph(ctx context.Context, cfg Config) (Runner, error) {
	if cfg.Gateway == nil {
		return nil, fmt.Errorf("gateway is nil")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("record store is nil")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session repository is nil")
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	apology := cfg.Apology
	if apology == "" {
		apology = gateway.DefaultApology
	}

	engine := eligibility.NewEngine(cfg.Store.LookupRules(), eligibility.WithClock(now))
	runnable, err := BuildGraph(ctx, &GraphConfig{
		Gateway:       cfg.Gateway,
		Apology:       apology,
		Extractor:     nlu.NewExtractor(cfg.Gateway, cfg.Extraction),
		Resolver:      identity.NewResolver(cfg.Store),
		Classifier:    nlu.NewClassifier(cfg.Gateway, cfg.Classifier),
		Dispatcher:    nodes.NewDispatcher(cfg.Store, engine),
		Composer:      composer.New(cfg.Gateway, cfg.Composer),
		MinConfidence: cfg.Extraction.MinConfidence,
	})
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("Response graph built successfully")
	return &graphRunner{
		runnable: runnable,
		sessions: conversations.NewSessionManager(cfg.Sessions, cfg.Session, conversations.WithClock(now)),
		apology:  apology,
		now:      now,
	}, nil
}

// BuildGraph constructs and returns the compiled turn graph.
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[*model.Turn, *model.Turn], error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.Gateway == nil || config.Extractor == nil || config.Resolver == nil ||
		config.Classifier == nil || config.Dispatcher == nil || config.Composer == nil {
		return nil, fmt.Errorf("graph components are not properly initialized")
	}

	builder := &GraphBuilder{
		config: config,
		graph:  compose.NewGraph[*model.Turn, *model.Turn](),
	}
	if err := builder.addNodes(); err != nil {
		return nil, err
	}
	if err := builder.addEdges(); err != nil {
		return nil, err
	}
	if err := builder.addBranches(); err != nil {
		return nil, err
	}
	return builder.compile(ctx)
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() error {
	c := b.config
	lambdas := []struct {
		key    string
		lambda *compose.Lambda
	}{
		{nodes.NodeAvailability, nodes.NewAvailabilityNode(c.Gateway)},
		{nodes.NodeExtractor, nodes.NewExtractorNode(c.Extractor)},
		{nodes.NodeResolver, nodes.NewResolverNode(c.Resolver, c.MinConfidence)},
		{nodes.NodeClassifier, nodes.NewClassifierNode(c.Classifier)},
		{nodes.NodeDispatcher, nodes.NewDispatcherNode(c.Dispatcher)},
		{nodes.NodeComposer, nodes.NewComposerNode(c.Composer)},
		{nodes.NodeDegraded, nodes.NewDegradedNode(c.Apology)},
	}
	for _, l := range lambdas {
		if err := b.graph.AddLambdaNode(l.key, l.lambda, compose.WithNodeName(l.key)); err != nil {
			logx.Error().Err(err).Str("node", l.key).Msg("Error adding node")
			return fmt.Errorf("error adding node %s: %w", l.key, err)
		}
	}
	return nil
}

// addEdges creates the main flow connections between nodes
func (b *GraphBuilder) addEdges() error {
	edges := [][2]string{
		{compose.START, nodes.NodeAvailability},
		{nodes.NodeExtractor, nodes.NodeResolver},
		{nodes.NodeResolver, nodes.NodeClassifier},
		{nodes.NodeDispatcher, nodes.NodeComposer},
		{nodes.NodeComposer, compose.END},
		{nodes.NodeDegraded, compose.END},
	}
	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			logx.Error().Err(err).Str("from", edge[0]).Str("to", edge[1]).Msg("Error adding edge")
			return fmt.Errorf("error adding edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

// addBranches creates conditional routing branches
func (b *GraphBuilder) addBranches() error {
	availabilityBranch := compose.NewGraphBranch(
		nodes.NewAvailabilityCondition(),
		map[string]bool{
			nodes.NodeExtractor: true,
			nodes.NodeDegraded:  true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeAvailability, availabilityBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding availability branch")
		return fmt.Errorf("error adding availability branch: %w", err)
	}

	classifierBranch := compose.NewGraphBranch(
		nodes.NewClassifierCondition(),
		map[string]bool{
			nodes.NodeDispatcher: true,
			nodes.NodeDegraded:   true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeClassifier, classifierBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding classifier branch")
		return fmt.Errorf("error adding classifier branch: %w", err)
	}
	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[*model.Turn, *model.Turn], error) {
	runnable, err := b.graph.Compile(ctx,
		compose.WithGraphName("benefits_turn"),
		compose.WithMaxRunSteps(20),
	)
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}

package nodes

import (
	"context"

	"github.com/cloudwego/eino/compose"

	"github.com/hr-benefits-assistant/server/internal/agent/gateway"
	"github.com/hr-benefits-assistant/server/internal/agent/model"
	logx "github.com/hr-benefits-assistant/server/pkg/logger"
)

// Each node reads and writes the *model.Turn it is handed. The graph runs
// nodes strictly one after another, so no node needs locking.

type IdentityExtractor interface {
	Extract(ctx context.Context, message string, sc model.SessionContext) model.ExtractedIdentity
}

type IdentityResolver interface {
	Resolve(x model.ExtractedIdentity) model.Resolution
}

type IntentClassifier interface {
	Classify(ctx context.Context, message string, sc model.SessionContext) model.Classification
}

type ResponseComposer interface {
	Compose(ctx context.Context, result model.HandlerResult, emp *model.EmployeeRecord) string
}

// NewAvailabilityNode marks the turn degraded when the backend is down, so
// no inference call is attempted.
func NewAvailabilityNode(gw gateway.Completer) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, t *model.Turn) (*model.Turn, error) {
		if !gw.IsAvailable(ctx) {
			logx.Warn().Str("session_id", t.SessionID).Str("node", NodeAvailability).Msg("inference backend unavailable")
			t.Degraded = true
		}
		return t, nil
	})
}

// NewAvailabilityCondition routes to the degraded reply or to extraction.
func NewAvailabilityCondition() func(context.Context, *model.Turn) (string, error) {
	return func(ctx context.Context, t *model.Turn) (string, error) {
		if t.Degraded {
			return NodeDegraded, nil
		}
		return NodeExtractor, nil
	}
}

func NewExtractorNode(x IdentityExtractor) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, t *model.Turn) (*model.Turn, error) {
		t.Extracted = x.Extract(ctx, t.Message, t.Session)
		return t, nil
	})
}

// NewResolverNode resolves the extracted identity when the extractor is
// confident enough. An established employee context is never replaced, and
// for an identified session only a match is kept.
func NewResolverNode(r IdentityResolver, minConfidence float64) *compose.Lambda {
	return compose.InvokableLambda(resolveTurn(r, minConfidence))
}

func resolveTurn(r IdentityResolver, minConfidence float64) func(context.Context, *model.Turn) (*model.Turn, error) {
	return func(ctx context.Context, t *model.Turn) (*model.Turn, error) {
		x := t.Extracted
		if !x.HasCandidates() {
			return t, nil
		}
		if x.Confidence < minConfidence {
			logx.Debug().
				Str("session_id", t.SessionID).
				Float64("confidence", x.Confidence).
				Float64("min_confidence", minConfidence).
				Msg("extraction below confidence threshold; skipping resolution")
			return t, nil
		}

		res := r.Resolve(x)
		if t.Employee != nil && res.Outcome != model.ResolutionMatched {
			// An established session only cares whether the details name
			// someone else; ambiguous or unknown details change nothing.
			logx.Debug().
				Str("session_id", t.SessionID).
				Str("outcome", string(res.Outcome)).
				Msg("session already identified; ignoring resolution outcome")
			return t, nil
		}
		t.Resolution = res
		ev := logx.Debug().
			Str("session_id", t.SessionID).
			Str("node", NodeResolver).
			Str("outcome", string(t.Resolution.Outcome)).
			Str("strategy", t.Resolution.Strategy)

		if t.ResolvedThisTurn() {
			switch {
			case t.Employee == nil:
				t.Employee = t.Resolution.Employee
			case t.Employee.ID != t.Resolution.Employee.ID:
				logx.Warn().
					Str("session_id", t.SessionID).
					Str("employee_id", t.Employee.ID).
					Msg("session already identified; ignoring a different employee")
			}
			ev = ev.Str("employee_id", t.Resolution.Employee.ID)
		}
		ev.Msg("identity resolution")
		return t, nil
	}
}

func NewClassifierNode(c IntentClassifier) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, t *model.Turn) (*model.Turn, error) {
		t.Classification = c.Classify(ctx, t.Message, t.Session)
		return t, nil
	})
}

// NewClassifierCondition sends a turn whose classification call failed to
// the degraded reply.
func NewClassifierCondition() func(context.Context, *model.Turn) (string, error) {
	return func(ctx context.Context, t *model.Turn) (string, error) {
		if t.Classification.Degraded {
			return NodeDegraded, nil
		}
		return NodeDispatcher, nil
	}
}

func NewDispatcherNode(d *Dispatcher) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, t *model.Turn) (*model.Turn, error) {
		t.Result = d.Dispatch(ctx, t)
		t.Result.UserMessage = t.Message
		logx.Debug().
			Str("session_id", t.SessionID).
			Str("intent", t.Classification.Intent.String()).
			Str("action", t.Result.Action).
			Msg("intent handled")
		return t, nil
	})
}

func NewComposerNode(c ResponseComposer) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, t *model.Turn) (*model.Turn, error) {
		t.Reply = c.Compose(ctx, t.Result, t.Employee)
		return t, nil
	})
}

// NewDegradedNode answers with the fixed apology. Identity resolved earlier
// in the turn is kept; the stage is left alone.
func NewDegradedNode(apology string) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, t *model.Turn) (*model.Turn, error) {
		t.Degraded = true
		t.Result = model.HandlerResult{Text: apology, Action: model.ActionDegradedMode, UserMessage: t.Message}
		t.Reply = apology
		return t, nil
	})
}

package nlu

import (
	"context"

	"github.com/hr-benefits-assistant/server/internal/agent/gateway"
	"github.com/hr-benefits-assistant/server/internal/agent/graph/parsers"
	"github.com/hr-benefits-assistant/server/internal/agent/graph/prompts"
	"github.com/hr-benefits-assistant/server/internal/agent/model"
	logx "github.com/hr-benefits-assistant/server/pkg/logger"
)

type Classifier struct {
	gw          gateway.Completer
	temperature float32
}

func NewClassifier(gw gateway.Completer, cfg model.ClassifierConfig) *Classifier {
	return &Classifier{gw: gw, temperature: cfg.Temperature}
}

// Classify labels message with exactly one intent. Output that is not a
// known label becomes clarification_needed; a degraded call is reported so
// the turn can fall back to the apology.
func (c *Classifier) Classify(ctx context.Context, message string, sc model.SessionContext) model.Classification {
	system, err := prompts.RenderIntentSystem(ctx, sc)
	if err != nil {
		logx.Error().Err(err).Str("session_id", sc.SessionID).Msg("failed to render intent prompt")
		return model.Classification{Intent: model.IntentClarificationNeeded}
	}

	out := c.gw.Complete(ctx, gateway.Request{
		Task:        TaskClassify,
		System:      system,
		Payload:     prompts.BuildConversationPayload(sc, message),
		Temperature: c.temperature,
	})
	if out.Degraded {
		return model.Classification{Intent: model.IntentClarificationNeeded, Degraded: true}
	}

	intent, err := parsers.ParseIntent(out.Text)
	if err != nil {
		logx.Warn().Err(err).Str("session_id", sc.SessionID).Msg("classifier returned an unknown label")
	}
	logx.Debug().Str("session_id", sc.SessionID).Str("intent", intent.String()).Msg("intent classified")
	return model.Classification{Intent: intent}
}

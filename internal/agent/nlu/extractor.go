// Package nlu holds the two language-understanding steps of a turn: identity
// extraction and intent classification.
package nlu

import (
	"context"

	"github.com/hr-benefits-assistant/server/internal/agent/gateway"
	"github.com/hr-benefits-assistant/server/internal/agent/graph/parsers"
	"github.com/hr-benefits-assistant/server/internal/agent/graph/prompts"
	"github.com/hr-benefits-assistant/server/internal/agent/model"
	logx "github.com/hr-benefits-assistant/server/pkg/logger"
)

const (
	TaskExtract  = "extract_identity"
	TaskClassify = "classify_intent"
)

type Extractor struct {
	gw          gateway.Completer
	temperature float32
}

func NewExtractor(gw gateway.Completer, cfg model.ExtractionConfig) *Extractor {
	return &Extractor{gw: gw, temperature: cfg.Temperature}
}

// Extract asks the model for identity fields in message. It never fails:
// a degraded call or malformed output yields the empty identity.
func (e *Extractor) Extract(ctx context.Context, message string, sc model.SessionContext) model.ExtractedIdentity {
	system, err := prompts.RenderExtractionSystem(ctx, sc)
	if err != nil {
		logx.Error().Err(err).Str("session_id", sc.SessionID).Msg("failed to render extraction prompt")
		return model.ExtractedIdentity{}
	}

	out := e.gw.Complete(ctx, gateway.Request{
		Task:        TaskExtract,
		System:      system,
		Payload:     prompts.BuildConversationPayload(sc, message),
		Temperature: e.temperature,
	})
	if out.Degraded {
		return model.ExtractedIdentity{}
	}

	id, err := parsers.ParseIdentity(out.Text)
	if err != nil {
		logx.Warn().Err(err).Str("session_id", sc.SessionID).Msg("discarding malformed extraction output")
		return model.ExtractedIdentity{}
	}
	logx.Debug().
		Str("session_id", sc.SessionID).
		Bool("has_employee_id", id.EmployeeID != "").
		Bool("has_name", id.Name != "").
		Bool("has_dob", id.DateOfBirth != "").
		Bool("has_ssn_suffix", id.SSNSuffix != "").
		Float64("confidence", id.Confidence).
		Msg("identity extracted")
	return id
}

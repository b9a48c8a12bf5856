package composer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hr-benefits-assistant/server/internal/agent/gateway/gatewaytest"
	"github.com/hr-benefits-assistant/server/internal/agent/model"
)

var john = &model.EmployeeRecord{ID: "12345", Name: "John Smith"}

func benefitsResult() model.HandlerResult {
	return model.HandlerResult{
		Text:   "Your 401k contribution rate is 8%.",
		Action: model.ActionBenefitsDisplayed,
		Data: map[string]any{
			"benefit_type": "401k",
			"details": model.BenefitAttributes{
				"contribution_rate": 8.0,
				"balance":           48250.75,
				"as_of":             "2026-09-30",
				"plan":              "Standard",
			},
		},
		UserMessage: "what's my 401k rate?",
	}
}

func TestComposeKeepsModelReplyWithAllFigures(t *testing.T) {
	gw := gatewaytest.New().Reply(TaskCompose, "Hi John Smith! You contribute 8% to your 401k, and your balance is 48250.75 as of 2026-09-30.")
	c := New(gw, model.ComposerConfig{Temperature: 0.3, ServiceName: "Acme"})

	got := c.Compose(context.Background(), benefitsResult(), john)
	assert.Equal(t, "Hi John Smith! You contribute 8% to your 401k, and your balance is 48250.75 as of 2026-09-30.", got)

	reqs := gw.Requests(TaskCompose)
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].System, "Acme")
	var p map[string]any
	require.NoError(t, json.Unmarshal([]byte(reqs[0].Payload), &p))
	assert.Equal(t, model.ActionBenefitsDisplayed, p["action"])
	assert.Equal(t, "what's my 401k rate?", p["employee_message"])
}

func TestComposeAppendsMissingFigures(t *testing.T) {
	gw := gatewaytest.New().Reply(TaskCompose, "You contribute eight percent to your 401k.")
	got := New(gw, model.ComposerConfig{}).Compose(context.Background(), benefitsResult(), john)

	assert.Contains(t, got, "You contribute eight percent")
	assert.Contains(t, got, "Details:")
	assert.Contains(t, got, "contribution rate 8")
	assert.Contains(t, got, "balance 48250.75")
	assert.Contains(t, got, "as of 2026-09-30")
	assert.NotContains(t, got, "Standard")
}

func TestComposeRejectsFiguresThatOnlyContainTheValue(t *testing.T) {
	gw := gatewaytest.New().Reply(TaskCompose, "Your contribution rate is 18% with a 45% employer match.")
	c := New(gw, model.ComposerConfig{})

	res := model.HandlerResult{
		Text:   "Your 401k contribution rate is 8% with a 4% employer match.",
		Action: model.ActionBenefitsDisplayed,
		Data:   map[string]any{"contribution_rate": 8, "employer_match": 4},
	}
	got := c.Compose(context.Background(), res, john)
	assert.Contains(t, got, "Details: contribution rate 8; employer match 4.")
}

func TestContainsFigure(t *testing.T) {
	tests := []struct {
		reply string
		value string
		want  bool
	}{
		{"rate is 8%", "8", true},
		{"8 percent", "8", true},
		{"rate is 8.", "8", true},
		{"(8)", "8", true},
		{"rate is 18%", "8", false},
		{"rate is 8.5%", "8", false},
		{"rate is 0.8", "8", false},
		{"balance 48250.75 today", "48250.75", true},
		{"balance 148250.75", "48250.75", false},
		{"starts 2019-04-01.", "2019-04-01", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, containsFigure(tt.reply, tt.value), "%q in %q", tt.value, tt.reply)
	}
}

func TestComposeDegradedUsesHandlerText(t *testing.T) {
	gw := gatewaytest.New().Fail(TaskCompose, errors.New("down"))
	got := New(gw, model.ComposerConfig{}).Compose(context.Background(), benefitsResult(), nil)

	assert.Contains(t, got, "Your 401k contribution rate is 8%.")
	assert.Contains(t, got, "48250.75")
	assert.NotContains(t, got, gatewaytest.Apology)
}

func TestFigures(t *testing.T) {
	figs, err := Figures(map[string]any{
		"rate":     5,
		"tier":     "family",
		"pct":      "12.5%",
		"date":     "2026-11-01",
		"children": []any{map[string]any{"n": 3}},
	})
	require.NoError(t, err)
	assert.Equal(t, []Figure{
		{Label: "n", Value: "3"},
		{Label: "date", Value: "2026-11-01"},
		{Label: "pct", Value: "12.5%"},
		{Label: "rate", Value: "5"},
	}, figs)

	figs, err = Figures(nil)
	require.NoError(t, err)
	assert.Empty(t, figs)
}

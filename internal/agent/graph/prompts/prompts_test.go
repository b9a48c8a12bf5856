package prompts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hr-benefits-assistant/server/internal/agent/model"
)

func TestRenderIntentSystemListsEveryLabel(t *testing.T) {
	out, err := RenderIntentSystem(context.Background(), model.SessionContext{Stage: model.StageIdentification})
	require.NoError(t, err)
	for _, it := range model.Intents {
		assert.Contains(t, out, "- "+string(it))
	}
	assert.Contains(t, out, "identification stage")
	assert.Contains(t, out, "not identified yet")
	assert.NotContains(t, out, "{{")
}

func TestRenderExtractionSystem(t *testing.T) {
	out, err := RenderExtractionSystem(context.Background(), model.SessionContext{})
	require.NoError(t, err)
	assert.Contains(t, out, `"ssn_last4"`)
	assert.NotContains(t, out, "already identified")

	out, err = RenderExtractionSystem(context.Background(), model.SessionContext{Identified: true, EmployeeName: "John Smith"})
	require.NoError(t, err)
	assert.Contains(t, out, "already identified as John Smith")
}

func TestRenderResponseSystem(t *testing.T) {
	out, err := RenderResponseSystem(context.Background(), "Acme Benefits", "Jane Doe")
	require.NoError(t, err)
	assert.Contains(t, out, "Acme Benefits")
	assert.Contains(t, out, "Address the employee as Jane Doe")
}

func TestBuildConversationPayload(t *testing.T) {
	ts := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	sc := model.SessionContext{RecentTurns: []model.TurnRecord{{Message: "hi\nthere", Reply: "Hello!", Timestamp: ts}}}

	out := BuildConversationPayload(sc, "what is my 401k rate?")
	assert.Contains(t, out, "<conversation_context>")
	assert.Contains(t, out, "[2026-10-16T09:00:00Z] UserMessage(hi there)")
	assert.Contains(t, out, "AssistantMessage(Hello!)")
	assert.Contains(t, out, "UserMessage(what is my 401k rate?)")

	out = BuildConversationPayload(model.SessionContext{}, "hello")
	assert.NotContains(t, out, "<conversation_context>")
}

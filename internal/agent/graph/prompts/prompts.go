// Package prompts renders the system instructions for each model call.
//
// Rendering goes through the eino prompt component so that prompt callbacks
// observe every rendered instruction.
package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/hr-benefits-assistant/server/internal/agent/model"
)

var (
	//go:embed template/extraction_prompt.txt
	extractionSystemPrompt string
	//go:embed template/intent_prompt.txt
	intentSystemPrompt string
	//go:embed template/response_prompt.txt
	responseSystemPrompt string
)

// RenderExtractionSystem renders the entity extractor instruction.
func RenderExtractionSystem(ctx context.Context, sc model.SessionContext) (string, error) {
	return render(ctx, "extraction", extractionSystemPrompt, map[string]any{
		"Identified":   sc.Identified,
		"EmployeeName": sc.EmployeeName,
	})
}

// RenderIntentSystem renders the intent classifier instruction.
func RenderIntentSystem(ctx context.Context, sc model.SessionContext) (string, error) {
	labels := make([]string, 0, len(model.Intents))
	for _, it := range model.Intents {
		labels = append(labels, string(it))
	}
	return render(ctx, "intent", intentSystemPrompt, map[string]any{
		"Intents":    labels,
		"Stage":      string(sc.Stage),
		"Identified": sc.Identified,
	})
}

// RenderResponseSystem renders the response composer instruction.
func RenderResponseSystem(ctx context.Context, serviceName, employeeName string) (string, error) {
	return render(ctx, "response", responseSystemPrompt, map[string]any{
		"ServiceName":  serviceName,
		"EmployeeName": employeeName,
	})
}

func render(ctx context.Context, name, tmpl string, vars map[string]any) (string, error) {
	tpl := prompt.FromMessages(schema.GoTemplate, schema.SystemMessage(tmpl))
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("%s prompt render: %w", name, err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("%s prompt render: empty result", name)
	}
	return strings.TrimSpace(msgs[0].Content), nil
}

// BuildConversationPayload wraps the latest message with recent turns so the
// model sees the conversation in one user payload.
func BuildConversationPayload(sc model.SessionContext, message string) string {
	var b strings.Builder
	if len(sc.RecentTurns) > 0 {
		b.WriteString("<conversation_context>\n")
		for _, t := range sc.RecentTurns {
			fmt.Fprintf(&b, "[%s] UserMessage(%s)\n", t.Timestamp.UTC().Format(time.RFC3339), oneLine(t.Message))
			fmt.Fprintf(&b, "[%s] AssistantMessage(%s)\n", t.Timestamp.UTC().Format(time.RFC3339), oneLine(t.Reply))
		}
		b.WriteString("</conversation_context>\n\n")
	}
	fmt.Fprintf(&b, "<current_message>\nUserMessage(%s)\n</current_message>", oneLine(message))
	return b.String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

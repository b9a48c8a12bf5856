// Package composer turns a handler's structured result into the reply text.
package composer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/hr-benefits-assistant/server/internal/agent/gateway"
	"github.com/hr-benefits-assistant/server/internal/agent/graph/prompts"
	"github.com/hr-benefits-assistant/server/internal/agent/model"
	logx "github.com/hr-benefits-assistant/server/pkg/logger"
)

const TaskCompose = "compose_response"

var (
	isoDate       = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	numericString = regexp.MustCompile(`^-?\d+(\.\d+)?%?$`)
)

type Composer struct {
	gw          gateway.Completer
	temperature float32
	serviceName string
}

func New(gw gateway.Completer, cfg model.ComposerConfig) *Composer {
	return &Composer{gw: gw, temperature: cfg.Temperature, serviceName: cfg.ServiceName}
}

type payload struct {
	EmployeeMessage string `json:"employee_message,omitempty"`
	Action          string `json:"action"`
	Draft           string `json:"draft"`
	Data            any    `json:"data,omitempty"`
}

// Compose asks the model to phrase the result. Every figure in the result
// data must appear verbatim in the reply; figures the model dropped are
// appended as a Details line. A degraded call uses the handler's own text.
func (c *Composer) Compose(ctx context.Context, result model.HandlerResult, emp *model.EmployeeRecord) string {
	employeeName := ""
	if emp != nil {
		employeeName = emp.Name
	}

	figures, err := Figures(result.Data)
	if err != nil {
		logx.Warn().Err(err).Str("action", result.Action).Msg("could not collect figures from handler data")
	}

	system, err := prompts.RenderResponseSystem(ctx, c.serviceName, employeeName)
	if err != nil {
		logx.Error().Err(err).Msg("failed to render response prompt")
		return ensureFigures(result.Text, figures)
	}
	body, err := json.Marshal(payload{
		EmployeeMessage: result.UserMessage,
		Action:          result.Action,
		Draft:           result.Text,
		Data:            result.Data,
	})
	if err != nil {
		logx.Error().Err(err).Str("action", result.Action).Msg("failed to encode response payload")
		return ensureFigures(result.Text, figures)
	}

	out := c.gw.Complete(ctx, gateway.Request{
		Task:        TaskCompose,
		System:      system,
		Payload:     string(body),
		Temperature: c.temperature,
	})
	if out.Degraded {
		return ensureFigures(result.Text, figures)
	}
	return ensureFigures(out.Text, figures)
}

// Figure is a numeric or date value that must be quoted exactly.
type Figure struct {
	Label string
	Value string
}

// Figures walks data and returns its numeric and date leaves in key order.
func Figures(data any) ([]Figure, error) {
	if data == nil {
		return nil, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, err
	}
	var out []Figure
	collect("", tree, &out)
	return out, nil
}

func collect(label string, v any, out *[]Figure) {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			collect(k, t[k], out)
		}
	case []any:
		for _, item := range t {
			collect(label, item, out)
		}
	case json.Number:
		*out = append(*out, Figure{Label: label, Value: t.String()})
	case string:
		s := strings.TrimSpace(t)
		if isoDate.MatchString(s) || numericString.MatchString(s) {
			*out = append(*out, Figure{Label: label, Value: s})
		}
	}
}

func ensureFigures(reply string, figures []Figure) string {
	var missing []string
	seen := map[string]bool{}
	for _, f := range figures {
		if seen[f.Value] || containsFigure(reply, f.Value) {
			continue
		}
		seen[f.Value] = true
		missing = append(missing, fmt.Sprintf("%s %s", humanize(f.Label), f.Value))
	}
	if len(missing) == 0 {
		return reply
	}
	return strings.TrimSpace(reply) + "\n\nDetails: " + strings.Join(missing, "; ") + "."
}

// containsFigure reports whether value appears in reply as a whole number,
// so 18% does not count for 8 and 8.5 does not count for 8.
func containsFigure(reply, value string) bool {
	re, err := regexp.Compile(`(?:^|[^\d.])` + regexp.QuoteMeta(value) + `(?:$|[^\d.]|\.(?:$|[^\d]))`)
	if err != nil {
		return strings.Contains(reply, value)
	}
	return re.MatchString(reply)
}

func humanize(label string) string {
	if label == "" {
		return "value"
	}
	return strings.ReplaceAll(label, "_", " ")
}

package parsers

import (
	"fmt"
	"strings"

	"github.com/hr-benefits-assistant/server/internal/agent/model"
)

// ParseIntent maps the classifier's output to a label. Only surrounding
// whitespace, quotes and trailing punctuation are removed; anything that is
// not exactly one of the labels yields clarification_needed and an error.
func ParseIntent(content string) (model.Intent, error) {
	content, _ = truncate(content)
	label := strings.Trim(stripCodeFence(content), " \t\r\n\"'`.")
	if intent, ok := model.ParseIntent(label); ok {
		return intent, nil
	}
	return model.IntentClarificationNeeded, fmt.Errorf("unrecognised intent label %q", safeSnippet(content))
}

package nodes

import (
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/hr-benefits-assistant/server/internal/agent/model"
)

// benefitAliases maps everyday wording to canonical benefit types.
var benefitAliases = map[string]string{
	"401(k)":                 "401k",
	"401 k":                  "401k",
	"401-k":                  "401k",
	"retirement":             "401k",
	"health":                 "medical",
	"health insurance":       "medical",
	"dental insurance":       "dental",
	"eye":                    "vision",
	"health savings":         "hsa",
	"health savings account": "hsa",
}

var (
	percentPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:%|percent\b)`)
	tierPatterns   = []struct {
		re   *regexp.Regexp
		tier string
	}{
		{regexp.MustCompile(`\bemployee\s*(?:\+|plus|and)\s*spouse\b`), "employee_spouse"},
		{regexp.MustCompile(`\bemployee\s*(?:\+|plus|and)\s*(?:children|child|kids)\b`), "employee_children"},
		{regexp.MustCompile(`\bfamily\b`), "family"},
		{regexp.MustCompile(`\b(?:employee|self)[\s-]*only\b`), "employee_only"},
	}
)

// DetectBenefitType finds the benefit type mentioned first in message.
// Matching is case-insensitive on word boundaries; aliases resolve only to
// types in known. When two terms start at the same place the longer wins.
func DetectBenefitType(message string, known []string) string {
	msg := strings.ToLower(message)
	knownSet := make(map[string]bool, len(known))
	terms := map[string]string{}
	for _, k := range known {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		knownSet[k] = true
		terms[k] = k
	}
	for alias, target := range benefitAliases {
		if knownSet[target] {
			if _, exists := terms[alias]; !exists {
				terms[alias] = target
			}
		}
	}

	best, bestAt, bestLen := "", -1, 0
	for term, target := range terms {
		at := indexWord(msg, term)
		if at < 0 {
			continue
		}
		if bestAt < 0 || at < bestAt || (at == bestAt && len(term) > bestLen) {
			best, bestAt, bestLen = target, at, len(term)
		}
	}
	return best
}

// indexWord returns the first index of term in s that is not part of a
// longer alphanumeric word, or -1.
func indexWord(s, term string) int {
	for from := 0; from <= len(s)-len(term); {
		i := strings.Index(s[from:], term)
		if i < 0 {
			return -1
		}
		i += from
		end := i + len(term)
		if (i == 0 || !isWordByte(s[i-1])) && (end == len(s) || !isWordByte(s[end])) {
			return i
		}
		from = i + 1
	}
	return -1
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}

// ParseUpdateRequest pulls a contribution percentage or coverage tier out of
// the message. Anything else is recorded as the raw requested change.
func ParseUpdateRequest(message string) map[string]any {
	msg := strings.ToLower(message)
	updates := map[string]any{}
	if m := percentPattern.FindStringSubmatch(msg); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			updates["contribution_rate"] = v
		}
	}
	for _, tp := range tierPatterns {
		if tp.re.MatchString(msg) {
			updates["coverage_tier"] = tp.tier
			break
		}
	}
	if len(updates) == 0 {
		updates["requested_change"] = strings.Join(strings.Fields(message), " ")
	}
	return updates
}

func describeAll(benefits map[string]model.BenefitAttributes) string {
	types := make([]string, 0, len(benefits))
	for bt := range benefits {
		types = append(types, bt)
	}
	slices.Sort(types)
	lines := make([]string, 0, len(types))
	for _, bt := range types {
		lines = append(lines, fmt.Sprintf("- %s: %s", bt, describeAttributes(benefits[bt])))
	}
	return strings.Join(lines, "\n")
}

func describeAttributes(attrs map[string]any) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %s", strings.ReplaceAll(k, "_", " "), formatValue(attrs[k])))
	}
	return strings.Join(parts, ", ")
}

// formatValue renders values the way they encode to JSON, so the draft text
// and the structured data quote identical figures.
func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	case nil:
		return "none"
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

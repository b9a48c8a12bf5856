// Package parsers turns raw model output into typed values. Parsers never
// trust the model: malformed output yields a safe empty value and an error
// the caller may log.
package parsers

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 16 * 1024
	maxFieldLen   = 256
	maxErrSnippet = 200
)

func truncate(content string) (string, bool) {
	if len(content) <= maxContentLen {
		return content, false
	}
	return content[:maxContentLen], true
}

// stripCodeFence removes a surrounding ``` or ```json fence.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func cleanField(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !utf8.ValidString(s) {
		return "", fmt.Errorf("invalid utf8")
	}
	if len(s) > maxFieldLen {
		return "", fmt.Errorf("field too long")
	}
	return s, nil
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func safeSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet]
}

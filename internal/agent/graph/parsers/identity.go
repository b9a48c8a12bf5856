package parsers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/hr-benefits-assistant/server/internal/agent/model"
	logx "github.com/hr-benefits-assistant/server/pkg/logger"
)

// dateLayouts are the date spellings accepted from the model, tried in order.
var dateLayouts = []string{
	model.DateLayout,
	"01/02/2006",
	"1/2/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
}

type rawIdentity struct {
	EmployeeID  json.RawMessage `json:"employee_id"`
	Name        *string         `json:"name"`
	DateOfBirth *string         `json:"date_of_birth"`
	SSNSuffix   json.RawMessage `json:"ssn_last4"`
	Confidence  *float64        `json:"confidence"`
}

// ParseIdentity decodes the extractor's JSON object. Any failure returns the
// empty identity with zero confidence alongside the error.
func ParseIdentity(content string) (id model.ExtractedIdentity, err error) {
	// panic safety
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "identity_parser").Msgf("panic recovered: %v", r)
			id, err = model.ExtractedIdentity{}, fmt.Errorf("identity parser panic")
		}
	}()

	content, truncated := truncate(content)
	if truncated {
		logx.Warn().Str("component", "identity_parser").Int("max_len", maxContentLen).Msg("content truncated due to size limit")
	}

	body := stripCodeFence(content)
	start := strings.IndexByte(body, '{')
	end := strings.LastIndexByte(body, '}')
	if start < 0 || end <= start {
		return model.ExtractedIdentity{}, fmt.Errorf("no json object in output: %q", safeSnippet(content))
	}

	var raw rawIdentity
	dec := json.NewDecoder(bytes.NewReader([]byte(body[start : end+1])))
	if err := dec.Decode(&raw); err != nil {
		return model.ExtractedIdentity{}, fmt.Errorf("decode identity: %w", err)
	}

	out := model.ExtractedIdentity{}
	if out.EmployeeID, err = scalarString(raw.EmployeeID); err != nil {
		return model.ExtractedIdentity{}, fmt.Errorf("employee_id: %w", err)
	}
	if raw.Name != nil {
		if out.Name, err = cleanField(*raw.Name); err != nil {
			return model.ExtractedIdentity{}, fmt.Errorf("name: %w", err)
		}
	}
	if raw.DateOfBirth != nil {
		dob, derr := cleanField(*raw.DateOfBirth)
		if derr != nil {
			return model.ExtractedIdentity{}, fmt.Errorf("date_of_birth: %w", derr)
		}
		// An unreadable date is dropped rather than failing the whole identity.
		out.DateOfBirth, _ = NormalizeDate(dob)
	}
	ssn, err := scalarString(raw.SSNSuffix)
	if err != nil {
		return model.ExtractedIdentity{}, fmt.Errorf("ssn_last4: %w", err)
	}
	out.SSNSuffix = lastFourDigits(ssn)
	if raw.Confidence != nil {
		out.Confidence = clamp01(*raw.Confidence)
	}
	return out, nil
}

// NormalizeDate rewrites a recognised date spelling as YYYY-MM-DD.
func NormalizeDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(model.DateLayout), true
		}
	}
	return "", false
}

// scalarString accepts a JSON string, number or null.
func scalarString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return cleanField(s)
	}
	if _, err := strconv.ParseFloat(string(raw), 64); err != nil {
		return "", fmt.Errorf("not a string or number")
	}
	return string(raw), nil
}

func lastFourDigits(s string) string {
	digits := make([]rune, 0, len(s))
	for _, r := range s {
		if unicode.IsDigit(r) {
			digits = append(digits, r)
		}
	}
	if len(digits) < 4 {
		return ""
	}
	return string(digits[len(digits)-4:])
}

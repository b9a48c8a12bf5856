package model

import (
	"time"
)

// ChatRequest is the single inbound request shape.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse is returned for every turn, including degraded ones.
type ChatResponse struct {
	Reply      string    `json:"reply"`
	SessionID  string    `json:"session_id"`
	Timestamp  time.Time `json:"timestamp"`
	Confidence float64   `json:"confidence"`
	Action     string    `json:"action,omitempty"`
}

// Action labels reported on HandlerResult.Action.
const (
	ActionIdentityVerified       = "identity_verified"
	ActionIdentityConfirmed      = "identity_confirmed"
	ActionIdentityAmbiguous      = "identity_ambiguous"
	ActionEmployeeNotFound       = "employee_not_found"
	ActionRequestIdentification  = "request_identification"
	ActionBenefitsDisplayed      = "benefits_displayed"
	ActionNoBenefitsOnFile       = "no_benefits_on_file"
	ActionEligibilityChecked     = "eligibility_checked"
	ActionUpdateSubmitted        = "update_submitted"
	ActionUpdateDenied           = "update_denied"
	ActionUpdateFailed           = "update_failed"
	ActionClarifyBenefitType     = "clarify_benefit_type"
	ActionGeneralAnswer          = "general_answer"
	ActionClarificationRequested = "clarification_requested"
	ActionDegradedMode           = "degraded_mode"
)

// HandlerResult is the structured output of an intent handler. Text is a
// deterministic draft that is also the fallback reply.
type HandlerResult struct {
	Text        string  `json:"text"`
	Confidence  float64 `json:"confidence"`
	Action      string  `json:"action"`
	Data        any     `json:"data,omitempty"`
	UserMessage string  `json:"user_message,omitempty"`
}

// Classification is the classifier's answer. Degraded is set when the
// inference backend failed and the intent is only the fallback.
type Classification struct {
	Intent   Intent
	Degraded bool
}

// Turn carries one message through the pipeline graph.
// Nodes run strictly in sequence, so it is never shared across goroutines.
type Turn struct {
	SessionID string
	Message   string
	Session   SessionContext

	// Employee starts as the session's context and may be set by the resolver.
	Employee   *EmployeeRecord
	Extracted  ExtractedIdentity
	Resolution Resolution

	Classification Classification
	Result         HandlerResult
	Reply          string

	// Degraded marks a turn answered with the fixed apology.
	Degraded bool
}

// ResolvedThisTurn reports whether identity was established by this turn.
func (t *Turn) ResolvedThisTurn() bool {
	return t.Resolution.Outcome == ResolutionMatched && t.Resolution.Employee != nil
}

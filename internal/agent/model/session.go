package model

import (
	"slices"
	"time"
)

// Stage is the coarse state-machine position of a conversation.
type Stage string

const (
	StageIdentification  Stage = "identification"
	StageBenefitsInquiry Stage = "benefits_inquiry"
	StageUpdateFlow      Stage = "update_flow"
	StageClarification   Stage = "clarification"
)

// RequiresIdentity reports whether the stage may only be entered once an
// employee is established.
func (s Stage) RequiresIdentity() bool {
	return s == StageBenefitsInquiry || s == StageUpdateFlow
}

// TurnRecord is one entry of the append-only turn history.
type TurnRecord struct {
	Message   string    `json:"message"`
	Reply     string    `json:"reply"`
	Intent    Intent    `json:"intent"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionState is the unit of conversational continuity.
type SessionState struct {
	ID       string          `json:"id"`
	Turns    []TurnRecord    `json:"turns,omitempty"`
	Employee *EmployeeRecord `json:"employee,omitempty"`
	Stage    Stage           `json:"stage"`
	// ResumeStage is the stage a clarification interrupted.
	ResumeStage Stage     `json:"resume_stage,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func NewSessionState(id string, now time.Time) *SessionState {
	return &SessionState{
		ID:        id,
		Stage:     StageIdentification,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Identified reports whether an employee context has been established.
func (s *SessionState) Identified() bool {
	return s != nil && s.Employee != nil
}

// Clone returns a copy that shares no mutable memory with s.
func (s *SessionState) Clone() *SessionState {
	if s == nil {
		return nil
	}
	out := *s
	out.Turns = slices.Clone(s.Turns)
	if s.Employee != nil {
		emp := *s.Employee
		out.Employee = &emp
	}
	return &out
}

// Context returns the read-only view handed to the language components.
func (s *SessionState) Context(maxTurns int) SessionContext {
	turns := s.Turns
	if maxTurns >= 0 && len(turns) > maxTurns {
		turns = turns[len(turns)-maxTurns:]
	}
	sc := SessionContext{
		SessionID:   s.ID,
		Stage:       s.Stage,
		Identified:  s.Identified(),
		RecentTurns: slices.Clone(turns),
	}
	if s.Employee != nil {
		sc.EmployeeName = s.Employee.Name
	}
	return sc
}

// SessionContext is what extraction and classification see of a session.
type SessionContext struct {
	SessionID    string
	Stage        Stage
	Identified   bool
	EmployeeName string
	RecentTurns  []TurnRecord
}

package model

import (
	"maps"
	"strings"
	"time"
)

// DateLayout is the canonical calendar date format used across records.
const DateLayout = "2006-01-02"

type EmploymentStatus string

const (
	FullTime EmploymentStatus = "full_time"
	PartTime EmploymentStatus = "part_time"
)

// EmployeeRecord is owned by the record store and never mutated in a session.
type EmployeeRecord struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	DateOfBirth      string           `json:"date_of_birth"`
	SSNSuffix        string           `json:"ssn_suffix"`
	EmploymentStatus EmploymentStatus `json:"employment_status"`
	HireDate         string           `json:"hire_date"`
	WeeklyHours      *int             `json:"weekly_hours,omitempty"`
}

// HireTime parses HireDate as a UTC calendar date.
func (e EmployeeRecord) HireTime() (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(e.HireDate), time.UTC)
}

// BenefitAttributes is the benefit-specific attribute bag (plan name,
// contribution rate, balances, coverage tier, flags).
type BenefitAttributes map[string]any

// BenefitsRecord holds one employee's benefits keyed by benefit type.
// Updates produce a new version; existing values are never mutated.
type BenefitsRecord struct {
	EmployeeID string                       `json:"employee_id"`
	Benefits   map[string]BenefitAttributes `json:"benefits"`
	Version    int                          `json:"version"`
	UpdatedAt  time.Time                    `json:"updated_at,omitzero"`
}

// Clone copies the record down to the attribute bags.
func (b BenefitsRecord) Clone() BenefitsRecord {
	out := b
	out.Benefits = make(map[string]BenefitAttributes, len(b.Benefits))
	for k, attrs := range b.Benefits {
		out.Benefits[k] = maps.Clone(attrs)
	}
	return out
}

// EligibilityRule is loaded once and never mutated at runtime.
type EligibilityRule struct {
	BenefitType         string `json:"benefit_type"`
	FullTimeOnly        bool   `json:"full_time_only"`
	MinimumTenureMonths *int   `json:"minimum_tenure_months,omitempty"`
	MinimumHours        *int   `json:"minimum_hours,omitempty"`
	// PartTimeEligibleAfterMonths lets part-time employees pass the
	// full-time gate once their tenure reaches this many months.
	PartTimeEligibleAfterMonths *int `json:"part_time_eligible_after_months,omitempty"`
}

// ExtractedIdentity is produced by the extractor and consumed immediately
// by the resolver. Empty strings mean the field was not found.
type ExtractedIdentity struct {
	EmployeeID  string  `json:"employee_id,omitempty"`
	Name        string  `json:"name,omitempty"`
	DateOfBirth string  `json:"date_of_birth,omitempty"`
	SSNSuffix   string  `json:"ssn_suffix,omitempty"`
	Confidence  float64 `json:"confidence"`
}

// HasCandidates reports whether any identifying field was extracted.
func (x ExtractedIdentity) HasCandidates() bool {
	return x.EmployeeID != "" || x.Name != "" || x.DateOfBirth != "" || x.SSNSuffix != ""
}

type ResolutionOutcome string

const (
	ResolutionMatched      ResolutionOutcome = "matched"
	ResolutionNotFound     ResolutionOutcome = "not_found"
	ResolutionAmbiguous    ResolutionOutcome = "ambiguous"
	ResolutionInsufficient ResolutionOutcome = "insufficient"
	// ResolutionSkipped means the resolver did not run this turn.
	ResolutionSkipped ResolutionOutcome = ""
)

// Resolution is the resolver's result. Employee is set only when Outcome is
// ResolutionMatched.
type Resolution struct {
	Outcome    ResolutionOutcome `json:"outcome"`
	Employee   *EmployeeRecord   `json:"employee,omitempty"`
	Strategy   string            `json:"strategy,omitempty"`
	Candidates int               `json:"candidates,omitempty"`
}

// EligibilityVerdict is the rule engine's answer for one benefit type.
type EligibilityVerdict struct {
	BenefitType string `json:"benefit_type"`
	Eligible    bool   `json:"eligible"`
	Reason      string `json:"reason"`
	RuleFound   bool   `json:"-"`
}

// ReasonNoBenefitsOnFile is the update failure reason for an employee
// without a benefits record.
const ReasonNoBenefitsOnFile = "no benefits on file"

// UpdateResult is returned by the record store's update mutation.
type UpdateResult struct {
	Success       bool   `json:"success"`
	Reason        string `json:"reason,omitempty"`
	EffectiveDate string `json:"effective_date,omitempty"`
}

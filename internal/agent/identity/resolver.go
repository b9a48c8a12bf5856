// Package identity maps extracted identification fields to exactly one
// employee record, or reports why it could not.
package identity

import (
	"strings"

	"github.com/hr-benefits-assistant/server/internal/agent/model"
	logx "github.com/hr-benefits-assistant/server/pkg/logger"
)

const (
	StrategyEmployeeID = "employee_id"
	StrategyNameDOB    = "name_dob"
	StrategyNameSSN    = "name_ssn_suffix"
)

// EmployeeSource is the read side of the record store the resolver needs.
type EmployeeSource interface {
	LookupEmployees() []model.EmployeeRecord
}

type Resolver struct {
	src EmployeeSource
}

func NewResolver(src EmployeeSource) *Resolver {
	return &Resolver{src: src}
}

// Resolve tries the strategies in order: exact employee ID, then name
// substring with date of birth, then name substring with SSN suffix.
// An unknown employee ID falls through to the name strategies. A strategy
// that matches several employees stops the search as ambiguous.
func (r *Resolver) Resolve(x model.ExtractedIdentity) model.Resolution {
	if !x.HasCandidates() {
		return model.Resolution{Outcome: model.ResolutionInsufficient}
	}
	employees := r.src.LookupEmployees()

	if id := strings.TrimSpace(x.EmployeeID); id != "" {
		for i := range employees {
			if employees[i].ID == id {
				return matched(StrategyEmployeeID, employees[i])
			}
		}
		logx.Debug().Str("employee_id", id).Msg("employee id not found; trying name strategies")
	}

	name := normalizeName(x.Name)
	if name != "" && x.DateOfBirth != "" {
		hits := filter(employees, func(e model.EmployeeRecord) bool {
			return strings.Contains(normalizeName(e.Name), name) && e.DateOfBirth == x.DateOfBirth
		})
		if res, done := decide(StrategyNameDOB, hits); done {
			return res
		}
	}

	if ssn := strings.TrimSpace(x.SSNSuffix); name != "" && ssn != "" {
		hits := filter(employees, func(e model.EmployeeRecord) bool {
			return strings.Contains(normalizeName(e.Name), name) && e.SSNSuffix != "" && strings.HasSuffix(e.SSNSuffix, ssn)
		})
		if res, done := decide(StrategyNameSSN, hits); done {
			return res
		}
	}

	// A name alone never identifies anyone.
	if x.EmployeeID == "" && x.DateOfBirth == "" && x.SSNSuffix == "" {
		return model.Resolution{Outcome: model.ResolutionInsufficient}
	}
	return model.Resolution{Outcome: model.ResolutionNotFound}
}

func matched(strategy string, e model.EmployeeRecord) model.Resolution {
	emp := e
	return model.Resolution{Outcome: model.ResolutionMatched, Employee: &emp, Strategy: strategy}
}

// decide reports the result of a strategy; done is false when nothing matched.
func decide(strategy string, hits []model.EmployeeRecord) (model.Resolution, bool) {
	switch len(hits) {
	case 0:
		return model.Resolution{}, false
	case 1:
		return matched(strategy, hits[0]), true
	default:
		logx.Info().Str("strategy", strategy).Int("candidates", len(hits)).Msg("identity is ambiguous")
		return model.Resolution{Outcome: model.ResolutionAmbiguous, Strategy: strategy, Candidates: len(hits)}, true
	}
}

func filter(in []model.EmployeeRecord, keep func(model.EmployeeRecord) bool) []model.EmployeeRecord {
	var out []model.EmployeeRecord
	for _, e := range in {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

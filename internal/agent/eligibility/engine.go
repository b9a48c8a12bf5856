// Package eligibility evaluates benefit eligibility rules against an employee.
package eligibility

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/hr-benefits-assistant/server/internal/agent/model"
	logx "github.com/hr-benefits-assistant/server/pkg/logger"
)

// DaysPerMonth is the month approximation used for tenure.
const DaysPerMonth = 30.44

// tenureEpsilon absorbs float error when days land exactly on a month multiple.
const tenureEpsilon = 1e-9

type Engine struct {
	rules map[string]model.EligibilityRule
	now   func() time.Time
}

type Option func(*Engine)

// WithClock sets the evaluation date source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine copies the rule table; rules are never mutated afterwards.
func NewEngine(rules map[string]model.EligibilityRule, opts ...Option) *Engine {
	e := &Engine{rules: make(map[string]model.EligibilityRule, len(rules)), now: time.Now}
	for k, r := range rules {
		e.rules[normalize(k)] = r
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BenefitTypes returns the benefit types that have a rule.
func (e *Engine) BenefitTypes() []string {
	out := make([]string, 0, len(e.rules))
	for k := range maps.Keys(e.rules) {
		out = append(out, k)
	}
	return out
}

// Evaluate runs the gates in order and stops at the first failure:
// full-time status, minimum tenure, minimum weekly hours.
// A benefit type without a rule is eligible (no special rule applies).
func (e *Engine) Evaluate(emp model.EmployeeRecord, benefitType string) model.EligibilityVerdict {
	key := normalize(benefitType)
	rule, ok := e.rules[key]
	if !ok {
		logx.Warn().
			Str("benefit_type", key).
			Str("employee_id", emp.ID).
			Msg("no eligibility rule defined; defaulting to eligible")
		return model.EligibilityVerdict{
			BenefitType: key,
			Eligible:    true,
			Reason:      fmt.Sprintf("No eligibility restrictions are defined for %s.", key),
		}
	}

	verdict := model.EligibilityVerdict{BenefitType: key, RuleFound: true}
	evalDate := e.now()

	// tenure is computed lazily; only gates that need it parse the hire date.
	var tenure float64
	var tenureErr error
	tenureKnown := false
	getTenure := func() (float64, error) {
		if !tenureKnown {
			hire, err := emp.HireTime()
			if err != nil {
				tenureErr = err
			} else {
				tenure = TenureMonths(hire, evalDate)
			}
			tenureKnown = true
		}
		return tenure, tenureErr
	}

	if rule.FullTimeOnly && emp.EmploymentStatus != model.FullTime {
		if rule.PartTimeEligibleAfterMonths == nil {
			verdict.Reason = fmt.Sprintf("%s requires full-time employment; your employment status is %s.", key, statusLabel(emp.EmploymentStatus))
			return verdict
		}
		months, err := getTenure()
		if err != nil {
			verdict.Reason = invalidHireDate(key, emp)
			return verdict
		}
		if !meets(months, *rule.PartTimeEligibleAfterMonths) {
			verdict.Reason = fmt.Sprintf("%s requires full-time employment or at least %d months of tenure; you are %s with %.1f months of tenure.",
				key, *rule.PartTimeEligibleAfterMonths, statusLabel(emp.EmploymentStatus), months)
			return verdict
		}
	}

	if rule.MinimumTenureMonths != nil {
		months, err := getTenure()
		if err != nil {
			verdict.Reason = invalidHireDate(key, emp)
			return verdict
		}
		if !meets(months, *rule.MinimumTenureMonths) {
			verdict.Reason = fmt.Sprintf("%s requires at least %d months of tenure; you have %.1f months.", key, *rule.MinimumTenureMonths, months)
			return verdict
		}
	}

	if rule.MinimumHours != nil {
		if emp.WeeklyHours == nil {
			verdict.Reason = fmt.Sprintf("%s requires at least %d scheduled hours per week; no scheduled hours are on file.", key, *rule.MinimumHours)
			return verdict
		}
		if *emp.WeeklyHours < *rule.MinimumHours {
			verdict.Reason = fmt.Sprintf("%s requires at least %d scheduled hours per week; you are scheduled for %d.", key, *rule.MinimumHours, *emp.WeeklyHours)
			return verdict
		}
	}

	verdict.Eligible = true
	verdict.Reason = fmt.Sprintf("You meet every eligibility requirement for %s.", key)
	return verdict
}

// TenureMonths counts calendar days from hire to at, both days included,
// and converts them using DaysPerMonth.
func TenureMonths(hire, at time.Time) float64 {
	h := dateOnly(hire)
	a := dateOnly(at)
	if a.Before(h) {
		return 0
	}
	days := int(a.Sub(h).Hours()/24) + 1
	return float64(days) / DaysPerMonth
}

func meets(months float64, required int) bool {
	return months+tenureEpsilon >= float64(required)
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func normalize(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

func statusLabel(s model.EmploymentStatus) string {
	switch s {
	case model.PartTime:
		return "part-time"
	case model.FullTime:
		return "full-time"
	case "":
		return "unknown"
	default:
		return strings.ReplaceAll(string(s), "_", "-")
	}
}

func invalidHireDate(benefitType string, emp model.EmployeeRecord) string {
	return fmt.Sprintf("%s has a tenure requirement, but the hire date on file (%q) could not be read.", benefitType, emp.HireDate)
}

package eligibility

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hr-benefits-assistant/server/internal/agent/model"
)

var evalAt = time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

func employee(status model.EmploymentStatus, hire time.Time, hours *int) model.EmployeeRecord {
	return model.EmployeeRecord{
		ID:               "e-1",
		Name:             "Test Person",
		EmploymentStatus: status,
		HireDate:         hire.Format(model.DateLayout),
		WeeklyHours:      hours,
	}
}

func newTestEngine(rules ...model.EligibilityRule) *Engine {
	table := make(map[string]model.EligibilityRule, len(rules))
	for _, r := range rules {
		table[r.BenefitType] = r
	}
	return NewEngine(table, WithClock(func() time.Time { return evalAt }))
}

func TestTenureBoundary(t *testing.T) {
	for _, n := range []int{3, 6, 12, 24} {
		t.Run(fmt.Sprintf("%d_months", n), func(t *testing.T) {
			e := newTestEngine(model.EligibilityRule{BenefitType: "vision", MinimumTenureMonths: intPtr(n)})

			daysNeeded := int(math.Ceil(float64(n)*DaysPerMonth - 1e-9))
			hire := evalAt.AddDate(0, 0, -(daysNeeded - 1))

			v := e.Evaluate(employee(model.FullTime, hire, nil), "vision")
			assert.True(t, v.Eligible, "hire %s should meet %d months: %s", hire.Format(model.DateLayout), n, v.Reason)

			v = e.Evaluate(employee(model.FullTime, hire.AddDate(0, 0, 1), nil), "vision")
			assert.False(t, v.Eligible)
			assert.Contains(t, v.Reason, fmt.Sprintf("at least %d months", n))
		})
	}
}

func TestTenureMonthsCountsHireDay(t *testing.T) {
	assert.InDelta(t, 1/DaysPerMonth, TenureMonths(evalAt, evalAt), 1e-12)
	assert.Zero(t, TenureMonths(evalAt.AddDate(0, 0, 1), evalAt))
}

func TestFullTimeGate(t *testing.T) {
	e := newTestEngine(model.EligibilityRule{BenefitType: "dental", FullTimeOnly: true})
	hire := evalAt.AddDate(-5, 0, 0)

	v := e.Evaluate(employee(model.PartTime, hire, intPtr(20)), "dental")
	assert.False(t, v.Eligible)
	assert.True(t, v.RuleFound)
	assert.Contains(t, v.Reason, "full-time")

	v = e.Evaluate(employee(model.FullTime, hire, intPtr(40)), "dental")
	assert.True(t, v.Eligible)
}

func TestPartTimeOverride(t *testing.T) {
	e := newTestEngine(model.EligibilityRule{BenefitType: "medical", FullTimeOnly: true, PartTimeEligibleAfterMonths: intPtr(12)})

	short := employee(model.PartTime, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), intPtr(20))
	v := e.Evaluate(short, "medical")
	require.False(t, v.Eligible)
	assert.Contains(t, v.Reason, "full-time employment or at least 12 months")
	assert.Contains(t, v.Reason, "part-time")

	long := employee(model.PartTime, evalAt.AddDate(-2, 0, 0), intPtr(20))
	assert.True(t, e.Evaluate(long, "medical").Eligible)
}

func TestGatesStopAtFirstFailure(t *testing.T) {
	e := newTestEngine(model.EligibilityRule{
		BenefitType:         "hsa",
		FullTimeOnly:        true,
		MinimumTenureMonths: intPtr(6),
		MinimumHours:        intPtr(30),
	})

	v := e.Evaluate(employee(model.PartTime, evalAt.AddDate(0, -1, 0), intPtr(10)), "hsa")
	assert.False(t, v.Eligible)
	assert.Contains(t, v.Reason, "full-time")
	assert.NotContains(t, v.Reason, "tenure")

	v = e.Evaluate(employee(model.FullTime, evalAt.AddDate(0, -1, 0), intPtr(10)), "hsa")
	assert.False(t, v.Eligible)
	assert.Contains(t, v.Reason, "6 months")

	v = e.Evaluate(employee(model.FullTime, evalAt.AddDate(-1, 0, 0), intPtr(10)), "hsa")
	assert.False(t, v.Eligible)
	assert.Contains(t, v.Reason, "30 scheduled hours")

	v = e.Evaluate(employee(model.FullTime, evalAt.AddDate(-1, 0, 0), nil), "hsa")
	assert.False(t, v.Eligible)
	assert.Contains(t, v.Reason, "no scheduled hours")

	v = e.Evaluate(employee(model.FullTime, evalAt.AddDate(-1, 0, 0), intPtr(40)), "hsa")
	assert.True(t, v.Eligible)
}

func TestUnknownBenefitTypeDefaultsToEligible(t *testing.T) {
	e := newTestEngine(model.EligibilityRule{BenefitType: "dental", FullTimeOnly: true})

	v := e.Evaluate(employee(model.PartTime, evalAt, nil), "Pet Insurance")
	assert.True(t, v.Eligible)
	assert.False(t, v.RuleFound)
	assert.Equal(t, "pet insurance", v.BenefitType)
}

func TestBenefitTypeIsCaseInsensitive(t *testing.T) {
	e := newTestEngine(model.EligibilityRule{BenefitType: "dental", FullTimeOnly: true})

	v := e.Evaluate(employee(model.PartTime, evalAt, nil), "  DENTAL ")
	assert.True(t, v.RuleFound)
	assert.False(t, v.Eligible)
}

func TestUnreadableHireDate(t *testing.T) {
	e := newTestEngine(model.EligibilityRule{BenefitType: "vision", MinimumTenureMonths: intPtr(3)})
	emp := employee(model.FullTime, evalAt, nil)
	emp.HireDate = "sometime"

	v := e.Evaluate(emp, "vision")
	assert.False(t, v.Eligible)
	assert.Contains(t, v.Reason, "could not be read")
}

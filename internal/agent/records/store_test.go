package records

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hr-benefits-assistant/server/internal/agent/model"
)

var fixedNow = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	fx, err := DefaultFixtures()
	require.NoError(t, err)
	s, err := NewStore(fx, WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return s
}

func TestDefaultFixturesLoad(t *testing.T) {
	s := newTestStore(t)

	employees := s.LookupEmployees()
	require.NotEmpty(t, employees)

	rec, ok := s.LookupBenefits("12345")
	require.True(t, ok)
	assert.Equal(t, 8.0, rec.Benefits["401k"]["contribution_rate"])

	rules := s.LookupRules()
	require.Contains(t, rules, "medical")
	assert.True(t, rules["medical"].FullTimeOnly)
	require.NotNil(t, rules["medical"].PartTimeEligibleAfterMonths)
	assert.Equal(t, 12, *rules["medical"].PartTimeEligibleAfterMonths)
}

func TestLookupBenefitsMissing(t *testing.T) {
	s := newTestStore(t)
	_, ok := s.LookupBenefits("67890")
	assert.False(t, ok)
}

func TestLookupsReturnCopies(t *testing.T) {
	s := newTestStore(t)

	rec, _ := s.LookupBenefits("12345")
	rec.Benefits["401k"]["contribution_rate"] = 99.0

	again, _ := s.LookupBenefits("12345")
	assert.Equal(t, 8.0, again.Benefits["401k"]["contribution_rate"])

	employees := s.LookupEmployees()
	employees[0].Name = "Someone Else"
	assert.NotEqual(t, "Someone Else", s.LookupEmployees()[0].Name)
}

func TestUpdateCreatesNewVersion(t *testing.T) {
	s := newTestStore(t)
	before, _ := s.LookupBenefits("12345")

	res, err := s.Update(context.Background(), "12345", "401K", map[string]any{"contribution_rate": 10.0})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "2026-11-01", res.EffectiveDate)

	after, _ := s.LookupBenefits("12345")
	assert.Equal(t, before.Version+1, after.Version)
	assert.Equal(t, 10.0, after.Benefits["401k"]["contribution_rate"])
	assert.Equal(t, "2026-11-01", after.Benefits["401k"]["pending_effective_date"])
	assert.Equal(t, 8.0, before.Benefits["401k"]["contribution_rate"])
}

func TestUpdateWithoutBenefitsRecord(t *testing.T) {
	s := newTestStore(t)
	res, err := s.Update(context.Background(), "67890", "medical", map[string]any{"coverage_tier": "family"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "no benefits on file", res.Reason)
}

func TestConcurrentReadsDuringUpdates(t *testing.T) {
	s := newTestStore(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = s.Update(context.Background(), "12345", "401k", map[string]any{"contribution_rate": 9.0})
		}()
		go func() {
			defer wg.Done()
			_, ok := s.LookupBenefits("12345")
			assert.True(t, ok)
		}()
	}
	wg.Wait()

	rec, _ := s.LookupBenefits("12345")
	assert.Equal(t, 9, rec.Version)
}

func TestNewStoreRejectsDuplicateIDs(t *testing.T) {
	_, err := NewStore(&Fixtures{Employees: []model.EmployeeRecord{{ID: "1"}, {ID: "1"}}})
	assert.Error(t, err)
}

func TestNewStoreRejectsOrphanBenefits(t *testing.T) {
	_, err := NewStore(&Fixtures{
		Employees: []model.EmployeeRecord{{ID: "1"}},
		Benefits:  []model.BenefitsRecord{{EmployeeID: "2"}},
	})
	assert.Error(t, err)
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), model.RecordsConfig{Backend: "mongo"})
	assert.Error(t, err)
}

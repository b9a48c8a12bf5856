package records

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hr-benefits-assistant/server/internal/agent/model"
)

func TestSQLiteBackendSeedsAndPersistsUpdates(t *testing.T) {
	ctx := context.Background()
	cfg := model.RecordsConfig{Backend: "sqlite", DSN: filepath.Join(t.TempDir(), "records", "benefits.db")}
	clock := WithClock(func() time.Time { return fixedNow })

	s, err := Open(ctx, cfg, clock)
	require.NoError(t, err)

	assert.Len(t, s.LookupEmployees(), 4)
	rules := s.LookupRules()
	require.Contains(t, rules, "hsa")
	require.NotNil(t, rules["hsa"].MinimumHours)
	assert.Equal(t, 30, *rules["hsa"].MinimumHours)

	res, err := s.Update(ctx, "12345", "401k", map[string]any{"contribution_rate": 12.0})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.NoError(t, s.Close())

	reopened, err := Open(ctx, cfg, clock)
	require.NoError(t, err)
	defer reopened.Close()

	rec, ok := reopened.LookupBenefits("12345")
	require.True(t, ok)
	assert.Equal(t, 2, rec.Version)
	assert.Equal(t, 12.0, rec.Benefits["401k"]["contribution_rate"])
	assert.Equal(t, fixedNow, rec.UpdatedAt)

	emp := findEmployee(t, reopened.LookupEmployees(), "54321")
	require.NotNil(t, emp.WeeklyHours)
	assert.Equal(t, 20, *emp.WeeklyHours)
	assert.Equal(t, model.PartTime, emp.EmploymentStatus)
}

func TestRebind(t *testing.T) {
	pg := &sqlStore{driver: driverPostgres}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", pg.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))

	lite := &sqlStore{driver: driverSQLite}
	assert.Equal(t, "x = ?", lite.rebind("x = ?"))
}

func findEmployee(t *testing.T, employees []model.EmployeeRecord, id string) model.EmployeeRecord {
	t.Helper()
	for _, e := range employees {
		if e.ID == id {
			return e
		}
	}
	t.Fatalf("employee %s not found", id)
	return model.EmployeeRecord{}
}

package conversations

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hr-benefits-assistant/server/internal/agent/model"
	"github.com/hr-benefits-assistant/server/internal/agent/repo"
)

var (
	fixedNow = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	john     = &model.EmployeeRecord{ID: "12345", Name: "John Smith"}
)

func newManager() (*SessionManager, *repo.MemorySessionRepository) {
	r := repo.NewMemorySessionRepository(0)
	return NewSessionManager(r, model.SessionConfig{ContextTurns: 2}, WithClock(func() time.Time { return fixedNow })), r
}

func TestAdvanceStage(t *testing.T) {
	matched := model.Resolution{Outcome: model.ResolutionMatched, Employee: john}
	ambiguous := model.Resolution{Outcome: model.ResolutionAmbiguous, Candidates: 2}

	tests := []struct {
		name       string
		stage      model.Stage
		resume     model.Stage
		identified bool
		turn       model.Turn
		wantStage  model.Stage
		wantResume model.Stage
	}{
		{"resolved moves to inquiry", model.StageIdentification, "", true,
			model.Turn{Classification: model.Classification{Intent: model.IntentBenefitsQuery}, Resolution: matched},
			model.StageBenefitsInquiry, ""},
		{"unidentified stays", model.StageIdentification, "", false,
			model.Turn{Classification: model.Classification{Intent: model.IntentBenefitsQuery}},
			model.StageIdentification, ""},
		{"update intent when identified", model.StageBenefitsInquiry, "", true,
			model.Turn{Classification: model.Classification{Intent: model.IntentBenefitsUpdate}},
			model.StageUpdateFlow, ""},
		{"update intent when unidentified", model.StageIdentification, "", false,
			model.Turn{Classification: model.Classification{Intent: model.IntentBenefitsUpdate}},
			model.StageIdentification, ""},
		{"update flow is sticky", model.StageUpdateFlow, "", true,
			model.Turn{Classification: model.Classification{Intent: model.IntentBenefitsQuery}},
			model.StageUpdateFlow, ""},
		{"clarification remembers stage", model.StageUpdateFlow, "", true,
			model.Turn{Classification: model.Classification{Intent: model.IntentClarificationNeeded}},
			model.StageClarification, model.StageUpdateFlow},
		{"ambiguity enters clarification", model.StageIdentification, "", false,
			model.Turn{Classification: model.Classification{Intent: model.IntentEmployeeIdentification}, Resolution: ambiguous},
			model.StageClarification, model.StageIdentification},
		{"ambiguity after identification is ignored", model.StageBenefitsInquiry, "", true,
			model.Turn{Classification: model.Classification{Intent: model.IntentBenefitsQuery}, Resolution: ambiguous},
			model.StageBenefitsInquiry, ""},
		{"repeated clarification keeps resume", model.StageClarification, model.StageBenefitsInquiry, true,
			model.Turn{Classification: model.Classification{Intent: model.IntentClarificationNeeded}},
			model.StageClarification, model.StageBenefitsInquiry},
		{"clear intent resumes", model.StageClarification, model.StageBenefitsInquiry, true,
			model.Turn{Classification: model.Classification{Intent: model.IntentEligibilityCheck}},
			model.StageBenefitsInquiry, ""},
		{"resume to identification then resolve", model.StageClarification, model.StageIdentification, true,
			model.Turn{Classification: model.Classification{Intent: model.IntentEmployeeIdentification}, Resolution: matched},
			model.StageBenefitsInquiry, ""},
		{"degraded never moves", model.StageBenefitsInquiry, "", true,
			model.Turn{Classification: model.Classification{Intent: model.IntentClarificationNeeded, Degraded: true}, Degraded: true},
			model.StageBenefitsInquiry, ""},
		{"empty stage defaults", "", "", false,
			model.Turn{Classification: model.Classification{Intent: model.IntentGeneralQuestion}},
			model.StageIdentification, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &model.SessionState{ID: "s", Stage: tt.stage, ResumeStage: tt.resume}
			if tt.identified {
				state.Employee = john
			}
			turn := tt.turn
			stage, resume := AdvanceStage(state, &turn)
			assert.Equal(t, tt.wantStage, stage)
			assert.Equal(t, tt.wantResume, resume)
		})
	}
}

func TestBeginCreatesSession(t *testing.T) {
	m, r := newManager()
	ctx := context.Background()

	l, err := m.Begin(ctx, "")
	require.NoError(t, err)
	defer l.Release()
	assert.True(t, l.Created)
	assert.NotEmpty(t, l.State.ID)
	assert.Equal(t, model.StageIdentification, l.State.Stage)

	_, found, err := r.Get(ctx, l.State.ID)
	require.NoError(t, err)
	assert.True(t, found)
}

// newSession creates a session and returns its server-issued id.
func newSession(t *testing.T, m *SessionManager) string {
	t.Helper()
	l, err := m.Begin(context.Background(), "")
	require.NoError(t, err)
	defer l.Release()
	return l.State.ID
}

func TestBeginIssuesNewIDForUnknownSession(t *testing.T) {
	m, r := newManager()
	ctx := context.Background()

	l, err := m.Begin(ctx, "client-chosen")
	require.NoError(t, err)
	defer l.Release()
	assert.True(t, l.Created)
	assert.NotEqual(t, "client-chosen", l.State.ID)
	assert.NotEmpty(t, l.State.ID)

	_, found, err := r.Get(ctx, "client-chosen")
	require.NoError(t, err)
	assert.False(t, found)
	assert.NotContains(t, m.gates, "client-chosen")
}

func TestCommitPersistsEmployeeAndStage(t *testing.T) {
	m, r := newManager()
	ctx := context.Background()

	id := newSession(t, m)
	l, err := m.Begin(ctx, id)
	require.NoError(t, err)
	require.NoError(t, l.Commit(ctx, &model.Turn{
		Message:        "I'm 12345, what's my 401k?",
		Reply:          "Your rate is 8%.",
		Employee:       john,
		Resolution:     model.Resolution{Outcome: model.ResolutionMatched, Employee: john},
		Classification: model.Classification{Intent: model.IntentBenefitsQuery},
		Result:         model.HandlerResult{Action: model.ActionBenefitsDisplayed},
	}))
	l.Release()

	for range 3 {
		l, err = m.Begin(ctx, id)
		require.NoError(t, err)
		assert.False(t, l.Created)
		require.NotNil(t, l.State.Employee, "employee context persists")
		require.NoError(t, l.Commit(ctx, &model.Turn{
			Message:        "and dental?",
			Employee:       l.State.Employee,
			Classification: model.Classification{Intent: model.IntentBenefitsQuery},
		}))
		l.Release()
	}

	state, found, err := r.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "12345", state.Employee.ID)
	assert.Equal(t, model.StageBenefitsInquiry, state.Stage)
	require.Len(t, state.Turns, 4)
	assert.Equal(t, model.ActionBenefitsDisplayed, state.Turns[0].Action)
	assert.Equal(t, fixedNow, state.Turns[0].Timestamp)

	l, err = m.Begin(ctx, id)
	require.NoError(t, err)
	defer l.Release()
	assert.Len(t, l.Context().RecentTurns, 2)
	assert.Equal(t, "John Smith", l.Context().EmployeeName)
}

func TestTurnsOfOneSessionAreSerialised(t *testing.T) {
	m, _ := newManager()
	ctx := context.Background()

	id := newSession(t, m)
	var active, maxActive int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l, err := m.Begin(ctx, id)
			if !assert.NoError(t, err) {
				return
			}
			defer l.Release()
			n := atomic.AddInt32(&active, 1)
			for {
				old := atomic.LoadInt32(&maxActive)
				if n <= old || atomic.CompareAndSwapInt32(&maxActive, old, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxActive)
	assert.Empty(t, m.gates, "gates are dropped once idle")
}

func TestDifferentSessionsDoNotContend(t *testing.T) {
	m, _ := newManager()
	ctx := context.Background()

	a, b := newSession(t, m), newSession(t, m)

	held, err := m.Begin(ctx, a)
	require.NoError(t, err)
	defer held.Release()

	cctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	other, err := m.Begin(cctx, b)
	require.NoError(t, err)
	other.Release()
}

func TestBeginHonoursContext(t *testing.T) {
	m, _ := newManager()
	ctx := context.Background()
	id := newSession(t, m)

	held, err := m.Begin(ctx, id)
	require.NoError(t, err)

	cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = m.Begin(cctx, id)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	held.Release()
	held.Release()
	l, err := m.Begin(ctx, id)
	require.NoError(t, err)
	l.Release()
}

func TestResetClearsSession(t *testing.T) {
	m, r := newManager()
	ctx := context.Background()

	id := newSession(t, m)
	l, err := m.Begin(ctx, id)
	require.NoError(t, err)
	require.NoError(t, l.Commit(ctx, &model.Turn{Employee: john, Classification: model.Classification{Intent: model.IntentBenefitsQuery}}))
	l.Release()

	require.NoError(t, m.Reset(ctx, id))
	_, found, err := r.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, found)

	l, err = m.Begin(ctx, id)
	require.NoError(t, err)
	defer l.Release()
	assert.True(t, l.Created)
	assert.NotEqual(t, id, l.State.ID)
	assert.Nil(t, l.State.Employee)
}

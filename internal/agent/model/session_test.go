package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIntentIsVerbatim(t *testing.T) {
	for _, it := range Intents {
		got, ok := ParseIntent(string(it))
		require.True(t, ok)
		assert.Equal(t, it, got)
	}
	_, ok := ParseIntent("Benefits_Query")
	assert.False(t, ok)
	_, ok = ParseIntent("benefits query")
	assert.False(t, ok)
}

func TestSessionContextTrimsTurns(t *testing.T) {
	now := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	s := NewSessionState("s-1", now)
	for i := 0; i < 7; i++ {
		s.Turns = append(s.Turns, TurnRecord{Message: string(rune('a' + i))})
	}
	s.Employee = &EmployeeRecord{ID: "12345", Name: "John Smith"}

	sc := s.Context(3)
	require.Len(t, sc.RecentTurns, 3)
	assert.Equal(t, "e", sc.RecentTurns[0].Message)
	assert.True(t, sc.Identified)
	assert.Equal(t, "John Smith", sc.EmployeeName)
	assert.Equal(t, StageIdentification, sc.Stage)
}

func TestSessionCloneIsDeep(t *testing.T) {
	s := NewSessionState("s-1", time.Now())
	s.Employee = &EmployeeRecord{ID: "1"}
	s.Turns = []TurnRecord{{Message: "hi"}}

	c := s.Clone()
	c.Employee.ID = "2"
	c.Turns[0].Message = "changed"

	assert.Equal(t, "1", s.Employee.ID)
	assert.Equal(t, "hi", s.Turns[0].Message)
}

func TestBenefitsRecordClone(t *testing.T) {
	rec := BenefitsRecord{
		EmployeeID: "12345",
		Benefits:   map[string]BenefitAttributes{"401k": {"contribution_rate": 8.0}},
	}
	c := rec.Clone()
	c.Benefits["401k"]["contribution_rate"] = 10.0
	assert.Equal(t, 8.0, rec.Benefits["401k"]["contribution_rate"])
}

func TestComputeCost(t *testing.T) {
	_, ok := ComputeCost("gemini-2.5-flash", nil)
	assert.False(t, ok)
}

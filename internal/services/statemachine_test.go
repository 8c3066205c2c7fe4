package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"election-system/internal/database"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestCanTransition(t *testing.T) {
	m := NewStateMachine(time.Hour)

	cases := []struct {
		from    database.ElectionStatus
		to      database.ElectionStatus
		allowed bool
	}{
		{database.ElectionStatusDraft, database.ElectionStatusScheduled, true},
		{database.ElectionStatusDraft, database.ElectionStatusCancelled, true},
		{database.ElectionStatusDraft, database.ElectionStatusActive, false},
		{database.ElectionStatusScheduled, database.ElectionStatusActive, true},
		{database.ElectionStatusScheduled, database.ElectionStatusCancelled, true},
		{database.ElectionStatusScheduled, database.ElectionStatusCompleted, false},
		{database.ElectionStatusActive, database.ElectionStatusCompleted, true},
		{database.ElectionStatusActive, database.ElectionStatusCancelled, false},
		{database.ElectionStatusCompleted, database.ElectionStatusActive, false},
		{database.ElectionStatusCancelled, database.ElectionStatusDraft, false},
	}

	for _, tc := range cases {
		t.Run(string(tc.from)+"_to_"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.allowed, m.CanTransition(tc.from, tc.to))
		})
	}
}

func TestClampStart(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewStateMachine(time.Hour)
	m.now = fixedClock(now)

	t.Run("past start is clamped to now", func(t *testing.T) {
		e := &database.Election{StartTime: now.Add(-2 * time.Hour)}
		start, adjusted := m.ClampStart(e)
		assert.True(t, adjusted)
		assert.Equal(t, now, start)
	})

	t.Run("future start is untouched", func(t *testing.T) {
		future := now.Add(3 * time.Hour)
		e := &database.Election{StartTime: future}
		start, adjusted := m.ClampStart(e)
		assert.False(t, adjusted)
		assert.Equal(t, future, start)
	})
}

func TestCanDeploy(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewStateMachine(time.Hour)
	m.now = fixedClock(now)

	t.Run("draft with a wide window deploys", func(t *testing.T) {
		e := &database.Election{
			Status:    database.ElectionStatusDraft,
			StartTime: now.Add(time.Hour),
			EndTime:   now.Add(5 * time.Hour),
		}
		assert.NoError(t, m.CanDeploy(e))
	})

	t.Run("already published is a conflict", func(t *testing.T) {
		e := &database.Election{
			Status:        database.ElectionStatusScheduled,
			LedgerAddress: "0xabc",
			StartTime:     now.Add(time.Hour),
			EndTime:       now.Add(5 * time.Hour),
		}
		err := m.CanDeploy(e)
		var conflict *ConflictError
		require.ErrorAs(t, err, &conflict)
	})

	t.Run("active status cannot deploy", func(t *testing.T) {
		e := &database.Election{
			Status:    database.ElectionStatusActive,
			StartTime: now.Add(time.Hour),
			EndTime:   now.Add(5 * time.Hour),
		}
		var conflict *ConflictError
		require.ErrorAs(t, m.CanDeploy(e), &conflict)
	})

	t.Run("window measured from the clamped start", func(t *testing.T) {
		// Nominal window is four hours, but the start is three and a half
		// hours in the past, so only thirty minutes remain.
		e := &database.Election{
			Status:    database.ElectionStatusDraft,
			StartTime: now.Add(-210 * time.Minute),
			EndTime:   now.Add(30 * time.Minute),
		}
		var validation *ValidationError
		require.ErrorAs(t, m.CanDeploy(e), &validation)
	})
}

func TestCanActivate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewStateMachine(time.Hour)
	m.now = fixedClock(now)

	t.Run("scheduled past start", func(t *testing.T) {
		e := &database.Election{Status: database.ElectionStatusScheduled, StartTime: now.Add(-time.Minute)}
		assert.NoError(t, m.CanActivate(e))
	})

	t.Run("before start time", func(t *testing.T) {
		e := &database.Election{Status: database.ElectionStatusScheduled, StartTime: now.Add(time.Minute)}
		var conflict *ConflictError
		require.ErrorAs(t, m.CanActivate(e), &conflict)
		assert.Contains(t, conflict.Message, "start time")
	})

	t.Run("draft cannot activate", func(t *testing.T) {
		e := &database.Election{Status: database.ElectionStatusDraft, StartTime: now.Add(-time.Minute)}
		var conflict *ConflictError
		require.ErrorAs(t, m.CanActivate(e), &conflict)
	})
}

func TestIsVotingOpen(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewStateMachine(time.Hour)
	m.now = fixedClock(now)

	t.Run("active before end", func(t *testing.T) {
		e := &database.Election{Status: database.ElectionStatusActive, EndTime: now.Add(time.Hour)}
		assert.NoError(t, m.IsVotingOpen(e))
	})

	t.Run("active past end", func(t *testing.T) {
		e := &database.Election{Status: database.ElectionStatusActive, EndTime: now.Add(-time.Second)}
		var conflict *ConflictError
		require.ErrorAs(t, m.IsVotingOpen(e), &conflict)
	})

	t.Run("scheduled is closed", func(t *testing.T) {
		e := &database.Election{Status: database.ElectionStatusScheduled, EndTime: now.Add(time.Hour)}
		var conflict *ConflictError
		require.ErrorAs(t, m.IsVotingOpen(e), &conflict)
	})
}

func TestEditDeleteCancelGuards(t *testing.T) {
	m := NewStateMachine(time.Hour)

	draft := &database.Election{Status: database.ElectionStatusDraft}
	scheduled := &database.Election{Status: database.ElectionStatusScheduled}
	active := &database.Election{Status: database.ElectionStatusActive}

	assert.NoError(t, m.CanEdit(draft))
	assert.Error(t, m.CanEdit(scheduled))

	assert.NoError(t, m.CanDelete(draft))
	assert.Error(t, m.CanDelete(active))

	assert.NoError(t, m.CanCancel(draft))
	assert.NoError(t, m.CanCancel(scheduled))
	assert.Error(t, m.CanCancel(active))
}

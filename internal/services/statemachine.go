package services

import (
	"fmt"
	"time"

	"election-system/internal/database"
)

// StateMachine holds the pure transition and time-window rules for election
// records. All guard violations are rejected preconditions; the only silent
// adjustment the machine ever performs is the documented start-time clamp.
type StateMachine struct {
	minDuration time.Duration
	now         func() time.Time
}

// NewStateMachine creates a state machine with the configured minimum
// election duration.
func NewStateMachine(minDuration time.Duration) *StateMachine {
	return &StateMachine{
		minDuration: minDuration,
		now:         time.Now,
	}
}

// MinDuration returns the configured minimum voting window.
func (m *StateMachine) MinDuration() time.Duration {
	return m.minDuration
}

var validTransitions = map[database.ElectionStatus][]database.ElectionStatus{
	database.ElectionStatusDraft:     {database.ElectionStatusScheduled, database.ElectionStatusCancelled},
	database.ElectionStatusScheduled: {database.ElectionStatusActive, database.ElectionStatusCancelled},
	database.ElectionStatusActive:    {database.ElectionStatusCompleted},
}

// CanTransition reports whether moving from one status to another is a legal
// forward step. CANCELLED is reachable only from DRAFT and SCHEDULED.
func (m *StateMachine) CanTransition(from, to database.ElectionStatus) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ClampStart returns the effective start time used for deployment:
// max(startTime, now). The second return reports whether the clamp applied,
// in which case the adjustment must be persisted back to the local record.
func (m *StateMachine) ClampStart(e *database.Election) (time.Time, bool) {
	now := m.now()
	if e.StartTime.Before(now) {
		return now, true
	}
	return e.StartTime, false
}

// CanDeploy checks the deployment guard: deployable status, no ledger address
// yet, and a voting window of at least the minimum duration measured from the
// clamped start.
func (m *StateMachine) CanDeploy(e *database.Election) error {
	if e.Status != database.ElectionStatusDraft && e.Status != database.ElectionStatusScheduled {
		return &ConflictError{Message: fmt.Sprintf("election in status %s cannot be deployed", e.Status)}
	}

	if e.LedgerAddress != "" {
		return &ConflictError{Message: "election is already published to the ledger"}
	}

	effectiveStart, _ := m.ClampStart(e)
	if e.EndTime.Sub(effectiveStart) < m.minDuration {
		return NewValidationError(fmt.Sprintf(
			"voting window must be at least %s from the effective start", m.minDuration))
	}

	return nil
}

// CanActivate checks the activation guard: SCHEDULED and past the start time.
func (m *StateMachine) CanActivate(e *database.Election) error {
	if e.Status != database.ElectionStatusScheduled {
		return &ConflictError{Message: fmt.Sprintf("election in status %s cannot be activated", e.Status)}
	}

	if m.now().Before(e.StartTime) {
		return &ConflictError{Message: "election start time has not been reached"}
	}

	return nil
}

// CanEdit permits record mutation only while the election is a draft.
func (m *StateMachine) CanEdit(e *database.Election) error {
	if e.Status != database.ElectionStatusDraft {
		return &ConflictError{Message: fmt.Sprintf("election in status %s cannot be edited", e.Status)}
	}
	return nil
}

// CanDelete permits deletion only while the election is a draft; deletion
// cascades to dependent voters, ballots and votes.
func (m *StateMachine) CanDelete(e *database.Election) error {
	if e.Status != database.ElectionStatusDraft {
		return &ConflictError{Message: fmt.Sprintf("election in status %s cannot be deleted", e.Status)}
	}
	return nil
}

// CanCancel permits the CANCELLED escape from DRAFT and SCHEDULED only.
func (m *StateMachine) CanCancel(e *database.Election) error {
	if !m.CanTransition(e.Status, database.ElectionStatusCancelled) {
		return &ConflictError{Message: fmt.Sprintf("election in status %s cannot be cancelled", e.Status)}
	}
	return nil
}

// IsVotingOpen reports whether a vote can be accepted right now: ACTIVE and
// before the end time.
func (m *StateMachine) IsVotingOpen(e *database.Election) error {
	if e.Status != database.ElectionStatusActive {
		return &ConflictError{Message: fmt.Sprintf("election in status %s is not accepting votes", e.Status)}
	}

	if m.now().After(e.EndTime) {
		return &ConflictError{Message: "election voting window has closed"}
	}

	return nil
}

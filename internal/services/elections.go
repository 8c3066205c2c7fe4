package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"election-system/internal/database"
	"election-system/pkg/logger"
)

// ElectionManager owns election CRUD and ballot versioning. Ledger concerns
// live in the deployment orchestrator; this service only touches local state.
type ElectionManager struct {
	elections         ElectionStore
	ballots           BallotStore
	machine           *StateMachine
	allowSameDayStart bool
	log               *logger.Logger
	now               func() time.Time
}

// NewElectionManager creates an election manager. allowSameDayStart decides
// whether an election may be created with a start time on the current day.
func NewElectionManager(elections ElectionStore, ballots BallotStore, machine *StateMachine, allowSameDayStart bool, log *logger.Logger) *ElectionManager {
	return &ElectionManager{
		elections:         elections,
		ballots:           ballots,
		machine:           machine,
		allowSameDayStart: allowSameDayStart,
		log:               log.WithComponent("elections"),
		now:               time.Now,
	}
}

// CreateElectionRequest carries the caller-supplied election fields.
type CreateElectionRequest struct {
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	StartTime          time.Time  `json:"start_time"`
	EndTime            time.Time  `json:"end_time"`
	Timezone           string     `json:"timezone"`
	MaxVotersCount     int        `json:"max_voters_count"`
	RealTimeResults    bool       `json:"real_time_results"`
	ResultsReleaseTime *time.Time `json:"results_release_time,omitempty"`
	IsPublic           bool       `json:"is_public"`
	Category           string     `json:"category"`
}

func (m *ElectionManager) validate(req *CreateElectionRequest) error {
	var violations []string

	if strings.TrimSpace(req.Title) == "" {
		violations = append(violations, "title is required")
	}
	if req.StartTime.IsZero() || req.EndTime.IsZero() {
		violations = append(violations, "start_time and end_time are required")
	} else {
		if !req.EndTime.After(req.StartTime) {
			violations = append(violations, "end_time must be after start_time")
		} else if req.EndTime.Sub(req.StartTime) < m.machine.MinDuration() {
			violations = append(violations, fmt.Sprintf("voting window must be at least %s", m.machine.MinDuration()))
		}
		if req.EndTime.Before(m.now()) {
			violations = append(violations, "end_time is in the past")
		}
		if !m.allowSameDayStart {
			ny, nm, nd := m.now().Date()
			sy, sm, sd := req.StartTime.Date()
			if ny == sy && nm == sm && nd == sd {
				violations = append(violations, "start_time must not be on the current day")
			}
		}
	}
	if req.MaxVotersCount < 0 {
		violations = append(violations, "max_voters_count must not be negative")
	}
	if req.Timezone != "" {
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			violations = append(violations, fmt.Sprintf("unknown timezone %q", req.Timezone))
		}
	}

	if len(violations) > 0 {
		return &ValidationError{Message: "election is invalid", Violations: violations}
	}
	return nil
}

// Create stores a new election in draft status.
func (m *ElectionManager) Create(ctx context.Context, creatorID string, req CreateElectionRequest) (*database.Election, error) {
	if err := m.validate(&req); err != nil {
		return nil, err
	}

	now := m.now()
	election := &database.Election{
		ID:                 uuid.New().String(),
		CreatorID:          creatorID,
		Title:              strings.TrimSpace(req.Title),
		Description:        req.Description,
		StartTime:          req.StartTime,
		EndTime:            req.EndTime,
		Timezone:           req.Timezone,
		MaxVotersCount:     req.MaxVotersCount,
		Status:             database.ElectionStatusDraft,
		RealTimeResults:    req.RealTimeResults,
		ResultsReleaseTime: req.ResultsReleaseTime,
		IsPublic:           req.IsPublic,
		Category:           req.Category,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if election.Timezone == "" {
		election.Timezone = "UTC"
	}

	if err := m.elections.Create(ctx, election); err != nil {
		return nil, err
	}
	m.log.Info("Election created - id: %s, title: %s", election.ID, election.Title)
	return election, nil
}

// Get returns one election.
func (m *ElectionManager) Get(ctx context.Context, id string) (*database.Election, error) {
	election, err := m.elections.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Resource: "election", ID: id}
		}
		return nil, err
	}
	return election, nil
}

// List returns a page of elections.
func (m *ElectionManager) List(ctx context.Context, limit, offset int) ([]database.Election, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return m.elections.List(ctx, limit, offset)
}

// Update replaces the mutable fields of a draft election. Published
// elections are immutable through this path.
func (m *ElectionManager) Update(ctx context.Context, id, requesterID string, req CreateElectionRequest) (*database.Election, error) {
	election, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if requesterID != "" && election.CreatorID != requesterID {
		return nil, &AuthorizationError{Message: "only the election creator may edit it"}
	}
	if err := m.machine.CanEdit(election); err != nil {
		return nil, err
	}
	if err := m.validate(&req); err != nil {
		return nil, err
	}

	election.Title = strings.TrimSpace(req.Title)
	election.Description = req.Description
	election.StartTime = req.StartTime
	election.EndTime = req.EndTime
	if req.Timezone != "" {
		election.Timezone = req.Timezone
	}
	election.MaxVotersCount = req.MaxVotersCount
	election.RealTimeResults = req.RealTimeResults
	election.ResultsReleaseTime = req.ResultsReleaseTime
	election.IsPublic = req.IsPublic
	election.Category = req.Category
	election.UpdatedAt = m.now()

	if err := m.elections.Update(ctx, election); err != nil {
		return nil, err
	}
	return election, nil
}

// Delete removes a draft election and everything hanging off it.
func (m *ElectionManager) Delete(ctx context.Context, id, requesterID string) error {
	election, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	if requesterID != "" && election.CreatorID != requesterID {
		return &AuthorizationError{Message: "only the election creator may delete it"}
	}
	if err := m.machine.CanDelete(election); err != nil {
		return err
	}
	return m.elections.DeleteDraftCascade(ctx, id)
}

// Cancel aborts an election that has not completed. The ledger contract, if
// any, is left behind; a cancelled election simply stops accepting votes.
func (m *ElectionManager) Cancel(ctx context.Context, id, requesterID string) (*database.Election, error) {
	election, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if requesterID != "" && election.CreatorID != requesterID {
		return nil, &AuthorizationError{Message: "only the election creator may cancel it"}
	}
	if err := m.machine.CanCancel(election); err != nil {
		return nil, err
	}

	election.Status = database.ElectionStatusCancelled
	election.UpdatedAt = m.now()
	if err := m.elections.Update(ctx, election); err != nil {
		return nil, err
	}
	m.log.Info("Election cancelled - id: %s", id)
	return election, nil
}

// CompleteIfExpired flips an active election whose end time has passed to
// completed. Called lazily from read paths, so no background sweeper is
// needed for correctness.
func (m *ElectionManager) CompleteIfExpired(ctx context.Context, election *database.Election) error {
	if election.Status != database.ElectionStatusActive || m.now().Before(election.EndTime) {
		return nil
	}
	election.Status = database.ElectionStatusCompleted
	election.UpdatedAt = m.now()
	if err := m.elections.Update(ctx, election); err != nil {
		return err
	}
	m.log.Info("Election completed - id: %s", election.ID)
	return nil
}

// SetBallotRequest carries a new ballot version.
type SetBallotRequest struct {
	IsCandidateList bool                `json:"is_candidate_list"`
	Questions       []database.Question `json:"questions"`
}

// SetBallot publishes a new ballot version for an election. A regular ballot
// is frozen once the election leaves draft; a candidate-list ballot may keep
// taking new versions through scheduling and active voting so late nominees
// can be added.
func (m *ElectionManager) SetBallot(ctx context.Context, electionID, requesterID string, req SetBallotRequest) (*database.Ballot, error) {
	election, err := m.Get(ctx, electionID)
	if err != nil {
		return nil, err
	}
	if requesterID != "" && election.CreatorID != requesterID {
		return nil, &AuthorizationError{Message: "only the election creator may edit the ballot"}
	}
	if !ballotEditable(election.Status, req.IsCandidateList) {
		return nil, &ConflictError{Message: fmt.Sprintf("ballot is frozen once the election is %s", election.Status)}
	}
	if err := validateQuestions(req.Questions); err != nil {
		return nil, err
	}

	ballot := &database.Ballot{
		ID:              uuid.New().String(),
		ElectionID:      electionID,
		IsActive:        true,
		IsCandidateList: req.IsCandidateList,
		Questions:       req.Questions,
		CreatedAt:       m.now(),
	}
	if err := m.ballots.CreateVersion(ctx, ballot); err != nil {
		return nil, err
	}
	m.log.Info("Ballot version %d published - election: %s", ballot.Version, electionID)
	return ballot, nil
}

func ballotEditable(status database.ElectionStatus, candidateList bool) bool {
	switch status {
	case database.ElectionStatusDraft:
		return true
	case database.ElectionStatusScheduled, database.ElectionStatusActive:
		return candidateList
	default:
		return false
	}
}

// ActiveBallot returns the election's current ballot.
func (m *ElectionManager) ActiveBallot(ctx context.Context, electionID string) (*database.Ballot, error) {
	ballot, err := m.ballots.GetActive(ctx, electionID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Resource: "ballot", ID: electionID}
		}
		return nil, err
	}
	return ballot, nil
}

// BallotVersions returns all ballot versions, newest first.
func (m *ElectionManager) BallotVersions(ctx context.Context, electionID string) ([]database.Ballot, error) {
	return m.ballots.ListVersions(ctx, electionID)
}

func validateQuestions(questions []database.Question) error {
	var violations []string

	if len(questions) == 0 {
		violations = append(violations, "ballot must contain at least one question")
	}

	ids := make(map[string]bool, len(questions))
	for i, q := range questions {
		label := q.ID
		if label == "" {
			label = fmt.Sprintf("#%d", i+1)
			violations = append(violations, fmt.Sprintf("question %s: id is required", label))
		}
		if ids[q.ID] {
			violations = append(violations, fmt.Sprintf("question %s: duplicate id", label))
		}
		ids[q.ID] = true

		if strings.TrimSpace(q.Title) == "" {
			violations = append(violations, fmt.Sprintf("question %s: title is required", label))
		}

		switch q.Type {
		case database.QuestionTypeSingle, database.QuestionTypeRanking:
			if len(q.Options) < 2 {
				violations = append(violations, fmt.Sprintf("question %s: at least two options are required", label))
			}
		case database.QuestionTypeMultiple:
			if len(q.Options) < 2 {
				violations = append(violations, fmt.Sprintf("question %s: at least two options are required", label))
			}
			if q.MaxSelections > len(q.Options) {
				violations = append(violations, fmt.Sprintf("question %s: max_selections exceeds option count", label))
			}
		case database.QuestionTypeText:
			if q.MaxLength < 0 {
				violations = append(violations, fmt.Sprintf("question %s: max_length must not be negative", label))
			}
		default:
			violations = append(violations, fmt.Sprintf("question %s: unsupported type %q", label, q.Type))
		}

		seen := make(map[string]bool, len(q.Options))
		for _, opt := range q.Options {
			if seen[opt] {
				violations = append(violations, fmt.Sprintf("question %s: duplicate option %q", label, opt))
			}
			seen[opt] = true
		}
	}

	if len(violations) > 0 {
		return &ValidationError{Message: "ballot is invalid", Violations: violations}
	}
	return nil
}

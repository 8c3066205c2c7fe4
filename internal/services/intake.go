package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"election-system/internal/database"
	"election-system/internal/ledger"
	"election-system/pkg/logger"
)

// VoteIntakeEngine validates and records votes. Preconditions are checked in
// a fixed order and the first failure wins; ballot answer validation runs
// after all preconditions pass and accumulates every violation before
// rejecting the submission as a whole.
type VoteIntakeEngine struct {
	elections ElectionStore
	voters    VoterStore
	ballots   BallotStore
	votes     VoteStore
	registry  *VoterRegistry
	machine   *StateMachine
	ledger    Ledger
	log       *logger.Logger
	now       func() time.Time
}

// NewVoteIntakeEngine creates an intake engine.
func NewVoteIntakeEngine(elections ElectionStore, voters VoterStore, ballots BallotStore, votes VoteStore, registry *VoterRegistry, machine *StateMachine, l Ledger, log *logger.Logger) *VoteIntakeEngine {
	return &VoteIntakeEngine{
		elections: elections,
		voters:    voters,
		ballots:   ballots,
		votes:     votes,
		registry:  registry,
		machine:   machine,
		ledger:    l,
		log:       log.WithComponent("intake"),
		now:       time.Now,
	}
}

// CastRequest is one vote submission through the server-signed path.
type CastRequest struct {
	ElectionID string            `json:"election_id"`
	UniqueID   string            `json:"unique_id"`
	Secret     string            `json:"secret"`
	Choices    []database.Choice `json:"choices"`
}

// PrepareRequest asks for an unsigned transaction the voter signs with
// their own wallet.
type PrepareRequest struct {
	ElectionID string            `json:"election_id"`
	UniqueID   string            `json:"unique_id"`
	Secret     string            `json:"secret"`
	Choices    []database.Choice `json:"choices"`
}

// PreparedVote pairs a pending local vote with the unsigned call the
// client must sign and broadcast.
type PreparedVote struct {
	VoteID string              `json:"vote_id"`
	Call   ledger.UnsignedCall `json:"call"`
}

// Cast validates a submission, stores it, and anchors it on the ledger when
// the election has a contract. The stored vote flips to confirmed only after
// the ledger transaction is mined; without a contract it stays pending until
// an administrator confirms it.
func (e *VoteIntakeEngine) Cast(ctx context.Context, req CastRequest) (*database.Vote, error) {
	election, voter, ballot, err := e.admit(ctx, req.ElectionID, req.UniqueID, req.Secret)
	if err != nil {
		return nil, err
	}

	if err := e.validateChoices(ballot, req.Choices); err != nil {
		return nil, err
	}

	vote := e.newVote(election, voter, ballot, req.Choices)

	if err := e.votes.CreateForVoter(ctx, vote); err != nil {
		if errors.Is(err, database.ErrAlreadyVoted) {
			return nil, &ConflictError{Message: "voter has already cast a vote in this election"}
		}
		return nil, err
	}

	if election.LedgerAddress == "" {
		// No contract to anchor against. The vote stays pending until an
		// administrator confirms it.
		e.log.VotingLogger("vote_pending", election.ID, vote.ID, "")
		return vote, nil
	}

	txResult, err := e.ledger.CastVote(ctx, election.LedgerAddress, vote.VoteHash, voter.SecretHash)
	if err != nil {
		if rerr := e.votes.Reject(ctx, vote.ID); rerr != nil {
			e.log.Error("Failed to release vote %s after ledger rejection: %v", vote.ID, rerr)
		}
		return nil, &ExternalLedgerError{Op: "cast", Err: err}
	}

	if err := e.votes.Confirm(ctx, vote.ID, txResult.TxHash, txResult.BlockNumber); err != nil {
		return nil, err
	}

	vote.Status = database.VoteStatusConfirmed
	vote.TxHash = txResult.TxHash
	vote.BlockNumber = txResult.BlockNumber
	e.log.VotingLogger("vote_confirmed", election.ID, vote.ID, txResult.TxHash)
	return vote, nil
}

// Prepare validates a submission and returns an unsigned castVote call plus
// a pending local vote. Record completes the pair once the client has
// broadcast the signed transaction.
func (e *VoteIntakeEngine) Prepare(ctx context.Context, req PrepareRequest) (*PreparedVote, error) {
	election, voter, ballot, err := e.admit(ctx, req.ElectionID, req.UniqueID, req.Secret)
	if err != nil {
		return nil, err
	}

	if election.LedgerAddress == "" {
		return nil, &ConflictError{Message: "election has no ledger contract; use the direct voting endpoint"}
	}

	if err := e.validateChoices(ballot, req.Choices); err != nil {
		return nil, err
	}

	vote := e.newVote(election, voter, ballot, req.Choices)

	call, err := e.ledger.PrepareCastVote(election.LedgerAddress, vote.VoteHash, voter.SecretHash)
	if err != nil {
		return nil, &ExternalLedgerError{Op: "prepare", Err: err}
	}

	if err := e.votes.CreateForVoter(ctx, vote); err != nil {
		if errors.Is(err, database.ErrAlreadyVoted) {
			return nil, &ConflictError{Message: "voter has already cast a vote in this election"}
		}
		return nil, err
	}

	return &PreparedVote{VoteID: vote.ID, Call: *call}, nil
}

// Record confirms a prepared vote after independently verifying the claimed
// transaction on the ledger. The client's word is never taken for success.
func (e *VoteIntakeEngine) Record(ctx context.Context, electionID, voteID, txHash string) (*database.Vote, error) {
	election, err := e.elections.GetByID(ctx, electionID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Resource: "election", ID: electionID}
		}
		return nil, err
	}

	vote, err := e.votes.GetByID(ctx, voteID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Resource: "vote", ID: voteID}
		}
		return nil, err
	}
	if vote.ElectionID != electionID {
		return nil, &NotFoundError{Resource: "vote", ID: voteID}
	}
	if vote.Status != database.VoteStatusPending {
		return nil, &ConflictError{Message: fmt.Sprintf("vote is already %s", vote.Status)}
	}

	receipt, err := e.ledger.VerifyVoteTransaction(ctx, election.LedgerAddress, txHash)
	if err != nil {
		return nil, &ExternalLedgerError{Op: "verify", Err: err}
	}

	if err := e.votes.Confirm(ctx, vote.ID, txHash, receipt.BlockNumber); err != nil {
		return nil, err
	}

	vote.Status = database.VoteStatusConfirmed
	vote.TxHash = txHash
	vote.BlockNumber = receipt.BlockNumber
	e.log.VotingLogger("vote_recorded", electionID, vote.ID, txHash)
	return vote, nil
}

// ConfirmVote marks a pending vote confirmed without a ledger transaction.
// Admin-only escape hatch for elections run off-ledger.
func (e *VoteIntakeEngine) ConfirmVote(ctx context.Context, voteID string) (*database.Vote, error) {
	vote, err := e.votes.GetByID(ctx, voteID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Resource: "vote", ID: voteID}
		}
		return nil, err
	}
	if vote.Status != database.VoteStatusPending {
		return nil, &ConflictError{Message: fmt.Sprintf("vote is already %s", vote.Status)}
	}
	if err := e.votes.Confirm(ctx, vote.ID, vote.TxHash, vote.BlockNumber); err != nil {
		return nil, err
	}
	vote.Status = database.VoteStatusConfirmed
	return vote, nil
}

// RejectVote discards a pending vote and frees the voter to submit again.
func (e *VoteIntakeEngine) RejectVote(ctx context.Context, voteID string) (*database.Vote, error) {
	vote, err := e.votes.GetByID(ctx, voteID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Resource: "vote", ID: voteID}
		}
		return nil, err
	}
	if vote.Status != database.VoteStatusPending {
		return nil, &ConflictError{Message: fmt.Sprintf("vote is already %s", vote.Status)}
	}
	if err := e.votes.Reject(ctx, vote.ID); err != nil {
		return nil, err
	}
	vote.Status = database.VoteStatusRejected
	return vote, nil
}

// admit runs the ordered eligibility checks that gate every submission path.
func (e *VoteIntakeEngine) admit(ctx context.Context, electionID, uniqueID, secret string) (*database.Election, *database.Voter, *database.Ballot, error) {
	election, err := e.elections.GetByID(ctx, electionID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil, nil, &NotFoundError{Resource: "election", ID: electionID}
		}
		return nil, nil, nil, err
	}

	if err := e.machine.IsVotingOpen(election); err != nil {
		return nil, nil, nil, err
	}

	voter, err := e.voters.GetByUniqueID(ctx, electionID, uniqueID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil, nil, &AuthorizationError{Message: "voter credentials are invalid"}
		}
		return nil, nil, nil, err
	}

	if voter.Status != database.VoterStatusVerified && voter.Status != database.VoterStatusActive {
		return nil, nil, nil, &AuthorizationError{Message: "voter is not eligible to vote"}
	}

	if !e.registry.VerifySecret(voter, secret) {
		return nil, nil, nil, &AuthorizationError{Message: "voter credentials are invalid"}
	}

	if voter.HasVoted {
		return nil, nil, nil, &ConflictError{Message: "voter has already cast a vote in this election"}
	}

	ballot, err := e.ballots.GetActive(ctx, electionID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil, nil, &ConflictError{Message: "election has no active ballot"}
		}
		return nil, nil, nil, err
	}

	return election, voter, ballot, nil
}

func (e *VoteIntakeEngine) newVote(election *database.Election, voter *database.Voter, ballot *database.Ballot, choices []database.Choice) *database.Vote {
	submittedAt := e.now()
	vote := &database.Vote{
		ID:          uuid.New().String(),
		ElectionID:  election.ID,
		VoterID:     voter.ID,
		BallotID:    ballot.ID,
		Choices:     choices,
		Status:      database.VoteStatusPending,
		SubmittedAt: submittedAt,
		CreatedAt:   submittedAt,
		UpdatedAt:   submittedAt,
	}
	vote.VoteHash = computeVoteHash(vote)
	return vote
}

// computeVoteHash derives the opaque commitment anchored on the ledger. It
// binds the vote to its election, ballot and choices without revealing any
// of them.
func computeVoteHash(vote *database.Vote) string {
	payload, _ := json.Marshal(struct {
		ID         string            `json:"id"`
		ElectionID string            `json:"election_id"`
		BallotID   string            `json:"ballot_id"`
		Choices    []database.Choice `json:"choices"`
		Submitted  int64             `json:"submitted"`
	}{vote.ID, vote.ElectionID, vote.BallotID, vote.Choices, vote.SubmittedAt.Unix()})
	sum := sha256.Sum256(payload)
	return "0x" + hex.EncodeToString(sum[:])
}

// validateChoices checks every answer against the ballot and reports all
// violations at once.
func (e *VoteIntakeEngine) validateChoices(ballot *database.Ballot, choices []database.Choice) error {
	var violations []string

	byQuestion := make(map[string]database.Choice, len(choices))
	for _, c := range choices {
		if _, dup := byQuestion[c.QuestionID]; dup {
			violations = append(violations, fmt.Sprintf("question %s: duplicate answer", c.QuestionID))
			continue
		}
		byQuestion[c.QuestionID] = c
	}

	known := make(map[string]bool, len(ballot.Questions))
	for _, q := range ballot.Questions {
		known[q.ID] = true
		choice, answered := byQuestion[q.ID]
		if !answered {
			if q.Required {
				violations = append(violations, fmt.Sprintf("question %s: answer is required", q.ID))
			}
			continue
		}
		violations = append(violations, validateAnswer(q, choice)...)
	}

	for id := range byQuestion {
		if !known[id] {
			violations = append(violations, fmt.Sprintf("question %s: not on the ballot", id))
		}
	}

	if len(violations) > 0 {
		sort.Strings(violations)
		return &ValidationError{Message: "ballot answers are invalid", Violations: violations}
	}
	return nil
}

func validateAnswer(q database.Question, c database.Choice) []string {
	var violations []string

	options := make(map[string]bool, len(q.Options))
	for _, opt := range q.Options {
		options[opt] = true
	}

	switch q.Type {
	case database.QuestionTypeSingle:
		if len(c.SelectedOptions) != 1 {
			violations = append(violations, fmt.Sprintf("question %s: exactly one option must be selected", q.ID))
			break
		}
		if !options[c.SelectedOptions[0]] {
			violations = append(violations, fmt.Sprintf("question %s: unknown option %q", q.ID, c.SelectedOptions[0]))
		}

	case database.QuestionTypeMultiple:
		if q.Required && len(c.SelectedOptions) == 0 {
			violations = append(violations, fmt.Sprintf("question %s: at least one option must be selected", q.ID))
		}
		if q.MaxSelections > 0 && len(c.SelectedOptions) > q.MaxSelections {
			violations = append(violations, fmt.Sprintf("question %s: at most %d options may be selected", q.ID, q.MaxSelections))
		}
		seen := make(map[string]bool, len(c.SelectedOptions))
		for _, opt := range c.SelectedOptions {
			if seen[opt] {
				violations = append(violations, fmt.Sprintf("question %s: option %q selected twice", q.ID, opt))
				continue
			}
			seen[opt] = true
			if !options[opt] {
				violations = append(violations, fmt.Sprintf("question %s: unknown option %q", q.ID, opt))
			}
		}

	case database.QuestionTypeText:
		answer := strings.TrimSpace(c.TextAnswer)
		if q.Required && answer == "" {
			violations = append(violations, fmt.Sprintf("question %s: answer is required", q.ID))
		}
		if q.MaxLength > 0 && len(answer) > q.MaxLength {
			violations = append(violations, fmt.Sprintf("question %s: answer exceeds %d characters", q.ID, q.MaxLength))
		}

	case database.QuestionTypeRanking:
		if len(c.RankingOrder) != len(q.Options) {
			violations = append(violations, fmt.Sprintf("question %s: ranking must order all %d options", q.ID, len(q.Options)))
			break
		}
		seen := make(map[string]bool, len(c.RankingOrder))
		for _, opt := range c.RankingOrder {
			if seen[opt] || !options[opt] {
				violations = append(violations, fmt.Sprintf("question %s: ranking must be a permutation of the options", q.ID))
				break
			}
			seen[opt] = true
		}

	default:
		violations = append(violations, fmt.Sprintf("question %s: unsupported question type %q", q.ID, q.Type))
	}

	return violations
}

package services

import (
	"context"

	"election-system/internal/database"
	"election-system/internal/ledger"
)

// Per-entity store interfaces. Services receive these once at construction;
// entities never look each other up dynamically.

// ElectionStore persists election records.
type ElectionStore interface {
	Create(ctx context.Context, e *database.Election) error
	GetByID(ctx context.Context, id string) (*database.Election, error)
	List(ctx context.Context, limit, offset int) ([]database.Election, error)
	Update(ctx context.Context, e *database.Election) error
	DeleteDraftCascade(ctx context.Context, id string) error
}

// VoterStore persists voter records.
type VoterStore interface {
	Create(ctx context.Context, v *database.Voter) error
	GetByID(ctx context.Context, id string) (*database.Voter, error)
	GetByUniqueID(ctx context.Context, electionID, uniqueID string) (*database.Voter, error)
	GetByVerificationToken(ctx context.Context, token string) (*database.Voter, error)
	ListByElection(ctx context.Context, electionID string) ([]database.Voter, error)
	ListByStatus(ctx context.Context, electionID string, status database.VoterStatus) ([]database.Voter, error)
	Update(ctx context.Context, v *database.Voter) error
	Delete(ctx context.Context, id string) error
}

// BallotStore persists ballot versions.
type BallotStore interface {
	// CreateVersion inserts a new ballot version and deactivates the prior
	// active version in the same transaction.
	CreateVersion(ctx context.Context, b *database.Ballot) error
	GetActive(ctx context.Context, electionID string) (*database.Ballot, error)
	GetByID(ctx context.Context, id string) (*database.Ballot, error)
	ListVersions(ctx context.Context, electionID string) ([]database.Ballot, error)
}

// VoteStore persists votes. CreateForVoter and Reject are the two operations
// that touch the voter's has_voted flag and must do so atomically with the
// vote row change.
type VoteStore interface {
	// CreateForVoter inserts the vote and flips the voter's has_voted flag
	// in one transaction, using a conditional update as the double-vote
	// guard. Returns database.ErrAlreadyVoted when the guard fails.
	CreateForVoter(ctx context.Context, v *database.Vote) error
	GetByID(ctx context.Context, id string) (*database.Vote, error)
	GetByVoter(ctx context.Context, electionID, voterID string) (*database.Vote, error)
	// Confirm moves a pending vote to confirmed, recording the ledger
	// transaction when present.
	Confirm(ctx context.Context, voteID, txHash string, blockNumber int64) error
	// Reject moves a vote to rejected and resets the voter's has_voted flag
	// so the voter may resubmit.
	Reject(ctx context.Context, voteID string) error
	ListConfirmedWithWeight(ctx context.Context, electionID string) ([]database.VoteWithWeight, error)
}

// Ledger is the external ledger capability contract consumed by the
// deployment orchestrator and the vote intake engine.
type Ledger interface {
	SimulateCreateElection(ctx context.Context, p ledger.DeployPayload) (string, error)
	IsFactoryOwner(ctx context.Context) (bool, error)
	AuthorizeSelf(ctx context.Context) error
	CreateElection(ctx context.Context, p ledger.DeployPayload) (*ledger.TxResult, error)
	StartElection(ctx context.Context, contractAddr string) (*ledger.TxResult, error)
	IsElectionActive(ctx context.Context, contractAddr string) (bool, error)
	BatchRegisterVoters(ctx context.Context, contractAddr string, voterIDs, emails []string) (*ledger.TxResult, error)
	IsVoterRegistered(ctx context.Context, contractAddr, voterID string) (bool, error)
	HasVoterVoted(ctx context.Context, contractAddr, voterID string) (bool, error)
	CastVote(ctx context.Context, contractAddr, voteHash, voterID string) (*ledger.TxResult, error)
	PrepareCastVote(contractAddr, voteHash, voterID string) (*ledger.UnsignedCall, error)
	VerifyVoteTransaction(ctx context.Context, contractAddr, txHash string) (*ledger.TxResult, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

package database

import "time"

// ElectionStatus is the lifecycle state of an election.
type ElectionStatus string

const (
	ElectionStatusDraft     ElectionStatus = "draft"
	ElectionStatusScheduled ElectionStatus = "scheduled"
	ElectionStatusActive    ElectionStatus = "active"
	ElectionStatusCompleted ElectionStatus = "completed"
	ElectionStatusCancelled ElectionStatus = "cancelled"
)

// Election represents an election with a fixed voting window. A subset of its
// state is mirrored onto the external ledger once deployed.
type Election struct {
	ID                 string         `db:"id" json:"id"`
	CreatorID          string         `db:"creator_id" json:"creator_id"`
	Title              string         `db:"title" json:"title"`
	Description        string         `db:"description" json:"description"`
	StartTime          time.Time      `db:"start_time" json:"start_time"`
	EndTime            time.Time      `db:"end_time" json:"end_time"`
	Timezone           string         `db:"timezone" json:"timezone"`
	MaxVotersCount     int            `db:"max_voters_count" json:"max_voters_count"`
	Status             ElectionStatus `db:"status" json:"status"`
	LedgerAddress      string         `db:"ledger_address" json:"ledger_address,omitempty"`
	LedgerTxHash       string         `db:"ledger_tx_hash" json:"ledger_tx_hash,omitempty"`
	DeployedAt         *time.Time     `db:"deployed_at" json:"deployed_at,omitempty"`
	StartedAt          *time.Time     `db:"started_at" json:"started_at,omitempty"`
	RealTimeResults    bool           `db:"real_time_results" json:"real_time_results"`
	ResultsReleaseTime *time.Time     `db:"results_release_time" json:"results_release_time,omitempty"`
	IsPublic           bool           `db:"is_public" json:"is_public"`
	Category           string         `db:"category" json:"category"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at" json:"updated_at"`
}

// VoterStatus is the enrollment state of a voter within one election.
type VoterStatus string

const (
	VoterStatusPending   VoterStatus = "pending"
	VoterStatusVerified  VoterStatus = "verified"
	VoterStatusActive    VoterStatus = "active"
	VoterStatusSuspended VoterStatus = "suspended"
)

// Voter belongs to exactly one election. The raw voting secret is never
// stored; SecretEncrypted holds the AES-GCM ciphertext issued at enrollment
// and SecretHash the one-way hash used for equality checks and for the value
// registered on the ledger.
type Voter struct {
	ID                  string      `db:"id" json:"id"`
	ElectionID          string      `db:"election_id" json:"election_id"`
	UniqueID            string      `db:"unique_id" json:"unique_id"`
	Email               string      `db:"email" json:"email"`
	Name                string      `db:"name" json:"name"`
	SecretEncrypted     string      `db:"secret_encrypted" json:"-"`
	SecretHash          string      `db:"secret_hash" json:"-"`
	VerificationToken   string      `db:"verification_token" json:"-"`
	VerificationExpires *time.Time  `db:"verification_expires" json:"-"`
	Status              VoterStatus `db:"status" json:"status"`
	VoteWeight          int         `db:"vote_weight" json:"vote_weight"`
	HasVoted            bool        `db:"has_voted" json:"has_voted"`
	CreatedAt           time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time   `db:"updated_at" json:"updated_at"`
}

// QuestionType determines how a question's choices are validated and tallied.
type QuestionType string

const (
	QuestionTypeSingle   QuestionType = "single"
	QuestionTypeMultiple QuestionType = "multiple"
	QuestionTypeText     QuestionType = "text"
	QuestionTypeRanking  QuestionType = "ranking"
)

// Question is one entry of a ballot. Validation bounds are type specific:
// MaxSelections applies to multiple-choice questions, MaxLength to text.
type Question struct {
	ID            string       `json:"id"`
	Type          QuestionType `json:"type"`
	Title         string       `json:"title"`
	Options       []string     `json:"options,omitempty"`
	Required      bool         `json:"required"`
	MaxSelections int          `json:"max_selections,omitempty"`
	MaxLength     int          `json:"max_length,omitempty"`
}

// Ballot is a versioned set of questions. Only one version per election is
// active at a time; a new version supersedes the prior active one.
type Ballot struct {
	ID              string     `db:"id" json:"id"`
	ElectionID      string     `db:"election_id" json:"election_id"`
	Version         int        `db:"version" json:"version"`
	IsActive        bool       `db:"is_active" json:"is_active"`
	IsCandidateList bool       `db:"is_candidate_list" json:"is_candidate_list"`
	Questions       []Question `db:"-" json:"questions"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

// VoteStatus is the confirmation state of a cast vote.
type VoteStatus string

const (
	VoteStatusPending   VoteStatus = "pending"
	VoteStatusConfirmed VoteStatus = "confirmed"
	VoteStatusRejected  VoteStatus = "rejected"
)

// Choice is a voter's answer to a single question. Exactly one of the three
// payload fields is meaningful depending on the question type.
type Choice struct {
	QuestionID      string   `json:"question_id"`
	SelectedOptions []string `json:"selected_options,omitempty"`
	TextAnswer      string   `json:"text_answer,omitempty"`
	RankingOrder    []string `json:"ranking_order,omitempty"`
}

// Vote is a single submission against the ballot version that was active at
// cast time. Confirmed votes are immutable inputs to aggregation.
type Vote struct {
	ID          string     `db:"id" json:"id"`
	ElectionID  string     `db:"election_id" json:"election_id"`
	VoterID     string     `db:"voter_id" json:"voter_id"`
	BallotID    string     `db:"ballot_id" json:"ballot_id"`
	Choices     []Choice   `db:"-" json:"choices"`
	VoteHash    string     `db:"vote_hash" json:"vote_hash"`
	Status      VoteStatus `db:"status" json:"status"`
	TxHash      string     `db:"tx_hash" json:"tx_hash,omitempty"`
	BlockNumber int64      `db:"block_number" json:"block_number,omitempty"`
	SubmittedAt time.Time  `db:"submitted_at" json:"submitted_at"`
	ConfirmedAt *time.Time `db:"confirmed_at" json:"confirmed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// VoteWithWeight joins a confirmed vote with the casting voter's weight for
// aggregation queries.
type VoteWithWeight struct {
	Vote
	VoteWeight int `db:"vote_weight" json:"vote_weight"`
}

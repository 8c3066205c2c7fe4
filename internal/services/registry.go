package services

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"election-system/internal/database"
	"election-system/pkg/logger"
)

const verificationTokenTTL = 24 * time.Hour

// VoterRegistry generates, stores and verifies voter credentials and manages
// per-voter status. Raw secrets exist in memory only at enrollment time; at
// rest only the AES-GCM ciphertext and a one-way hash survive.
type VoterRegistry struct {
	voters    VoterStore
	elections ElectionStore
	machine   *StateMachine
	aesKey    []byte
	log       *logger.Logger
	now       func() time.Time
}

// NewVoterRegistry creates a registry. secretKey must be at least 32 bytes;
// only the first 32 are used as the AES-256 key.
func NewVoterRegistry(voters VoterStore, elections ElectionStore, machine *StateMachine, secretKey string, log *logger.Logger) (*VoterRegistry, error) {
	if len(secretKey) < 32 {
		return nil, fmt.Errorf("voter secret key must be at least 32 bytes")
	}
	return &VoterRegistry{
		voters:    voters,
		elections: elections,
		machine:   machine,
		aesKey:    []byte(secretKey)[:32],
		log:       log.WithComponent("voter-registry"),
		now:       time.Now,
	}, nil
}

// EnrollmentRequest is one voter to enroll.
type EnrollmentRequest struct {
	UniqueID   string
	Email      string
	Name       string
	VoteWeight int
}

// EnrollmentResult carries the created voter together with the raw secret,
// which is returned exactly once for enrollment notification and never again.
type EnrollmentResult struct {
	Voter     *database.Voter
	RawSecret string
}

// BulkRow is the per-row outcome of a bulk enrollment.
type BulkRow struct {
	UniqueID string `json:"unique_id"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
	VoterID  string `json:"voter_id,omitempty"`
}

// BulkReport summarizes a bulk enrollment. A batch never fails as a whole.
type BulkReport struct {
	Success int       `json:"success"`
	Failed  int       `json:"failed"`
	Rows    []BulkRow `json:"rows"`
}

// Enroll creates a single voter for an election, issuing a fresh secret and a
// 24h single-use verification token.
func (r *VoterRegistry) Enroll(ctx context.Context, electionID string, req EnrollmentRequest) (*EnrollmentResult, error) {
	election, err := r.elections.GetByID(ctx, electionID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Resource: "election", ID: electionID}
		}
		return nil, err
	}

	if election.Status == database.ElectionStatusCompleted || election.Status == database.ElectionStatusCancelled {
		return nil, &ConflictError{Message: fmt.Sprintf("election in status %s does not accept enrollment", election.Status)}
	}

	if req.UniqueID == "" || req.Email == "" {
		return nil, NewValidationError("voter unique_id and email are required")
	}

	if election.MaxVotersCount > 0 {
		existing, err := r.voters.ListByElection(ctx, electionID)
		if err != nil {
			return nil, err
		}
		if len(existing) >= election.MaxVotersCount {
			return nil, &ConflictError{Message: "election voter capacity reached"}
		}
	}

	rawSecret, err := generateSecret()
	if err != nil {
		return nil, err
	}

	encrypted, err := r.encryptSecret(rawSecret)
	if err != nil {
		return nil, err
	}

	weight := req.VoteWeight
	if weight < 1 {
		weight = 1
	}

	expires := r.now().Add(verificationTokenTTL)
	voter := &database.Voter{
		ID:                  uuid.NewString(),
		ElectionID:          electionID,
		UniqueID:            strings.TrimSpace(req.UniqueID),
		Email:               strings.ToLower(strings.TrimSpace(req.Email)),
		Name:                req.Name,
		SecretEncrypted:     encrypted,
		SecretHash:          HashSecret(rawSecret),
		VerificationToken:   uuid.NewString(),
		VerificationExpires: &expires,
		Status:              database.VoterStatusPending,
		VoteWeight:          weight,
		HasVoted:            false,
		CreatedAt:           r.now(),
		UpdatedAt:           r.now(),
	}

	if err := r.voters.Create(ctx, voter); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, &ConflictError{Message: "voter with this unique_id or email already enrolled"}
		}
		return nil, err
	}

	r.log.Info("Voter enrolled - election: %s, unique_id: %s", electionID, voter.UniqueID)
	return &EnrollmentResult{Voter: voter, RawSecret: rawSecret}, nil
}

// BulkEnroll processes a list of enrollments, skipping rows that violate the
// per-election uniqueness constraints and reporting per-row outcomes.
func (r *VoterRegistry) BulkEnroll(ctx context.Context, electionID string, reqs []EnrollmentRequest) (*BulkReport, []*EnrollmentResult, error) {
	if _, err := r.elections.GetByID(ctx, electionID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil, &NotFoundError{Resource: "election", ID: electionID}
		}
		return nil, nil, err
	}

	report := &BulkReport{Rows: make([]BulkRow, 0, len(reqs))}
	var enrolled []*EnrollmentResult

	for _, req := range reqs {
		row := BulkRow{UniqueID: req.UniqueID}

		result, err := r.Enroll(ctx, electionID, req)
		if err != nil {
			row.Error = err.Error()
			report.Failed++
		} else {
			row.Success = true
			row.VoterID = result.Voter.ID
			report.Success++
			enrolled = append(enrolled, result)
		}

		report.Rows = append(report.Rows, row)
	}

	r.log.Info("Bulk enrollment completed - election: %s, success: %d, failed: %d",
		electionID, report.Success, report.Failed)
	return report, enrolled, nil
}

// RedeemVerificationToken moves a pending voter to verified and consumes the
// token. Expired or unknown tokens are rejected.
func (r *VoterRegistry) RedeemVerificationToken(ctx context.Context, token string) (*database.Voter, error) {
	voter, err := r.voters.GetByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Resource: "verification token", ID: token}
		}
		return nil, err
	}

	if voter.VerificationExpires == nil || r.now().After(*voter.VerificationExpires) {
		return nil, NewValidationError("verification token has expired")
	}

	if voter.Status != database.VoterStatusPending {
		return nil, &ConflictError{Message: fmt.Sprintf("voter in status %s cannot redeem a verification token", voter.Status)}
	}

	voter.Status = database.VoterStatusVerified
	voter.VerificationToken = ""
	voter.VerificationExpires = nil
	voter.UpdatedAt = r.now()

	if err := r.voters.Update(ctx, voter); err != nil {
		return nil, err
	}

	return voter, nil
}

// UpdateStatus applies an administrative status change. SUSPENDED is
// reachable from any state and reversible back to ACTIVE.
func (r *VoterRegistry) UpdateStatus(ctx context.Context, voterID string, status database.VoterStatus) (*database.Voter, error) {
	voter, err := r.voters.GetByID(ctx, voterID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Resource: "voter", ID: voterID}
		}
		return nil, err
	}

	if !voterTransitionAllowed(voter.Status, status) {
		return nil, &ConflictError{Message: fmt.Sprintf("voter cannot move from %s to %s", voter.Status, status)}
	}

	voter.Status = status
	voter.UpdatedAt = r.now()
	if err := r.voters.Update(ctx, voter); err != nil {
		return nil, err
	}

	return voter, nil
}

func voterTransitionAllowed(from, to database.VoterStatus) bool {
	if to == database.VoterStatusSuspended {
		return from != database.VoterStatusSuspended
	}
	switch from {
	case database.VoterStatusPending:
		return to == database.VoterStatusVerified
	case database.VoterStatusVerified:
		return to == database.VoterStatusActive
	case database.VoterStatusSuspended:
		return to == database.VoterStatusActive
	}
	return false
}

// Get returns one voter.
func (r *VoterRegistry) Get(ctx context.Context, voterID string) (*database.Voter, error) {
	voter, err := r.voters.GetByID(ctx, voterID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Resource: "voter", ID: voterID}
		}
		return nil, err
	}
	return voter, nil
}

// List returns every voter of an election.
func (r *VoterRegistry) List(ctx context.Context, electionID string) ([]database.Voter, error) {
	return r.voters.ListByElection(ctx, electionID)
}

// Delete removes a voter, permitted only while the parent election is a
// draft.
func (r *VoterRegistry) Delete(ctx context.Context, voterID string) error {
	voter, err := r.voters.GetByID(ctx, voterID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return &NotFoundError{Resource: "voter", ID: voterID}
		}
		return err
	}

	election, err := r.elections.GetByID(ctx, voter.ElectionID)
	if err != nil {
		return err
	}

	if err := r.machine.CanDelete(election); err != nil {
		return err
	}

	return r.voters.Delete(ctx, voterID)
}

// VerifySecret checks a supplied secret against the voter's stored hash in
// constant time.
func (r *VoterRegistry) VerifySecret(voter *database.Voter, secret string) bool {
	supplied := HashSecret(secret)
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(voter.SecretHash)) == 1
}

// DecryptSecret recovers the raw secret for enrollment-notification resends.
func (r *VoterRegistry) DecryptSecret(voter *database.Voter) (string, error) {
	data, err := base64.StdEncoding.DecodeString(voter.SecretEncrypted)
	if err != nil {
		return "", fmt.Errorf("failed to decode stored secret: %v", err)
	}

	block, err := aes.NewCipher(r.aesKey)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	if len(data) < gcm.NonceSize() {
		return "", fmt.Errorf("stored secret is truncated")
	}

	plain, err := gcm.Open(nil, data[:gcm.NonceSize()], data[gcm.NonceSize():], nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt stored secret: %v", err)
	}

	return string(plain), nil
}

func (r *VoterRegistry) encryptSecret(secret string) (string, error) {
	block, err := aes.NewCipher(r.aesKey)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, []byte(secret), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// HashSecret returns the one-way hash of a normalized secret. The same value
// is used for login equality checks and for on-ledger voter registration, so
// the raw secret never leaves the enrollment path.
func HashSecret(secret string) string {
	normalized := strings.ToLower(strings.TrimSpace(secret))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// generateSecret produces a high-entropy random voting secret.
func generateSecret() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate voter secret: %v", err)
	}
	return hex.EncodeToString(buf), nil
}

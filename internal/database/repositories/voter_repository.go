package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"election-system/internal/database"
)

type VoterRepository struct {
	db *sql.DB
}

func NewVoterRepository(db *sql.DB) *VoterRepository {
	return &VoterRepository{db: db}
}

const voterColumns = `id, election_id, unique_id, email, name, secret_encrypted, secret_hash,
       verification_token, verification_expires, status, vote_weight, has_voted,
       created_at, updated_at`

func scanVoter(row interface{ Scan(...interface{}) error }) (*database.Voter, error) {
	var v database.Voter
	err := row.Scan(
		&v.ID, &v.ElectionID, &v.UniqueID, &v.Email, &v.Name, &v.SecretEncrypted, &v.SecretHash,
		&v.VerificationToken, &v.VerificationExpires, &v.Status, &v.VoteWeight, &v.HasVoted,
		&v.CreatedAt, &v.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Create inserts a new voter. Returns database.ErrDuplicate when the
// election already has this unique_id or email.
func (r *VoterRepository) Create(ctx context.Context, v *database.Voter) error {
	query := `
        INSERT INTO voters (id, election_id, unique_id, email, name, secret_encrypted,
                            secret_hash, verification_token, verification_expires, status,
                            vote_weight, has_voted, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		v.ID, v.ElectionID, v.UniqueID, v.Email, v.Name, v.SecretEncrypted,
		v.SecretHash, v.VerificationToken, v.VerificationExpires, v.Status,
		v.VoteWeight, v.HasVoted, v.CreatedAt, v.UpdatedAt)
	if err != nil && isUniqueViolation(err) {
		return database.ErrDuplicate
	}
	return err
}

// GetByID retrieves one voter.
func (r *VoterRepository) GetByID(ctx context.Context, id string) (*database.Voter, error) {
	query := fmt.Sprintf(`SELECT %s FROM voters WHERE id = ?`, voterColumns)
	return scanVoter(r.db.QueryRowContext(ctx, query, id))
}

// GetByUniqueID retrieves a voter by their election-scoped identifier.
func (r *VoterRepository) GetByUniqueID(ctx context.Context, electionID, uniqueID string) (*database.Voter, error) {
	query := fmt.Sprintf(`SELECT %s FROM voters WHERE election_id = ? AND unique_id = ?`, voterColumns)
	return scanVoter(r.db.QueryRowContext(ctx, query, electionID, uniqueID))
}

// GetByVerificationToken retrieves a voter holding an unredeemed token.
func (r *VoterRepository) GetByVerificationToken(ctx context.Context, token string) (*database.Voter, error) {
	query := fmt.Sprintf(`SELECT %s FROM voters WHERE verification_token = ? AND verification_token != ''`, voterColumns)
	return scanVoter(r.db.QueryRowContext(ctx, query, token))
}

// ListByElection returns every voter of one election.
func (r *VoterRepository) ListByElection(ctx context.Context, electionID string) ([]database.Voter, error) {
	query := fmt.Sprintf(`SELECT %s FROM voters WHERE election_id = ? ORDER BY created_at`, voterColumns)
	return r.list(ctx, query, electionID)
}

// ListByStatus returns an election's voters filtered by status.
func (r *VoterRepository) ListByStatus(ctx context.Context, electionID string, status database.VoterStatus) ([]database.Voter, error) {
	query := fmt.Sprintf(`SELECT %s FROM voters WHERE election_id = ? AND status = ? ORDER BY created_at`, voterColumns)
	return r.list(ctx, query, electionID, status)
}

func (r *VoterRepository) list(ctx context.Context, query string, args ...interface{}) ([]database.Voter, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var voters []database.Voter
	for rows.Next() {
		v, err := scanVoter(rows)
		if err != nil {
			return nil, err
		}
		voters = append(voters, *v)
	}
	return voters, rows.Err()
}

// Update replaces the mutable columns of a voter.
func (r *VoterRepository) Update(ctx context.Context, v *database.Voter) error {
	query := `
        UPDATE voters
        SET email = ?, name = ?, secret_encrypted = ?, secret_hash = ?,
            verification_token = ?, verification_expires = ?, status = ?,
            vote_weight = ?, has_voted = ?, updated_at = ?
        WHERE id = ?
    `
	result, err := r.db.ExecContext(ctx, query,
		v.Email, v.Name, v.SecretEncrypted, v.SecretHash,
		v.VerificationToken, v.VerificationExpires, v.Status,
		v.VoteWeight, v.HasVoted, v.UpdatedAt, v.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return database.ErrDuplicate
		}
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return database.ErrNotFound
	}
	return nil
}

// Delete removes one voter.
func (r *VoterRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM voters WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return database.ErrNotFound
	}
	return nil
}

package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"election-system/internal/database"
)

type VoteRepository struct {
	db *sql.DB
}

func NewVoteRepository(db *sql.DB) *VoteRepository {
	return &VoteRepository{db: db}
}

const voteColumns = `id, election_id, voter_id, ballot_id, choices, vote_hash, status,
       tx_hash, block_number, submitted_at, confirmed_at, created_at, updated_at`

// CreateForVoter inserts the vote and flips the voter's has_voted flag in
// one transaction. The conditional update is the double-vote guard: a second
// concurrent cast matches zero rows and the whole transaction rolls back
// with database.ErrAlreadyVoted.
func (r *VoteRepository) CreateForVoter(ctx context.Context, v *database.Vote) error {
	choices, err := json.Marshal(v.Choices)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
        UPDATE voters SET has_voted = TRUE, updated_at = ?
        WHERE id = ? AND has_voted = FALSE
    `, v.CreatedAt, v.VoterID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return database.ErrAlreadyVoted
	}

	if _, err := tx.ExecContext(ctx, `
        INSERT INTO votes (id, election_id, voter_id, ballot_id, choices, vote_hash, status,
                           tx_hash, block_number, submitted_at, confirmed_at, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, v.ID, v.ElectionID, v.VoterID, v.BallotID, string(choices), v.VoteHash, v.Status,
		v.TxHash, v.BlockNumber, v.SubmittedAt, v.ConfirmedAt, v.CreatedAt, v.UpdatedAt); err != nil {
		return err
	}

	return tx.Commit()
}

// GetByID retrieves one vote.
func (r *VoteRepository) GetByID(ctx context.Context, id string) (*database.Vote, error) {
	query := `SELECT ` + voteColumns + ` FROM votes WHERE id = ?`
	return r.scan(r.db.QueryRowContext(ctx, query, id))
}

// GetByVoter retrieves the vote a voter cast in an election.
func (r *VoteRepository) GetByVoter(ctx context.Context, electionID, voterID string) (*database.Vote, error) {
	query := `SELECT ` + voteColumns + ` FROM votes WHERE election_id = ? AND voter_id = ? ORDER BY created_at DESC LIMIT 1`
	return r.scan(r.db.QueryRowContext(ctx, query, electionID, voterID))
}

// Confirm moves a pending vote to confirmed, recording the ledger
// transaction when present.
func (r *VoteRepository) Confirm(ctx context.Context, voteID, txHash string, blockNumber int64) error {
	now := time.Now()
	result, err := r.db.ExecContext(ctx, `
        UPDATE votes
        SET status = ?, tx_hash = ?, block_number = ?, confirmed_at = ?, updated_at = ?
        WHERE id = ? AND status = ?
    `, database.VoteStatusConfirmed, txHash, blockNumber, now, now, voteID, database.VoteStatusPending)
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

// Reject moves a pending vote to rejected and releases the voter's
// has_voted flag so they may resubmit, both in one transaction.
func (r *VoteRepository) Reject(ctx context.Context, voteID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	var voterID string
	err = tx.QueryRowContext(ctx, `SELECT voter_id FROM votes WHERE id = ?`, voteID).Scan(&voterID)
	if err == sql.ErrNoRows {
		return database.ErrNotFound
	}
	if err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `
        UPDATE votes SET status = ?, updated_at = ? WHERE id = ? AND status = ?
    `, database.VoteStatusRejected, now, voteID, database.VoteStatusPending)
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

	if _, err := tx.ExecContext(ctx, `
        UPDATE voters SET has_voted = FALSE, updated_at = ? WHERE id = ?
    `, now, voterID); err != nil {
		return err
	}

	return tx.Commit()
}

// ListConfirmedWithWeight returns every confirmed vote of an election joined
// with the casting voter's weight.
func (r *VoteRepository) ListConfirmedWithWeight(ctx context.Context, electionID string) ([]database.VoteWithWeight, error) {
	query := `
        SELECT v.id, v.election_id, v.voter_id, v.ballot_id, v.choices, v.vote_hash, v.status,
               v.tx_hash, v.block_number, v.submitted_at, v.confirmed_at, v.created_at, v.updated_at,
               vr.vote_weight
        FROM votes v
        JOIN voters vr ON vr.id = v.voter_id
        WHERE v.election_id = ? AND v.status = ?
        ORDER BY v.submitted_at
    `
	rows, err := r.db.QueryContext(ctx, query, electionID, database.VoteStatusConfirmed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var votes []database.VoteWithWeight
	for rows.Next() {
		var v database.VoteWithWeight
		var choices string
		err := rows.Scan(
			&v.ID, &v.ElectionID, &v.VoterID, &v.BallotID, &choices, &v.VoteHash, &v.Status,
			&v.TxHash, &v.BlockNumber, &v.SubmittedAt, &v.ConfirmedAt, &v.CreatedAt, &v.UpdatedAt,
			&v.VoteWeight,
		)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(choices), &v.Choices); err != nil {
			return nil, err
		}
		votes = append(votes, v)
	}
	return votes, rows.Err()
}

func (r *VoteRepository) scan(row interface{ Scan(...interface{}) error }) (*database.Vote, error) {
	var v database.Vote
	var choices string
	err := row.Scan(
		&v.ID, &v.ElectionID, &v.VoterID, &v.BallotID, &choices, &v.VoteHash, &v.Status,
		&v.TxHash, &v.BlockNumber, &v.SubmittedAt, &v.ConfirmedAt, &v.CreatedAt, &v.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(choices), &v.Choices); err != nil {
		return nil, err
	}
	return &v, nil
}

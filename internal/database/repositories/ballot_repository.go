package repositories

import (
	"context"
	"database/sql"
	"encoding/json"

	"election-system/internal/database"
)

type BallotRepository struct {
	db *sql.DB
}

func NewBallotRepository(db *sql.DB) *BallotRepository {
	return &BallotRepository{db: db}
}

// CreateVersion inserts a new ballot version and deactivates the prior
// active one in the same transaction. The version number is assigned here,
// not by the caller.
func (r *BallotRepository) CreateVersion(ctx context.Context, b *database.Ballot) error {
	questions, err := json.Marshal(b.Questions)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var maxVersion sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT MAX(version) FROM ballots WHERE election_id = ?`, b.ElectionID).Scan(&maxVersion)
	if err != nil {
		return err
	}
	b.Version = int(maxVersion.Int64) + 1

	if _, err := tx.ExecContext(ctx,
		`UPDATE ballots SET is_active = FALSE WHERE election_id = ? AND is_active = TRUE`, b.ElectionID); err != nil {
		return err
	}

	b.IsActive = true
	if _, err := tx.ExecContext(ctx, `
        INSERT INTO ballots (id, election_id, version, is_active, is_candidate_list, questions, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `, b.ID, b.ElectionID, b.Version, b.IsActive, b.IsCandidateList, string(questions), b.CreatedAt); err != nil {
		return err
	}

	return tx.Commit()
}

// GetActive returns the election's active ballot version.
func (r *BallotRepository) GetActive(ctx context.Context, electionID string) (*database.Ballot, error) {
	query := `
        SELECT id, election_id, version, is_active, is_candidate_list, questions, created_at
        FROM ballots
        WHERE election_id = ? AND is_active = TRUE
    `
	return r.scan(r.db.QueryRowContext(ctx, query, electionID))
}

// GetByID returns one ballot version.
func (r *BallotRepository) GetByID(ctx context.Context, id string) (*database.Ballot, error) {
	query := `
        SELECT id, election_id, version, is_active, is_candidate_list, questions, created_at
        FROM ballots
        WHERE id = ?
    `
	return r.scan(r.db.QueryRowContext(ctx, query, id))
}

// ListVersions returns every ballot version of an election, newest first.
func (r *BallotRepository) ListVersions(ctx context.Context, electionID string) ([]database.Ballot, error) {
	query := `
        SELECT id, election_id, version, is_active, is_candidate_list, questions, created_at
        FROM ballots
        WHERE election_id = ?
        ORDER BY version DESC
    `
	rows, err := r.db.QueryContext(ctx, query, electionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ballots []database.Ballot
	for rows.Next() {
		b, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		ballots = append(ballots, *b)
	}
	return ballots, rows.Err()
}

func (r *BallotRepository) scan(row interface{ Scan(...interface{}) error }) (*database.Ballot, error) {
	var b database.Ballot
	var questions string
	err := row.Scan(&b.ID, &b.ElectionID, &b.Version, &b.IsActive, &b.IsCandidateList, &questions, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(questions), &b.Questions); err != nil {
		return nil, err
	}
	return &b, nil
}

package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"election-system/internal/database"
)

type ElectionRepository struct {
	db *sql.DB
}

func NewElectionRepository(db *sql.DB) *ElectionRepository {
	return &ElectionRepository{db: db}
}

const electionColumns = `id, creator_id, title, description, start_time, end_time, timezone,
       max_voters_count, status, ledger_address, ledger_tx_hash, deployed_at, started_at,
       real_time_results, results_release_time, is_public, category, created_at, updated_at`

// Create inserts a new election record.
func (r *ElectionRepository) Create(ctx context.Context, e *database.Election) error {
	query := `
        INSERT INTO elections (id, creator_id, title, description, start_time, end_time,
                               timezone, max_voters_count, status, ledger_address, ledger_tx_hash,
                               deployed_at, started_at, real_time_results, results_release_time,
                               is_public, category, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.CreatorID, e.Title, e.Description, e.StartTime, e.EndTime,
		e.Timezone, e.MaxVotersCount, e.Status, e.LedgerAddress, e.LedgerTxHash,
		e.DeployedAt, e.StartedAt, e.RealTimeResults, e.ResultsReleaseTime,
		e.IsPublic, e.Category, e.CreatedAt, e.UpdatedAt)
	return err
}

// GetByID retrieves one election.
func (r *ElectionRepository) GetByID(ctx context.Context, id string) (*database.Election, error) {
	query := fmt.Sprintf(`SELECT %s FROM elections WHERE id = ?`, electionColumns)

	var e database.Election
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&e.ID, &e.CreatorID, &e.Title, &e.Description, &e.StartTime, &e.EndTime, &e.Timezone,
		&e.MaxVotersCount, &e.Status, &e.LedgerAddress, &e.LedgerTxHash, &e.DeployedAt, &e.StartedAt,
		&e.RealTimeResults, &e.ResultsReleaseTime, &e.IsPublic, &e.Category, &e.CreatedAt, &e.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// List returns a page of elections, newest first.
func (r *ElectionRepository) List(ctx context.Context, limit, offset int) ([]database.Election, error) {
	query := fmt.Sprintf(`SELECT %s FROM elections ORDER BY created_at DESC LIMIT ? OFFSET ?`, electionColumns)

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var elections []database.Election
	for rows.Next() {
		var e database.Election
		err := rows.Scan(
			&e.ID, &e.CreatorID, &e.Title, &e.Description, &e.StartTime, &e.EndTime, &e.Timezone,
			&e.MaxVotersCount, &e.Status, &e.LedgerAddress, &e.LedgerTxHash, &e.DeployedAt, &e.StartedAt,
			&e.RealTimeResults, &e.ResultsReleaseTime, &e.IsPublic, &e.Category, &e.CreatedAt, &e.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		elections = append(elections, e)
	}
	return elections, rows.Err()
}

// Update replaces every mutable column of an election.
func (r *ElectionRepository) Update(ctx context.Context, e *database.Election) error {
	query := `
        UPDATE elections
        SET title = ?, description = ?, start_time = ?, end_time = ?, timezone = ?,
            max_voters_count = ?, status = ?, ledger_address = ?, ledger_tx_hash = ?,
            deployed_at = ?, started_at = ?, real_time_results = ?, results_release_time = ?,
            is_public = ?, category = ?, updated_at = ?
        WHERE id = ?
    `
	result, err := r.db.ExecContext(ctx, query,
		e.Title, e.Description, e.StartTime, e.EndTime, e.Timezone,
		e.MaxVotersCount, e.Status, e.LedgerAddress, e.LedgerTxHash,
		e.DeployedAt, e.StartedAt, e.RealTimeResults, e.ResultsReleaseTime,
		e.IsPublic, e.Category, e.UpdatedAt, e.ID)
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

// DeleteDraftCascade removes a draft election together with its voters,
// ballots and votes in one transaction. The status guard sits in the final
// delete so a concurrent deployment cannot race the cascade.
func (r *ElectionRepository) DeleteDraftCascade(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM votes WHERE election_id = ?`,
		`DELETE FROM ballots WHERE election_id = ?`,
		`DELETE FROM voters WHERE election_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return err
		}
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM elections WHERE id = ? AND status = ?`, id, database.ElectionStatusDraft)
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

	return tx.Commit()
}

package database

import (
	"database/sql"
	"fmt"
)

// RunMigrations executes database migrations
func RunMigrations(db *sql.DB) error {
	migrations := []string{
		createElectionsTable,
		createVotersTable,
		createBallotsTable,
		createVotesTable,
		createIndices,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %v", i+1, err)
		}
	}

	return nil
}

// Database schema definitions
const createElectionsTable = `
CREATE TABLE IF NOT EXISTS elections (
    id VARCHAR(36) PRIMARY KEY,
    creator_id VARCHAR(36) NOT NULL,
    title VARCHAR(255) NOT NULL,
    description TEXT,
    start_time TIMESTAMP NOT NULL,
    end_time TIMESTAMP NOT NULL,
    timezone VARCHAR(64) DEFAULT 'UTC',
    max_voters_count INTEGER DEFAULT 0,
    status VARCHAR(20) NOT NULL DEFAULT 'draft',
    ledger_address VARCHAR(42) DEFAULT '',
    ledger_tx_hash VARCHAR(66) DEFAULT '',
    deployed_at TIMESTAMP,
    started_at TIMESTAMP,
    real_time_results BOOLEAN DEFAULT FALSE,
    results_release_time TIMESTAMP,
    is_public BOOLEAN DEFAULT FALSE,
    category VARCHAR(100) DEFAULT '',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`

const createVotersTable = `
CREATE TABLE IF NOT EXISTS voters (
    id VARCHAR(36) PRIMARY KEY,
    election_id VARCHAR(36) NOT NULL REFERENCES elections(id),
    unique_id VARCHAR(255) NOT NULL,
    email VARCHAR(255) NOT NULL,
    name VARCHAR(255) DEFAULT '',
    secret_encrypted TEXT NOT NULL,
    secret_hash VARCHAR(64) NOT NULL,
    verification_token VARCHAR(36) DEFAULT '',
    verification_expires TIMESTAMP,
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    vote_weight INTEGER NOT NULL DEFAULT 1,
    has_voted BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (election_id, unique_id),
    UNIQUE (election_id, email)
);`

const createBallotsTable = `
CREATE TABLE IF NOT EXISTS ballots (
    id VARCHAR(36) PRIMARY KEY,
    election_id VARCHAR(36) NOT NULL REFERENCES elections(id),
    version INTEGER NOT NULL DEFAULT 1,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    is_candidate_list BOOLEAN NOT NULL DEFAULT FALSE,
    questions TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`

const createVotesTable = `
CREATE TABLE IF NOT EXISTS votes (
    id VARCHAR(36) PRIMARY KEY,
    election_id VARCHAR(36) NOT NULL REFERENCES elections(id),
    voter_id VARCHAR(36) NOT NULL REFERENCES voters(id),
    ballot_id VARCHAR(36) NOT NULL REFERENCES ballots(id),
    choices TEXT NOT NULL,
    vote_hash VARCHAR(66) NOT NULL DEFAULT '',
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    tx_hash VARCHAR(66) DEFAULT '',
    block_number BIGINT DEFAULT 0,
    submitted_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    confirmed_at TIMESTAMP,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`

const createIndices = `
CREATE INDEX IF NOT EXISTS idx_elections_status ON elections(status);
CREATE INDEX IF NOT EXISTS idx_elections_creator ON elections(creator_id);
CREATE INDEX IF NOT EXISTS idx_voters_election ON voters(election_id);
CREATE INDEX IF NOT EXISTS idx_voters_status ON voters(election_id, status);
CREATE INDEX IF NOT EXISTS idx_ballots_active ON ballots(election_id, is_active);
CREATE INDEX IF NOT EXISTS idx_votes_election_status ON votes(election_id, status);
CREATE INDEX IF NOT EXISTS idx_votes_voter ON votes(voter_id);`

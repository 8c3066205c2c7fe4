package models

import (
	"election-system/internal/database"
)

// CastVoteRequest is one vote submission through the server-signed path.
type CastVoteRequest struct {
	UniqueID string            `json:"unique_id" binding:"required"`
	Secret   string            `json:"secret" binding:"required"`
	Choices  []database.Choice `json:"choices" binding:"required"`
}

// RecordVoteRequest completes a prepared vote after the client broadcast the
// signed transaction.
type RecordVoteRequest struct {
	VoteID string `json:"vote_id" binding:"required"`
	TxHash string `json:"tx_hash" binding:"required"`
}

// EnrollVoterRequest enrolls one voter into an election.
type EnrollVoterRequest struct {
	UniqueID   string `json:"unique_id" binding:"required"`
	Email      string `json:"email" binding:"required,email"`
	Name       string `json:"name"`
	VoteWeight int    `json:"vote_weight"`
}

// BulkEnrollRequest enrolls multiple voters at once.
type BulkEnrollRequest struct {
	Voters []EnrollVoterRequest `json:"voters" binding:"required,min=1"`
}

// UpdateVoterStatusRequest moves a voter to a new enrollment status.
type UpdateVoterStatusRequest struct {
	Status database.VoterStatus `json:"status" binding:"required"`
}

package database

import "errors"

// Sentinel errors returned by repositories so callers do not depend on
// driver-specific failure types.
var (
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate marks a violation of a per-election uniqueness constraint.
	ErrDuplicate = errors.New("record already exists")

	// ErrAlreadyVoted marks a conditional has_voted update that matched no
	// row: the voter already has a live vote.
	ErrAlreadyVoted = errors.New("voter has already voted")
)

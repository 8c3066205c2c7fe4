package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"election-system/internal/database"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	// a single connection keeps every statement on the same in-memory DB
	db.SetMaxOpenConns(1)
	require.NoError(t, database.RunMigrations(db))
	t.Cleanup(func() { db.Close() })
	return db
}

func seedElection(t *testing.T, db *sql.DB, id string, status database.ElectionStatus) *database.Election {
	t.Helper()
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	e := &database.Election{
		ID:        id,
		CreatorID: "admin-1",
		Title:     "Board Election",
		StartTime: now,
		EndTime:   now.Add(24 * time.Hour),
		Timezone:  "UTC",
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, NewElectionRepository(db).Create(context.Background(), e))
	return e
}

func seedVoter(t *testing.T, db *sql.DB, id, electionID string) *database.Voter {
	t.Helper()
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	v := &database.Voter{
		ID:              id,
		ElectionID:      electionID,
		UniqueID:        "EMP-" + id,
		Email:           id + "@corp.test",
		SecretEncrypted: "ciphertext",
		SecretHash:      "hash-" + id,
		Status:          database.VoterStatusActive,
		VoteWeight:      1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, NewVoterRepository(db).Create(context.Background(), v))
	return v
}

func seedBallot(t *testing.T, db *sql.DB, id, electionID string) *database.Ballot {
	t.Helper()
	b := &database.Ballot{
		ID:         id,
		ElectionID: electionID,
		Questions: []database.Question{
			{ID: "q1", Type: database.QuestionTypeSingle, Title: "Chair", Options: []string{"A", "B"}},
		},
		CreatedAt: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, NewBallotRepository(db).CreateVersion(context.Background(), b))
	return b
}

func newVote(id, electionID, voterID, ballotID string) *database.Vote {
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	return &database.Vote{
		ID:         id,
		ElectionID: electionID,
		VoterID:    voterID,
		BallotID:   ballotID,
		Choices: []database.Choice{
			{QuestionID: "q1", SelectedOptions: []string{"A"}},
		},
		VoteHash:    "0xabc",
		Status:      database.VoteStatusPending,
		SubmittedAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestElectionRepository(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewElectionRepository(db)

	e := seedElection(t, db, "elec-1", database.ElectionStatusDraft)

	t.Run("round trip", func(t *testing.T) {
		got, err := repo.GetByID(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, e.Title, got.Title)
		assert.Equal(t, database.ElectionStatusDraft, got.Status)
		assert.True(t, e.StartTime.Equal(got.StartTime))
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := repo.GetByID(ctx, "nope")
		assert.ErrorIs(t, err, database.ErrNotFound)
	})

	t.Run("update", func(t *testing.T) {
		e.Title = "Renamed"
		e.Status = database.ElectionStatusScheduled
		require.NoError(t, repo.Update(ctx, e))

		got, err := repo.GetByID(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", got.Title)
		assert.Equal(t, database.ElectionStatusScheduled, got.Status)
	})

	t.Run("update of a missing row", func(t *testing.T) {
		ghost := *e
		ghost.ID = "ghost"
		assert.ErrorIs(t, repo.Update(ctx, &ghost), database.ErrNotFound)
	})

	t.Run("list pages newest first", func(t *testing.T) {
		seedElection(t, db, "elec-2", database.ElectionStatusDraft)
		listed, err := repo.List(ctx, 10, 0)
		require.NoError(t, err)
		assert.Len(t, listed, 2)
	})
}

func TestDeleteDraftCascade(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewElectionRepository(db)

	e := seedElection(t, db, "elec-1", database.ElectionStatusDraft)
	voter := seedVoter(t, db, "v1", e.ID)
	ballot := seedBallot(t, db, "b1", e.ID)
	require.NoError(t, NewVoteRepository(db).CreateForVoter(ctx, newVote("vote-1", e.ID, voter.ID, ballot.ID)))

	require.NoError(t, repo.DeleteDraftCascade(ctx, e.ID))

	_, err := repo.GetByID(ctx, e.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)
	_, err = NewVoterRepository(db).GetByID(ctx, voter.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)
	_, err = NewVoteRepository(db).GetByID(ctx, "vote-1")
	assert.ErrorIs(t, err, database.ErrNotFound)

	t.Run("non-draft stays", func(t *testing.T) {
		live := seedElection(t, db, "elec-2", database.ElectionStatusActive)
		assert.ErrorIs(t, repo.DeleteDraftCascade(ctx, live.ID), database.ErrNotFound)

		_, err := repo.GetByID(ctx, live.ID)
		assert.NoError(t, err)
	})
}

func TestVoterRepository(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewVoterRepository(db)

	e := seedElection(t, db, "elec-1", database.ElectionStatusDraft)
	v := seedVoter(t, db, "v1", e.ID)

	t.Run("duplicate unique_id in the same election", func(t *testing.T) {
		dup := *v
		dup.ID = "v2"
		dup.Email = "other@corp.test"
		assert.ErrorIs(t, repo.Create(ctx, &dup), database.ErrDuplicate)
	})

	t.Run("duplicate email in the same election", func(t *testing.T) {
		dup := *v
		dup.ID = "v3"
		dup.UniqueID = "EMP-other"
		assert.ErrorIs(t, repo.Create(ctx, &dup), database.ErrDuplicate)
	})

	t.Run("same credentials in another election", func(t *testing.T) {
		other := seedElection(t, db, "elec-2", database.ElectionStatusDraft)
		dup := *v
		dup.ID = "v4"
		dup.ElectionID = other.ID
		assert.NoError(t, repo.Create(ctx, &dup))
	})

	t.Run("lookup by unique_id", func(t *testing.T) {
		got, err := repo.GetByUniqueID(ctx, e.ID, v.UniqueID)
		require.NoError(t, err)
		assert.Equal(t, v.ID, got.ID)
	})

	t.Run("consumed token is not findable", func(t *testing.T) {
		// the token column is reset to '' after redemption; an empty
		// token must never match
		_, err := repo.GetByVerificationToken(ctx, "")
		assert.ErrorIs(t, err, database.ErrNotFound)
	})

	t.Run("list by status", func(t *testing.T) {
		active, err := repo.ListByStatus(ctx, e.ID, database.VoterStatusActive)
		require.NoError(t, err)
		assert.Len(t, active, 1)

		pending, err := repo.ListByStatus(ctx, e.ID, database.VoterStatusPending)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})
}

func TestBallotVersioning(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewBallotRepository(db)

	e := seedElection(t, db, "elec-1", database.ElectionStatusDraft)

	first := seedBallot(t, db, "b1", e.ID)
	assert.Equal(t, 1, first.Version)

	second := seedBallot(t, db, "b2", e.ID)
	assert.Equal(t, 2, second.Version)

	active, err := repo.GetActive(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "b2", active.ID)
	require.Len(t, active.Questions, 1)
	assert.Equal(t, "q1", active.Questions[0].ID)

	versions, err := repo.ListVersions(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 2, versions[0].Version, "newest version first")
	assert.False(t, versions[1].IsActive)
}

func TestVoteRepository(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewVoteRepository(db)

	e := seedElection(t, db, "elec-1", database.ElectionStatusActive)
	voter := seedVoter(t, db, "v1", e.ID)
	ballot := seedBallot(t, db, "b1", e.ID)

	vote := newVote("vote-1", e.ID, voter.ID, ballot.ID)
	require.NoError(t, repo.CreateForVoter(ctx, vote))

	t.Run("double vote is blocked by the conditional update", func(t *testing.T) {
		second := newVote("vote-2", e.ID, voter.ID, ballot.ID)
		assert.ErrorIs(t, repo.CreateForVoter(ctx, second), database.ErrAlreadyVoted)

		_, err := repo.GetByID(ctx, "vote-2")
		assert.ErrorIs(t, err, database.ErrNotFound, "the rejected insert must not leave a row behind")
	})

	t.Run("confirm records the transaction", func(t *testing.T) {
		require.NoError(t, repo.Confirm(ctx, vote.ID, "0xtx", 42))

		got, err := repo.GetByID(ctx, vote.ID)
		require.NoError(t, err)
		assert.Equal(t, database.VoteStatusConfirmed, got.Status)
		assert.Equal(t, "0xtx", got.TxHash)
		assert.Equal(t, int64(42), got.BlockNumber)
		assert.NotNil(t, got.ConfirmedAt)

		assert.ErrorIs(t, repo.Confirm(ctx, vote.ID, "0xtx", 42), database.ErrNotFound,
			"only pending votes are confirmable")
	})

	t.Run("reject resets has_voted", func(t *testing.T) {
		other := seedVoter(t, db, "v2", e.ID)
		pending := newVote("vote-3", e.ID, other.ID, ballot.ID)
		require.NoError(t, repo.CreateForVoter(ctx, pending))

		stored, err := NewVoterRepository(db).GetByID(ctx, other.ID)
		require.NoError(t, err)
		assert.True(t, stored.HasVoted)

		require.NoError(t, repo.Reject(ctx, pending.ID))

		stored, err = NewVoterRepository(db).GetByID(ctx, other.ID)
		require.NoError(t, err)
		assert.False(t, stored.HasVoted)

		retry := newVote("vote-4", e.ID, other.ID, ballot.ID)
		assert.NoError(t, repo.CreateForVoter(ctx, retry))
	})

	t.Run("concurrent submissions admit exactly one", func(t *testing.T) {
		racer := seedVoter(t, db, "v9", e.ID)

		const attempts = 8
		errs := make(chan error, attempts)
		var wg sync.WaitGroup
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				v := newVote(fmt.Sprintf("race-%d", n), e.ID, racer.ID, ballot.ID)
				errs <- repo.CreateForVoter(ctx, v)
			}(i)
		}
		wg.Wait()
		close(errs)

		admitted, blocked := 0, 0
		for err := range errs {
			switch {
			case err == nil:
				admitted++
			case errors.Is(err, database.ErrAlreadyVoted):
				blocked++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, admitted)
		assert.Equal(t, attempts-1, blocked)
	})

	t.Run("confirmed votes join voter weight", func(t *testing.T) {
		weighted := seedVoter(t, db, "v3", e.ID)
		weighted.VoteWeight = 3
		require.NoError(t, NewVoterRepository(db).Update(ctx, weighted))

		wv := newVote("vote-5", e.ID, weighted.ID, ballot.ID)
		require.NoError(t, repo.CreateForVoter(ctx, wv))
		require.NoError(t, repo.Confirm(ctx, wv.ID, "", 0))

		votes, err := repo.ListConfirmedWithWeight(ctx, e.ID)
		require.NoError(t, err)
		require.Len(t, votes, 2)

		byID := map[string]database.VoteWithWeight{}
		for _, v := range votes {
			byID[v.ID] = v
		}
		assert.Equal(t, 1, byID["vote-1"].VoteWeight)
		assert.Equal(t, 3, byID["vote-5"].VoteWeight)
		require.Len(t, byID["vote-5"].Choices, 1)
		assert.Equal(t, []string{"A"}, byID["vote-5"].Choices[0].SelectedOptions)
	})
}

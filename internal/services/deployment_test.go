package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"election-system/internal/database"
	"election-system/internal/ledger"
)

func newDeploymentFixture(t *testing.T) (*DeploymentOrchestrator, *memElectionStore, *memVoterStore, *fakeLedger, time.Time) {
	t.Helper()
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	elections := newMemElectionStore()
	voters := newMemVoterStore()
	machine := NewStateMachine(time.Hour)
	machine.now = fixedClock(now)
	fl := newFakeLedger()
	orch := NewDeploymentOrchestrator(elections, voters, machine, fl, testLogger())
	orch.now = fixedClock(now)
	return orch, elections, voters, fl, now
}

func deployableElection(now time.Time) *database.Election {
	return &database.Election{
		ID:             "elec-1",
		CreatorID:      "admin-1",
		Title:          "Board Election",
		Status:         database.ElectionStatusDraft,
		StartTime:      now.Add(time.Hour),
		EndTime:        now.Add(25 * time.Hour),
		MaxVotersCount: 100,
	}
}

func TestDeployHappyPath(t *testing.T) {
	orch, elections, voters, fl, now := newDeploymentFixture(t)
	ctx := context.Background()

	election := deployableElection(now)
	require.NoError(t, elections.Create(ctx, election))
	require.NoError(t, voters.Create(ctx, &database.Voter{
		ID: "v1", ElectionID: election.ID, UniqueID: "EMP-1", Email: "v1@corp.test",
		SecretHash: "hash-v1", Status: database.VoterStatusActive, VoteWeight: 1,
	}))

	result, err := orch.Deploy(ctx, election.ID, "admin-1")
	require.NoError(t, err)

	assert.Equal(t, fl.simulateAddr, result.LedgerAddress)
	assert.Equal(t, "0xfeed", result.TxHash)
	assert.Equal(t, int64(42), result.BlockNumber)
	assert.False(t, result.StartAdjusted)
	assert.False(t, result.SelfAuthorized)
	assert.True(t, result.Started)
	require.NotNil(t, result.Registration)
	assert.Equal(t, 1, result.Registration.Registered)

	stored, err := elections.GetByID(ctx, election.ID)
	require.NoError(t, err)
	assert.Equal(t, fl.simulateAddr, stored.LedgerAddress)
	assert.Equal(t, "0xfeed", stored.LedgerTxHash)
	require.NotNil(t, stored.DeployedAt)
	assert.Equal(t, now, *stored.DeployedAt)
	// auto-start succeeded, so the record moved past scheduled
	assert.Equal(t, database.ElectionStatusActive, stored.Status)
	require.NotNil(t, stored.StartedAt)
}

func TestDeployClampsPastStart(t *testing.T) {
	orch, elections, _, _, now := newDeploymentFixture(t)
	ctx := context.Background()

	election := deployableElection(now)
	election.StartTime = now.Add(-30 * time.Minute)
	require.NoError(t, elections.Create(ctx, election))

	result, err := orch.Deploy(ctx, election.ID, "admin-1")
	require.NoError(t, err)
	assert.True(t, result.StartAdjusted)

	stored, err := elections.GetByID(ctx, election.ID)
	require.NoError(t, err)
	assert.Equal(t, now, stored.StartTime)
}

func TestDeployGuards(t *testing.T) {
	t.Run("unknown election", func(t *testing.T) {
		orch, _, _, _, _ := newDeploymentFixture(t)
		_, err := orch.Deploy(context.Background(), "missing", "admin-1")
		var notFound *NotFoundError
		require.ErrorAs(t, err, &notFound)
	})

	t.Run("non-creator rejected", func(t *testing.T) {
		orch, elections, _, fl, now := newDeploymentFixture(t)
		ctx := context.Background()
		require.NoError(t, elections.Create(ctx, deployableElection(now)))

		_, err := orch.Deploy(ctx, "elec-1", "someone-else")
		var authz *AuthorizationError
		require.ErrorAs(t, err, &authz)
		assert.Zero(t, fl.simulateCalls)
	})

	t.Run("already deployed", func(t *testing.T) {
		orch, elections, _, fl, now := newDeploymentFixture(t)
		ctx := context.Background()
		election := deployableElection(now)
		election.Status = database.ElectionStatusScheduled
		election.LedgerAddress = "0xexisting"
		require.NoError(t, elections.Create(ctx, election))

		_, err := orch.Deploy(ctx, election.ID, "admin-1")
		var conflict *ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Zero(t, fl.createCalls)
	})
}

func TestDeployPreflightAbort(t *testing.T) {
	orch, elections, _, fl, now := newDeploymentFixture(t)
	ctx := context.Background()
	require.NoError(t, elections.Create(ctx, deployableElection(now)))

	fl.simulateErrs = []error{fmt.Errorf("execution reverted: bad params")}

	_, err := orch.Deploy(ctx, "elec-1", "admin-1")
	var ledgerErr *ExternalLedgerError
	require.ErrorAs(t, err, &ledgerErr)
	assert.Equal(t, "preflight", ledgerErr.Op)
	assert.Zero(t, fl.createCalls, "a failed preflight must never send the paying transaction")

	stored, err := elections.GetByID(ctx, "elec-1")
	require.NoError(t, err)
	assert.Empty(t, stored.LedgerAddress)
	assert.Equal(t, database.ElectionStatusDraft, stored.Status)
}

func TestDeploySelfAuthorization(t *testing.T) {
	t.Run("factory owner recovers once", func(t *testing.T) {
		orch, elections, _, fl, now := newDeploymentFixture(t)
		ctx := context.Background()
		require.NoError(t, elections.Create(ctx, deployableElection(now)))

		fl.simulateErrs = []error{ledger.ErrNotAuthorized, nil}
		fl.isOwner = true

		result, err := orch.Deploy(ctx, "elec-1", "admin-1")
		require.NoError(t, err)
		assert.True(t, result.SelfAuthorized)
		assert.True(t, fl.authorized)
		assert.Equal(t, 2, fl.simulateCalls)
	})

	t.Run("non-owner aborts", func(t *testing.T) {
		orch, elections, _, fl, now := newDeploymentFixture(t)
		ctx := context.Background()
		require.NoError(t, elections.Create(ctx, deployableElection(now)))

		fl.simulateErrs = []error{ledger.ErrNotAuthorized}
		fl.isOwner = false

		_, err := orch.Deploy(ctx, "elec-1", "admin-1")
		var ledgerErr *ExternalLedgerError
		require.ErrorAs(t, err, &ledgerErr)
		assert.False(t, fl.authorized)
		assert.Equal(t, 1, fl.simulateCalls)
	})

	t.Run("second revert is final", func(t *testing.T) {
		orch, elections, _, fl, now := newDeploymentFixture(t)
		ctx := context.Background()
		require.NoError(t, elections.Create(ctx, deployableElection(now)))

		fl.simulateErrs = []error{ledger.ErrNotAuthorized, ledger.ErrNotAuthorized}
		fl.isOwner = true

		_, err := orch.Deploy(ctx, "elec-1", "admin-1")
		var ledgerErr *ExternalLedgerError
		require.ErrorAs(t, err, &ledgerErr)
		assert.Equal(t, 2, fl.simulateCalls)
	})
}

func TestDeployStartFailureIsNonFatal(t *testing.T) {
	orch, elections, _, fl, now := newDeploymentFixture(t)
	ctx := context.Background()
	require.NoError(t, elections.Create(ctx, deployableElection(now)))

	fl.startErr = errors.New("rpc timeout")

	result, err := orch.Deploy(ctx, "elec-1", "admin-1")
	require.NoError(t, err, "publish succeeded, follow-up failures stay in the result")
	assert.False(t, result.Started)
	assert.NotEmpty(t, result.StartError)
	assert.NotEmpty(t, result.LedgerAddress)

	stored, err := elections.GetByID(ctx, "elec-1")
	require.NoError(t, err)
	assert.Equal(t, database.ElectionStatusScheduled, stored.Status)
}

func TestRegisterVoters(t *testing.T) {
	orch, elections, voters, fl, now := newDeploymentFixture(t)
	ctx := context.Background()

	election := deployableElection(now)
	election.Status = database.ElectionStatusScheduled
	election.LedgerAddress = "0xc0ffee"
	require.NoError(t, elections.Create(ctx, election))

	for i := 0; i < 4; i++ {
		require.NoError(t, voters.Create(ctx, &database.Voter{
			ID:         fmt.Sprintf("v%d", i),
			ElectionID: election.ID,
			UniqueID:   fmt.Sprintf("EMP-%d", i),
			Email:      fmt.Sprintf("v%d@corp.test", i),
			SecretHash: fmt.Sprintf("hash-%d", i),
			Status:     database.VoterStatusActive,
			VoteWeight: 1,
		}))
	}
	// a pending voter must not be pushed to the ledger
	require.NoError(t, voters.Create(ctx, &database.Voter{
		ID: "vp", ElectionID: election.ID, UniqueID: "EMP-P", Email: "vp@corp.test",
		SecretHash: "hash-p", Status: database.VoterStatusPending, VoteWeight: 1,
	}))
	// one voter the ledger already knows
	fl.registered[election.LedgerAddress+"/hash-2"] = true

	report, err := orch.RegisterVoters(ctx, election)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Registered)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Failed)

	require.Len(t, fl.registeredSets, 1)
	assert.NotContains(t, fl.registeredSets[0], "hash-2")
	assert.NotContains(t, fl.registeredSets[0], "hash-p")

	t.Run("batch failure counts every voter in the batch", func(t *testing.T) {
		fl.registerErr = errors.New("out of gas")
		fl.registered = map[string]bool{}

		report, err := orch.RegisterVoters(ctx, election)
		require.NoError(t, err)
		assert.Equal(t, 0, report.Registered)
		assert.Equal(t, 4, report.Failed)
	})

	t.Run("undeployed election is a conflict", func(t *testing.T) {
		bare := &database.Election{ID: "elec-2", Status: database.ElectionStatusDraft}
		_, err := orch.RegisterVoters(ctx, bare)
		var conflict *ConflictError
		require.ErrorAs(t, err, &conflict)
	})
}

func TestEnsureStartedIdempotent(t *testing.T) {
	orch, elections, _, fl, now := newDeploymentFixture(t)
	ctx := context.Background()

	election := deployableElection(now)
	election.Status = database.ElectionStatusScheduled
	election.LedgerAddress = "0xc0ffee"
	require.NoError(t, elections.Create(ctx, election))

	require.NoError(t, orch.EnsureStarted(ctx, election))
	assert.Equal(t, 1, fl.startCalls)
	assert.Equal(t, database.ElectionStatusActive, election.Status)

	// already active on the ledger, no second start transaction
	require.NoError(t, orch.EnsureStarted(ctx, election))
	assert.Equal(t, 1, fl.startCalls)
}

func TestActivate(t *testing.T) {
	t.Run("before start with ledger already active", func(t *testing.T) {
		orch, elections, _, fl, now := newDeploymentFixture(t)
		ctx := context.Background()

		election := deployableElection(now)
		election.Status = database.ElectionStatusScheduled
		election.LedgerAddress = "0xc0ffee"
		election.StartTime = now.Add(time.Hour)
		require.NoError(t, elections.Create(ctx, election))
		fl.active["0xc0ffee"] = true

		activated, err := orch.Activate(ctx, election.ID)
		require.NoError(t, err)
		assert.Equal(t, database.ElectionStatusActive, activated.Status)
	})

	t.Run("before start without ledger state", func(t *testing.T) {
		orch, elections, _, _, now := newDeploymentFixture(t)
		ctx := context.Background()

		election := deployableElection(now)
		election.Status = database.ElectionStatusScheduled
		election.StartTime = now.Add(time.Hour)
		require.NoError(t, elections.Create(ctx, election))

		_, err := orch.Activate(ctx, election.ID)
		var conflict *ConflictError
		require.ErrorAs(t, err, &conflict)
	})

	t.Run("past start without ledger address activates locally", func(t *testing.T) {
		orch, elections, _, fl, now := newDeploymentFixture(t)
		ctx := context.Background()

		election := deployableElection(now)
		election.Status = database.ElectionStatusScheduled
		election.StartTime = now.Add(-time.Minute)
		require.NoError(t, elections.Create(ctx, election))

		activated, err := orch.Activate(ctx, election.ID)
		require.NoError(t, err)
		assert.Equal(t, database.ElectionStatusActive, activated.Status)
		require.NotNil(t, activated.StartedAt)
		assert.Zero(t, fl.startCalls)
	})
}

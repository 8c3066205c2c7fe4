package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"election-system/internal/database"
	"election-system/internal/ledger"
	"election-system/pkg/logger"
)

// registration batches are chunked so one bad batch does not sink the rest
const registerBatchSize = 50

// DeploymentOrchestrator publishes an election and its eligible voters to the
// external ledger and synchronizes local state. Each network step may fail
// independently; the required publish step aborts cleanly, the follow-up
// steps are best-effort and individually re-runnable.
type DeploymentOrchestrator struct {
	elections ElectionStore
	voters    VoterStore
	machine   *StateMachine
	ledger    Ledger
	log       *logger.Logger
	now       func() time.Time
}

// NewDeploymentOrchestrator creates an orchestrator.
func NewDeploymentOrchestrator(elections ElectionStore, voters VoterStore, machine *StateMachine, l Ledger, log *logger.Logger) *DeploymentOrchestrator {
	return &DeploymentOrchestrator{
		elections: elections,
		voters:    voters,
		machine:   machine,
		ledger:    l,
		log:       log.WithComponent("deployment"),
		now:       time.Now,
	}
}

// RegistrationReport counts the outcome of a voter registration sweep.
type RegistrationReport struct {
	Registered int `json:"registered"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// DeploymentResult reports everything that happened during one deployment
// attempt, including the non-fatal follow-up outcomes.
type DeploymentResult struct {
	ElectionID     string              `json:"election_id"`
	LedgerAddress  string              `json:"ledger_address"`
	TxHash         string              `json:"tx_hash"`
	BlockNumber    int64               `json:"block_number"`
	StartAdjusted  bool                `json:"start_adjusted"`
	SelfAuthorized bool                `json:"self_authorized"`
	Started        bool                `json:"started"`
	StartError     string              `json:"start_error,omitempty"`
	Registration   *RegistrationReport `json:"registration,omitempty"`
}

// Deploy runs the full publish pipeline for an election. Local guard
// violations abort before any external call; a failed publish leaves local
// state untouched so the caller may retry.
func (o *DeploymentOrchestrator) Deploy(ctx context.Context, electionID, requesterID string) (*DeploymentResult, error) {
	election, err := o.elections.GetByID(ctx, electionID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Resource: "election", ID: electionID}
		}
		return nil, err
	}

	if requesterID != "" && election.CreatorID != requesterID {
		return nil, &AuthorizationError{Message: "only the election creator may deploy it"}
	}

	if err := o.machine.CanDeploy(election); err != nil {
		return nil, err
	}

	effectiveStart, adjusted := o.machine.ClampStart(election)
	payload := ledger.DeployPayload{
		Title:           election.Title,
		StartTime:       effectiveStart.Unix(),
		EndTime:         election.EndTime.Unix(),
		MaxVoters:       int64(election.MaxVotersCount),
		RealTimeResults: election.RealTimeResults,
	}

	result := &DeploymentResult{ElectionID: electionID, StartAdjusted: adjusted}

	// Preflight: a paying transaction predicted to fail is never sent.
	contractAddr, err := o.preflight(ctx, payload, result)
	if err != nil {
		return nil, err
	}

	txResult, err := o.ledger.CreateElection(ctx, payload)
	if err != nil {
		return nil, &ExternalLedgerError{Op: "publish", Err: err}
	}

	o.log.DeploymentLogger("election_published", electionID, txResult.TxHash,
		fmt.Sprintf("contract %s, block %d", contractAddr, txResult.BlockNumber))

	deployedAt := o.now()
	election.LedgerAddress = contractAddr
	election.LedgerTxHash = txResult.TxHash
	election.DeployedAt = &deployedAt
	election.Status = database.ElectionStatusScheduled
	if adjusted {
		election.StartTime = effectiveStart
	}
	election.UpdatedAt = deployedAt

	if err := o.elections.Update(ctx, election); err != nil {
		return nil, fmt.Errorf("election published at %s but local update failed: %w", contractAddr, err)
	}

	result.LedgerAddress = contractAddr
	result.TxHash = txResult.TxHash
	result.BlockNumber = txResult.BlockNumber

	// Best-effort follow-ups. Failures are reported, never rolled back.
	if err := o.EnsureStarted(ctx, election); err != nil {
		result.StartError = err.Error()
		o.log.Warning("Auto-start after deploy failed - election: %s: %v", electionID, err)
	} else {
		result.Started = true
	}

	report, err := o.RegisterVoters(ctx, election)
	if err != nil {
		o.log.Warning("Voter registration after deploy failed - election: %s: %v", electionID, err)
		report = &RegistrationReport{}
	}
	result.Registration = report

	return result, nil
}

// preflight dry-runs the publish call and returns the predicted contract
// address. An authorization-shaped revert triggers a one-time
// self-authorization when the signer owns the factory, then a single retry.
func (o *DeploymentOrchestrator) preflight(ctx context.Context, payload ledger.DeployPayload, result *DeploymentResult) (string, error) {
	addr, err := o.ledger.SimulateCreateElection(ctx, payload)
	if err == nil {
		return addr, nil
	}

	if !errors.Is(err, ledger.ErrNotAuthorized) {
		return "", &ExternalLedgerError{Op: "preflight", Err: err}
	}

	isOwner, ownerErr := o.ledger.IsFactoryOwner(ctx)
	if ownerErr != nil || !isOwner {
		return "", &ExternalLedgerError{Op: "preflight", Err: err}
	}

	o.log.Warning("Signer not authorized on factory; attempting one-time self-authorization")
	if authErr := o.ledger.AuthorizeSelf(ctx); authErr != nil {
		return "", &ExternalLedgerError{Op: "self-authorization", Err: authErr}
	}
	result.SelfAuthorized = true

	addr, err = o.ledger.SimulateCreateElection(ctx, payload)
	if err != nil {
		return "", &ExternalLedgerError{Op: "preflight", Err: err}
	}
	return addr, nil
}

// EnsureStarted checks ledger state before acting so that repeated calls
// converge: an election already active on the ledger is only mirrored
// locally, never started twice.
func (o *DeploymentOrchestrator) EnsureStarted(ctx context.Context, election *database.Election) error {
	if election.LedgerAddress == "" {
		return &ConflictError{Message: "election has not been published to the ledger"}
	}

	active, err := o.ledger.IsElectionActive(ctx, election.LedgerAddress)
	if err != nil {
		return &ExternalLedgerError{Op: "is-active", Err: err}
	}

	if !active {
		txResult, err := o.ledger.StartElection(ctx, election.LedgerAddress)
		if err != nil {
			return &ExternalLedgerError{Op: "start", Err: err}
		}
		o.log.DeploymentLogger("election_started", election.ID, txResult.TxHash, "")
	}

	if election.Status != database.ElectionStatusActive {
		startedAt := o.now()
		election.Status = database.ElectionStatusActive
		election.StartedAt = &startedAt
		election.UpdatedAt = startedAt
		if err := o.elections.Update(ctx, election); err != nil {
			return err
		}
	}

	return nil
}

// RegisterVoters registers all locally ACTIVE voters that the ledger does
// not know yet, continuing past per-batch failures. The ledger is
// authoritative for "is this voter registered".
func (o *DeploymentOrchestrator) RegisterVoters(ctx context.Context, election *database.Election) (*RegistrationReport, error) {
	if election.LedgerAddress == "" {
		return nil, &ConflictError{Message: "election has not been published to the ledger"}
	}

	voters, err := o.voters.ListByStatus(ctx, election.ID, database.VoterStatusActive)
	if err != nil {
		return nil, err
	}

	report := &RegistrationReport{}
	var pendingIDs, pendingEmails []string

	for _, v := range voters {
		registered, err := o.ledger.IsVoterRegistered(ctx, election.LedgerAddress, v.SecretHash)
		if err != nil {
			report.Failed++
			continue
		}
		if registered {
			report.Skipped++
			continue
		}
		// the hashed secret is the on-ledger voter identity; the raw
		// secret never reaches the ledger
		pendingIDs = append(pendingIDs, v.SecretHash)
		pendingEmails = append(pendingEmails, v.Email)
	}

	for start := 0; start < len(pendingIDs); start += registerBatchSize {
		end := start + registerBatchSize
		if end > len(pendingIDs) {
			end = len(pendingIDs)
		}

		txResult, err := o.ledger.BatchRegisterVoters(ctx, election.LedgerAddress,
			pendingIDs[start:end], pendingEmails[start:end])
		if err != nil {
			report.Failed += end - start
			o.log.Warning("Voter registration batch failed - election: %s, batch: %d-%d: %v",
				election.ID, start, end, err)
			continue
		}

		report.Registered += end - start
		o.log.DeploymentLogger("voters_registered", election.ID, txResult.TxHash,
			fmt.Sprintf("%d voters", end-start))
	}

	return report, nil
}

// Activate moves a scheduled election to active, either because the start
// time arrived or because the ledger already reports it active.
func (o *DeploymentOrchestrator) Activate(ctx context.Context, electionID string) (*database.Election, error) {
	election, err := o.elections.GetByID(ctx, electionID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Resource: "election", ID: electionID}
		}
		return nil, err
	}

	if err := o.machine.CanActivate(election); err != nil {
		// A ledger that already reports the election active overrides the
		// local clock check.
		if election.Status != database.ElectionStatusScheduled || election.LedgerAddress == "" {
			return nil, err
		}
		active, lerr := o.ledger.IsElectionActive(ctx, election.LedgerAddress)
		if lerr != nil || !active {
			return nil, err
		}
	}

	if election.LedgerAddress != "" {
		if err := o.EnsureStarted(ctx, election); err != nil {
			return nil, err
		}
	} else {
		startedAt := o.now()
		election.Status = database.ElectionStatusActive
		election.StartedAt = &startedAt
		election.UpdatedAt = startedAt
		if err := o.elections.Update(ctx, election); err != nil {
			return nil, err
		}
	}

	return election, nil
}

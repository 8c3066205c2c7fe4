package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"election-system/internal/database"
	"election-system/internal/ledger"
	"election-system/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.NewLogger("error", "")
}

// memElectionStore is an in-memory ElectionStore.
type memElectionStore struct {
	mu        sync.Mutex
	elections map[string]*database.Election
}

func newMemElectionStore() *memElectionStore {
	return &memElectionStore{elections: make(map[string]*database.Election)}
}

func (s *memElectionStore) Create(_ context.Context, e *database.Election) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.elections[e.ID] = &cp
	return nil
}

func (s *memElectionStore) GetByID(_ context.Context, id string) (*database.Election, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.elections[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *memElectionStore) List(_ context.Context, limit, offset int) ([]database.Election, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []database.Election
	for _, e := range s.elections {
		out = append(out, *e)
	}
	return out, nil
}

func (s *memElectionStore) Update(_ context.Context, e *database.Election) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.elections[e.ID]; !ok {
		return database.ErrNotFound
	}
	cp := *e
	s.elections[e.ID] = &cp
	return nil
}

func (s *memElectionStore) DeleteDraftCascade(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.elections[id]
	if !ok || e.Status != database.ElectionStatusDraft {
		return database.ErrNotFound
	}
	delete(s.elections, id)
	return nil
}

// memVoterStore is an in-memory VoterStore enforcing the per-election
// uniqueness constraints.
type memVoterStore struct {
	mu     sync.Mutex
	voters map[string]*database.Voter
}

func newMemVoterStore() *memVoterStore {
	return &memVoterStore{voters: make(map[string]*database.Voter)}
}

func (s *memVoterStore) Create(_ context.Context, v *database.Voter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.voters {
		if existing.ElectionID == v.ElectionID &&
			(existing.UniqueID == v.UniqueID || existing.Email == v.Email) {
			return database.ErrDuplicate
		}
	}
	cp := *v
	s.voters[v.ID] = &cp
	return nil
}

func (s *memVoterStore) GetByID(_ context.Context, id string) (*database.Voter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.voters[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (s *memVoterStore) GetByUniqueID(_ context.Context, electionID, uniqueID string) (*database.Voter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.voters {
		if v.ElectionID == electionID && v.UniqueID == uniqueID {
			cp := *v
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *memVoterStore) GetByVerificationToken(_ context.Context, token string) (*database.Voter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.voters {
		if v.VerificationToken != "" && v.VerificationToken == token {
			cp := *v
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *memVoterStore) ListByElection(_ context.Context, electionID string) ([]database.Voter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []database.Voter
	for _, v := range s.voters {
		if v.ElectionID == electionID {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (s *memVoterStore) ListByStatus(_ context.Context, electionID string, status database.VoterStatus) ([]database.Voter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []database.Voter
	for _, v := range s.voters {
		if v.ElectionID == electionID && v.Status == status {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (s *memVoterStore) Update(_ context.Context, v *database.Voter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.voters[v.ID]; !ok {
		return database.ErrNotFound
	}
	cp := *v
	s.voters[v.ID] = &cp
	return nil
}

func (s *memVoterStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.voters[id]; !ok {
		return database.ErrNotFound
	}
	delete(s.voters, id)
	return nil
}

// memBallotStore is an in-memory BallotStore.
type memBallotStore struct {
	mu      sync.Mutex
	ballots map[string]*database.Ballot
}

func newMemBallotStore() *memBallotStore {
	return &memBallotStore{ballots: make(map[string]*database.Ballot)}
}

func (s *memBallotStore) CreateVersion(_ context.Context, b *database.Ballot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	maxVersion := 0
	for _, existing := range s.ballots {
		if existing.ElectionID == b.ElectionID {
			existing.IsActive = false
			if existing.Version > maxVersion {
				maxVersion = existing.Version
			}
		}
	}
	b.Version = maxVersion + 1
	b.IsActive = true
	cp := *b
	s.ballots[b.ID] = &cp
	return nil
}

func (s *memBallotStore) GetActive(_ context.Context, electionID string) (*database.Ballot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.ballots {
		if b.ElectionID == electionID && b.IsActive {
			cp := *b
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *memBallotStore) GetByID(_ context.Context, id string) (*database.Ballot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.ballots[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *memBallotStore) ListVersions(_ context.Context, electionID string) ([]database.Ballot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []database.Ballot
	for _, b := range s.ballots {
		if b.ElectionID == electionID {
			out = append(out, *b)
		}
	}
	return out, nil
}

// memVoteStore is an in-memory VoteStore implementing the same atomic
// has_voted semantics as the SQL repository.
type memVoteStore struct {
	mu     sync.Mutex
	votes  map[string]*database.Vote
	voters *memVoterStore
}

func newMemVoteStore(voters *memVoterStore) *memVoteStore {
	return &memVoteStore{votes: make(map[string]*database.Vote), voters: voters}
}

func (s *memVoteStore) CreateForVoter(_ context.Context, v *database.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voters.mu.Lock()
	defer s.voters.mu.Unlock()

	voter, ok := s.voters.voters[v.VoterID]
	if !ok {
		return database.ErrNotFound
	}
	if voter.HasVoted {
		return database.ErrAlreadyVoted
	}
	voter.HasVoted = true
	cp := *v
	s.votes[v.ID] = &cp
	return nil
}

func (s *memVoteStore) GetByID(_ context.Context, id string) (*database.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.votes[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (s *memVoteStore) GetByVoter(_ context.Context, electionID, voterID string) (*database.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.votes {
		if v.ElectionID == electionID && v.VoterID == voterID {
			cp := *v
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *memVoteStore) Confirm(_ context.Context, voteID, txHash string, blockNumber int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.votes[voteID]
	if !ok || v.Status != database.VoteStatusPending {
		return database.ErrNotFound
	}
	now := time.Now()
	v.Status = database.VoteStatusConfirmed
	v.TxHash = txHash
	v.BlockNumber = blockNumber
	v.ConfirmedAt = &now
	return nil
}

func (s *memVoteStore) Reject(_ context.Context, voteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.votes[voteID]
	if !ok || v.Status != database.VoteStatusPending {
		return database.ErrNotFound
	}
	v.Status = database.VoteStatusRejected

	s.voters.mu.Lock()
	defer s.voters.mu.Unlock()
	if voter, ok := s.voters.voters[v.VoterID]; ok {
		voter.HasVoted = false
	}
	return nil
}

func (s *memVoteStore) ListConfirmedWithWeight(_ context.Context, electionID string) ([]database.VoteWithWeight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voters.mu.Lock()
	defer s.voters.mu.Unlock()

	var out []database.VoteWithWeight
	for _, v := range s.votes {
		if v.ElectionID != electionID || v.Status != database.VoteStatusConfirmed {
			continue
		}
		weight := 1
		if voter, ok := s.voters.voters[v.VoterID]; ok {
			weight = voter.VoteWeight
		}
		out = append(out, database.VoteWithWeight{Vote: *v, VoteWeight: weight})
	}
	return out, nil
}

// fakeLedger scripts ledger behavior for orchestration tests.
type fakeLedger struct {
	mu sync.Mutex

	simulateErrs   []error // consumed one per SimulateCreateElection call
	simulateAddr   string
	isOwner        bool
	authorizeErr   error
	authorized     bool
	createErr      error
	startErr       error
	active         map[string]bool
	registered     map[string]bool
	voted          map[string]bool
	registerErr    error
	castErr        error
	verifyErr      error
	verifyResult   *ledger.TxResult
	simulateCalls  int
	createCalls    int
	startCalls     int
	registerCalls  int
	registeredSets [][]string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		simulateAddr: "0xc0ffee0000000000000000000000000000000000",
		active:       make(map[string]bool),
		registered:   make(map[string]bool),
		voted:        make(map[string]bool),
	}
}

func (f *fakeLedger) txResult() *ledger.TxResult {
	return &ledger.TxResult{TxHash: "0xfeed", BlockNumber: 42, GasUsed: 21000}
}

func (f *fakeLedger) SimulateCreateElection(_ context.Context, _ ledger.DeployPayload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.simulateCalls++
	if len(f.simulateErrs) > 0 {
		err := f.simulateErrs[0]
		f.simulateErrs = f.simulateErrs[1:]
		if err != nil {
			return "", err
		}
	}
	return f.simulateAddr, nil
}

func (f *fakeLedger) IsFactoryOwner(_ context.Context) (bool, error) {
	return f.isOwner, nil
}

func (f *fakeLedger) AuthorizeSelf(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.authorizeErr != nil {
		return f.authorizeErr
	}
	f.authorized = true
	return nil
}

func (f *fakeLedger) CreateElection(_ context.Context, _ ledger.DeployPayload) (*ledger.TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.txResult(), nil
}

func (f *fakeLedger) StartElection(_ context.Context, contractAddr string) (*ledger.TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.active[contractAddr] = true
	return f.txResult(), nil
}

func (f *fakeLedger) IsElectionActive(_ context.Context, contractAddr string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active[contractAddr], nil
}

func (f *fakeLedger) BatchRegisterVoters(_ context.Context, contractAddr string, voterIDs, emails []string) (*ledger.TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registerCalls++
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	for _, id := range voterIDs {
		f.registered[contractAddr+"/"+id] = true
	}
	f.registeredSets = append(f.registeredSets, voterIDs)
	return f.txResult(), nil
}

func (f *fakeLedger) IsVoterRegistered(_ context.Context, contractAddr, voterID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registered[contractAddr+"/"+voterID], nil
}

func (f *fakeLedger) HasVoterVoted(_ context.Context, contractAddr, voterID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.voted[contractAddr+"/"+voterID], nil
}

func (f *fakeLedger) CastVote(_ context.Context, contractAddr, voteHash, voterID string) (*ledger.TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.castErr != nil {
		return nil, f.castErr
	}
	f.voted[contractAddr+"/"+voterID] = true
	return f.txResult(), nil
}

func (f *fakeLedger) PrepareCastVote(contractAddr, voteHash, voterID string) (*ledger.UnsignedCall, error) {
	return &ledger.UnsignedCall{
		To:       contractAddr,
		Data:     fmt.Sprintf("0xdeadbeef%x", len(voteHash)+len(voterID)),
		GasLimit: 200000,
		ChainID:  1337,
	}, nil
}

func (f *fakeLedger) VerifyVoteTransaction(_ context.Context, contractAddr, txHash string) (*ledger.TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	if f.verifyResult != nil {
		return f.verifyResult, nil
	}
	return &ledger.TxResult{TxHash: txHash, BlockNumber: 77}, nil
}

func (f *fakeLedger) BlockNumber(_ context.Context) (uint64, error) {
	return 100, nil
}

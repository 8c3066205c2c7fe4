package api

import (
	"database/sql"

	"election-system/internal/api/ws"
	"election-system/internal/cache"
	"election-system/internal/database/repositories"
	"election-system/internal/ledger"
	"election-system/internal/services"
	"election-system/pkg/config"
	"election-system/pkg/logger"
)

// Services is the dependency container handlers receive. It wires the
// repositories, the ledger client and the domain services together once, at
// startup.
type Services struct {
	db     *sql.DB
	cfg    *config.Config
	log    *logger.Logger
	ledger *ledger.Client
	hub    *ws.Hub

	elections  *services.ElectionManager
	registry   *services.VoterRegistry
	deployment *services.DeploymentOrchestrator
	intake     *services.VoteIntakeEngine
	results    *services.ResultsAggregator
}

// NewServices builds the full service graph. resultsCache may be nil.
func NewServices(db *sql.DB, ledgerClient *ledger.Client, resultsCache *cache.ResultsCache, cfg *config.Config, log *logger.Logger) (*Services, error) {
	electionRepo := repositories.NewElectionRepository(db)
	voterRepo := repositories.NewVoterRepository(db)
	ballotRepo := repositories.NewBallotRepository(db)
	voteRepo := repositories.NewVoteRepository(db)

	machine := services.NewStateMachine(cfg.Election.MinDuration)

	registry, err := services.NewVoterRegistry(voterRepo, electionRepo, machine, cfg.Election.SecretKey, log)
	if err != nil {
		return nil, err
	}

	var resultsStore services.ResultsCache
	if resultsCache != nil {
		resultsStore = resultsCache
	}

	s := &Services{
		db:         db,
		cfg:        cfg,
		log:        log,
		ledger:     ledgerClient,
		hub:        ws.NewHub(log),
		elections:  services.NewElectionManager(electionRepo, ballotRepo, machine, cfg.Election.AllowSameDayStart, log),
		registry:   registry,
		deployment: services.NewDeploymentOrchestrator(electionRepo, voterRepo, machine, ledgerClient, log),
		results:    services.NewResultsAggregator(electionRepo, voterRepo, ballotRepo, voteRepo, resultsStore, cfg.Election.ResultsSampleSize, log),
	}
	s.intake = services.NewVoteIntakeEngine(electionRepo, voterRepo, ballotRepo, voteRepo, registry, machine, ledgerClient, log)
	return s, nil
}

// Stop tears down background machinery.
func (s *Services) Stop() {
	s.hub.Close()
}

func (s *Services) GetLogger() *logger.Logger { return s.log }

func (s *Services) GetConfig() *config.Config { return s.cfg }

func (s *Services) GetDB() *sql.DB { return s.db }

func (s *Services) Elections() *services.ElectionManager { return s.elections }

func (s *Services) Registry() *services.VoterRegistry { return s.registry }

func (s *Services) Deployment() *services.DeploymentOrchestrator { return s.deployment }

func (s *Services) Intake() *services.VoteIntakeEngine { return s.intake }

func (s *Services) Results() *services.ResultsAggregator { return s.results }

func (s *Services) Hub() *ws.Hub { return s.hub }

func (s *Services) Ledger() services.Ledger {
	if s.ledger == nil {
		return nil
	}
	return s.ledger
}

// IsHealthy checks the critical dependencies.
func (s *Services) IsHealthy() bool {
	if err := s.db.Ping(); err != nil {
		s.log.Error("Database health check failed: %v", err)
		return false
	}
	return true
}

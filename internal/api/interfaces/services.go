package interfaces

import (
	"database/sql"

	"election-system/internal/api/ws"
	"election-system/internal/services"
	"election-system/pkg/config"
	"election-system/pkg/logger"
)

// Services is the dependency surface handlers and middlewares consume. The
// api package owns the concrete container.
type Services interface {
	GetLogger() *logger.Logger
	GetConfig() *config.Config
	GetDB() *sql.DB

	Elections() *services.ElectionManager
	Registry() *services.VoterRegistry
	Deployment() *services.DeploymentOrchestrator
	Intake() *services.VoteIntakeEngine
	Results() *services.ResultsAggregator
	Ledger() services.Ledger
	Hub() *ws.Hub

	IsHealthy() bool
}

package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"election-system/internal/api/handlers"
	"election-system/internal/api/middlewares"
)

// SetupRoutes configures all API routes with their middleware.
func SetupRoutes(router *gin.Engine, services *Services) {
	log := services.GetLogger()

	router.Use(middlewares.Recovery(log))
	router.Use(middlewares.CORS(services.GetConfig().Server.AllowedOrigins))
	router.Use(log.RequestLogger())
	router.Use(middlewares.RateLimit(300, time.Minute))

	router.GET("/health", handlers.HealthCheck(services))

	v1 := router.Group("/api/v1")
	{
		setupPublicRoutes(v1, services)
		setupAdminRoutes(v1, services)
	}
}

// setupPublicRoutes configures routes that don't require authentication.
func setupPublicRoutes(rg *gin.RouterGroup, services *Services) {
	elections := rg.Group("/elections")
	{
		elections.GET("", handlers.ListElections(services))
		elections.GET("/:id", handlers.GetElection(services))
		elections.GET("/:id/ballot", handlers.GetBallot(services))
	}

	voters := rg.Group("/voters")
	{
		voters.GET("/verify/:token", handlers.VerifyVoter(services))
	}

	votes := rg.Group("/votes")
	{
		// voting endpoints authenticate with voter credentials in the body,
		// not with a bearer token
		votes.POST("/:electionId/vote", handlers.CastVote(services))
		votes.POST("/:electionId/prepare", handlers.PrepareVote(services))
		votes.POST("/:electionId/record", handlers.RecordVote(services))

		votes.GET("/:electionId/results/public", handlers.GetPublicResults(services))
		votes.GET("/:electionId/results/live", handlers.LiveResults(services))
	}
}

// setupAdminRoutes configures routes that require an administrator token.
func setupAdminRoutes(rg *gin.RouterGroup, services *Services) {
	admin := rg.Group("/")
	admin.Use(middlewares.AdminRequired(services))
	{
		elections := admin.Group("/elections")
		{
			elections.POST("", handlers.CreateElection(services))
			elections.PUT("/:id", handlers.UpdateElection(services))
			elections.DELETE("/:id", handlers.DeleteElection(services))
			elections.POST("/:id/cancel", handlers.CancelElection(services))
			elections.POST("/:id/deploy", handlers.DeployElection(services))
			elections.POST("/:id/activate", handlers.ActivateElection(services))
			elections.POST("/:id/register-voters", handlers.RegisterVoters(services))

			elections.POST("/:id/ballot", handlers.SetBallot(services))
			elections.GET("/:id/ballot/versions", handlers.ListBallotVersions(services))

			elections.POST("/:id/voters", handlers.EnrollVoter(services))
			elections.POST("/:id/voters/bulk", handlers.BulkEnrollVoters(services))
			elections.GET("/:id/voters", handlers.ListVoters(services))
		}

		voters := admin.Group("/voters")
		{
			voters.GET("/:voterId", handlers.GetVoter(services))
			voters.PUT("/:voterId/status", handlers.UpdateVoterStatus(services))
			voters.DELETE("/:voterId", handlers.DeleteVoter(services))
		}

		votes := admin.Group("/votes")
		{
			votes.GET("/:electionId/results", handlers.GetResults(services))
			votes.POST("/:electionId/vote/:voteId/confirm", handlers.ConfirmVote(services))
			votes.POST("/:electionId/vote/:voteId/reject", handlers.RejectVote(services))
		}
	}
}

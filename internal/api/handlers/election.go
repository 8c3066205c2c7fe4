package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"election-system/internal/api/interfaces"
	"election-system/internal/api/models"
	"election-system/internal/services"
)

func respondErr(c *gin.Context, services interfaces.Services, err error) {
	apiErr := models.FromServiceError(err)
	if apiErr.StatusCode >= http.StatusInternalServerError {
		services.GetLogger().Error("Request failed - path: %s: %v", c.Request.URL.Path, err)
	}
	c.JSON(apiErr.StatusCode, models.Fail(apiErr))
}

func requesterID(c *gin.Context) string {
	return c.GetString("user_id")
}

// CreateElection creates a draft election.
func CreateElection(s interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req services.CreateElectionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.Fail(
				models.NewAPIError(models.ErrCodeInvalidRequest, err.Error(), http.StatusBadRequest)))
			return
		}

		election, err := s.Elections().Create(c.Request.Context(), requesterID(c), req)
		if err != nil {
			respondErr(c, s, err)
			return
		}
		c.JSON(http.StatusCreated, models.OK(election))
	}
}

// GetElection returns one election, lazily completing it if its window
// already closed.
func GetElection(s interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		election, err := s.Elections().Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondErr(c, s, err)
			return
		}
		if err := s.Elections().CompleteIfExpired(c.Request.Context(), election); err != nil {
			respondErr(c, s, err)
			return
		}
		c.JSON(http.StatusOK, models.OK(election))
	}
}

// ListElections returns a page of elections.
func ListElections(s interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var query struct {
			Limit  int `form:"limit"`
			Offset int `form:"offset"`
		}
		if err := c.ShouldBindQuery(&query); err != nil {
			c.JSON(http.StatusBadRequest, models.Fail(
				models.NewAPIError(models.ErrCodeInvalidRequest, err.Error(), http.StatusBadRequest)))
			return
		}

		elections, err := s.Elections().List(c.Request.Context(), query.Limit, query.Offset)
		if err != nil {
			respondErr(c, s, err)
			return
		}
		c.JSON(http.StatusOK, models.OK(elections))
	}
}

// UpdateElection edits a draft election.
func UpdateElection(s interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req services.CreateElectionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.Fail(
				models.NewAPIError(models.ErrCodeInvalidRequest, err.Error(), http.StatusBadRequest)))
			return
		}

		election, err := s.Elections().Update(c.Request.Context(), c.Param("id"), requesterID(c), req)
		if err != nil {
			respondErr(c, s, err)
			return
		}
		c.JSON(http.StatusOK, models.OK(election))
	}
}

// DeleteElection removes a draft election and its dependents.
func DeleteElection(s interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.Elections().Delete(c.Request.Context(), c.Param("id"), requesterID(c)); err != nil {
			respondErr(c, s, err)
			return
		}
		c.JSON(http.StatusOK, models.OKMessage("Election deleted", nil))
	}
}

// CancelElection aborts an election before completion.
func CancelElection(s interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		election, err := s.Elections().Cancel(c.Request.Context(), c.Param("id"), requesterID(c))
		if err != nil {
			respondErr(c, s, err)
			return
		}
		c.JSON(http.StatusOK, models.OK(election))
	}
}

// DeployElection publishes an election to the ledger and runs the
// best-effort follow-ups.
func DeployElection(s interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := s.Deployment().Deploy(c.Request.Context(), c.Param("id"), requesterID(c))
		if err != nil {
			respondErr(c, s, err)
			return
		}
		c.JSON(http.StatusOK, models.OKMessage("Election deployed", result))
	}
}

// ActivateElection opens voting for a scheduled election.
func ActivateElection(s interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		election, err := s.Deployment().Activate(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondErr(c, s, err)
			return
		}
		c.JSON(http.StatusOK, models.OK(election))
	}
}

// RegisterVoters pushes the election's eligible voters onto the ledger.
func RegisterVoters(s interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		election, err := s.Elections().Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondErr(c, s, err)
			return
		}

		report, err := s.Deployment().RegisterVoters(c.Request.Context(), election)
		if err != nil {
			respondErr(c, s, err)
			return
		}
		c.JSON(http.StatusOK, models.OK(report))
	}
}

// SetBallot publishes a new ballot version.
func SetBallot(s interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req services.SetBallotRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.Fail(
				models.NewAPIError(models.ErrCodeInvalidRequest, err.Error(), http.StatusBadRequest)))
			return
		}

		ballot, err := s.Elections().SetBallot(c.Request.Context(), c.Param("id"), requesterID(c), req)
		if err != nil {
			respondErr(c, s, err)
			return
		}
		c.JSON(http.StatusCreated, models.OK(ballot))
	}
}

// GetBallot returns the election's active ballot.
func GetBallot(s interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		ballot, err := s.Elections().ActiveBallot(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondErr(c, s, err)
			return
		}
		c.JSON(http.StatusOK, models.OK(ballot))
	}
}

// ListBallotVersions returns every ballot version, newest first.
func ListBallotVersions(s interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		ballots, err := s.Elections().BallotVersions(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondErr(c, s, err)
			return
		}
		c.JSON(http.StatusOK, models.OK(ballots))
	}
}

package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"election-system/internal/api/interfaces"
	"election-system/internal/api/models"
	"election-system/internal/api/ws"
	"election-system/internal/services"
)

// CastVote submits a vote through the server-signed path.
func CastVote(s interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.CastVoteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.Fail(
				models.NewAPIError(models.ErrCodeInvalidRequest, err.Error(), http.StatusBadRequest)))
			return
		}

		electionID := c.Param("electionId")
		vote, err := s.Intake().Cast(c.Request.Context(), services.CastRequest{
			ElectionID: electionID,
			UniqueID:   req.UniqueID,
			Secret:     req.Secret,
			Choices:    req.Choices,
		})
		if err != nil {
			respondErr(c, s, err)
			return
		}

		broadcastResults(c, s, electionID)
		c.JSON(http.StatusCreated, models.OKMessage("Vote cast", gin.H{
			"vote_id": vote.ID,
			"status":  vote.Status,
			"tx_hash": vote.TxHash,
		}))
	}
}

// PrepareVote validates a submission and returns the unsigned ledger call
// for a client-held wallet.
func PrepareVote(s interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.CastVoteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.Fail(
				models.NewAPIError(models.ErrCodeInvalidRequest, err.Error(), http.StatusBadRequest)))
			return
		}

		prepared, err := s.Intake().Prepare(c.Request.Context(), services.PrepareRequest{
			ElectionID: c.Param("electionId"),
			UniqueID:   req.UniqueID,
			Secret:     req.Secret,
			Choices:    req.Choices,
		})
		if err != nil {
			respondErr(c, s, err)
			return
		}
		c.JSON(http.StatusOK, models.OK(prepared))
	}
}

// RecordVote confirms a prepared vote after verifying the broadcast
// transaction on the ledger.
func RecordVote(s interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.RecordVoteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.Fail(
				models.NewAPIError(models.ErrCodeInvalidRequest, err.Error(), http.StatusBadRequest)))
			return
		}

		electionID := c.Param("electionId")
		vote, err := s.Intake().Record(c.Request.Context(), electionID, req.VoteID, req.TxHash)
		if err != nil {
			respondErr(c, s, err)
			return
		}

		broadcastResults(c, s, electionID)
		c.JSON(http.StatusOK, models.OKMessage("Vote recorded", gin.H{
			"vote_id": vote.ID,
			"status":  vote.Status,
			"tx_hash": vote.TxHash,
		}))
	}
}

// ConfirmVote is the admin path for confirming an off-ledger pending vote.
func ConfirmVote(s interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		vote, err := s.Intake().ConfirmVote(c.Request.Context(), c.Param("voteId"))
		if err != nil {
			respondErr(c, s, err)
			return
		}
		broadcastResults(c, s, vote.ElectionID)
		c.JSON(http.StatusOK, models.OK(vote))
	}
}

// RejectVote discards a pending vote and lets the voter resubmit.
func RejectVote(s interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		vote, err := s.Intake().RejectVote(c.Request.Context(), c.Param("voteId"))
		if err != nil {
			respondErr(c, s, err)
			return
		}
		c.JSON(http.StatusOK, models.OK(vote))
	}
}

// broadcastResults pushes a fresh snapshot to live subscribers. Failures are
// invisible to the voter whose request triggered the push.
func broadcastResults(c *gin.Context, s interfaces.Services, electionID string) {
	if s.Hub().SubscriberCount(electionID) == 0 {
		return
	}
	results, err := s.Results().Results(c.Request.Context(), electionID, true)
	if err != nil {
		s.GetLogger().Warning("Live results refresh failed - election: %s: %v", electionID, err)
		return
	}
	s.Hub().Broadcast(electionID, ws.Message{
		Type:      "results",
		Data:      results,
		Timestamp: time.Now().Unix(),
	})
}

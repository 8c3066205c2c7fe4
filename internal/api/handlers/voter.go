package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"election-system/internal/api/interfaces"
	"election-system/internal/api/models"
	"election-system/internal/services"
)

// EnrollVoter enrolls one voter. The raw secret appears in this response and
// nowhere else, ever.
func EnrollVoter(s interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.EnrollVoterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.Fail(
				models.NewAPIError(models.ErrCodeInvalidRequest, err.Error(), http.StatusBadRequest)))
			return
		}

		result, err := s.Registry().Enroll(c.Request.Context(), c.Param("id"), services.EnrollmentRequest{
			UniqueID:   req.UniqueID,
			Email:      req.Email,
			Name:       req.Name,
			VoteWeight: req.VoteWeight,
		})
		if err != nil {
			respondErr(c, s, err)
			return
		}

		c.JSON(http.StatusCreated, models.OK(gin.H{
			"voter":              result.Voter,
			"secret":             result.RawSecret,
			"verification_token": result.Voter.VerificationToken,
		}))
	}
}

// BulkEnrollVoters enrolls many voters, reporting per-row outcomes. The
// batch never fails as a whole.
func BulkEnrollVoters(s interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.BulkEnrollRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.Fail(
				models.NewAPIError(models.ErrCodeInvalidRequest, err.Error(), http.StatusBadRequest)))
			return
		}

		rows := make([]services.EnrollmentRequest, 0, len(req.Voters))
		for _, v := range req.Voters {
			rows = append(rows, services.EnrollmentRequest{
				UniqueID:   v.UniqueID,
				Email:      v.Email,
				Name:       v.Name,
				VoteWeight: v.VoteWeight,
			})
		}

		report, results, err := s.Registry().BulkEnroll(c.Request.Context(), c.Param("id"), rows)
		if err != nil {
			respondErr(c, s, err)
			return
		}

		secrets := make(map[string]string, len(results))
		for _, r := range results {
			secrets[r.Voter.UniqueID] = r.RawSecret
		}
		c.JSON(http.StatusOK, models.OK(gin.H{
			"report":  report,
			"secrets": secrets,
		}))
	}
}

// ListVoters returns an election's voters.
func ListVoters(s interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		voters, err := s.Registry().List(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondErr(c, s, err)
			return
		}
		c.JSON(http.StatusOK, models.OK(voters))
	}
}

// GetVoter returns one voter.
func GetVoter(s interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		voter, err := s.Registry().Get(c.Request.Context(), c.Param("voterId"))
		if err != nil {
			respondErr(c, s, err)
			return
		}
		c.JSON(http.StatusOK, models.OK(voter))
	}
}

// UpdateVoterStatus moves a voter along the enrollment lifecycle.
func UpdateVoterStatus(s interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.UpdateVoterStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.Fail(
				models.NewAPIError(models.ErrCodeInvalidRequest, err.Error(), http.StatusBadRequest)))
			return
		}

		voter, err := s.Registry().UpdateStatus(c.Request.Context(), c.Param("voterId"), req.Status)
		if err != nil {
			respondErr(c, s, err)
			return
		}
		c.JSON(http.StatusOK, models.OK(voter))
	}
}

// DeleteVoter removes a voter while the parent election is still a draft.
func DeleteVoter(s interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.Registry().Delete(c.Request.Context(), c.Param("voterId")); err != nil {
			respondErr(c, s, err)
			return
		}
		c.JSON(http.StatusOK, models.OKMessage("Voter deleted", nil))
	}
}

// VerifyVoter redeems a single-use verification token.
func VerifyVoter(s interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		voter, err := s.Registry().RedeemVerificationToken(c.Request.Context(), c.Param("token"))
		if err != nil {
			respondErr(c, s, err)
			return
		}
		c.JSON(http.StatusOK, models.OKMessage("Voter verified", voter))
	}
}

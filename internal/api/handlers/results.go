package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"election-system/internal/api/interfaces"
	"election-system/internal/api/models"
	"election-system/internal/api/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// origin filtering happens in the CORS layer for HTTP; live feeds
		// carry no credentials and only expose released results
		return true
	},
}

// GetResults returns the tally for authenticated administrators.
func GetResults(s interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		results, err := s.Results().Results(c.Request.Context(), c.Param("electionId"), true)
		if err != nil {
			respondErr(c, s, err)
			return
		}
		c.JSON(http.StatusOK, models.OK(results))
	}
}

// GetPublicResults returns the tally for anonymous callers, subject to the
// election's visibility and release rules.
func GetPublicResults(s interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		results, err := s.Results().PublicResults(c.Request.Context(), c.Param("electionId"))
		if err != nil {
			respondErr(c, s, err)
			return
		}
		c.JSON(http.StatusOK, models.OK(results))
	}
}

// LiveResults upgrades to a websocket and streams result snapshots as votes
// land. The release rules that gate the HTTP endpoint gate the feed too.
func LiveResults(s interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		electionID := c.Param("electionId")

		// reject before upgrading so the client gets a proper HTTP status
		results, err := s.Results().PublicResults(c.Request.Context(), electionID)
		if err != nil {
			respondErr(c, s, err)
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			s.GetLogger().Error("WebSocket upgrade failed: %v", err)
			return
		}

		client := s.Hub().Subscribe(conn, electionID)
		if client == nil {
			return
		}

		client.Send(ws.Message{
			Type:      "results",
			Data:      results,
			Timestamp: time.Now().Unix(),
		})
	}
}

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tradesphere/internal/models"
)

func (s *Server) listUsersHandler(c *gin.Context) {
	users, err := s.store.ListUsers(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

type changeTierRequest struct {
	UserID uint   `json:"user_id" binding:"required"`
	Tier   string `json:"tier" binding:"required"`
}

func (s *Server) changeTierHandler(c *gin.Context) {
	var req changeTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tier, err := models.ParseTier(req.Tier)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.store.UpdateUserTier(c.Request.Context(), req.UserID, tier); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "tier": tier.String()})
}

func (s *Server) refreshShortableHandler(c *gin.Context) {
	counts, err := s.svc.RefreshShortable(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "summary": counts})
}

func (s *Server) simulateInterestHandler(c *gin.Context) {
	charges, err := s.svc.SimulateDailyInterest(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applied": len(charges), "details": charges})
}

package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tradesphere/internal/auth"
)

func (s *Server) portfolioHandler(c *gin.Context) {
	user := auth.CurrentUser(c)
	summary, err := s.svc.PortfolioSummary(c.Request.Context(), user.ID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) positionsHandler(c *gin.Context) {
	user := auth.CurrentUser(c)
	summary, err := s.svc.PortfolioSummary(c.Request.Context(), user.ID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary.Positions)
}

func (s *Server) equityHandler(c *gin.Context) {
	user := auth.CurrentUser(c)
	summary, err := s.svc.PortfolioSummary(c.Request.Context(), user.ID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"equity":               summary.Equity,
		"maintenance_required": summary.MaintenanceRequired,
		"margin_headroom":      summary.MarginHeadroom,
		"in_margin_call":       summary.InMarginCall,
	})
}

func (s *Server) transactionsHandler(c *gin.Context) {
	user := auth.CurrentUser(c)

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	txs, err := s.svc.Transactions(c.Request.Context(), user.ID, limit, offset)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, txs)
}

func (s *Server) snapshotHandler(c *gin.Context) {
	user := auth.CurrentUser(c)
	snap, err := s.svc.SnapshotEquity(c.Request.Context(), user.ID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, snap)
}

package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"tradesphere/internal/auth"
	"tradesphere/internal/broker"
	"tradesphere/internal/models"
)

type tradeRequest struct {
	Symbol string          `json:"symbol" binding:"required"`
	Market string          `json:"market" binding:"required"`
	Qty    decimal.Decimal `json:"qty" binding:"required"`
}

type tradeFunc func(ctx context.Context, userID uint, symbol string, market models.Market, qty decimal.Decimal) (*broker.TradeResponse, error)

// tradeHandler adapts one broker trade operation into an HTTP handler.
func (s *Server) tradeHandler(execute tradeFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req tradeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		market, err := models.ParseMarket(req.Market)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		user := auth.CurrentUser(c)
		resp, err := execute(c.Request.Context(), user.ID, req.Symbol, market, req.Qty)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func (s *Server) shortableHandler(c *gin.Context) {
	var market *models.Market
	if raw := c.Query("market"); raw != "" {
		parsed, err := models.ParseMarket(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		market = &parsed
	}

	entries, err := s.svc.ListShortable(c.Request.Context(), market)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tradesphere/internal/ledger"
)

// writeError maps ledger sentinels onto HTTP responses so clients can tell
// validation problems from business-rule rejections and upstream failures.
func (s *Server) writeError(c *gin.Context, err error) {
	var status int
	switch {
	case errors.Is(err, ledger.ErrInvalidQuantity),
		errors.Is(err, ledger.ErrInsufficientCash),
		errors.Is(err, ledger.ErrInsufficientShares),
		errors.Is(err, ledger.ErrNoPosition):
		status = http.StatusBadRequest
	case errors.Is(err, ledger.ErrNotShortable):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrTierTooLow):
		status = http.StatusForbidden
	case errors.Is(err, ledger.ErrPriceUnavailable):
		status = http.StatusBadGateway
	default:
		status = http.StatusInternalServerError
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

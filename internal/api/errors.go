package api

import (
	"errors"   // errors.Is / errors.As
	"net/http" // HTTP status codes

	"referral_system/internal/apperr" // Error taxonomy

	"github.com/gin-gonic/gin" // Gin web framework
)

// respondError maps the core error taxonomy onto HTTP responses. The locked
// balance case returns its figures so users see what is frozen and for how
// long instead of a bare insufficient-funds error.
func respondError(c *gin.Context, err error) {
	var validation *apperr.ValidationError
	var insufficient *apperr.InsufficientBalanceError
	var locked *apperr.LockedBalanceError
	switch {
	case errors.As(err, &locked):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "Balance locked",
			"locked_amount":     locked.LockedAmount,
			"available_balance": locked.AvailableBalance,
			"remaining_days":    locked.RemainingDays,
		})
	case errors.As(err, &insufficient):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Insufficient balance",
			"requested": insufficient.Requested,
			"available": insufficient.Available,
		})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Msg})
	case errors.Is(err, apperr.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrDisabled):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

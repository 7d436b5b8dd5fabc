package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/irfndi/celebrum-ledger/internal/middleware"
	"github.com/irfndi/celebrum-ledger/internal/utils"
)

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

// respondError maps engine errors onto HTTP status codes.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		middleware.RecordError(c, err, "ledger analytics request failed")
	}

	body := gin.H{
		"success": false,
		"error":   err.Error(),
	}
	var verr *utils.ValidationError
	if errors.As(err, &verr) && verr.Field != "" {
		body["field"] = verr.Field
	}
	c.JSON(status, body)
}

func statusFor(err error) int {
	switch {
	case utils.IsValidationError(err):
		return http.StatusBadRequest
	case errors.Is(err, utils.ErrLedgerUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		// client went away; nothing useful reaches it
		return 499
	default:
		return http.StatusInternalServerError
	}
}

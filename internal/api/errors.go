package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "copytrader/internal/errors"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case apperrors.Is(err, apperrors.ErrInputValidation),
		apperrors.Is(err, apperrors.ErrInvalidQuantity),
		apperrors.Is(err, apperrors.ErrInvalidPrice),
		apperrors.Is(err, apperrors.ErrInvalidSymbol),
		apperrors.Is(err, apperrors.ErrInvalidAction):
		return http.StatusBadRequest
	case apperrors.Is(err, apperrors.ErrExpertNotFound),
		apperrors.Is(err, apperrors.ErrSubscriptionNotFound),
		apperrors.Is(err, apperrors.ErrPendingTradeNotFound),
		apperrors.Is(err, apperrors.ErrDataNotFound):
		return http.StatusNotFound
	case apperrors.Is(err, apperrors.ErrPositionNotFound),
		apperrors.Is(err, apperrors.ErrNoActiveSubscription),
		apperrors.Is(err, apperrors.ErrZeroAdjustedQuantity):
		return http.StatusConflict
	case apperrors.Is(err, apperrors.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err)
	body := gin.H{"error": err.Error()}
	var fe *apperrors.FundsError
	if apperrors.As(err, &fe) {
		body["required"] = fe.Required
		body["available"] = fe.Available
	}
	if status == http.StatusInternalServerError {
		body["error"] = "internal error"
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

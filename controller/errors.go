package controller

import (
	"context"
	"errors"
	"net/http"

	"gigbook-backend/cache"
	"gigbook-backend/models"
	"gigbook-backend/utils/logger"

	"github.com/gin-gonic/gin"
)

// errorStatus maps a service error to its HTTP status and APIError type
func errorStatus(err error) (int, string) {
	switch models.ErrorTypeOf(err) {
	case models.ValidationError:
		return http.StatusBadRequest, string(models.ValidationError)
	case models.NotFoundError:
		return http.StatusNotFound, string(models.NotFoundError)
	case models.ConflictError:
		return http.StatusConflict, string(models.ConflictError)
	case models.SubscriptionError:
		return http.StatusServiceUnavailable, string(models.SubscriptionError)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, cache.ErrCacheReset) {
		return http.StatusServiceUnavailable, "CacheNotReady"
	}
	return http.StatusInternalServerError, "InternalError"
}

// respondError writes the error envelope. Server errors are logged, client errors are not.
func respondError(c *gin.Context, log logger.Logger, message string, err error) {
	respondErrorWithHint(c, log, message, err, "")
}

func respondErrorWithHint(c *gin.Context, log logger.Logger, message string, err error, hint string) {
	code, errType := errorStatus(err)
	apiErr := &models.APIError{Type: errType, Details: err.Error(), Hint: hint}

	var typed *models.Error
	if errors.As(err, &typed) {
		apiErr.Details = typed.Message
		apiErr.Field = typed.Field
		if typed.Err != nil {
			apiErr.Details = typed.Error()
		}
	}

	if code >= http.StatusInternalServerError {
		log.Errorf("%s: %v", message, err)
	}
	c.JSON(code, models.ErrorResponse(code, message, apiErr))
}

// bindError reports a malformed request body
func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse(http.StatusBadRequest, "Invalid request", &models.APIError{
		Type:    string(models.ValidationError),
		Details: err.Error(),
	}))
}

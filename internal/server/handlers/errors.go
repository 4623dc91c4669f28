package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/vaccine-orders/internal/apperror"
	"github.com/mamadbah2/vaccine-orders/internal/repository"
	"github.com/mamadbah2/vaccine-orders/internal/service/auth"
)

var notFound = gin.H{"detail": "Not found."}

// mapErrorToStatus picks the HTTP status for a service error.
func mapErrorToStatus(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperror.ErrInvalid), errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusBadRequest
	}
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError renders err the way the API clients expect: a field map for validation
// failures, {"detail": ...} for everything else.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	status := mapErrorToStatus(err)

	var verr *apperror.ValidationError
	var appErr *apperror.Error
	switch {
	case errors.As(err, &verr):
		c.JSON(status, verr.Fields)
	case status == http.StatusNotFound:
		c.JSON(status, notFound)
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(status, gin.H{"non_field_errors": []string{"Unable to log in with provided credentials."}})
	case errors.As(err, &appErr):
		c.JSON(status, gin.H{"detail": appErr.Detail})
	case status == http.StatusInternalServerError:
		logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		c.JSON(status, gin.H{"detail": "A server error occurred."})
	default:
		c.JSON(status, gin.H{"detail": err.Error()})
	}
}

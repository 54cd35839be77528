package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"kitchenplan/internal/forecast"
	"kitchenplan/internal/repository"
)

// errUnavailable is returned when an endpoint needs the database and none is configured
var errUnavailable = errors.New("database is not configured")

// statusFor maps a service error to an HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, forecast.ErrData), errors.Is(err, repository.ErrInvalidRecord):
		return http.StatusBadRequest
	case errors.Is(err, forecast.ErrModelNotLoaded), errors.Is(err, errUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the failure envelope. The reason is the error text,
// never a stack trace.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(statusFor(err), gin.H{"success": false, "error": err.Error()})
}

package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"kokoronote/service"
)

// respondError maps the service error taxonomy onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, service.ErrUserExists):
		c.JSON(http.StatusBadRequest, gin.H{"error": "user already exists"})
	case errors.Is(err, service.ErrGenerationInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": "generation already in flight"})
	case errors.Is(err, service.ErrGeneration):
		c.JSON(http.StatusBadGateway, gin.H{"error": "generation service unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"bus_tracker/internal/store"
	"bus_tracker/internal/tracking"
	"bus_tracker/internal/validators"
)

// respondError maps domain errors onto HTTP statuses.
func respondError(c *gin.Context, op string, err error) {
	var ve *tracking.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error(), "field": ve.Field})
	case errors.Is(err, tracking.ErrBusNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Bus not found"})
	case errors.Is(err, tracking.ErrRouteNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Route not found"})
	case errors.Is(err, tracking.ErrNoRouteAssigned):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, tracking.ErrVersionConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Bus was updated concurrently, reload and retry"})
	case errors.Is(err, store.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		logrus.WithError(err).Errorf("%s: unexpected error", op)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func respondBindError(c *gin.Context, op string, err error) {
	logrus.WithError(err).Warnf("%s: invalid input payload", op)
	body := gin.H{"error": "Invalid input: " + err.Error()}
	if fields := validators.Messages(err); fields != nil {
		body["fields"] = fields
	}
	c.JSON(http.StatusBadRequest, body)
}

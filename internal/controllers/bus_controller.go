package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"bus_tracker/internal/models"
)

type BusRegistry interface {
	CreateBus(ctx context.Context, bus *models.Bus) error
	AssignRoute(ctx context.Context, busID uint, routeID *uint) (*models.Bus, error)
}

type BusController struct {
	buses BusRegistry
}

func NewBusController(buses BusRegistry) *BusController {
	return &BusController{buses: buses}
}

// CreateBus registers a vehicle. New buses start on-time at the depot.
func (bc *BusController) CreateBus(c *gin.Context) {
	var input struct {
		RegistrationNumber string `json:"registration_number" binding:"required"`
		Number             string `json:"number" binding:"required"`
		SeatingCapacity    int    `json:"seating_capacity" binding:"required,gt=0"`
		StandingCapacity   int    `json:"standing_capacity" binding:"gte=0"`
		RouteID            *uint  `json:"route_id"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, "CreateBus", err)
		return
	}

	bus := models.Bus{
		RegistrationNumber: strings.TrimSpace(input.RegistrationNumber),
		Number:             strings.TrimSpace(input.Number),
		SeatingCapacity:    input.SeatingCapacity,
		StandingCapacity:   input.StandingCapacity,
		CurrentLocation:    models.DefaultLocation,
		CurrentDirection:   models.DirectionDeparture,
		Status:             models.StatusOnTime,
		AlertType:          models.AlertNormal,
	}
	if err := bc.buses.CreateBus(c.Request.Context(), &bus); err != nil {
		respondError(c, "CreateBus", err)
		return
	}
	if input.RouteID != nil {
		assigned, err := bc.buses.AssignRoute(c.Request.Context(), bus.ID, input.RouteID)
		if err != nil {
			respondError(c, "CreateBus", err)
			return
		}
		bus = *assigned
	}

	logrus.WithFields(logrus.Fields{"bus_id": bus.ID, "number": bus.Number}).Info("Bus registered.")
	c.JSON(http.StatusCreated, gin.H{"bus": bus})
}

// AssignRoute sets or clears (route_id: null) the route a bus runs.
func (bc *BusController) AssignRoute(c *gin.Context) {
	busID, ok := parseID(c, "id", "bus")
	if !ok {
		return
	}
	var input struct {
		RouteID *uint `json:"route_id"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, "AssignRoute", err)
		return
	}

	bus, err := bc.buses.AssignRoute(c.Request.Context(), busID, input.RouteID)
	if err != nil {
		respondError(c, "AssignRoute", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bus": bus})
}

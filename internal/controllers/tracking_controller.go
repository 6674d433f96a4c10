package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"bus_tracker/internal/middleware"
	"bus_tracker/internal/models"
	"bus_tracker/internal/tracking"
)

// TrackingController serves the conductor-facing location endpoints.
type TrackingController struct {
	tracker *tracking.Tracker
	loc     *time.Location
}

// loc is the zone used to expand the history "date" filter into a day.
func NewTrackingController(t *tracking.Tracker, loc *time.Location) *TrackingController {
	if loc == nil {
		loc = time.UTC
	}
	return &TrackingController{tracker: t, loc: loc}
}

type updateLocationInput struct {
	CurrentLocation string `json:"current_location" binding:"required"`
	RouteDirection  string `json:"route_direction" binding:"required,direction"`
	Status          string `json:"status" binding:"required,update_status"`
	AttendanceData  struct {
		Count         *int `json:"count" binding:"required,gte=0"`
		TotalStudents *int `json:"total_students" binding:"omitempty,gte=0"`
	} `json:"attendance_data"`
	AlertMessage *string `json:"alert_message"`
	// Accepted for compatibility; the alert type always mirrors status.
	AlertType string `json:"alert_type"`
	Version   *int64 `json:"version"`
}

// UpdateLocation records a conductor's location report for a bus.
func (tc *TrackingController) UpdateLocation(c *gin.Context) {
	busID, ok := parseID(c, "id", "bus")
	if !ok {
		return
	}

	var input updateLocationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, "UpdateLocation", err)
		return
	}

	caller, _ := middleware.CallerFrom(c)
	res, err := tc.tracker.UpdateLocation(c.Request.Context(), caller, busID, tracking.UpdateRequest{
		CurrentLocation: input.CurrentLocation,
		Direction:       models.Direction(input.RouteDirection),
		Status:          models.BusStatus(input.Status),
		Count:           *input.AttendanceData.Count,
		TotalStudents:   input.AttendanceData.TotalStudents,
		AlertMessage:    input.AlertMessage,
		ExpectedVersion: input.Version,
	})
	if err != nil {
		respondError(c, "UpdateLocation", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bus":               res.Bus,
		"next_stop":         res.NextStop,
		"resolution":        res.Resolution,
		"capacity_exceeded": res.CapacityExceeded,
		"warnings":          res.Warnings,
		"history_recorded":  res.History != nil,
	})
}

// GetLocationHistory pages through a bus's history, newest first.
func (tc *TrackingController) GetLocationHistory(c *gin.Context) {
	busID, ok := parseID(c, "id", "bus")
	if !ok {
		return
	}

	f, err := tc.historyFilter(c)
	if err != nil {
		respondError(c, "GetLocationHistory", err)
		return
	}

	page, err := tc.tracker.History(c.Request.Context(), busID, f)
	if err != nil {
		respondError(c, "GetLocationHistory", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"records":     page.Records,
		"next_cursor": page.NextCursor(),
	})
}

func (tc *TrackingController) historyFilter(c *gin.Context) (tracking.HistoryFilter, error) {
	f := tracking.HistoryFilter{Direction: models.Direction(c.Query("direction"))}

	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, &tracking.ValidationError{Field: "limit", Message: "must be an integer"}
		}
		f.Limit = n
	}

	if v := c.Query("date"); v != "" {
		day, err := time.ParseInLocation(time.DateOnly, v, tc.loc)
		if err != nil {
			return f, &tracking.ValidationError{Field: "date", Message: "must be YYYY-MM-DD"}
		}
		from, to := tracking.DayRange(day, tc.loc)
		f.From, f.To = &from, &to
	}
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		v := c.Query(p.name)
		if v == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, &tracking.ValidationError{Field: p.name, Message: "must be an RFC 3339 timestamp"}
		}
		*p.dst = &ts
	}

	if v := c.Query("before"); v != "" {
		cur, err := tracking.ParseHistoryCursor(v)
		if err != nil {
			return f, err
		}
		f.Before = &cur
	}
	return f, nil
}

// GetBusStatus returns the current state of a bus.
func (tc *TrackingController) GetBusStatus(c *gin.Context) {
	busID, ok := parseID(c, "id", "bus")
	if !ok {
		return
	}
	bus, err := tc.tracker.BusStatus(c.Request.Context(), busID)
	if err != nil {
		respondError(c, "GetBusStatus", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bus": bus})
}

// GetWaypoints lists the stop order for both directions of a route.
func (tc *TrackingController) GetWaypoints(c *gin.Context) {
	routeID, ok := parseID(c, "id", "route")
	if !ok {
		return
	}
	route, seqs, err := tc.tracker.Waypoints(c.Request.Context(), routeID)
	if err != nil {
		respondError(c, "GetWaypoints", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"route_id":  route.ID,
		"name":      route.Name,
		"departure": seqs[models.DirectionDeparture],
		"return":    seqs[models.DirectionReturn],
	})
}

// ResetBus is the administrative depot/maintenance reset.
func (tc *TrackingController) ResetBus(c *gin.Context) {
	busID, ok := parseID(c, "id", "bus")
	if !ok {
		return
	}
	caller, _ := middleware.CallerFrom(c)
	bus, err := tc.tracker.ResetToDepot(c.Request.Context(), caller, busID)
	if err != nil {
		respondError(c, "ResetBus", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bus": bus})
}

func parseID(c *gin.Context, param, what string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + what + " ID"})
		return 0, false
	}
	return uint(id), true
}

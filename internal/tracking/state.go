package tracking

import (
	"strings"
	"time"

	"bus_tracker/internal/models"
)

// Transition carries everything a location update rewrites on the bus.
type Transition struct {
	Location     string
	Direction    models.Direction
	NextStop     string
	Status       models.BusStatus
	AlertMessage *string
	Students     int
	Attendance   models.AttendanceData
}

// Apply moves bus into the state described by t. Maintenance is only
// reachable through ResetToDepot.
func (t Transition) Apply(bus *models.Bus, now time.Time) error {
	msg := normalizeMessage(t.AlertMessage)

	switch t.Status {
	case models.StatusOnTime:
		bus.AlertType = models.AlertNormal
		bus.AlertMessage = msg
	case models.StatusDelayed:
		bus.AlertType = models.AlertDelayed
		bus.AlertMessage = msg
	case models.StatusEarly:
		bus.AlertType = models.AlertEarly
		bus.AlertMessage = msg
	case models.StatusMaintenance:
		return invalid("status", "maintenance can only be set by an administrative reset")
	default:
		return invalid("status", "unknown status %q", t.Status)
	}

	bus.Status = t.Status
	bus.CurrentLocation = t.Location
	bus.CurrentDirection = t.Direction
	bus.NextStop = t.NextStop
	bus.CurrentPassengers.Students = t.Students
	bus.AttendanceData = t.Attendance
	bus.UpdatedAt = now
	return nil
}

// ResetToDepot parks the bus for maintenance and clears its trip state.
func ResetToDepot(bus *models.Bus, now time.Time) {
	bus.Status = models.StatusMaintenance
	bus.AlertType = models.AlertNormal
	bus.AlertMessage = nil
	bus.CurrentLocation = models.DefaultLocation
	bus.CurrentDirection = models.DirectionDeparture
	bus.NextStop = ""
	bus.CurrentPassengers = models.Passengers{}
	bus.UpdatedAt = now
}

func normalizeMessage(m *string) *string {
	if m == nil {
		return nil
	}
	s := strings.TrimSpace(*m)
	if s == "" {
		return nil
	}
	return &s
}

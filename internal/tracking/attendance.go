package tracking

import (
	"time"

	"bus_tracker/internal/models"
)

// Reconciliation annotates an operator-entered passenger tally.
type Reconciliation struct {
	Accepted         int  `json:"accepted"`
	CapacityExceeded bool `json:"capacity_exceeded"`
}

// Reconcile trusts the reported count as authoritative. Counts above the
// seating capacity are flagged, never rejected.
func Reconcile(reported, totalStudents, seatingCapacity int) (Reconciliation, error) {
	if reported < 0 {
		return Reconciliation{}, invalid("attendance_data.count", "must not be negative")
	}
	if totalStudents < 0 {
		return Reconciliation{}, invalid("attendance_data.total_students", "must not be negative")
	}
	return Reconciliation{
		Accepted:         reported,
		CapacityExceeded: reported > seatingCapacity,
	}, nil
}

// Snapshot builds the attendance record stored on the bus and in history.
func Snapshot(routeName string, d models.Direction, stop string, rec Reconciliation, totalStudents int, now time.Time) models.AttendanceData {
	date := now
	return models.AttendanceData{
		Date:          &date,
		Route:         routeName,
		Direction:     d,
		Stop:          stop,
		Count:         rec.Accepted,
		TotalStudents: totalStudents,
	}
}

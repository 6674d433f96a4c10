package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Direction is the way a bus traverses its route.
type Direction string

const (
	DirectionDeparture Direction = "departure"
	DirectionReturn    Direction = "return"
)

func (d Direction) Valid() bool {
	return d == DirectionDeparture || d == DirectionReturn
}

// BusStatus is the operational status shown to dashboards.
type BusStatus string

const (
	StatusOnTime      BusStatus = "on-time"
	StatusDelayed     BusStatus = "delayed"
	StatusEarly       BusStatus = "early"
	StatusMaintenance BusStatus = "maintenance"
)

func (s BusStatus) Valid() bool {
	switch s {
	case StatusOnTime, StatusDelayed, StatusEarly, StatusMaintenance:
		return true
	}
	return false
}

// AlertType mirrors the status for delayed/early buses and is "normal" otherwise.
type AlertType string

const (
	AlertNormal  AlertType = "normal"
	AlertDelayed AlertType = "delayed"
	AlertEarly   AlertType = "early"
)

func (a AlertType) Valid() bool {
	return a == AlertNormal || a == AlertDelayed || a == AlertEarly
}

// DefaultLocation is where an unassigned or freshly reset bus is parked.
const DefaultLocation = "Depot"

type Passengers struct {
	Students int `json:"students"`
	Others   int `json:"others"`
}

// AttendanceData is the last passenger tally recorded by a conductor.
type AttendanceData struct {
	Date          *time.Time `json:"date,omitempty"`
	Route         string     `json:"route"`
	Direction     Direction  `json:"direction"`
	Stop          string     `json:"stop"`
	Count         int        `json:"count"`
	TotalStudents int        `json:"total_students"`
}

type Bus struct {
	gorm.Model
	RegistrationNumber string `json:"registration_number" gorm:"uniqueIndex;not null"`
	Number             string `json:"number" gorm:"uniqueIndex;not null"`
	SeatingCapacity    int    `json:"seating_capacity"`
	StandingCapacity   int    `json:"standing_capacity"`

	// nil while the bus is not assigned to any route
	RouteID *uint  `json:"route_id" gorm:"index"`
	Route   *Route `json:"route,omitempty" gorm:"foreignKey:RouteID"`

	CurrentLocation  string    `json:"current_location" gorm:"default:Depot"`
	CurrentDirection Direction `json:"current_direction" gorm:"default:departure"`
	NextStop         string    `json:"next_stop"`
	Status           BusStatus `json:"status" gorm:"default:on-time"`
	AlertMessage     *string   `json:"alert_message"`
	AlertType        AlertType `json:"alert_type" gorm:"default:normal"`

	CurrentPassengers Passengers     `json:"current_passengers" gorm:"embedded;embeddedPrefix:passengers_"`
	AttendanceData    AttendanceData `json:"attendance_data" gorm:"embedded;embeddedPrefix:attendance_"`

	// Version is bumped on every state write and guards against lost updates.
	Version int64 `json:"version" gorm:"not null;default:1"`
}

// Validate checks the per-document invariants enforced on every write.
// Seating capacity is deliberately not checked here: over-capacity tallies
// are accepted and reported as a warning by the update flow.
func (b *Bus) Validate() error {
	if b.CurrentPassengers.Students < 0 || b.CurrentPassengers.Others < 0 {
		return fmt.Errorf("passenger counts must not be negative")
	}
	if b.SeatingCapacity < 0 || b.StandingCapacity < 0 {
		return fmt.Errorf("capacities must not be negative")
	}
	if b.CurrentDirection != "" && !b.CurrentDirection.Valid() {
		return fmt.Errorf("unknown direction %q", b.CurrentDirection)
	}
	if b.Status != "" && !b.Status.Valid() {
		return fmt.Errorf("unknown status %q", b.Status)
	}
	if b.AlertType != "" && !b.AlertType.Valid() {
		return fmt.Errorf("unknown alert type %q", b.AlertType)
	}
	return nil
}

func (b *Bus) BeforeCreate(tx *gorm.DB) error {
	if b.CurrentLocation == "" {
		b.CurrentLocation = DefaultLocation
	}
	if b.Version == 0 {
		b.Version = 1
	}
	return b.Validate()
}

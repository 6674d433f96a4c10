package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"bus_tracker/internal/models"
	"bus_tracker/internal/tracking"
)

// BusStore persists buses. State writes are guarded by the version column.
type BusStore struct {
	db *gorm.DB
}

func NewBusStore(db *gorm.DB) *BusStore {
	return &BusStore{db: db}
}

func (s *BusStore) GetBus(ctx context.Context, id uint) (*models.Bus, error) {
	var bus models.Bus
	if err := s.db.WithContext(ctx).First(&bus, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("bus %d: %w", id, tracking.ErrBusNotFound)
		}
		return nil, fmt.Errorf("get bus %d: %w", id, err)
	}
	return &bus, nil
}

// CompareAndSwap rewrites the mutable state of bus in a single UPDATE
// conditioned on the stored version.
func (s *BusStore) CompareAndSwap(ctx context.Context, bus *models.Bus, expected int64) error {
	if err := bus.Validate(); err != nil {
		return &tracking.ValidationError{Field: "bus", Message: err.Error()}
	}

	res := s.db.WithContext(ctx).
		Model(&models.Bus{}).
		Where("id = ? AND version = ?", bus.ID, expected).
		Updates(stateColumns(bus, expected+1))
	if res.Error != nil {
		return fmt.Errorf("update bus %d: %w", bus.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Bus{}).Where("id = ?", bus.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("update bus %d: %w", bus.ID, err)
		}
		if count == 0 {
			return fmt.Errorf("bus %d: %w", bus.ID, tracking.ErrBusNotFound)
		}
		return fmt.Errorf("bus %d at version %d: %w", bus.ID, expected, tracking.ErrVersionConflict)
	}
	bus.Version = expected + 1
	return nil
}

// stateColumns lists every column a state transition may touch. A map is
// used so zero values (nil alert, zero passengers) are written too.
func stateColumns(bus *models.Bus, version int64) map[string]interface{} {
	a := bus.AttendanceData
	return map[string]interface{}{
		"route_id":                  bus.RouteID,
		"current_location":          bus.CurrentLocation,
		"current_direction":         bus.CurrentDirection,
		"next_stop":                 bus.NextStop,
		"status":                    bus.Status,
		"alert_message":             bus.AlertMessage,
		"alert_type":                bus.AlertType,
		"passengers_students":       bus.CurrentPassengers.Students,
		"passengers_others":         bus.CurrentPassengers.Others,
		"attendance_date":           a.Date,
		"attendance_route":          a.Route,
		"attendance_direction":      a.Direction,
		"attendance_stop":           a.Stop,
		"attendance_count":          a.Count,
		"attendance_total_students": a.TotalStudents,
		"updated_at":                bus.UpdatedAt,
		"version":                   version,
	}
}

// CreateBus registers a new vehicle. Duplicate registration or fleet
// numbers are reported as ErrDuplicate.
func (s *BusStore) CreateBus(ctx context.Context, bus *models.Bus) error {
	if err := s.db.WithContext(ctx).Create(bus).Error; err != nil {
		return translateWriteError("bus", err)
	}
	return nil
}

// AssignRoute points the bus at routeID, or unassigns it when routeID is nil.
func (s *BusStore) AssignRoute(ctx context.Context, busID uint, routeID *uint) (*models.Bus, error) {
	bus, err := s.GetBus(ctx, busID)
	if err != nil {
		return nil, err
	}
	if routeID != nil {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Route{}).Where("id = ?", *routeID).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("check route %d: %w", *routeID, err)
		}
		if count == 0 {
			return nil, fmt.Errorf("route %d: %w", *routeID, tracking.ErrRouteNotFound)
		}
	}
	bus.RouteID = routeID
	if err := s.CompareAndSwap(ctx, bus, bus.Version); err != nil {
		return nil, err
	}
	return bus, nil
}

package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"bus_tracker/internal/models"
	"bus_tracker/internal/tracking"
)

type RouteStore struct {
	db *gorm.DB
}

func NewRouteStore(db *gorm.DB) *RouteStore {
	return &RouteStore{db: db}
}

// GetRoute loads a route with its stops in sequence order.
func (s *RouteStore) GetRoute(ctx context.Context, id uint) (*models.Route, error) {
	var route models.Route
	err := s.db.WithContext(ctx).
		Preload("Stops", func(db *gorm.DB) *gorm.DB { return db.Order("sequence ASC, id ASC") }).
		First(&route, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("route %d: %w", id, tracking.ErrRouteNotFound)
		}
		return nil, fmt.Errorf("get route %d: %w", id, err)
	}
	return &route, nil
}

// CreateRoute inserts the route and its stops in one transaction.
func (s *RouteStore) CreateRoute(ctx context.Context, route *models.Route) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stops := route.Stops
		route.Stops = nil
		if err := tx.Create(route).Error; err != nil {
			return err
		}
		for i := range stops {
			stops[i].RouteID = route.ID
		}
		if len(stops) > 0 {
			if err := tx.Create(&stops).Error; err != nil {
				return err
			}
		}
		route.Stops = stops
		return nil
	})
	if err != nil {
		return translateWriteError("route", err)
	}
	return nil
}

// ReplaceStops swaps the full stop list of a route.
func (s *RouteStore) ReplaceStops(ctx context.Context, routeID uint, stops []models.Stop) (*models.Route, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Route{}).Where("id = ?", routeID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("route %d: %w", routeID, tracking.ErrRouteNotFound)
		}
		if err := tx.Unscoped().Where("route_id = ?", routeID).Delete(&models.Stop{}).Error; err != nil {
			return err
		}
		for i := range stops {
			stops[i].ID = 0
			stops[i].RouteID = routeID
		}
		if len(stops) == 0 {
			return nil
		}
		return tx.Create(&stops).Error
	})
	if err != nil {
		if errors.Is(err, tracking.ErrRouteNotFound) {
			return nil, err
		}
		return nil, translateWriteError("stops", err)
	}
	return s.GetRoute(ctx, routeID)
}

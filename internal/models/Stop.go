package models

import (
	"gorm.io/gorm"
)

// Stop is a named pickup point between a route's start and end point.
type Stop struct {
	gorm.Model

	Name     string `json:"name" binding:"required"`
	Sequence int    `json:"sequence"`
	Students int    `json:"students" binding:"gte=0"`

	RouteID uint `json:"route_id" gorm:"index"`
}

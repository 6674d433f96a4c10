package models

import (
	"gorm.io/gorm"
)

// Route is the ordered path a college bus runs between its start and end point.
// Stops are kept in their own table and ordered by Sequence when read.
type Route struct {
	gorm.Model

	Name       string `json:"name" gorm:"uniqueIndex;not null"`
	StartPoint string `json:"start_point" gorm:"not null"`
	EndPoint   string `json:"end_point" gorm:"not null"`

	// Optional LINESTRING stored as WKB; rendered as GeoJSON by the route endpoints.
	Geometry []byte `gorm:"type:bytea" json:"-"`

	Stops []Stop `gorm:"foreignKey:RouteID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"stops,omitempty"`
	Buses []Bus  `gorm:"foreignKey:RouteID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"buses,omitempty"`
}

// TotalStudents sums the students registered at every stop of the route.
func (r *Route) TotalStudents() int {
	total := 0
	for _, s := range r.Stops {
		total += s.Students
	}
	return total
}

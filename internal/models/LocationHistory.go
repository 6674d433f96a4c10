package models

import (
	"time"
)

// LocationHistory is an append-only copy of a bus's state after one location update.
// Rows are never updated or deleted, so it carries no gorm.Model bookkeeping.
type LocationHistory struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	BusID         uint      `json:"bus_id" gorm:"not null;index:idx_history_bus_ts,priority:1"`
	Location      string    `json:"location"`
	NextStop      string    `json:"next_stop"`
	Status        BusStatus `json:"status"`
	Direction     Direction `json:"direction" gorm:"index"`
	Stop          string    `json:"stop"`
	Count         int       `json:"count"`
	TotalStudents int       `json:"total_students"`
	AlertMessage  *string   `json:"alert_message"`
	AlertType     AlertType `json:"alert_type"`
	OffRoute      bool      `json:"off_route"`
	UpdatedBy     uint      `json:"updated_by"`
	Timestamp     time.Time `json:"timestamp" gorm:"column:recorded_at;not null;index:idx_history_bus_ts,priority:2,sort:desc"`
}

func (LocationHistory) TableName() string {
	return "location_history"
}

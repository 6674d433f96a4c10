package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"bus_tracker/internal/models"
	"bus_tracker/internal/tracking"
)

// HistoryStore is the append-only location history table. It exposes no
// update or delete.
type HistoryStore struct {
	db *gorm.DB
}

func NewHistoryStore(db *gorm.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

func (s *HistoryStore) Append(ctx context.Context, rec *models.LocationHistory) error {
	if rec.ID != 0 {
		return fmt.Errorf("history record %d already written", rec.ID)
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("append history for bus %d: %w", rec.BusID, err)
	}
	return nil
}

// Query returns up to f.Limit records, newest first. One extra row is read
// to know whether a further page exists.
func (s *HistoryStore) Query(ctx context.Context, busID uint, f tracking.HistoryFilter) (tracking.HistoryPage, error) {
	q := s.db.WithContext(ctx).Where("bus_id = ?", busID)
	q = applyHistoryFilter(q, f)

	var rows []models.LocationHistory
	if err := q.Order("recorded_at DESC, id DESC").Limit(f.Limit + 1).Find(&rows).Error; err != nil {
		return tracking.HistoryPage{}, fmt.Errorf("query history for bus %d: %w", busID, err)
	}

	page := tracking.HistoryPage{Records: rows}
	if len(rows) > f.Limit {
		page.Records = rows[:f.Limit]
		last := page.Records[f.Limit-1]
		page.Next = &tracking.HistoryCursor{Timestamp: last.Timestamp, ID: last.ID}
	}
	return page, nil
}

func applyHistoryFilter(q *gorm.DB, f tracking.HistoryFilter) *gorm.DB {
	if f.Direction != "" {
		q = q.Where("direction = ?", f.Direction)
	}
	if f.From != nil {
		q = q.Where("recorded_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("recorded_at < ?", *f.To)
	}
	if c := f.Before; c != nil {
		q = q.Where("(recorded_at < ?) OR (recorded_at = ? AND id < ?)", c.Timestamp, c.Timestamp, c.ID)
	}
	return q
}

package tracking

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"bus_tracker/internal/models"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// HistoryCursor points just past the last record of a page. Records are
// ordered by (timestamp desc, id desc) so the id breaks timestamp ties.
type HistoryCursor struct {
	Timestamp time.Time
	ID        uint
}

func (c HistoryCursor) String() string {
	return fmt.Sprintf("%d-%d", c.Timestamp.UnixNano(), c.ID)
}

func ParseHistoryCursor(s string) (HistoryCursor, error) {
	ts, id, ok := strings.Cut(s, "-")
	if !ok {
		return HistoryCursor{}, invalid("before", "malformed cursor %q", s)
	}
	nanos, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return HistoryCursor{}, invalid("before", "malformed cursor %q", s)
	}
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return HistoryCursor{}, invalid("before", "malformed cursor %q", s)
	}
	return HistoryCursor{Timestamp: time.Unix(0, nanos).UTC(), ID: uint(n)}, nil
}

// HistoryFilter narrows a history query. Zero values mean "no constraint".
type HistoryFilter struct {
	Direction models.Direction
	From      *time.Time // inclusive
	To        *time.Time // exclusive
	Before    *HistoryCursor
	Limit     int
}

// Normalize validates the filter and clamps Limit into [1, MaxHistoryLimit].
func (f HistoryFilter) Normalize() (HistoryFilter, error) {
	if f.Direction != "" && !f.Direction.Valid() {
		return f, invalid("direction", "must be departure or return")
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return f, invalid("from", "must be before to")
	}
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultHistoryLimit
	case f.Limit > MaxHistoryLimit:
		f.Limit = MaxHistoryLimit
	}
	return f, nil
}

// DayRange returns [midnight, next midnight) of day in loc.
func DayRange(day time.Time, loc *time.Location) (time.Time, time.Time) {
	d := day.In(loc)
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// HistoryPage is one page of records, newest first.
type HistoryPage struct {
	Records []models.LocationHistory `json:"records"`
	Next    *HistoryCursor           `json:"-"`
}

// NextCursor is the encoded cursor for the following page, or "" on the last page.
func (p HistoryPage) NextCursor() string {
	if p.Next == nil {
		return ""
	}
	return p.Next.String()
}

func newRecord(bus *models.Bus, res Resolution, caller Caller) *models.LocationHistory {
	return &models.LocationHistory{
		BusID:         bus.ID,
		Location:      bus.CurrentLocation,
		NextStop:      bus.NextStop,
		Status:        bus.Status,
		Direction:     bus.CurrentDirection,
		Stop:          bus.AttendanceData.Stop,
		Count:         bus.AttendanceData.Count,
		TotalStudents: bus.AttendanceData.TotalStudents,
		AlertMessage:  copyString(bus.AlertMessage),
		AlertType:     bus.AlertType,
		OffRoute:      res.Kind == ResolutionUnmatched,
		UpdatedBy:     caller.UserID,
		Timestamp:     bus.UpdatedAt,
	}
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

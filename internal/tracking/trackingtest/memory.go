// Package trackingtest provides in-memory stores for exercising the tracking
// flow without a database.
package trackingtest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"bus_tracker/internal/models"
	"bus_tracker/internal/tracking"
)

type Buses struct {
	mu    sync.Mutex
	buses map[uint]models.Bus
}

func NewBuses(buses ...models.Bus) *Buses {
	s := &Buses{buses: make(map[uint]models.Bus)}
	for _, b := range buses {
		if b.Version == 0 {
			b.Version = 1
		}
		s.buses[b.ID] = b
	}
	return s
}

func (s *Buses) GetBus(_ context.Context, id uint) (*models.Bus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buses[id]
	if !ok {
		return nil, fmt.Errorf("bus %d: %w", id, tracking.ErrBusNotFound)
	}
	b.AlertMessage = cloneString(b.AlertMessage)
	return &b, nil
}

func (s *Buses) CompareAndSwap(_ context.Context, bus *models.Bus, expected int64) error {
	if err := bus.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.buses[bus.ID]
	if !ok {
		return fmt.Errorf("bus %d: %w", bus.ID, tracking.ErrBusNotFound)
	}
	if stored.Version != expected {
		return fmt.Errorf("bus %d: %w", bus.ID, tracking.ErrVersionConflict)
	}
	bus.Version = expected + 1
	saved := *bus
	saved.AlertMessage = cloneString(bus.AlertMessage)
	s.buses[bus.ID] = saved
	return nil
}

// Bump simulates a concurrent writer by advancing the stored version.
func (s *Buses) Bump(id uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.buses[id]
	b.Version++
	s.buses[id] = b
}

type Routes struct {
	routes map[uint]models.Route
}

func NewRoutes(routes ...models.Route) *Routes {
	s := &Routes{routes: make(map[uint]models.Route)}
	for _, r := range routes {
		s.routes[r.ID] = r
	}
	return s
}

func (s *Routes) GetRoute(_ context.Context, id uint) (*models.Route, error) {
	r, ok := s.routes[id]
	if !ok {
		return nil, fmt.Errorf("route %d: %w", id, tracking.ErrRouteNotFound)
	}
	return &r, nil
}

var ErrAppendFailed = errors.New("history unavailable")

// History keeps records in append order. Set FailAppend to make every
// Append return ErrAppendFailed.
type History struct {
	mu         sync.Mutex
	records    []models.LocationHistory
	nextID     uint
	FailAppend bool
}

func NewHistory() *History {
	return &History{}
}

func (h *History) Append(_ context.Context, rec *models.LocationHistory) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.FailAppend {
		return ErrAppendFailed
	}
	h.nextID++
	rec.ID = h.nextID
	h.records = append(h.records, *rec)
	return nil
}

func (h *History) Query(_ context.Context, busID uint, f tracking.HistoryFilter) (tracking.HistoryPage, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []models.LocationHistory
	for i := len(h.records) - 1; i >= 0; i-- {
		r := h.records[i]
		if r.BusID != busID {
			continue
		}
		if f.Direction != "" && r.Direction != f.Direction {
			continue
		}
		if f.From != nil && r.Timestamp.Before(*f.From) {
			continue
		}
		if f.To != nil && !r.Timestamp.Before(*f.To) {
			continue
		}
		if c := f.Before; c != nil {
			if r.Timestamp.After(c.Timestamp) || (r.Timestamp.Equal(c.Timestamp) && r.ID >= c.ID) {
				continue
			}
		}
		out = append(out, r)
	}
	slices.SortStableFunc(out, func(a, b models.LocationHistory) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return int(b.ID) - int(a.ID)
	})

	page := tracking.HistoryPage{}
	if len(out) > f.Limit {
		out = out[:f.Limit]
		last := out[len(out)-1]
		page.Next = &tracking.HistoryCursor{Timestamp: last.Timestamp, ID: last.ID}
	}
	page.Records = out
	return page, nil
}

// Len reports how many records were appended.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

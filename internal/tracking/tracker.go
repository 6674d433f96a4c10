package tracking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"bus_tracker/internal/models"
)

// Caller is the already-authenticated identity on whose behalf an operation runs.
type Caller struct {
	UserID uint
	Role   string
	BusID  *uint // set for conductors bound to a single bus
}

type BusStore interface {
	GetBus(ctx context.Context, id uint) (*models.Bus, error)
	// CompareAndSwap persists bus only if the stored version still equals
	// expected, and bumps bus.Version on success. Otherwise it returns
	// ErrVersionConflict.
	CompareAndSwap(ctx context.Context, bus *models.Bus, expected int64) error
}

type RouteStore interface {
	GetRoute(ctx context.Context, id uint) (*models.Route, error)
}

// HistoryLog is append-only: there is no way to change a written record.
type HistoryLog interface {
	Append(ctx context.Context, rec *models.LocationHistory) error
	Query(ctx context.Context, busID uint, f HistoryFilter) (HistoryPage, error)
}

// Event is handed to notifiers after a bus state change has been persisted.
type Event struct {
	Bus              *models.Bus `json:"bus"`
	RouteID          uint        `json:"route_id"`
	Resolution       Resolution  `json:"resolution"`
	CapacityExceeded bool        `json:"capacity_exceeded"`
	Timestamp        time.Time   `json:"timestamp"`
}

type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Observer receives counters for the update flow. See internal/metrics.
type Observer interface {
	UpdateApplied(kind ResolutionKind, elapsed time.Duration)
	UpdateRejected(reason string)
	CapacityExceeded()
	HistoryAppendFailed()
	NotifyFailed()
}

type nopObserver struct{}

func (nopObserver) UpdateApplied(ResolutionKind, time.Duration) {}
func (nopObserver) UpdateRejected(string)                       {}
func (nopObserver) CapacityExceeded()                           {}
func (nopObserver) HistoryAppendFailed()                        {}
func (nopObserver) NotifyFailed()                               {}

// UpdateRequest is a conductor's location report for one bus.
type UpdateRequest struct {
	CurrentLocation string
	Direction       models.Direction
	Status          models.BusStatus
	Count           int
	TotalStudents   *int // derived from the route's stops when nil
	AlertMessage    *string
	ExpectedVersion *int64
}

func (r UpdateRequest) validate() error {
	if strings.TrimSpace(r.CurrentLocation) == "" {
		return invalid("current_location", "is required")
	}
	if !r.Direction.Valid() {
		return invalid("route_direction", "must be departure or return")
	}
	if !r.Status.Valid() {
		return invalid("status", "unknown status %q", r.Status)
	}
	return nil
}

type UpdateResult struct {
	Bus              *models.Bus             `json:"bus"`
	NextStop         string                  `json:"next_stop"`
	Resolution       Resolution              `json:"resolution"`
	CapacityExceeded bool                    `json:"capacity_exceeded"`
	Warnings         []string                `json:"warnings,omitempty"`
	History          *models.LocationHistory `json:"history,omitempty"`
}

type Tracker struct {
	buses     BusStore
	routes    RouteStore
	history   HistoryLog
	resolver  Resolver
	notifiers []Notifier
	observer  Observer
	clock     func() time.Time
}

type Option func(*Tracker)

func WithResolver(r Resolver) Option     { return func(t *Tracker) { t.resolver = r } }
func WithObserver(o Observer) Option     { return func(t *Tracker) { t.observer = o } }
func WithClock(c func() time.Time) Option { return func(t *Tracker) { t.clock = c } }

// WithNotifier adds a best-effort subscriber for persisted updates.
func WithNotifier(n Notifier) Option {
	return func(t *Tracker) { t.notifiers = append(t.notifiers, n) }
}

func NewTracker(buses BusStore, routes RouteStore, history HistoryLog, opts ...Option) *Tracker {
	t := &Tracker{
		buses:    buses,
		routes:   routes,
		history:  history,
		resolver: NameResolver{},
		observer: nopObserver{},
		clock:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// UpdateLocation applies one location report: resolve the next stop,
// reconcile the passenger tally, persist the bus with a version check,
// then append history and notify subscribers. Only the bus write can fail
// the call.
func (t *Tracker) UpdateLocation(ctx context.Context, caller Caller, busID uint, req UpdateRequest) (*UpdateResult, error) {
	started := time.Now()

	if err := req.validate(); err != nil {
		t.observer.UpdateRejected("validation")
		return nil, err
	}

	bus, route, err := t.load(ctx, busID)
	if err != nil {
		t.observer.UpdateRejected(rejectReason(err))
		return nil, err
	}
	if req.ExpectedVersion != nil && *req.ExpectedVersion != bus.Version {
		t.observer.UpdateRejected("conflict")
		return nil, fmt.Errorf("bus %d at version %d, request expected %d: %w", bus.ID, bus.Version, *req.ExpectedVersion, ErrVersionConflict)
	}

	location := strings.TrimSpace(req.CurrentLocation)
	res, err := t.resolver.ResolveNext(TopologyOf(route), req.Direction, location)
	if err != nil {
		t.observer.UpdateRejected("validation")
		return nil, invalid("route_direction", "%v", err)
	}

	total := route.TotalStudents()
	if req.TotalStudents != nil {
		total = *req.TotalStudents
	}
	rec, err := Reconcile(req.Count, total, bus.SeatingCapacity)
	if err != nil {
		t.observer.UpdateRejected("validation")
		return nil, err
	}

	now := t.clock()
	tr := Transition{
		Location:     location,
		Direction:    req.Direction,
		NextStop:     res.NextStop,
		Status:       req.Status,
		AlertMessage: req.AlertMessage,
		Students:     rec.Accepted,
		Attendance:   Snapshot(route.Name, req.Direction, location, rec, total, now),
	}
	if err := tr.Apply(bus, now); err != nil {
		t.observer.UpdateRejected("validation")
		return nil, err
	}
	if err := t.buses.CompareAndSwap(ctx, bus, bus.Version); err != nil {
		t.observer.UpdateRejected(rejectReason(err))
		return nil, err
	}

	result := &UpdateResult{
		Bus:              bus,
		NextStop:         res.NextStop,
		Resolution:       res,
		CapacityExceeded: rec.CapacityExceeded,
	}
	log := logrus.WithFields(logrus.Fields{
		"bus_id":    bus.ID,
		"user_id":   caller.UserID,
		"location":  location,
		"direction": req.Direction,
		"next_stop": res.NextStop,
		"version":   bus.Version,
	})
	if rec.CapacityExceeded {
		t.observer.CapacityExceeded()
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("reported count %d exceeds seating capacity %d", rec.Accepted, bus.SeatingCapacity))
		log.Warn("Passenger count exceeds seating capacity.")
	}
	if res.Kind == ResolutionUnmatched {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("location %q is not a waypoint of route %q in %s direction", location, route.Name, req.Direction))
		log.Warn("Reported location does not match any waypoint.")
	}

	result.History = t.appendHistory(ctx, newRecord(bus, res, caller))
	t.notify(ctx, Event{
		Bus:              bus,
		RouteID:          route.ID,
		Resolution:       res,
		CapacityExceeded: rec.CapacityExceeded,
		Timestamp:        now,
	})

	t.observer.UpdateApplied(res.Kind, time.Since(started))
	log.Info("Bus location updated.")
	return result, nil
}

// ResetToDepot is the administrative path into maintenance.
func (t *Tracker) ResetToDepot(ctx context.Context, caller Caller, busID uint) (*models.Bus, error) {
	bus, err := t.buses.GetBus(ctx, busID)
	if err != nil {
		return nil, err
	}
	now := t.clock()
	ResetToDepot(bus, now)
	if err := t.buses.CompareAndSwap(ctx, bus, bus.Version); err != nil {
		return nil, err
	}
	t.appendHistory(ctx, newRecord(bus, Resolution{Kind: ResolutionNext}, caller))

	var routeID uint
	if bus.RouteID != nil {
		routeID = *bus.RouteID
	}
	t.notify(ctx, Event{Bus: bus, RouteID: routeID, Timestamp: now})

	logrus.WithFields(logrus.Fields{
		"bus_id":  bus.ID,
		"user_id": caller.UserID,
	}).Info("Bus reset to depot for maintenance.")
	return bus, nil
}

func (t *Tracker) BusStatus(ctx context.Context, busID uint) (*models.Bus, error) {
	return t.buses.GetBus(ctx, busID)
}

// History returns one page of a bus's location history, newest first.
func (t *Tracker) History(ctx context.Context, busID uint, f HistoryFilter) (HistoryPage, error) {
	f, err := f.Normalize()
	if err != nil {
		return HistoryPage{}, err
	}
	if _, err := t.buses.GetBus(ctx, busID); err != nil {
		return HistoryPage{}, err
	}
	return t.history.Query(ctx, busID, f)
}

// Waypoints returns the route together with its sequence for both directions.
func (t *Tracker) Waypoints(ctx context.Context, routeID uint) (*models.Route, map[models.Direction][]string, error) {
	route, err := t.routes.GetRoute(ctx, routeID)
	if err != nil {
		return nil, nil, err
	}
	topo := TopologyOf(route)
	out := make(map[models.Direction][]string, 2)
	for _, d := range []models.Direction{models.DirectionDeparture, models.DirectionReturn} {
		seq, err := t.resolver.Waypoints(topo, d)
		if err != nil {
			return nil, nil, err
		}
		out[d] = seq
	}
	return route, out, nil
}

func (t *Tracker) load(ctx context.Context, busID uint) (*models.Bus, *models.Route, error) {
	bus, err := t.buses.GetBus(ctx, busID)
	if err != nil {
		return nil, nil, err
	}
	if bus.RouteID == nil {
		return nil, nil, fmt.Errorf("bus %d: %w", bus.ID, ErrNoRouteAssigned)
	}
	route, err := t.routes.GetRoute(ctx, *bus.RouteID)
	if err != nil {
		return nil, nil, err
	}
	return bus, route, nil
}

// appendHistory never fails the caller; the log is an audit trail, not the
// record of current state.
func (t *Tracker) appendHistory(ctx context.Context, rec *models.LocationHistory) *models.LocationHistory {
	if err := t.history.Append(context.WithoutCancel(ctx), rec); err != nil {
		t.observer.HistoryAppendFailed()
		logrus.WithError(err).WithField("bus_id", rec.BusID).Error("Failed to append location history.")
		return nil
	}
	return rec
}

func (t *Tracker) notify(ctx context.Context, ev Event) {
	for _, n := range t.notifiers {
		if err := n.Notify(ctx, ev); err != nil {
			t.observer.NotifyFailed()
			logrus.WithError(err).WithField("bus_id", ev.Bus.ID).Warn("Failed to publish bus update.")
		}
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrBusNotFound), errors.Is(err, ErrRouteNotFound):
		return "not_found"
	case errors.Is(err, ErrVersionConflict):
		return "conflict"
	case errors.Is(err, ErrNoRouteAssigned), IsValidation(err):
		return "validation"
	}
	return "store"
}

package tracking

import (
	"cmp"
	"slices"

	"bus_tracker/internal/models"
)

// Synthetic next-stop values emitted once a bus reaches the last waypoint.
const (
	RouteCompleted  = "Route Completed"
	ReturnedToDepot = "Returned to Depot"
)

type ResolutionKind string

const (
	ResolutionNext      ResolutionKind = "next"
	ResolutionTerminal  ResolutionKind = "terminal"
	ResolutionUnmatched ResolutionKind = "unmatched"
)

// Resolution is the outcome of looking up the stop after a reported location.
// NextStop is empty when Kind is ResolutionUnmatched.
type Resolution struct {
	Kind     ResolutionKind `json:"kind"`
	NextStop string         `json:"next_stop"`
}

// Topology is the read-only part of a route the resolver needs.
type Topology struct {
	StartPoint string
	EndPoint   string
	Stops      []models.Stop
}

func TopologyOf(r *models.Route) Topology {
	return Topology{StartPoint: r.StartPoint, EndPoint: r.EndPoint, Stops: r.Stops}
}

// Resolver maps a reported location to the next waypoint. Stops are
// identified by display name today; swapping in id or coordinate matching
// only needs a new Resolver.
type Resolver interface {
	Waypoints(t Topology, d models.Direction) ([]string, error)
	ResolveNext(t Topology, d models.Direction, location string) (Resolution, error)
}

// NameResolver matches locations against stop names by exact string equality.
type NameResolver struct{}

func (NameResolver) Waypoints(t Topology, d models.Direction) ([]string, error) {
	stops := slices.Clone(t.Stops)
	slices.SortStableFunc(stops, func(a, b models.Stop) int {
		return cmp.Compare(a.Sequence, b.Sequence)
	})

	seq := make([]string, 0, len(stops)+2)
	switch d {
	case models.DirectionDeparture:
		seq = append(seq, t.StartPoint)
		for _, s := range stops {
			seq = append(seq, s.Name)
		}
		seq = append(seq, t.EndPoint)
	case models.DirectionReturn:
		seq = append(seq, t.EndPoint)
		for i := len(stops) - 1; i >= 0; i-- {
			seq = append(seq, stops[i].Name)
		}
		seq = append(seq, t.StartPoint)
	default:
		return nil, ErrInvalidDirection
	}
	return seq, nil
}

func (r NameResolver) ResolveNext(t Topology, d models.Direction, location string) (Resolution, error) {
	seq, err := r.Waypoints(t, d)
	if err != nil {
		return Resolution{}, err
	}

	// first occurrence wins when names repeat
	i := slices.Index(seq, location)
	switch {
	case i < 0:
		return Resolution{Kind: ResolutionUnmatched}, nil
	case i == len(seq)-1:
		return Resolution{Kind: ResolutionTerminal, NextStop: terminalFor(d)}, nil
	default:
		return Resolution{Kind: ResolutionNext, NextStop: seq[i+1]}, nil
	}
}

func terminalFor(d models.Direction) string {
	if d == models.DirectionReturn {
		return ReturnedToDepot
	}
	return RouteCompleted
}

package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"bus_tracker/internal/models"
	"bus_tracker/internal/tracking"
)

// NATSPublisher fans bus updates out on "<prefix>.<bus number>.location".
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
}

func NewNATSPublisher(url, prefix string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("bus-tracker"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logrus.WithError(err).Warn("NATS disconnected.")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logrus.WithField("url", c.ConnectedUrl()).Info("NATS reconnected.")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logrus.Info("NATS connection closed.")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	if prefix == "" {
		prefix = "bus"
	}
	return &NATSPublisher{nc: nc, prefix: prefix}, nil
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

// LocationMessage is the wire form of a bus update.
type LocationMessage struct {
	BusID            uint             `json:"bus_id"`
	BusNumber        string           `json:"bus_number"`
	RouteID          uint             `json:"route_id"`
	Location         string           `json:"location"`
	NextStop         string           `json:"next_stop"`
	Resolution       string           `json:"resolution"`
	Direction        models.Direction `json:"direction"`
	Status           models.BusStatus `json:"status"`
	AlertType        models.AlertType `json:"alert_type"`
	AlertMessage     *string          `json:"alert_message,omitempty"`
	Students         int              `json:"students"`
	CapacityExceeded bool             `json:"capacity_exceeded"`
	Version          int64            `json:"version"`
	Timestamp        time.Time        `json:"timestamp"`
}

func NewLocationMessage(ev tracking.Event) LocationMessage {
	b := ev.Bus
	return LocationMessage{
		BusID:            b.ID,
		BusNumber:        b.Number,
		RouteID:          ev.RouteID,
		Location:         b.CurrentLocation,
		NextStop:         b.NextStop,
		Resolution:       string(ev.Resolution.Kind),
		Direction:        b.CurrentDirection,
		Status:           b.Status,
		AlertType:        b.AlertType,
		AlertMessage:     b.AlertMessage,
		Students:         b.CurrentPassengers.Students,
		CapacityExceeded: ev.CapacityExceeded,
		Version:          b.Version,
		Timestamp:        ev.Timestamp,
	}
}

func (p *NATSPublisher) Subject(ev tracking.Event) string {
	return fmt.Sprintf("%s.%s.location", p.prefix, subjectToken(ev.Bus.Number))
}

// Notify implements tracking.Notifier.
func (p *NATSPublisher) Notify(_ context.Context, ev tracking.Event) error {
	b, err := json.Marshal(NewLocationMessage(ev))
	if err != nil {
		return err
	}
	return p.nc.Publish(p.Subject(ev), b)
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}

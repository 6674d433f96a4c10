package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bus_tracker/internal/tracking"
)

// Collector implements tracking.Observer on a private prometheus registry.
type Collector struct {
	reg *prometheus.Registry

	UpdatesApplied   *prometheus.CounterVec // resolution label: next|terminal|unmatched
	UpdatesRejected  *prometheus.CounterVec // reason label: validation|not_found|conflict|store
	CapacityWarnings prometheus.Counter
	HistoryFailures  prometheus.Counter
	NotifyFailures   prometheus.Counter
	UpdateDuration   prometheus.Histogram
	WSClients        prometheus.Gauge
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		UpdatesApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bus_tracker_location_updates_total",
			Help: "Location updates persisted, by next-stop resolution.",
		}, []string{"resolution"}),
		UpdatesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bus_tracker_location_updates_rejected_total",
			Help: "Location updates that did not change bus state.",
		}, []string{"reason"}),
		CapacityWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bus_tracker_capacity_exceeded_total",
			Help: "Updates whose passenger count exceeded seating capacity.",
		}),
		HistoryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bus_tracker_history_append_failures_total",
			Help: "Location history records that could not be written.",
		}),
		NotifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bus_tracker_notify_failures_total",
			Help: "Failed deliveries to update subscribers.",
		}),
		UpdateDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bus_tracker_update_duration_seconds",
			Help:    "Time to process an accepted location update.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bus_tracker_websocket_clients",
			Help: "Connected live-update websocket clients.",
		}),
	}

	reg.MustRegister(
		c.UpdatesApplied, c.UpdatesRejected,
		c.CapacityWarnings, c.HistoryFailures, c.NotifyFailures,
		c.UpdateDuration, c.WSClients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

func (c *Collector) UpdateApplied(kind tracking.ResolutionKind, elapsed time.Duration) {
	c.UpdatesApplied.WithLabelValues(string(kind)).Inc()
	c.UpdateDuration.Observe(elapsed.Seconds())
}

func (c *Collector) UpdateRejected(reason string) { c.UpdatesRejected.WithLabelValues(reason).Inc() }
func (c *Collector) CapacityExceeded()            { c.CapacityWarnings.Inc() }
func (c *Collector) HistoryAppendFailed()         { c.HistoryFailures.Inc() }
func (c *Collector) NotifyFailed()                { c.NotifyFailures.Inc() }

// ClientConnected and ClientDisconnected track websocket subscribers.
func (c *Collector) ClientConnected()    { c.WSClients.Inc() }
func (c *Collector) ClientDisconnected() { c.WSClients.Dec() }

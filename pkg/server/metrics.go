package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counters incremented on the hot path. Registered once at init so that
// both the TCP server and the web gateway share them.
var (
	commandsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gomuch_commands_admitted_total",
		Help: "Total commands that passed admission since server start.",
	})
	connectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gomuch_connections_total",
		Help: "Total sessions connected since server start.",
	}, []string{"transport"})
)

// Metrics holds Prometheus gauge descriptors refreshed from the world's
// census on each scrape. Each instance carries its own registry, so the
// shared counters above can be scraped alongside the gauges.
type Metrics struct {
	game      *Game
	startTime time.Time
	registry  *prometheus.Registry

	sessionsConnected *prometheus.GaugeVec
	roomsTotal        prometheus.Gauge
	privateRooms      prometheus.Gauge
	queuedEvents      prometheus.Gauge
	droppedEvents     prometheus.Gauge
	uptimeSeconds     prometheus.Gauge
	memoryHeapBytes   prometheus.Gauge
	goroutines        prometheus.Gauge
}

// NewMetrics creates and registers the census gauges.
func NewMetrics(game *Game, startTime time.Time) *Metrics {
	m := &Metrics{
		game:      game,
		startTime: startTime,
		registry:  prometheus.NewRegistry(),
		sessionsConnected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gomuch_sessions_connected",
			Help: "Number of currently connected sessions by transport.",
		}, []string{"transport"}),
		roomsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gomuch_rooms_total",
			Help: "Total number of rooms in the world.",
		}),
		privateRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gomuch_private_rooms",
			Help: "Number of private rooms currently in the world.",
		}),
		queuedEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gomuch_queued_events",
			Help: "Events waiting in delivery queues across all sessions.",
		}),
		droppedEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gomuch_events_dropped",
			Help: "Events dropped from full delivery queues, lifetime of live sessions.",
		}),
		uptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gomuch_uptime_seconds",
			Help: "Server uptime in seconds.",
		}),
		memoryHeapBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gomuch_memory_heap_bytes",
			Help: "Go heap memory allocated in bytes.",
		}),
		goroutines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gomuch_goroutines",
			Help: "Number of active goroutines.",
		}),
	}

	m.registry.MustRegister(
		commandsTotal,
		connectionsTotal,
		m.sessionsConnected,
		m.roomsTotal,
		m.privateRooms,
		m.queuedEvents,
		m.droppedEvents,
		m.uptimeSeconds,
		m.memoryHeapBytes,
		m.goroutines,
	)

	return m
}

// Update refreshes all gauges from the current world census.
func (m *Metrics) Update() {
	st := m.game.World.Census()
	for transport, n := range st.SessionsByTransport {
		m.sessionsConnected.WithLabelValues(transport).Set(float64(n))
	}
	m.roomsTotal.Set(float64(st.Rooms))
	m.privateRooms.Set(float64(st.PrivateRooms))
	m.queuedEvents.Set(float64(st.QueuedEvents))
	m.droppedEvents.Set(float64(st.DroppedEvents))

	m.uptimeSeconds.Set(time.Since(m.startTime).Seconds())

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	m.memoryHeapBytes.Set(float64(mem.HeapAlloc))
	m.goroutines.Set(float64(runtime.NumGoroutine()))
}

// Handler returns an http.Handler that updates gauges before serving them.
func (m *Metrics) Handler() http.Handler {
	inner := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.Update()
		inner.ServeHTTP(w, r)
	})
}

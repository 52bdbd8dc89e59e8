package module

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for module dispatch.
// A nil *Metrics records nothing.
type Metrics struct {
	calls    *prometheus.CounterVec
	misses   prometheus.Counter
	duration *prometheus.HistogramVec
	loaded   prometheus.Gauge
}

// NewMetrics creates dispatch metrics and registers them with reg.
// A nil reg leaves the collectors unregistered, which tests rely on.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "databroker_module_calls_total",
				Help: "Module calls by module name and outcome",
			},
			[]string{"module", "status"},
		),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "databroker_module_misses_total",
			Help: "Calls naming a module that could not be found",
		}),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "databroker_module_call_duration_seconds",
				Help:    "Wall time spent inside module entries",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
			[]string{"module"},
		),
		loaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "databroker_modules_loaded",
			Help: "Number of modules currently registered",
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.calls, m.misses, m.duration, m.loaded} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) recordCall(name string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(name, statusLabel(status)).Inc()
	m.duration.WithLabelValues(name).Observe(elapsed.Seconds())
}

func (m *Metrics) recordMiss() {
	if m == nil {
		return
	}
	m.misses.Inc()
}

func (m *Metrics) setLoaded(n int) {
	if m == nil {
		return
	}
	m.loaded.Set(float64(n))
}

func statusLabel(status int) string {
	switch status {
	case StatusOK:
		return "ok"
	case StatusDispatch:
		return "dispatch_error"
	}
	return strconv.Itoa(status)
}

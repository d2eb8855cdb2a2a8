package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/matzehuels/graphtriple/pkg/errors"
)

const namespace = "graphtriple"

// Prometheus implements every hook interface with Prometheus collectors.
type Prometheus struct {
	importLines    *prometheus.CounterVec   // by kind and result
	importDuration *prometheus.HistogramVec // by kind
	importStreams  *prometheus.CounterVec   // by result
	exportLines    *prometheus.CounterVec   // by result (ok/unsupported)
	exportElements *prometheus.CounterVec   // by element type
	cacheEvents    *prometheus.CounterVec   // by key type and event
	queuePushes    *prometheus.CounterVec   // by backend and result
	queueItems     *prometheus.CounterVec   // by backend
}

// NewPrometheus creates the collectors and registers them with reg.
// A nil reg leaves them unregistered, which is useful in tests.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		importLines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "lines_total",
			Help:      "Triple lines imported, by triple kind and result",
		}, []string{"kind", "result"}),

		importDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "line_duration_seconds",
			Help:      "Time to resolve and apply one triple line",
			Buckets:   []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"kind"}),

		importStreams: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "streams_total",
			Help:      "Triple streams imported, by whether any line failed",
		}, []string{"result"}),

		exportLines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "lines_total",
			Help:      "Triple lines exported; unsupported lines are diagnostic comments",
		}, []string{"result"}),

		exportElements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "elements_total",
			Help:      "Elements exported, by element type",
		}, []string{"type"}),

		cacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "events_total",
			Help:      "Render cache events, by key type and event (hit/miss/set)",
		}, []string{"key_type", "event"}),

		queuePushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workqueue",
			Name:      "pushes_total",
			Help:      "Work-queue pushes, by backend and result",
		}, []string{"backend", "result"}),

		queueItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workqueue",
			Name:      "items_total",
			Help:      "Elements pushed to the work queue, by backend",
		}, []string{"backend"}),
	}

	if reg != nil {
		reg.MustRegister(
			p.importLines, p.importDuration, p.importStreams,
			p.exportLines, p.exportElements,
			p.cacheEvents,
			p.queuePushes, p.queueItems,
		)
	}
	return p
}

// OnLineComplete implements ImportHooks.
func (p *Prometheus) OnLineComplete(_ context.Context, kind string, duration time.Duration, err error) {
	p.importLines.WithLabelValues(kind, result(err)).Inc()
	p.importDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// OnStreamComplete implements ImportHooks.
func (p *Prometheus) OnStreamComplete(_ context.Context, _ string, _, failed int, _ time.Duration) {
	if failed > 0 {
		p.importStreams.WithLabelValues("partial").Inc()
		return
	}
	p.importStreams.WithLabelValues("ok").Inc()
}

// OnElementExported implements ExportHooks.
func (p *Prometheus) OnElementExported(_ context.Context, elementType string, lines, unsupported int) {
	p.exportElements.WithLabelValues(elementType).Inc()
	p.exportLines.WithLabelValues("ok").Add(float64(lines - unsupported))
	p.exportLines.WithLabelValues("unsupported").Add(float64(unsupported))
}

// OnCacheHit implements CacheHooks.
func (p *Prometheus) OnCacheHit(_ context.Context, keyType string) {
	p.cacheEvents.WithLabelValues(keyType, "hit").Inc()
}

// OnCacheMiss implements CacheHooks.
func (p *Prometheus) OnCacheMiss(_ context.Context, keyType string) {
	p.cacheEvents.WithLabelValues(keyType, "miss").Inc()
}

// OnCacheSet implements CacheHooks.
func (p *Prometheus) OnCacheSet(_ context.Context, keyType string, _ int) {
	p.cacheEvents.WithLabelValues(keyType, "set").Inc()
}

// OnPush implements QueueHooks.
func (p *Prometheus) OnPush(_ context.Context, backend string, items int, _ time.Duration, err error) {
	p.queuePushes.WithLabelValues(backend, result(err)).Inc()
	if err == nil {
		p.queueItems.WithLabelValues(backend).Add(float64(items))
	}
}

// result maps err to a low-cardinality label: "ok" or its error code.
func result(err error) string {
	if err == nil {
		return "ok"
	}
	if code := errors.GetCode(err); code != "" {
		return string(code)
	}
	return "error"
}

var (
	_ ImportHooks = (*Prometheus)(nil)
	_ ExportHooks = (*Prometheus)(nil)
	_ CacheHooks  = (*Prometheus)(nil)
	_ QueueHooks  = (*Prometheus)(nil)
)

// Install registers p for every hook interface.
func (p *Prometheus) Install() {
	SetImportHooks(p)
	SetExportHooks(p)
	SetCacheHooks(p)
	SetQueueHooks(p)
}

package metrics

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/resdomain/internal/event"
)

// Batch Prometheus metrics.
var (
	BatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resdomain",
			Name:      "batches_total",
			Help:      "Total number of processed batches",
		},
		[]string{"entity", "action", "status"},
	)

	ItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resdomain",
			Name:      "items_total",
			Help:      "Total number of processed batch items",
		},
		[]string{"entity", "action", "status"},
	)

	BatchSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "resdomain",
			Name:      "batch_size",
			Help:      "Number of items per batch",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
		},
		[]string{"entity", "action"},
	)
)

var registerOnce sync.Once

// Register adds the batch and ops server metrics to the default registry.
// Later calls are no-ops.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(BatchesTotal, ItemsTotal, BatchSize)
		prometheus.MustRegister(HTTPRequestsTotal, HTTPRequestDuration)
	})
}

// BatchListener records post-events into the batch metrics.
type BatchListener struct{}

// Handle implements event.Listener. Pre-events are ignored.
func (BatchListener) Handle(_ context.Context, e *event.Event) {
	if e.Phase != event.Post || e.Batch == nil {
		return
	}
	action := string(e.Action)
	BatchesTotal.WithLabelValues(e.EntityType, action, string(e.Batch.Status())).Inc()
	BatchSize.WithLabelValues(e.EntityType, action).Observe(float64(e.Batch.Len()))
	for _, item := range e.Batch.Items() {
		ItemsTotal.WithLabelValues(e.EntityType, action, string(item.Status())).Inc()
	}
}

package database

import (
	"context"
	"time"

	"github.com/zatekoja/knowledgeanalytics/internal/infrastructure/observability"
)

// Option configures an adapter
type Option func(*queryObserver)

// WithQueryMetrics records the duration of every adapter query
func WithQueryMetrics(metrics *observability.Metrics) Option {
	return func(o *queryObserver) {
		o.metrics = metrics
	}
}

type queryObserver struct {
	metrics *observability.Metrics
}

func newQueryObserver(opts []Option) queryObserver {
	var o queryObserver
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// observe is deferred at the top of each query method with time.Now().
func (o queryObserver) observe(ctx context.Context, operation string, start time.Time) {
	o.metrics.RecordDBQuery(ctx, operation, time.Since(start))
}

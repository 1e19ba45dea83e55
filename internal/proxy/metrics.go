package proxy

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/deepaksharma/otel-trace-access/internal/otlp"
)

// Metrics counts query activity across all instrumented proxies.
type Metrics struct {
	queries *atomic.Int64
	pages   *atomic.Int64
	tokens  *atomic.Int64
	errors  *atomic.Int64
}

// NewMetrics creates a zeroed metrics set.
func NewMetrics() *Metrics {
	return &Metrics{
		queries: atomic.NewInt64(0),
		pages:   atomic.NewInt64(0),
		tokens:  atomic.NewInt64(0),
		errors:  atomic.NewInt64(0),
	}
}

// Register exposes the counters through meter.
func (m *Metrics) Register(meter metric.Meter) error {
	counters := []struct {
		name        string
		description string
		unit        string
		value       *atomic.Int64
	}{
		{"trace_access.queries", "Number of page queries received", "{queries}", m.queries},
		{"trace_access.pages", "Number of span collections returned", "{pages}", m.pages},
		{"trace_access.page_tokens", "Number of continuation tokens issued", "{tokens}", m.tokens},
		{"trace_access.query_errors", "Number of page queries that failed", "{errors}", m.errors},
	}

	for _, c := range counters {
		value := c.value
		_, err := meter.Int64ObservableCounter(
			c.name,
			metric.WithDescription(c.description),
			metric.WithUnit(c.unit),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(value.Load())
				return nil
			}),
		)
		if err != nil {
			return fmt.Errorf("failed to register %s counter: %w", c.name, err)
		}
	}
	return nil
}

// Snapshot returns the current counter values, keyed by metric name suffix.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"queries":      m.queries.Load(),
		"pages":        m.pages.Load(),
		"page_tokens":  m.tokens.Load(),
		"query_errors": m.errors.Load(),
	}
}

type instrumented struct {
	next    Proxy
	name    string
	metrics *Metrics
	logger  *zap.Logger
}

// Instrument wraps p so every page query is counted and logged.
func Instrument(p Proxy, name string, metrics *Metrics, logger *zap.Logger) Proxy {
	if metrics == nil {
		metrics = NewMetrics()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &instrumented{next: p, name: name, metrics: metrics, logger: logger}
}

func (i *instrumented) QueryPage(ctx context.Context, q Query) otlp.Seq[Result] {
	return func(yield func(Result, error) bool) {
		start := time.Now()
		i.metrics.queries.Inc()
		pages, tokens := 0, 0

		for res, err := range i.next.QueryPage(ctx, q) {
			if err != nil {
				i.metrics.errors.Inc()
				i.logger.Warn("Page query failed",
					zap.String("proxy", i.name),
					zap.Error(err))
				yield(res, err)
				return
			}
			if res.IsToken() {
				tokens++
				i.metrics.tokens.Inc()
			} else {
				pages++
				i.metrics.pages.Inc()
			}
			if !yield(res, nil) {
				return
			}
		}

		i.logger.Debug("Page query completed",
			zap.String("proxy", i.name),
			zap.Int("pages", pages),
			zap.Int("tokens", tokens),
			zap.Bool("resumed", q.PageToken != nil),
			zap.Duration("duration", time.Since(start)))
	}
}

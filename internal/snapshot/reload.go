package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/deepaksharma/otel-trace-access/internal/otlp"
)

// Replacer accepts a freshly loaded collection.
type Replacer interface {
	Replace(td *otlp.TracesData)
}

// Reloader periodically loads a snapshot file into a Replacer.
type Reloader struct {
	path   string
	format Format
	target Replacer
	cron   *cron.Cron
	logger *zap.Logger

	reloads *atomic.Int64
	failed  *atomic.Int64
}

// NewReloader schedules reloads of path with a standard five field cron
// expression.
func NewReloader(schedule, path string, format Format, target Replacer, logger *zap.Logger) (*Reloader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reloader{
		path:    path,
		format:  format,
		target:  target,
		cron:    cron.New(),
		logger:  logger,
		reloads: atomic.NewInt64(0),
		failed:  atomic.NewInt64(0),
	}
	_, err := r.cron.AddFunc(schedule, func() {
		if err := r.Reload(); err != nil {
			logger.Error("Snapshot reload failed", zap.String("path", path), zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid reload schedule %q: %w", schedule, err)
	}
	return r, nil
}

// Reload loads the snapshot now. On failure the target keeps its data.
func (r *Reloader) Reload() error {
	start := time.Now()
	td, err := Load(r.path, r.format)
	if err != nil {
		r.failed.Inc()
		return err
	}
	r.target.Replace(td)
	r.reloads.Inc()
	r.logger.Info("Snapshot reloaded",
		zap.String("path", r.path),
		zap.String("format", string(r.format)),
		zap.Int("spans", td.SpanCount()),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// Reloads returns the number of successful and failed reloads so far.
func (r *Reloader) Reloads() (succeeded, failed int64) {
	return r.reloads.Load(), r.failed.Load()
}

// Start begins the schedule.
func (r *Reloader) Start() {
	r.cron.Start()
	r.logger.Info("Snapshot reload scheduled", zap.String("path", r.path))
}

// Stop ends the schedule and waits for a running reload to finish or for
// ctx to expire.
func (r *Reloader) Stop(ctx context.Context) error {
	select {
	case <-r.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

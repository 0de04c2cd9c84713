package cleanup

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

// Deleter removes a cart line upstream.
type Deleter interface {
	DeleteLine(ctx context.Context, id string) error
}

// Runner executes cleanup sagas against a Deleter and records every task
// outcome in a Log.
type Runner struct {
	lines       Deleter
	log         Log
	gone        error
	maxAttempts int
	meter       metric.MeterProvider

	done   metric.Int64Counter
	failed metric.Int64Counter
}

// Option configures a Runner.
type Option func(*Runner)

// WithGone sets the error a Deleter returns for a line that no longer
// exists. Such lines count as removed.
func WithGone(err error) Option {
	return func(r *Runner) { r.gone = err }
}

// WithMaxAttempts bounds how many times a failed task is retried.
func WithMaxAttempts(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithMeterProvider sets the provider for the task counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(r *Runner) {
		if mp != nil {
			r.meter = mp
		}
	}
}

// NewRunner creates a Runner.
func NewRunner(lines Deleter, log Log, opts ...Option) (*Runner, error) {
	r := &Runner{
		lines:       lines,
		log:         log,
		maxAttempts: 5,
		meter:       noop.NewMeterProvider(),
	}
	for _, o := range opts {
		o(r)
	}

	m := r.meter.Meter("storefront/cleanup")
	var err error
	if r.done, err = m.Int64Counter("cleanup.tasks.done",
		metric.WithDescription("Cart lines removed after checkout"),
	); err != nil {
		return nil, errors.Wrap(err, "create done counter")
	}
	if r.failed, err = m.Int64Counter("cleanup.tasks.failed",
		metric.WithDescription("Cart line removals that failed after checkout"),
	); err != nil {
		return nil, errors.Wrap(err, "create failed counter")
	}
	return r, nil
}

// Run records s and removes each of its lines in order. Failures of the log
// are logged and never stop the removal itself.
func (r *Runner) Run(ctx context.Context, s *Saga) Report {
	lg := zctx.From(ctx).With(zap.String("saga_id", s.ID), zap.String("order_id", s.OrderID))

	if err := r.log.Begin(ctx, s); err != nil {
		lg.Warn("Record cleanup saga", zap.Error(err))
	}

	rep := Report{SagaID: s.ID}
	for i := range s.Tasks {
		r.exec(ctx, lg, &s.Tasks[i], &rep)
	}
	return rep
}

// Retry re-runs up to limit failed tasks that still have attempts left.
func (r *Runner) Retry(ctx context.Context, limit int) (Report, error) {
	tasks, err := r.log.Retryable(ctx, r.maxAttempts, limit)
	if err != nil {
		return Report{}, errors.Wrap(err, "list retryable tasks")
	}

	lg := zctx.From(ctx)
	var rep Report
	for i := range tasks {
		r.exec(ctx, lg.With(zap.String("saga_id", tasks[i].SagaID)), &tasks[i], &rep)
	}
	return rep, nil
}

// Saga returns the recorded state of a saga.
func (r *Runner) Saga(ctx context.Context, id string) (*Saga, error) {
	s, err := r.log.Saga(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get saga %s", id)
	}
	return s, nil
}

// Start retries failed tasks every interval until ctx is done. A
// non-positive interval disables retries.
func (r *Runner) Start(ctx context.Context, interval time.Duration, batch int) {
	lg := zctx.From(ctx).Named("cleanup")
	if interval <= 0 {
		lg.Error("Cleanup retries disabled", zap.Duration("interval", interval))
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rep, err := r.Retry(ctx, batch)
			if err != nil {
				lg.Error("Retry cleanup tasks", zap.Error(err))
				continue
			}
			if len(rep.Done)+len(rep.Failed) > 0 {
				lg.Info("Retried cleanup tasks",
					zap.Int("done", len(rep.Done)),
					zap.Int("failed", len(rep.Failed)),
				)
			}
		}
	}
}

func (r *Runner) exec(ctx context.Context, lg *zap.Logger, t *Task, rep *Report) {
	attrs := metric.WithAttributes(attribute.Int("attempt", t.Attempts+1))

	err := r.lines.DeleteLine(ctx, t.LineID)
	if err == nil || (r.gone != nil && errors.Is(err, r.gone)) {
		t.Status = StatusDone
		t.UpdatedAt = time.Now().UTC()
		rep.Done = append(rep.Done, t.LineID)
		r.done.Add(ctx, 1, attrs)
		if err := r.log.Complete(ctx, t.ID); err != nil {
			lg.Warn("Record cleanup task done", zap.String("task_id", t.ID), zap.Error(err))
		}
		return
	}

	t.Status = StatusFailed
	t.Attempts++
	t.LastError = err.Error()
	t.UpdatedAt = time.Now().UTC()
	rep.Failed = append(rep.Failed, Failure{TaskID: t.ID, LineID: t.LineID, Err: err})
	r.failed.Add(ctx, 1, attrs)
	lg.Warn("Remove cart line", zap.String("line_id", t.LineID), zap.Error(err))
	if err := r.log.Fail(ctx, t.ID, t.LastError); err != nil {
		lg.Warn("Record cleanup task failure", zap.String("task_id", t.ID), zap.Error(err))
	}
}

// Package dispatch runs module callbacks off the caller's goroutine.
//
// A Dispatcher owns a worker pool and, optionally, a bounded queue in front of
// it. Submit never blocks: a task is either accepted or rejected immediately.
// Within one task the follow-up always runs after the callback, on the same
// worker. Across tasks there is no ordering.
//
// Every task run gets a name, "<prefix>-<n>" with n counting runs from 1,
// readable through WorkerName. The name identifies one run, not a pool
// goroutine: ants reuses goroutines, so one goroutine carries a new name for
// each task it picks up.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Workiva/go-datastructures/queue"
	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const tracerName = "github.com/skekre98/kunou/dispatch"

var errNoCallback = errors.New("dispatch: task has no callback")

// Dispatcher executes submitted tasks on a pool of workers.
type Dispatcher struct {
	name      string
	logger    *slog.Logger
	onFailure FailureHandler
	tracer    trace.Tracer
	metrics   *metrics

	pool  *ants.Pool
	queue *queue.RingBuffer // nil when tasks go straight to the pool
	fed   chan struct{}     // closed when the feeder exits

	ctx    context.Context
	cancel context.CancelFunc

	counter atomic.Uint64

	mu     sync.RWMutex
	closed bool

	trackMu     sync.Mutex
	outstanding int64
	idle        chan struct{} // closed while outstanding == 0
}

// New builds a Dispatcher and starts its feeder when a queue is configured.
func New(opts Options, options ...Option) (*Dispatcher, error) {
	s := settings{
		logger: slog.Default(),
		tracer: noop.NewTracerProvider(),
	}
	for _, o := range options {
		o(&s)
	}
	if opts.Name == "" {
		opts.Name = DefaultName
	}

	d := &Dispatcher{
		name:      opts.Name,
		logger:    s.logger.With("component", "dispatcher"),
		onFailure: s.onFailure,
		tracer:    s.tracer.Tracer(tracerName),
		idle:      make(chan struct{}),
	}
	close(d.idle)

	poolOpts := []ants.Option{
		ants.WithLogger(antsLogger{d.logger}),
		ants.WithPanicHandler(func(v any) {
			d.logger.Error("worker panic outside of a task", "panic", v)
		}),
	}
	if opts.ExpiryDuration > 0 {
		poolOpts = append(poolOpts, ants.WithExpiryDuration(opts.ExpiryDuration))
	}
	if opts.QueueSize <= 0 {
		// Without a queue the pool itself must refuse instead of blocking
		// the submitter.
		poolOpts = append(poolOpts, ants.WithNonblocking(true))
	}
	size := opts.Size
	if size <= 0 {
		size = -1
	}
	pool, err := ants.NewPool(size, poolOpts...)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	d.pool = pool

	if opts.QueueSize > 0 {
		d.queue = queue.NewRingBuffer(uint64(opts.QueueSize))
	}

	d.metrics = newMetrics(
		func() float64 { return float64(d.Queued()) },
		func() float64 { return float64(d.Running()) },
	)
	if s.registry != nil {
		if err := d.metrics.register(s.registry); err != nil {
			pool.Release()
			return nil, fmt.Errorf("register dispatcher metrics: %w", err)
		}
	}

	d.ctx, d.cancel = context.WithCancel(context.Background())
	if d.queue != nil {
		d.fed = make(chan struct{})
		go d.feed()
	}
	return d, nil
}

// Submit hands t to a worker and returns without waiting for it. It fails
// with ErrSaturated when no capacity is left and ErrClosed after Shutdown.
func (d *Dispatcher) Submit(t Task) error {
	if t.Run == nil {
		return errNoCallback
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.metrics.rejected.WithLabelValues(t.Op, "closed").Inc()
		return ErrClosed
	}
	if t.Tracked {
		d.track()
	}

	if d.queue != nil {
		ok, err := d.queue.Offer(t)
		switch {
		case err != nil:
			return d.reject(t, "closed", ErrClosed)
		case !ok:
			return d.reject(t, "saturated", ErrSaturated)
		}
	} else if err := d.pool.Submit(func() { d.execute(t) }); err != nil {
		if errors.Is(err, ants.ErrPoolOverload) {
			return d.reject(t, "saturated", ErrSaturated)
		}
		return d.reject(t, "closed", ErrClosed)
	}

	d.metrics.submitted.WithLabelValues(t.Op).Inc()
	return nil
}

func (d *Dispatcher) reject(t Task, reason string, err error) error {
	if t.Tracked {
		d.untrack()
	}
	d.metrics.rejected.WithLabelValues(t.Op, reason).Inc()
	return err
}

// feed moves queued tasks into the pool. The pool blocks the feeder, never
// the submitter, when every worker is busy.
func (d *Dispatcher) feed() {
	defer close(d.fed)
	for {
		item, err := d.queue.Get()
		if err != nil {
			return
		}
		t := item.(Task)
		if err := d.pool.Submit(func() { d.execute(t) }); err != nil {
			d.discard(t)
		}
	}
}

func (d *Dispatcher) discard(t Task) {
	d.logger.Warn("discarding task", "module", t.Module, "op", t.Op)
	if t.Tracked {
		d.untrack()
	}
	d.metrics.rejected.WithLabelValues(t.Op, "discarded").Inc()
}

func (d *Dispatcher) execute(t Task) {
	worker := fmt.Sprintf("%s-%d", d.name, d.counter.Add(1))
	ctx, span := d.tracer.Start(withWorker(d.ctx, worker), "module."+t.Op,
		trace.WithAttributes(
			attribute.String("module.name", t.Module),
			attribute.String("dispatch.worker", worker),
		),
	)
	start := time.Now()
	defer func() {
		d.metrics.duration.WithLabelValues(t.Op).Observe(time.Since(start).Seconds())
		d.metrics.completed.WithLabelValues(t.Op).Inc()
		span.End()
		if t.Tracked {
			d.untrack()
		}
	}()

	if err := call(ctx, t.Run); err != nil {
		d.fail(span, t, worker, StageCallback, err)
		return
	}
	if t.FollowUp == nil {
		return
	}
	if err := call(ctx, t.FollowUp); err != nil {
		d.fail(span, t, worker, StageFollowUp, err)
	}
}

func call(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return fn(ctx)
}

func (d *Dispatcher) fail(span trace.Span, t Task, worker, stage string, err error) {
	cerr := &CallbackError{Module: t.Module, Op: t.Op, Worker: worker, Stage: stage, Err: err}
	d.logger.Error("uncaught failure in module task",
		"module", t.Module, "op", t.Op, "worker", worker, "stage", stage, "error", err)
	d.metrics.failures.WithLabelValues(t.Op, stage).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, cerr.Error())
	if d.onFailure != nil {
		d.onFailure(cerr)
	}
}

func (d *Dispatcher) track() {
	d.trackMu.Lock()
	defer d.trackMu.Unlock()
	if d.outstanding == 0 {
		d.idle = make(chan struct{})
	}
	d.outstanding++
	d.metrics.outstanding.Inc()
}

func (d *Dispatcher) untrack() {
	d.trackMu.Lock()
	defer d.trackMu.Unlock()
	d.outstanding--
	d.metrics.outstanding.Dec()
	if d.outstanding == 0 {
		close(d.idle)
	}
}

// Outstanding returns the number of tracked tasks not yet finished.
func (d *Dispatcher) Outstanding() int64 {
	d.trackMu.Lock()
	defer d.trackMu.Unlock()
	return d.outstanding
}

// Wait blocks until every tracked task has finished or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	d.trackMu.Lock()
	idle := d.idle
	d.trackMu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running returns the number of live workers, busy or idle.
func (d *Dispatcher) Running() int {
	return d.pool.Running()
}

// Queued returns the number of tasks waiting for a worker.
func (d *Dispatcher) Queued() int {
	if d.queue == nil {
		return 0
	}
	return int(d.queue.Len())
}

// Cap returns the worker bound, or -1 when the pool is unbounded.
func (d *Dispatcher) Cap() int {
	return d.pool.Cap()
}

// Closed reports whether Shutdown has been called.
func (d *Dispatcher) Closed() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.closed
}

// Shutdown stops accepting tasks, discards queued ones, cancels the context
// of running ones and releases the pool. Running tasks are interrupted only
// if they watch their context. When ctx has a deadline, Shutdown waits for
// running workers until then.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	d.logger.Info("shutting down dispatcher", "running", d.Running(), "queued", d.Queued())
	if d.queue != nil {
		for d.queue.Len() > 0 {
			item, err := d.queue.Poll(time.Millisecond)
			if err != nil {
				break
			}
			d.discard(item.(Task))
		}
		d.queue.Dispose()
	}
	d.cancel()

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = d.pool.ReleaseTimeout(time.Until(deadline))
	} else {
		d.pool.Release()
	}
	if d.fed != nil {
		<-d.fed
	}
	if err != nil {
		return fmt.Errorf("release worker pool: %w", err)
	}
	return nil
}

type antsLogger struct {
	l *slog.Logger
}

func (a antsLogger) Printf(format string, args ...any) {
	a.l.Warn(fmt.Sprintf(format, args...))
}

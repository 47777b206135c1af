package dispatch

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

// DefaultName is the worker-name prefix used when Options.Name is empty.
const DefaultName = "module-worker"

// Options sizes the dispatcher.
type Options struct {
	// Size caps the number of concurrent workers. Zero or negative means the
	// pool grows on demand without a bound.
	Size int
	// QueueSize bounds the number of submitted tasks waiting for a worker.
	// Zero or negative disables the queue: tasks go straight to the pool.
	QueueSize int
	// ExpiryDuration is how long an idle worker lives before it is reaped.
	ExpiryDuration time.Duration
	// Name prefixes run names, e.g. "module-worker-3" for the third task run.
	Name string
}

// FailureHandler receives every task failure.
type FailureHandler func(err *CallbackError)

type settings struct {
	logger    *slog.Logger
	onFailure FailureHandler
	registry  prometheus.Registerer
	tracer    trace.TracerProvider
}

// Option customizes a Dispatcher.
type Option func(*settings)

// WithLogger sets the logger used for task failures and shutdown.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithFailureHandler routes task failures to h in addition to the log.
func WithFailureHandler(h FailureHandler) Option {
	return func(s *settings) { s.onFailure = h }
}

// WithRegisterer registers the dispatcher's collectors with r.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(s *settings) { s.registry = r }
}

// WithTracerProvider enables a span per task.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *settings) { s.tracer = tp }
}

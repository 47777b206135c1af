package module

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/skekre98/kunou/dispatch"
)

// Base is a ready-made Module that concrete modules embed. It stores the
// identity, the owning loader and the status, and its callbacks only move
// the status and log. Embedders override the callbacks they care about and
// call SetStatus from inside them.
//
//	type Audio struct{ *module.Base }
//
//	func (a *Audio) OnMessage(ctx context.Context, args []string) error { ... }
type Base struct {
	info   Info
	loader *Loader
	status atomic.Int32
	logger *slog.Logger
}

// NewBase returns a Base bound to l, in status Dead. A nil logger falls back
// to slog.Default.
func NewBase(l *Loader, info Info, logger *slog.Logger) *Base {
	if logger == nil {
		logger = slog.Default()
	}
	return &Base{
		info:   info,
		loader: l,
		logger: logger.With("module", info.Name, "version", info.Version),
	}
}

func (b *Base) Info() Info      { return b.info }
func (b *Base) Loader() *Loader { return b.loader }

// Status returns the last status set.
func (b *Base) Status() Status {
	return Status(b.status.Load())
}

// SetStatus records s. Only the module itself should call it.
func (b *Base) SetStatus(s Status) {
	b.status.Store(int32(s))
}

// Logger returns the module-scoped logger.
func (b *Base) Logger() *slog.Logger {
	return b.logger
}

// OnStart goes straight from Starting to Ready.
func (b *Base) OnStart(ctx context.Context, args []string) error {
	b.SetStatus(Starting)
	b.logger.Info("starting module", "author", b.info.Author, "args", args, "worker", dispatch.WorkerName(ctx))
	b.SetStatus(Ready)
	return nil
}

// OnMessage only logs.
func (b *Base) OnMessage(ctx context.Context, args []string) error {
	b.logger.Info("message received", "args", args, "worker", dispatch.WorkerName(ctx))
	return nil
}

// OnDeath goes from ShuttingDown to Dead.
func (b *Base) OnDeath(ctx context.Context) error {
	b.SetStatus(ShuttingDown)
	b.logger.Info("module is dead", "author", b.info.Author, "worker", dispatch.WorkerName(ctx))
	b.SetStatus(Dead)
	return nil
}

// Package echo is a sample module built on module.Base. It logs every
// message it receives, keeps a count and answers "ping" with "pong".
package echo

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/skekre98/kunou/dispatch"
	"github.com/skekre98/kunou/module"
)

const (
	Name    = "echo"
	Version = "v0.1.0"
	Author  = "kunou"
	URL     = "https://github.com/skekre98/kunou"
)

// Module echoes messages to its logger.
type Module struct {
	*module.Base
	received atomic.Int64
	// prefix is swapped by OnStart while a message from before a restart may
	// still be reading it.
	prefix atomic.Pointer[string]
}

// New returns an echo module bound to l.
func New(l *module.Loader, logger *slog.Logger) *Module {
	return &Module{
		Base: module.NewBase(l, module.Info{Name: Name, Version: Version, Author: Author, URL: URL}, logger),
	}
}

// OnStart accepts an optional prefix as its first argument.
func (m *Module) OnStart(ctx context.Context, args []string) error {
	m.SetStatus(module.Starting)
	var prefix string
	if len(args) > 0 {
		prefix = args[0]
	}
	m.prefix.Store(&prefix)
	m.Logger().Info("echo ready", "prefix", prefix, "worker", dispatch.WorkerName(ctx))
	m.SetStatus(module.Ready)
	return nil
}

// OnMessage logs the joined arguments.
func (m *Module) OnMessage(ctx context.Context, args []string) error {
	m.received.Add(1)
	reply := strings.Join(args, " ")
	if reply == "ping" {
		reply = "pong"
	}
	m.Logger().Info(m.Prefix()+reply, "worker", dispatch.WorkerName(ctx))
	return nil
}

// Prefix returns the prefix set by the last start, "" before any.
func (m *Module) Prefix() string {
	if p := m.prefix.Load(); p != nil {
		return *p
	}
	return ""
}

// Received returns how many messages the module handled.
func (m *Module) Received() int64 {
	return m.received.Load()
}

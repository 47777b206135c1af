package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/skekre98/kunou/config"
	"github.com/skekre98/kunou/core"
)

const Name = "web"

func Engine(c core.Container) *gin.Engine {
	return core.Get[*gin.Engine](c)
}

func Component(opts ...Option) core.Component {
	var options Options
	for _, o := range opts {
		o(&options)
	}
	return &component{opts: options}
}

type component struct {
	opts   Options
	server *http.Server
	addr   net.Addr
	done   chan struct{}
}

func (m *component) Name() string        { return Name }
func (m *component) DependsOn() []string { return nil }

func (m *component) Configure(c core.Container) error {
	cfg := core.Get[config.Root](c)
	l := core.Get[*slog.Logger](c)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Middlewares: request ID, recovery, access log
	r.Use(RequestID())
	r.Use(RecoveryProblem(l))
	r.Use(AccessLog(l))
	r.Use(m.opts.Middlewares...)

	// Allow other components/app to register routes
	for _, reg := range m.opts.Routes {
		reg(r)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	core.Put[*gin.Engine](c, r)
	core.Put[*http.Server](c, srv)
	m.server = srv
	return nil
}

// Start binds the listener synchronously so a busy port fails the app start,
// then serves in the background.
func (m *component) Start(ctx context.Context, c core.Container) error {
	l := core.Get[*slog.Logger](c)
	ln, err := net.Listen("tcp", m.server.Addr)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	m.addr = ln.Addr()
	m.done = make(chan struct{})
	go func() {
		defer close(m.done)
		l.Info("http server starting", "addr", m.addr.String())
		if err := m.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("http server error", "error", err)
		}
	}()
	return nil
}

func (m *component) Stop(ctx context.Context, c core.Container) error {
	if err := m.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if m.done != nil {
		<-m.done
	}
	return nil
}

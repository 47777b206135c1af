package core

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"
)

// DefaultShutdownTimeout bounds the stop phase when App.ShutdownTimeout is zero.
const DefaultShutdownTimeout = 15 * time.Second

type App struct {
	Components      []Component
	Container       Container
	Logger          *slog.Logger
	ShutdownTimeout time.Duration
}

func NewApp(logger *slog.Logger, comps ...Component) *App {
	return &App{
		Components: comps,
		Container:  NewContainer(),
		Logger:     logger,
	}
}

// Run configures and starts every component in dependency order, waits for
// ctx to end or SIGINT/SIGTERM, then stops them in reverse order.
func (a *App) Run(ctx context.Context) error {
	// 1) Order components by dependencies (simple topo-sort)
	order, err := topoSort(a.Components)
	if err != nil {
		return err
	}

	// 2) Configure
	for _, c := range order {
		if err := c.Configure(a.Container); err != nil {
			return err
		}
	}

	// 3) Start in order; unwind what already started on failure
	for i, c := range order {
		a.Logger.Info("starting component", "component", c.Name())
		if err := c.Start(ctx, a.Container); err != nil {
			return errors.Join(err, a.stop(order[:i]))
		}
	}

	// 4) Wait for signal, then stop in reverse order
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)
	select {
	case <-ctx.Done():
	case <-stop:
	}

	return a.stop(order)
}

func (a *App) stop(started []Component) error {
	timeout := a.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	// give components time to shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var firstErr error
	for i := len(started) - 1; i >= 0; i-- {
		c := started[i]
		a.Logger.Info("stopping component", "component", c.Name())
		if err := c.Stop(shutdownCtx, a.Container); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func topoSort(comps []Component) ([]Component, error) {
	nameToComp := map[string]Component{}
	for _, c := range comps {
		if _, dup := nameToComp[c.Name()]; dup {
			return nil, errors.New("duplicate component name: " + c.Name())
		}
		nameToComp[c.Name()] = c
	}
	visited := map[string]bool{}
	temp := map[string]bool{}
	var out []Component
	var visit func(string) error

	visit = func(n string) error {
		if temp[n] {
			return errors.New("cycle detected at component " + n)
		}
		if visited[n] {
			return nil
		}
		temp[n] = true
		c := nameToComp[n]
		for _, d := range c.DependsOn() {
			if _, ok := nameToComp[d]; !ok {
				return errors.New("missing dependency: " + n + " depends on " + d)
			}
			if err := visit(d); err != nil {
				return err
			}
		}
		visited[n] = true
		temp[n] = false
		out = append(out, c)
		return nil
	}

	// Make iteration order stable.
	names := make([]string, 0, len(comps))
	for _, c := range comps {
		names = append(names, c.Name())
	}
	sort.Strings(names)

	for _, n := range names {
		if err := visit(n); err != nil {
			return nil, err
		}
	}
	return out, nil
}

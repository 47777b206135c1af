package config

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
)

// Manager loads a config struct from layered sources, keeps it valid and
// tells subscribers when a reload changed it. All methods are safe for
// concurrent use.
type Manager struct {
	sources []ConfigSource
	config  any
	binder  *Binder
	logger  *slog.Logger

	mu   sync.RWMutex
	subs []chan Event

	ctx    context.Context
	cancel context.CancelFunc
}

// Options configures a Manager.
type Options struct {
	// AutoReload starts a watcher per source and reloads on every change.
	AutoReload bool

	// Logger receives reload failures from watchers. Defaults to slog.Default.
	Logger *slog.Logger
}

// NewManager binds cfg, a pointer to a struct, from sources in order; later
// sources override earlier ones. The first load must succeed.
//
//	var cfg config.Root
//	mgr, err := config.NewManager(&cfg, config.Options{},
//	    config.Defaults{},
//	    &source.FileSource{BasePath: "configs", Optional: true},
//	    &source.EnvSource{},
//	    &source.CLISource{},
//	)
func NewManager(cfg any, opts Options, sources ...ConfigSource) (*Manager, error) {
	m := &Manager{
		sources: sources,
		config:  cfg,
		binder:  NewBinder(),
		logger:  opts.Logger,
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())

	if err := m.Reload(context.Background()); err != nil {
		m.cancel()
		return nil, err
	}
	if opts.AutoReload {
		m.startWatchers()
	}
	return m, nil
}

// Reload merges every source, binds and validates the result into a fresh
// value and only then copies it over the caller's struct. A failed reload
// leaves the current config untouched. Subscribers hear about it only when
// something changed.
func (m *Manager) Reload(ctx context.Context) error {
	merged := map[string]any{}
	for _, src := range m.sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		vals, err := src.Load(ctx)
		if err != nil {
			return fmt.Errorf("failed to load config from %s: %w", src.Name(), err)
		}
		mergeMaps(merged, vals)
	}

	typ := reflect.TypeOf(m.config).Elem()
	next := reflect.New(typ).Interface()
	if err := m.binder.Bind(merged, next); err != nil {
		return fmt.Errorf("failed to bind config: %w", err)
	}

	prev := reflect.New(typ).Interface()
	m.mu.Lock()
	reflect.ValueOf(prev).Elem().Set(reflect.ValueOf(m.config).Elem())
	reflect.ValueOf(m.config).Elem().Set(reflect.ValueOf(next).Elem())
	m.mu.Unlock()

	if !reflect.DeepEqual(prev, next) {
		m.notify(diffEvent(prev, next))
	}
	return nil
}

// Subscribe registers ch for change events. Sends never block: an event is
// dropped for a subscriber whose buffer is full. The Manager never closes ch.
func (m *Manager) Subscribe(ch chan Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, ch)
}

// Close stops the watchers started by AutoReload.
func (m *Manager) Close() {
	m.cancel()
}

func (m *Manager) notify(evt Event) {
	m.mu.RLock()
	subs := append([]chan Event(nil), m.subs...)
	m.mu.RUnlock()
	for _, ch := range subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (m *Manager) startWatchers() {
	for _, src := range m.sources {
		ch := make(chan Event)
		go func() {
			if err := src.Watch(m.ctx, ch); err != nil && m.ctx.Err() == nil {
				m.logger.Warn("config watch failed", "source", src.Name(), "error", err)
			}
		}()
		go func() {
			for {
				select {
				case <-m.ctx.Done():
					return
				case <-ch:
					if err := m.Reload(m.ctx); err != nil {
						m.logger.Warn("config reload failed", "source", src.Name(), "error", err)
					}
				}
			}
		}()
	}
}

package config

import "context"

// ConfigSource supplies one layer of configuration. The Manager merges layers
// in the order they were given; later layers win.
type ConfigSource interface {
	// Load returns this layer as a nested string-keyed map. It must return a
	// fresh map on every call and honor ctx cancellation.
	Load(ctx context.Context) (map[string]any, error)

	// Watch sends on ch whenever the layer changes, until ctx is done. Sources
	// that never change return nil right away. Watch must not close ch.
	Watch(ctx context.Context, ch chan<- Event) error

	// Name identifies the source in errors and logs, e.g. "env".
	Name() string
}

// Event is sent to subscribers when a reload changed the configuration.
type Event struct {
	// ChangedKeys lists the top-level Root fields that differ, e.g.
	// ["Dispatcher"] when only dispatcher.queueSize changed.
	ChangedKeys []string

	// OldConfig and NewConfig point to copies of the config struct before and
	// after the reload.
	OldConfig any
	NewConfig any
}

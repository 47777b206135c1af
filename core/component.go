package core

import "context"

// Component is a unit of capability that participates in the app lifecycle.
type Component interface {
	Name() string
	// DependsOn declares hard dependencies by component name.
	DependsOn() []string
	// Configure registers objects into the container.
	Configure(c Container) error
	// Start begins any long-running work or servers.
	Start(ctx context.Context, c Container) error
	// Stop gracefully stops the component.
	Stop(ctx context.Context, c Container) error
}

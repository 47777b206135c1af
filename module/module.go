// Package module registers self-managing modules and gates their lifecycle.
//
// A Module is an isolated unit of work with three callbacks: OnStart,
// OnMessage and OnDeath. A Loader holds a registry of modules and, for each
// lifecycle request, checks the status the module reports before handing the
// callback to a dispatcher. The Loader never waits for a callback and never
// writes a module's status; modules own their status and move it from inside
// their callbacks.
//
// The status check runs on the caller's goroutine and the callback runs later
// on a worker. Two requests issued back to back may both pass the check
// against the same stale status, and callbacks of one module may run
// concurrently. Modules that care must synchronize themselves.
package module

import (
	"context"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Info identifies a module. Name is the registry key.
type Info struct {
	Name    string `validate:"required"`
	Version string
	// Author holds a comma-separated list when there is more than one.
	Author string
	// URL is an optional homepage.
	URL string `validate:"omitempty,url"`
}

// Module is implemented by every unit the Loader manages.
//
// Callbacks receive the task context of the worker running them. It is
// cancelled when the dispatcher shuts down.
type Module interface {
	// Info returns the module's identity. It must not change.
	Info() Info
	// Loader returns the owning loader, or nil if the module is unbound.
	Loader() *Loader
	// Status returns the module's current, self-reported status.
	Status() Status

	// OnStart is invoked after the loader accepted a start request. args may
	// be empty. It must leave Dead right away and finish in Ready.
	OnStart(ctx context.Context, args []string) error
	// OnMessage is invoked with at least one argument when the loader saw the
	// module Ready. The module may no longer be Ready when it runs.
	OnMessage(ctx context.Context, args []string) error
	// OnDeath is invoked when the loader saw the module Ready. It must finish
	// in Dead.
	OnDeath(ctx context.Context) error
}

// FollowUp runs on the same worker right after a callback returns without
// error.
type FollowUp func(ctx context.Context, l *Loader, m Module) error

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validate checks the identity constraints AddModule enforces.
func (i Info) Validate() error {
	validateOnce.Do(func() { validate = validator.New() })
	return validate.Struct(i)
}

package module

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sort"

	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/skekre98/kunou/dispatch"
)

// Lifecycle operations, as they appear in errors, logs and task metrics.
const (
	OpStart   = "start"
	OpMessage = "message"
	OpDeath   = "death"
	OpRemove  = "remove"
)

// Dispatcher runs tasks off the caller's goroutine. *dispatch.Dispatcher
// implements it.
type Dispatcher interface {
	Submit(t dispatch.Task) error
}

// Loader is the registry and lifecycle gate for a set of modules.
//
// Every lifecycle method validates on the caller's goroutine and either fails
// right away or returns as soon as the callback is queued.
type Loader struct {
	id         uuid.UUID
	dispatcher Dispatcher
	logger     *slog.Logger
	modules    cmap.ConcurrentMap[string, Module]
}

// LoaderOption customizes a Loader.
type LoaderOption func(*Loader)

// WithLogger sets the loader's logger.
func WithLogger(l *slog.Logger) LoaderOption {
	return func(ld *Loader) { ld.logger = l }
}

// NewLoader returns an empty Loader that dispatches through d.
func NewLoader(d Dispatcher, opts ...LoaderOption) *Loader {
	l := &Loader{
		id:         uuid.New(),
		dispatcher: d,
		logger:     slog.Default(),
		modules:    cmap.New[Module](),
	}
	for _, o := range opts {
		o(l)
	}
	l.logger = l.logger.With("loader", l.id.String())
	return l
}

// ID identifies this loader in logs and errors.
func (l *Loader) ID() uuid.UUID { return l.id }

// AddModule registers m under its name, replacing any module already
// registered under that name.
func (l *Loader) AddModule(m Module) error {
	if m == nil {
		return fmt.Errorf("%w: nil module", ErrInvalidArgument)
	}
	if !reflect.TypeOf(m).Comparable() {
		return fmt.Errorf("%w: module type %T is not comparable; implement Module on a pointer", ErrInvalidArgument, m)
	}
	info := m.Info()
	if err := info.Validate(); err != nil {
		return fmt.Errorf("%w: module identity: %w", ErrInvalidArgument, err)
	}
	if owner := m.Loader(); owner != nil && owner != l {
		return fmt.Errorf("%w: %s is bound to loader %s", ErrNotOwned, info.Name, owner.id)
	}
	l.modules.Set(info.Name, m)
	l.logger.Info("module added", "module", info.Name, "version", info.Version, "author", info.Author)
	return nil
}

// RemoveModule unregisters m. Only Dead modules can be removed.
func (l *Loader) RemoveModule(m Module) error {
	info, err := l.check(m, OpRemove, Dead)
	if err != nil {
		return err
	}
	removed := l.modules.RemoveCb(info.Name, func(_ string, v Module, exists bool) bool {
		return exists && same(v, m)
	})
	if !removed {
		return l.notOwned(info)
	}
	l.logger.Info("module removed", "module", info.Name)
	return nil
}

// Module looks a module up by name.
func (l *Loader) Module(name string) (Module, bool) {
	return l.modules.Get(name)
}

// Modules returns a snapshot of the registry keyed by name.
func (l *Loader) Modules() map[string]Module {
	return l.modules.Items()
}

// List returns a snapshot of the registered modules sorted by name.
func (l *Loader) List() []Module {
	mods := make([]Module, 0, l.modules.Count())
	for _, m := range l.modules.Items() {
		mods = append(mods, m)
	}
	sort.Slice(mods, func(i, j int) bool { return mods[i].Info().Name < mods[j].Info().Name })
	return mods
}

// Len returns the number of registered modules.
func (l *Loader) Len() int {
	return l.modules.Count()
}

// StartModule dispatches m.OnStart(args) followed by then. m must be
// registered here and Dead.
func (l *Loader) StartModule(m Module, then FollowUp, args ...string) error {
	info, err := l.check(m, OpStart, Dead)
	if err != nil {
		return err
	}
	args = slices.Clone(args)
	return l.submit(m, info, OpStart, false, func(ctx context.Context) error {
		return m.OnStart(ctx, args)
	}, then)
}

// SendMessage dispatches m.OnMessage(args) followed by then. args must not be
// empty; m must be registered here and Ready.
func (l *Loader) SendMessage(m Module, then FollowUp, args ...string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: message needs at least one argument", ErrInvalidArgument)
	}
	info, err := l.check(m, OpMessage, Ready)
	if err != nil {
		return err
	}
	args = slices.Clone(args)
	return l.submit(m, info, OpMessage, false, func(ctx context.Context) error {
		return m.OnMessage(ctx, args)
	}, then)
}

// KillModule dispatches m.OnDeath() followed by then. m must be registered
// here and Ready. Death tasks are tracked by the dispatcher so shutdown can
// wait for them.
func (l *Loader) KillModule(m Module, then FollowUp) error {
	info, err := l.check(m, OpDeath, Ready)
	if err != nil {
		return err
	}
	return l.submit(m, info, OpDeath, true, m.OnDeath, then)
}

// check resolves ownership and compares the status m reports right now with
// want. Nothing is locked between this read and the callback.
func (l *Loader) check(m Module, op string, want Status) (Info, error) {
	if m == nil {
		return Info{}, fmt.Errorf("%w: nil module", ErrInvalidArgument)
	}
	info := m.Info()
	if registered, ok := l.modules.Get(info.Name); !ok || !same(registered, m) {
		return info, l.notOwned(info)
	}
	if status := m.Status(); status != want {
		l.logger.Warn(rejection(op, status),
			"module", info.Name, "version", info.Version, "author", info.Author, "status", status.String())
		return info, &TransitionError{Module: info.Name, Op: op, Status: status}
	}
	return info, nil
}

// same reports whether a and b are the same module instance. Interface
// comparison panics on uncomparable dynamic types, which never match.
func same(a, b Module) bool {
	if reflect.TypeOf(a) != reflect.TypeOf(b) || !reflect.TypeOf(a).Comparable() {
		return false
	}
	return a == b
}

func (l *Loader) notOwned(info Info) error {
	l.logger.Warn("module does not belong to this loader",
		"module", info.Name, "version", info.Version, "author", info.Author)
	return fmt.Errorf("%w: %s %s by %s", ErrNotOwned, info.Name, info.Version, info.Author)
}

func rejection(op string, status Status) string {
	switch op {
	case OpStart:
		if status == ShuttingDown {
			return "module is shutting down; wait for it to die before restarting it"
		}
		return "module is already ready or starting up"
	case OpMessage:
		return "module is not ready to accept messages"
	case OpDeath:
		return "module is already dead or not ready to shut down"
	default:
		return "module must be dead to be removed"
	}
}

func (l *Loader) submit(m Module, info Info, op string, tracked bool, run func(context.Context) error, then FollowUp) error {
	task := dispatch.Task{
		Module:  info.Name,
		Op:      op,
		Run:     run,
		Tracked: tracked,
	}
	if then != nil {
		task.FollowUp = func(ctx context.Context) error {
			return then(ctx, l, m)
		}
	}
	if err := l.dispatcher.Submit(task); err != nil {
		l.logger.Warn("dispatcher refused module task", "module", info.Name, "op", op, "error", err)
		return fmt.Errorf("dispatch %s of %s: %w", op, info.Name, err)
	}
	l.logger.Debug("module task dispatched", "module", info.Name, "op", op)
	return nil
}

package module

import (
	"context"
	"errors"
	"fmt"

	"github.com/skekre98/kunou/core"
)

// ComponentName is the app component name of the loader.
const ComponentName = "modules"

// Runtime is the dispatcher as seen by the app component: it submits work,
// waits for tracked work and shuts down.
type Runtime interface {
	Dispatcher
	Wait(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// Boot selects the modules started with the app.
type Boot struct {
	// Autostart names the modules to start. Empty means every registered
	// module.
	Autostart []string
	// Args holds start arguments per module name.
	Args map[string][]string
}

// Component wires a Loader into a core.App. Start boots the selected
// modules, Stop kills every Ready module, waits for the deaths and shuts the
// runtime down.
func Component(l *Loader, rt Runtime, boot Boot) core.Component {
	return &component{loader: l, runtime: rt, boot: boot}
}

type component struct {
	loader  *Loader
	runtime Runtime
	boot    Boot
}

func (c *component) Name() string        { return ComponentName }
func (c *component) DependsOn() []string { return nil }

func (c *component) Configure(ct core.Container) error {
	core.Put[*Loader](ct, c.loader)
	return nil
}

func (c *component) Start(_ context.Context, _ core.Container) error {
	mods, err := c.autostart()
	if err != nil {
		return err
	}
	for _, m := range mods {
		if m.Status() != Dead {
			c.loader.logger.Info("skipping autostart", "module", m.Info().Name, "status", m.Status().String())
			continue
		}
		if err := c.loader.StartModule(m, logStatus, c.boot.Args[m.Info().Name]...); err != nil {
			return fmt.Errorf("autostart: %w", err)
		}
	}
	return nil
}

func (c *component) autostart() ([]Module, error) {
	if len(c.boot.Autostart) == 0 {
		return c.loader.List(), nil
	}
	mods := make([]Module, 0, len(c.boot.Autostart))
	for _, name := range c.boot.Autostart {
		m, ok := c.loader.Module(name)
		if !ok {
			return nil, fmt.Errorf("autostart: %w: no module named %q", ErrNotOwned, name)
		}
		mods = append(mods, m)
	}
	return mods, nil
}

func (c *component) Stop(ctx context.Context, _ core.Container) error {
	var errs []error
	for _, m := range c.loader.List() {
		if m.Status() != Ready {
			continue
		}
		// A module may leave Ready between the read above and the check in
		// KillModule; that race is not an error here.
		if err := c.loader.KillModule(m, logStatus); err != nil && !errors.Is(err, ErrInvalidTransition) {
			errs = append(errs, err)
		}
	}
	if err := c.runtime.Wait(ctx); err != nil {
		c.loader.logger.Warn("gave up waiting for modules to die", "error", err)
	}
	if err := c.runtime.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func logStatus(_ context.Context, l *Loader, m Module) error {
	l.logger.Info("module status", "module", m.Info().Name, "status", m.Status().String())
	return nil
}

package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/skekre98/kunou/actuator"
	"github.com/skekre98/kunou/config"
	"github.com/skekre98/kunou/config/source"
	"github.com/skekre98/kunou/core"
	"github.com/skekre98/kunou/dispatch"
	"github.com/skekre98/kunou/logging"
	"github.com/skekre98/kunou/module"
	"github.com/skekre98/kunou/module/echo"
	"github.com/skekre98/kunou/web"
)

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("app error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// 1) config: defaults < configs/application[.profile].yaml < KUNOU_* < flags
	var cfg config.Root
	mgr, err := config.NewManager(&cfg, config.Options{},
		config.Defaults{},
		&source.FileSource{BasePath: "configs", Profile: os.Getenv("KUNOU_PROFILE"), Optional: true},
		&source.EnvSource{},
		&source.CLISource{},
	)
	if err != nil {
		return err
	}

	// 2) logging
	logger := logging.New(cfg.Logging).With(
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
	)
	slog.SetDefault(logger)

	events := make(chan config.Event, 4)
	mgr.Subscribe(events)
	go func() {
		for evt := range events {
			logger.Info("config changed", "keys", evt.ChangedKeys)
		}
	}()

	// 3) metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// 4) module runtime
	d, err := dispatch.New(dispatch.Options{
		Size:           cfg.Dispatcher.Size,
		QueueSize:      cfg.Dispatcher.QueueSize,
		ExpiryDuration: cfg.Dispatcher.Expiry,
		Name:           cfg.Dispatcher.WorkerName,
	},
		dispatch.WithLogger(logger),
		dispatch.WithRegisterer(reg),
		dispatch.WithFailureHandler(func(e *dispatch.CallbackError) {
			logger.Error("module callback failed",
				"module", e.Module, "op", e.Op, "stage", e.Stage, "worker", e.Worker, "error", e.Err)
		}),
	)
	if err != nil {
		return err
	}

	loader := module.NewLoader(d, module.WithLogger(logger))
	if err := loader.AddModule(echo.New(loader, logger)); err != nil {
		return err
	}

	// 5) compose the app
	app := core.NewApp(
		logger,
		web.Component(),
		module.Component(loader, d, module.Boot{
			Autostart: cfg.Modules.Autostart,
			Args:      cfg.Modules.Args,
		}),
		actuator.Component(),
	)
	app.ShutdownTimeout = cfg.Dispatcher.ShutdownTimeout

	// 6) seed shared objects into the container
	core.Put[config.Root](app.Container, cfg)
	core.Put[*slog.Logger](app.Container, logger)
	core.Put[*dispatch.Dispatcher](app.Container, d)
	core.Put[*prometheus.Registry](app.Container, reg)

	// 7) run
	return app.Run(ctx)
}

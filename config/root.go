package config

import "time"

type AppInfo struct {
	Name    string `config:"name" validate:"required"`
	Version string `config:"version"`
}

type ServerConfig struct {
	Addr         string        `config:"addr" validate:"required"`
	ReadTimeout  time.Duration `config:"readTimeout"`
	WriteTimeout time.Duration `config:"writeTimeout"`
	IdleTimeout  time.Duration `config:"idleTimeout"`
}

type LoggingConfig struct {
	Level  string `config:"level" validate:"oneof=debug info warn error"`
	Format string `config:"format" validate:"oneof=text json"`
}

// DispatcherConfig sizes the module worker pool. Zero Size means the pool
// grows on demand; zero QueueSize sends tasks straight to the pool.
type DispatcherConfig struct {
	Size            int           `config:"size" validate:"gte=0"`
	QueueSize       int           `config:"queueSize" validate:"gte=0"`
	Expiry          time.Duration `config:"expiry" validate:"gte=0"`
	WorkerName      string        `config:"workerName"`
	ShutdownTimeout time.Duration `config:"shutdownTimeout" validate:"gt=0"`
}

type MetricsConfig struct {
	Enabled bool   `config:"enabled"`
	Path    string `config:"path"`
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `config:"metrics"`
}

type ActuatorConfig struct {
	BasePath string `config:"basePath" validate:"startswith=/"`
}

// ModulesConfig selects the modules booted with the app and their start
// arguments, keyed by module name.
type ModulesConfig struct {
	Autostart []string            `config:"autostart"`
	Args      map[string][]string `config:"args"`
}

type Root struct {
	App           AppInfo             `config:"app"`
	Server        ServerConfig        `config:"server"`
	Logging       LoggingConfig       `config:"logging"`
	Dispatcher    DispatcherConfig    `config:"dispatcher"`
	Observability ObservabilityConfig `config:"observability"`
	Actuator      ActuatorConfig      `config:"actuator"`
	Modules       ModulesConfig       `config:"modules"`
}

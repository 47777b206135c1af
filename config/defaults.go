package config

import (
	"context"
	"runtime"
)

// Defaults is the lowest-precedence source: every other source overrides it.
type Defaults struct{}

// Name returns the identifier for this source.
func (Defaults) Name() string { return "defaults" }

// Load returns a fresh copy of the built-in values for Root.
func (Defaults) Load(ctx context.Context) (map[string]any, error) {
	return map[string]any{
		"app": map[string]any{
			"name":    "kunou",
			"version": "dev",
		},
		"server": map[string]any{
			"addr":         ":8080",
			"readTimeout":  "5s",
			"writeTimeout": "10s",
			"idleTimeout":  "60s",
		},
		"logging": map[string]any{
			"level":  "info",
			"format": "text",
		},
		"dispatcher": map[string]any{
			"size":            runtime.NumCPU() * 4,
			"queueSize":       1024,
			"expiry":          "1m",
			"workerName":      "module-worker",
			"shutdownTimeout": "15s",
		},
		"observability": map[string]any{
			"metrics": map[string]any{
				"enabled": true,
				"path":    "/actuator/metrics",
			},
		},
		"actuator": map[string]any{
			"basePath": "/actuator",
		},
	}, nil
}

// Watch is a no-op: defaults never change.
func (Defaults) Watch(ctx context.Context, ch chan<- Event) error { return nil }

// Package actuator exposes read-only operational endpoints for a running
// app: health, build info, prometheus metrics and the module registry.
package actuator

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skekre98/kunou/config"
	"github.com/skekre98/kunou/core"
	"github.com/skekre98/kunou/dispatch"
	"github.com/skekre98/kunou/module"
	"github.com/skekre98/kunou/web"
)

const Name = "actuator"

// ModuleView is the JSON shape of a registered module.
type ModuleView struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	Author  string `json:"author,omitempty"`
	URL     string `json:"url,omitempty"`
	Status  string `json:"status"`
}

func view(m module.Module) ModuleView {
	info := m.Info()
	return ModuleView{
		Name:    info.Name,
		Version: info.Version,
		Author:  info.Author,
		URL:     info.URL,
		Status:  m.Status().String(),
	}
}

type component struct{}

func Component() core.Component { return &component{} }

func (a *component) Name() string        { return Name }
func (a *component) DependsOn() []string { return []string{web.Name, module.ComponentName} }

func (a *component) Configure(c core.Container) error {
	engine := web.Engine(c)
	cfg := core.Get[config.Root](c)
	loader := core.Get[*module.Loader](c)
	d, hasDispatcher := core.Lookup[*dispatch.Dispatcher](c)

	group := engine.Group(cfg.Actuator.BasePath)

	// Health is DOWN once the dispatcher stops taking work.
	group.GET("/health", func(ctx *gin.Context) {
		counts := gin.H{}
		for _, s := range module.Statuses() {
			counts[s.String()] = 0
		}
		for _, m := range loader.List() {
			counts[m.Status().String()] = counts[m.Status().String()].(int) + 1
		}
		body := gin.H{"status": "UP", "modules": counts}
		code := http.StatusOK
		if hasDispatcher {
			body["dispatcher"] = gin.H{
				"running":     d.Running(),
				"queued":      d.Queued(),
				"capacity":    d.Cap(),
				"outstanding": d.Outstanding(),
			}
			if d.Closed() {
				body["status"] = "DOWN"
				code = http.StatusServiceUnavailable
			}
		}
		ctx.JSON(code, body)
	})

	group.GET("/info", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{
			"app": gin.H{
				"name":    cfg.App.Name,
				"version": cfg.App.Version,
			},
			"loader": loader.ID().String(),
			"runtime": gin.H{
				"go":           runtime.Version(),
				"numGoroutine": runtime.NumGoroutine(),
				"time":         time.Now().UTC().Format(time.RFC3339),
				"pid":          os.Getpid(),
			},
		})
	})

	group.GET("/modules", func(ctx *gin.Context) {
		mods := loader.List()
		out := make([]ModuleView, 0, len(mods))
		for _, m := range mods {
			out = append(out, view(m))
		}
		ctx.JSON(http.StatusOK, out)
	})

	group.GET("/modules/:name", func(ctx *gin.Context) {
		m, ok := loader.Module(ctx.Param("name"))
		if !ok {
			web.Problem(ctx, http.StatusNotFound, "no module named "+ctx.Param("name"))
			return
		}
		ctx.JSON(http.StatusOK, view(m))
	})

	if cfg.Observability.Metrics.Enabled {
		path := cfg.Observability.Metrics.Path
		if path == "" {
			path = cfg.Actuator.BasePath + "/metrics"
		}
		h := promhttp.Handler()
		if reg, ok := core.Lookup[*prometheus.Registry](c); ok {
			h = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
		}
		engine.GET(path, gin.WrapH(h))
	}

	return nil
}

func (a *component) Start(_ context.Context, _ core.Container) error { return nil }
func (a *component) Stop(_ context.Context, _ core.Container) error  { return nil }

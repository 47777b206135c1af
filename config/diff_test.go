package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDiffEvent(t *testing.T) {
	base := func() *Root {
		return &Root{
			App:        AppInfo{Name: "kunou", Version: "1"},
			Server:     ServerConfig{Addr: ":8080"},
			Dispatcher: DispatcherConfig{Size: 4, QueueSize: 64},
			Modules:    ModulesConfig{Autostart: []string{"echo"}, Args: map[string][]string{"echo": {"> "}}},
		}
	}

	tests := []struct {
		name string
		edit func(r *Root)
		want []string
	}{
		{"identical", func(*Root) {}, nil},
		{"one nested field", func(r *Root) { r.Dispatcher.QueueSize = 128 }, []string{"Dispatcher"}},
		{"two sections keep field order", func(r *Root) {
			r.Modules.Autostart = nil
			r.Server.Addr = ":9090"
		}, []string{"Server", "Modules"}},
		{"duration", func(r *Root) { r.Server.ReadTimeout = time.Second }, []string{"Server"}},
		{"slice element", func(r *Root) { r.Modules.Autostart = []string{"clock"} }, []string{"Modules"}},
		{"map value", func(r *Root) { r.Modules.Args["echo"] = []string{"$ "} }, []string{"Modules"}},
		{"emptied slice", func(r *Root) { r.Modules.Autostart = []string{} }, []string{"Modules"}},
		{"deep bool", func(r *Root) { r.Observability.Metrics.Enabled = true }, []string{"Observability"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			old, cur := base(), base()
			tt.edit(cur)

			evt := diffEvent(old, cur)
			assert.Equal(t, tt.want, evt.ChangedKeys)
			assert.Same(t, old, evt.OldConfig)
			assert.Same(t, cur, evt.NewConfig)
		})
	}
}

func TestDiffEvent_NotComparable(t *testing.T) {
	tests := []struct {
		name     string
		old, new any
	}{
		{"nil old", nil, &Root{}},
		{"nil new", &Root{}, nil},
		{"non-struct", "a", "b"},
		{"different types", &Root{}, &AppInfo{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, diffEvent(tt.old, tt.new).ChangedKeys)
		})
	}
}

func TestDiffEvent_Values(t *testing.T) {
	evt := diffEvent(Root{App: AppInfo{Name: "a"}}, Root{App: AppInfo{Name: "b"}})
	assert.Equal(t, []string{"App"}, evt.ChangedKeys)
}

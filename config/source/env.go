package source

import (
	"context"
	"os"
	"strings"

	"github.com/skekre98/kunou/config"
)

// EnvPrefix is the default prefix of configuration variables.
const EnvPrefix = "KUNOU_"

// EnvSource maps prefixed environment variables onto nested keys, splitting
// on underscores and lowercasing:
//
//	KUNOU_SERVER_ADDR=:9090          -> server.addr
//	KUNOU_DISPATCHER_QUEUESIZE=256   -> dispatcher.queuesize
//	KUNOU_MODULES_AUTOSTART=echo     -> modules.autostart
//
// camelCase keys are written without a separator; the Manager merges keys
// case-insensitively. Values stay strings until binding. When a variable
// names a path under an existing leaf (KUNOU_APP=x then KUNOU_APP_NAME=y)
// the later one is dropped.
type EnvSource struct {
	// Prefix overrides EnvPrefix.
	Prefix string
}

func (e *EnvSource) Name() string { return "env" }

func (e *EnvSource) Load(ctx context.Context) (map[string]any, error) {
	prefix := e.Prefix
	if prefix == "" {
		prefix = EnvPrefix
	}
	return loadEnvVars(os.Environ(), prefix), nil
}

// Watch is a no-op; the environment is read once per Load.
func (e *EnvSource) Watch(ctx context.Context, ch chan<- config.Event) error { return nil }

func loadEnvVars(environ []string, prefix string) map[string]any {
	out := make(map[string]any)
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		rest, ok := strings.CutPrefix(key, prefix)
		if !ok || rest == "" {
			continue
		}
		setNestedValue(out, strings.Split(strings.ToLower(rest), "_"), value)
	}
	return out
}

// setNestedValue stores value at path, creating intermediate maps. Empty
// segments are skipped. A leaf in the way wins over the new value.
func setNestedValue(m map[string]any, path []string, value string) {
	cur := m
	for i, seg := range path {
		if seg == "" {
			continue
		}
		if i == len(path)-1 {
			cur[seg] = value
			return
		}
		switch next := cur[seg].(type) {
		case map[string]any:
			cur = next
		case nil:
			child := make(map[string]any)
			cur[seg] = child
			cur = child
		default:
			return
		}
	}
}

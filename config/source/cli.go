package source

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/skekre98/kunou/config"
)

// CLISource maps dotted flags onto nested keys:
//
//	--server.addr=:9090 --dispatcher.size 16 -modules.autostart=echo,clock
//
// Flags are not declared up front; every flag seen on the command line is
// registered as a string before parsing. Positional arguments and empty
// values are ignored. Put it last so flags override every other source.
type CLISource struct {
	// Args replaces os.Args[1:] when non-nil.
	Args []string
}

func (c *CLISource) Name() string { return "cli" }

func (c *CLISource) Load(ctx context.Context) (map[string]any, error) {
	args := c.Args
	if args == nil {
		args = os.Args[1:]
	}
	return parseCliFlags(args)
}

// Watch is a no-op; arguments never change.
func (c *CLISource) Watch(ctx context.Context, ch chan<- config.Event) error { return nil }

func parseCliFlags(argv []string) (map[string]any, error) {
	args := normalizeArgs(argv)

	fs := pflag.NewFlagSet("config", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	for _, arg := range args {
		name := extractFlagName(arg)
		if name == "" || fs.Lookup(name) != nil {
			continue
		}
		fs.String(name, "", "config value for "+name)
	}
	_ = fs.Parse(args)

	out := make(map[string]any)
	fs.Visit(func(f *pflag.Flag) {
		if v := f.Value.String(); v != "" {
			setNestedValue(out, strings.Split(f.Name, "."), v)
		}
	})
	return out, nil
}

// normalizeArgs turns single-dash long flags into double-dash ones for pflag.
func normalizeArgs(args []string) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		out[i] = arg
		if rest, ok := strings.CutPrefix(arg, "-"); ok && !strings.HasPrefix(rest, "-") && len(rest) > 1 && rest[0] != '=' {
			out[i] = "--" + rest
		}
	}
	return out
}

// extractFlagName returns the flag name of a "--name" or "--name=value"
// argument, or "" for anything else.
func extractFlagName(arg string) string {
	if !strings.HasPrefix(arg, "-") {
		return ""
	}
	name := strings.TrimLeft(arg, "-")
	name, _, _ = strings.Cut(name, "=")
	return name
}

package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/skekre98/kunou/config"
)

// FileSource reads application.yaml (or .yml) from BasePath and, when Profile
// is set, overlays application.<Profile>.yaml on top of it. The overlay is
// deep: a profile that sets only dispatcher.size keeps the rest of the base
// dispatcher section.
//
//	configs/
//	  application.yaml
//	  application.prod.yaml
type FileSource struct {
	BasePath string
	// Profile selects an overlay file. A missing overlay is ignored.
	Profile string
	// Optional makes a missing base file load as an empty map instead of
	// failing with os.ErrNotExist.
	Optional bool
}

func (f *FileSource) Name() string { return "file" }

func (f *FileSource) Load(ctx context.Context) (map[string]any, error) {
	base := findYAMLFile(f.BasePath, "application")
	if base == "" {
		if f.Optional {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("application.yaml in %q: %w", f.BasePath, os.ErrNotExist)
	}
	data, err := readYAML(base)
	if err != nil {
		return nil, err
	}
	if f.Profile == "" {
		return data, nil
	}

	profile := findYAMLFile(f.BasePath, "application."+f.Profile)
	if profile == "" {
		return data, nil
	}
	over, err := readYAML(profile)
	if err != nil {
		return nil, err
	}
	overlay(data, over)
	return data, nil
}

// Watch is a no-op; files are read once per Load.
func (f *FileSource) Watch(ctx context.Context, ch chan<- config.Event) error { return nil }

func findYAMLFile(dir, basename string) string {
	for _, ext := range []string{".yaml", ".yml"} {
		path := filepath.Join(dir, basename+ext)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func readYAML(path string) (map[string]any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := yaml.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return out, nil
}

func overlay(dst, src map[string]any) {
	for k, v := range src {
		sub, ok := v.(map[string]any)
		if cur, isMap := dst[k].(map[string]any); ok && isMap {
			overlay(cur, sub)
			continue
		}
		dst[k] = v
	}
}

package config

import "strings"

// mergeMaps overlays src onto dst. Keys match case-insensitively and keep
// the spelling dst already has, so an env key like "queuesize" replaces a
// default "queueSize" instead of sitting next to it.
func mergeMaps(dst, src map[string]any) {
	for k, v := range src {
		k = foldKey(dst, k)
		if mv, ok := v.(map[string]any); ok {
			if existing, ok := dst[k].(map[string]any); ok {
				mergeMaps(existing, mv)
				continue
			}
		}
		dst[k] = v
	}
}

// foldKey returns the key of m that k should write to: k itself when present,
// else the smallest key equal to k under case folding, else k.
func foldKey(m map[string]any, k string) string {
	if _, ok := m[k]; ok {
		return k
	}
	match := ""
	for existing := range m {
		if strings.EqualFold(existing, k) && (match == "" || existing < match) {
			match = existing
		}
	}
	if match == "" {
		return k
	}
	return match
}

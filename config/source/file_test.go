package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestFileSource_BaseAndProfile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "application.yaml", "app:\n  name: kunou\nserver:\n  addr: \":8080\"\n")
	writeFile(t, dir, "application.prod.yml", "server:\n  addr: \":80\"\n")

	got, err := (&FileSource{BasePath: dir, Profile: "prod"}).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "kunou"}, got["app"])
	assert.Equal(t, map[string]any{"addr": ":80"}, got["server"])
}

func TestFileSource_MissingProfileIgnored(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "application.yml", "logging:\n  level: warn\n")

	got, err := (&FileSource{BasePath: dir, Profile: "qa"}).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"logging": map[string]any{"level": "warn"}}, got)
}

func TestFileSource_MissingBase(t *testing.T) {
	dir := t.TempDir()

	_, err := (&FileSource{BasePath: dir}).Load(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)

	got, err := (&FileSource{BasePath: dir, Optional: true}).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFileSource_Malformed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "application.yaml", "app: [unclosed\n")

	_, err := (&FileSource{BasePath: dir}).Load(context.Background())
	assert.Error(t, err)
}

func TestFileSource_ProfileOverlayIsDeep(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "application.yaml", "dispatcher:\n  size: 4\n  queueSize: 64\n")
	writeFile(t, dir, "application.prod.yaml", "dispatcher:\n  size: 32\n")

	got, err := (&FileSource{BasePath: dir, Profile: "prod"}).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"size": 32, "queueSize": 64}, got["dispatcher"])
}

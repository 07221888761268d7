package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	cfg := fmt.Sprintf("storage:\n  driver: bolt\n  path: %s\nlogging:\n  file: %s\n",
		filepath.Join(dir, "data"), filepath.Join(dir, "reviewnotes.log"))
	require.NoError(t, os.WriteFile(file, []byte(cfg), 0644))
	return file
}

func run(t *testing.T, config string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root, a := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", config}, args...))
	err := root.Execute()
	require.NoError(t, a.close())
	return out.String(), err
}

func TestCreateListAndShow(t *testing.T) {
	config := writeConfig(t)

	out, err := run(t, config, "create", "Comp Dailies", "--project", "P1", "--version", "A", "--version", "B")
	require.NoError(t, err)
	assert.Contains(t, out, "Comp Dailies")

	out, err = run(t, config, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Comp Dailies")
	assert.Contains(t, out, "2 versions")

	fields := strings.Fields(strings.TrimSpace(out))
	id := fields[len(fields)-1]

	_, err = run(t, config, "draft", "save", id, "A", "soften", "the", "key")
	require.NoError(t, err)

	out, err = run(t, config, "show", id)
	require.NoError(t, err)
	assert.Contains(t, out, "soften the key")

	out, err = run(t, config, "search", "dailies")
	require.NoError(t, err)
	assert.Contains(t, out, id)
}

func TestSyncWithoutRemoteFails(t *testing.T) {
	config := writeConfig(t)
	_, err := run(t, config, "create", "Lighting")
	require.NoError(t, err)

	out, err := run(t, config, "sync", "--all")
	assert.Error(t, err)
	assert.Contains(t, out, "no remote service configured")
}

func TestShowUnknownPlaylist(t *testing.T) {
	_, err := run(t, writeConfig(t), "show", "missing")
	assert.ErrorContains(t, err, "not found")
}

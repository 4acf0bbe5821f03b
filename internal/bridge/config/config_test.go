package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chartbridge.conf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
format_version = "0.1.0"
server_port = "8080"
working_dir = "`+dir+`"
`)
	require.NoError(t, LoadConfig(path))

	c := Config()
	require.Equal(t, "localhost", c.ServerHostName)
	require.Equal(t, "http://localhost:8080", GetURL())

	d, err := c.Sessions.GetSampleTimeout()
	require.NoError(t, err)
	require.Equal(t, 5*time.Second, d)
	require.Equal(t, 32, c.Sessions.SendBuffer)

	require.Equal(t, "gpt-4o", c.Generator.Model)
	require.Equal(t, uint(3), c.Generator.MaxAttempts)

	require.Equal(t, []string{"npx", "create-incorta-component", "new"}, c.Export.ScaffoldCommand)
	require.DirExists(t, c.Export.DownloadsDir)
}

func TestLoadConfigInvalid(t *testing.T) {
	require.Error(t, LoadConfig(""))

	path := writeConfig(t, `format_version = "9.9.9"`)
	require.Error(t, LoadConfig(path))

	path = writeConfig(t, `format_version = "0.1.0"`)
	require.Error(t, LoadConfig(path)) // missing server_port

	dir := t.TempDir()
	path = writeConfig(t, `
format_version = "0.1.0"
server_port = "8080"
working_dir = "`+dir+`"

[sessions]
sample_timeout = "not-a-duration"
`)
	require.Error(t, LoadConfig(path))
}

func TestTestInit(t *testing.T) {
	TestInit(t)
	c := Config()
	require.NotNil(t, c)
	require.Equal(t, 250*time.Millisecond, c.Sessions.GetSampleTimeoutOrDefault())
	require.False(t, c.Export.Enabled)
}

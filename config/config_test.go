package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marijnz/bouncingballs-sub001/core"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, core.DefaultWorkerCount, c.Queue.Workers)
	assert.Equal(t, "", c.Queue.Name)
	assert.Equal(t, "info", c.Log.Level)
	assert.False(t, c.Log.JSON)
	assert.Equal(t, 100, c.Log.MaxSize)
	assert.True(t, c.Log.Compress)
	assert.False(t, c.Metrics.Enabled)
	assert.Equal(t, ":2112", c.Metrics.Addr)
	assert.Equal(t, "taskrunner", c.Metrics.Namespace)
	assert.Equal(t, time.Second, c.Metrics.PollInterval)
}

func TestLoad_YAMLFile(t *testing.T) {
	// Arrange
	path := writeConfig(t, "taskqueue.yaml", `
queue:
  name: render
  workers: 4
log:
  level: debug
  json: true
metrics:
  enabled: true
  addr: 127.0.0.1:9100
  poll_interval: 250ms
`)

	// Act
	c, err := Load(path)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "render", c.Queue.Name)
	assert.Equal(t, 4, c.Queue.Workers)
	assert.Equal(t, "debug", c.Log.Level)
	assert.True(t, c.Log.JSON)
	assert.True(t, c.Metrics.Enabled)
	assert.Equal(t, "127.0.0.1:9100", c.Metrics.Addr)
	assert.Equal(t, 250*time.Millisecond, c.Metrics.PollInterval)
	// untouched keys keep their defaults
	assert.Equal(t, 30, c.Log.MaxAge)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	// Arrange
	path := writeConfig(t, "taskqueue.json", `{"queue": {"workers": 4}}`)
	t.Setenv("TASKQUEUE_QUEUE_WORKERS", "16")
	t.Setenv("TASKQUEUE_LOG_LEVEL", "warn")

	// Act
	c, err := Load(path)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 16, c.Queue.Workers)
	assert.Equal(t, "warn", c.Log.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))

	assert.ErrorContains(t, err, "error reading config file")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c, err := Load("")
		require.NoError(t, err)
		return c
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "zero workers", mutate: func(c *Config) { c.Queue.Workers = 0 }, wantErr: "queue.workers"},
		{name: "unknown level", mutate: func(c *Config) { c.Log.Level = "loud" }, wantErr: "log.level"},
		{name: "negative rotation", mutate: func(c *Config) { c.Log.MaxBackups = -1 }, wantErr: "rotation"},
		{name: "metrics without addr", mutate: func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Addr = ""
		}, wantErr: "metrics.addr"},
		{name: "metrics without interval", mutate: func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.PollInterval = 0
		}, wantErr: "metrics.poll_interval"},
		{name: "disabled metrics ignore addr", mutate: func(c *Config) { c.Metrics.Addr = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)

			err := c.Validate()

			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

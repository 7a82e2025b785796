package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "remotedesk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)

	cfg, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultListen, cfg.Listen)
	assert.Equal(t, 60, cfg.PartialThreshold)
	assert.Equal(t, 120, cfg.EmptyThreshold)
}

func TestLoad_File(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
listen: "127.0.0.1:9000"
control_secret: hunter2
view_secret: peek
topology: combined
model: push
quality: 90
fps: 30
idle_timeout: 45s
log:
  level: debug
  no_color: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Listen)
	assert.Equal(t, "hunter2", cfg.ControlSecret)
	assert.Equal(t, "peek", cfg.ViewSecret)
	assert.Equal(t, TopologyCombined, cfg.Topology)
	assert.Equal(t, ModelPush, cfg.Model)
	assert.Equal(t, 90, cfg.Quality)
	assert.Equal(t, 45*time.Second, cfg.IdleTimeout)
	assert.Equal(t, DefaultWidth, cfg.Width, "unset keys keep defaults")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.NoColor)
}

func TestLoad_Clamps(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeConfig(t, "quality: 500\nwidth: 2\nheight: 99999\nfps: 0\ndisplay: -4\n"))
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Quality)
	assert.Equal(t, 16, cfg.Width)
	assert.Equal(t, 2048, cfg.Height)
	assert.Equal(t, 1, cfg.FPS)
	assert.Equal(t, 0, cfg.Display)
}

func TestLoad_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"topology", "topology: mesh\n", "topology"},
		{"model", "model: poll\n", "model"},
		{"idle timeout", "idle_timeout: -1s\n", "idle_timeout"},
		{"partial threshold", "partial_threshold: 0\n", "partial_threshold"},
		{"empty threshold", "empty_threshold: -3\n", "empty_threshold"},
		{"shared secrets", "control_secret: a\nview_secret: a\n", "view_secret"},
		{"listen", "listen: \"\"\n", "listen"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			var verr ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestLoad_ParseError(t *testing.T) {
	t.Parallel()

	_, err := Load(writeConfig(t, "quality: [1, 2\n"))
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestConfig_Intervals(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	assert.Equal(t, 50*time.Millisecond, cfg.FrameInterval())
	assert.Equal(t, 500*time.Millisecond, cfg.AckTimeout())
	assert.Equal(t, 60, cfg.Thresholds().Partial)
}

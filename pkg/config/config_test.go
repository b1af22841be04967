package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/cutfang/pkg/config"
	"github.com/Sumatoshi-tech/cutfang/pkg/multitrack"
	"github.com/Sumatoshi-tech/cutfang/pkg/observability"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".cutfang.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestLoadConfig_EmptyFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.InDelta(t, config.DefaultFPS, cfg.Editor.FPS, 0)
	assert.Equal(t, config.DefaultVideoTracks, cfg.Editor.VideoTracks)
	assert.Equal(t, config.DefaultInsertMode, cfg.Editor.InsertMode)
	assert.Equal(t, config.DefaultUndoBufferSize, cfg.Undo.BufferSize)
	assert.Equal(t, config.DefaultBackupInterval, cfg.Backup.Interval)
	assert.Equal(t, config.DefaultMaxInstances, cfg.Rectify.MaxInstances)
	assert.True(t, cfg.Rectify.LogRepairs)
	assert.Equal(t, config.DefaultLogLevel, cfg.Observability.LogLevel)

	opts, err := cfg.EditorOptions()
	require.NoError(t, err)

	want := multitrack.DefaultOptions()
	want.MaxInstances = config.DefaultMaxInstances
	assert.Equal(t, want, opts)
}

func TestLoadConfig_File(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, `
editor:
  fps: 30
  insert_mode: overwrite
  gravity: left
  pertrack_audio: true
  backing_audio_tracks: 0
undo:
  buffer_size: 8MiB
  compress: false
backup:
  interval: 0s
  dir: /var/tmp/cutfang
layout:
  compress: true
observability:
  log_level: debug
  log_json: true
  metrics_addr: 127.0.0.1:9464
`))
	require.NoError(t, err)

	opts, err := cfg.EditorOptions()
	require.NoError(t, err)

	assert.InDelta(t, 30.0, opts.FPS, 0)
	assert.Equal(t, multitrack.InsertOverwrite, opts.InsertMode)
	assert.Equal(t, multitrack.GravityLeft, opts.Gravity)
	assert.True(t, opts.PerTrackAudio)
	assert.Zero(t, opts.BackingAudioTracks)
	assert.Equal(t, int64(8<<20), opts.UndoBudget)
	assert.False(t, opts.UndoCompress)

	assert.Zero(t, cfg.Backup.Interval)
	assert.Equal(t, "/var/tmp/cutfang", cfg.Backup.Dir)
	assert.True(t, cfg.Layout.Compress)

	obs := cfg.ObservabilityConfig(observability.ModeServe)
	assert.Equal(t, slog.LevelDebug, obs.LogLevel)
	assert.True(t, obs.LogJSON)
	assert.True(t, obs.Prometheus)
	assert.Equal(t, observability.ModeServe, obs.Mode)
	assert.Equal(t, "cutfang", obs.ServiceName)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want error
	}{
		{"fps", "editor:\n  fps: 0\n", config.ErrInvalidFPS},
		{"frame size", "editor:\n  width: -1\n", config.ErrInvalidFrameSize},
		{"tracks", "editor:\n  video_tracks: -2\n", config.ErrInvalidTracks},
		{"audio", "editor:\n  audio_rate: 0\n", config.ErrInvalidAudio},
		{"insert mode", "editor:\n  insert_mode: sideways\n", config.ErrInvalidInsertMode},
		{"gravity", "editor:\n  gravity: up\n", config.ErrInvalidGravity},
		{"undo buffer", "undo:\n  buffer_size: lots\n", config.ErrInvalidUndoBuffer},
		{"max instances", "rectify:\n  max_instances: 0\n", config.ErrInvalidMaxInstances},
		{"log level", "observability:\n  log_level: chatty\n", config.ErrInvalidLogLevel},
		{"sample ratio", "observability:\n  sample_ratio: 2\n", config.ErrInvalidSampleRatio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.LoadConfig(writeConfig(t, tt.body))
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("CUTFANG_EDITOR_FPS", "50")
	t.Setenv("CUTFANG_BACKUP_INTERVAL", "-1s")
	t.Setenv("CUTFANG_OBSERVABILITY_LOG_LEVEL", "warn")

	cfg, err := config.LoadConfig(writeConfig(t, "editor:\n  fps: 30\n"))
	require.NoError(t, err)

	assert.InDelta(t, 50.0, cfg.Editor.FPS, 0)
	assert.Equal(t, -time.Second, cfg.Backup.Interval)
	assert.Equal(t, slog.LevelWarn, cfg.ObservabilityConfig(observability.ModeCLI).LogLevel)
}

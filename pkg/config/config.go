// Package config loads cutfang settings from .cutfang.yaml and CUTFANG_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/cutfang/pkg/event"
	"github.com/Sumatoshi-tech/cutfang/pkg/multitrack"
	"github.com/Sumatoshi-tech/cutfang/pkg/observability"
	"github.com/Sumatoshi-tech/cutfang/pkg/undo"
	"github.com/Sumatoshi-tech/cutfang/pkg/version"
)

// Sentinel validation errors.
var (
	ErrInvalidFPS          = errors.New("fps must be positive")
	ErrInvalidFrameSize    = errors.New("frame size must be positive")
	ErrInvalidTracks       = errors.New("track counts must not be negative")
	ErrInvalidAudio        = errors.New("audio rate and channels must be positive")
	ErrInvalidInsertMode   = errors.New("invalid insert mode")
	ErrInvalidGravity      = errors.New("invalid gravity")
	ErrInvalidUndoBuffer   = errors.New("invalid undo buffer size")
	ErrInvalidMaxInstances = errors.New("max instances must be positive")
	ErrInvalidLogLevel     = errors.New("invalid log level")
	ErrInvalidSampleRatio  = errors.New("sample ratio must be within [0, 1]")
)

const (
	configName = ".cutfang"
	envPrefix  = "CUTFANG"
	sampleSize = 16
)

// Config holds all cutfang settings.
type Config struct {
	Editor        EditorConfig        `mapstructure:"editor"`
	Undo          UndoConfig          `mapstructure:"undo"`
	Backup        BackupConfig        `mapstructure:"backup"`
	Rectify       RectifyConfig       `mapstructure:"rectify"`
	Layout        LayoutConfig        `mapstructure:"layout"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// EditorConfig holds the timeline settings of a new session.
type EditorConfig struct {
	FPS                float64 `mapstructure:"fps"`
	Width              int     `mapstructure:"width"`
	Height             int     `mapstructure:"height"`
	VideoTracks        int     `mapstructure:"video_tracks"`
	BackingAudioTracks int     `mapstructure:"backing_audio_tracks"`
	AudioRate          int     `mapstructure:"audio_rate"`
	AudioChannels      int     `mapstructure:"audio_channels"`
	InsertMode         string  `mapstructure:"insert_mode"`
	Gravity            string  `mapstructure:"gravity"`
	AudioVolume        string  `mapstructure:"audio_volume"`
	MoveEffects        bool    `mapstructure:"move_effects"`
	PerTrackAudio      bool    `mapstructure:"pertrack_audio"`
}

// UndoConfig sizes the undo history.
type UndoConfig struct {
	// BufferSize is a byte size such as "32MiB".
	BufferSize string `mapstructure:"buffer_size"`
	Compress   bool   `mapstructure:"compress"`
}

// BackupConfig controls crash-recovery backups.
type BackupConfig struct {
	// Interval is the delay between a change and its backup. Zero backs
	// up every change, a negative value disables backups.
	Interval time.Duration `mapstructure:"interval"`
	// Dir defaults to a cutfang directory under the system temp dir.
	Dir string `mapstructure:"dir"`
}

// RectifyConfig controls layout repair on load.
type RectifyConfig struct {
	MaxInstances int  `mapstructure:"max_instances"`
	Resave       bool `mapstructure:"resave"`
	LogRepairs   bool `mapstructure:"log_repairs"`
}

// LayoutConfig controls layout files.
type LayoutConfig struct {
	Compress bool   `mapstructure:"compress"`
	SetDir   string `mapstructure:"set_dir"`
}

// ObservabilityConfig controls logs, traces and metrics.
type ObservabilityConfig struct {
	LogLevel     string  `mapstructure:"log_level"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	MetricsAddr  string  `mapstructure:"metrics_addr"`
	Environment  string  `mapstructure:"environment"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	LogJSON      bool    `mapstructure:"log_json"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	TraceVerbose bool    `mapstructure:"trace_verbose"`
}

// LoadConfig reads configPath, or .cutfang.yaml from the working directory
// or the home directory when configPath is empty. Environment variables
// override the file: editor.fps is CUTFANG_EDITOR_FPS.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("$HOME")
	}

	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := config.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("editor.fps", DefaultFPS)
	viperCfg.SetDefault("editor.width", DefaultWidth)
	viperCfg.SetDefault("editor.height", DefaultHeight)
	viperCfg.SetDefault("editor.video_tracks", DefaultVideoTracks)
	viperCfg.SetDefault("editor.backing_audio_tracks", DefaultBackingAudioTracks)
	viperCfg.SetDefault("editor.audio_rate", DefaultAudioRate)
	viperCfg.SetDefault("editor.audio_channels", DefaultAudioChannels)
	viperCfg.SetDefault("editor.insert_mode", DefaultInsertMode)
	viperCfg.SetDefault("editor.gravity", DefaultGravity)
	viperCfg.SetDefault("editor.audio_volume", DefaultAudioVolume)
	viperCfg.SetDefault("editor.move_effects", DefaultMoveEffects)
	viperCfg.SetDefault("editor.pertrack_audio", DefaultPerTrackAudio)

	viperCfg.SetDefault("undo.buffer_size", DefaultUndoBufferSize)
	viperCfg.SetDefault("undo.compress", DefaultUndoCompress)

	viperCfg.SetDefault("backup.interval", DefaultBackupInterval)
	viperCfg.SetDefault("backup.dir", DefaultBackupDir)

	viperCfg.SetDefault("rectify.max_instances", DefaultMaxInstances)
	viperCfg.SetDefault("rectify.resave", DefaultResave)
	viperCfg.SetDefault("rectify.log_repairs", DefaultLogRepairs)

	viperCfg.SetDefault("layout.compress", DefaultLayoutCompress)
	viperCfg.SetDefault("layout.set_dir", DefaultSetDir)

	viperCfg.SetDefault("observability.log_level", DefaultLogLevel)
	viperCfg.SetDefault("observability.log_json", DefaultLogJSON)
	viperCfg.SetDefault("observability.otlp_endpoint", DefaultOTLPEndpoint)
	viperCfg.SetDefault("observability.otlp_insecure", DefaultOTLPInsecure)
	viperCfg.SetDefault("observability.metrics_addr", DefaultMetricsAddr)
	viperCfg.SetDefault("observability.environment", "")
	viperCfg.SetDefault("observability.sample_ratio", DefaultSampleRatio)
	viperCfg.SetDefault("observability.trace_verbose", DefaultTraceVerbose)
}

// Validate checks every section.
func (c *Config) Validate() error {
	ed := c.Editor

	if ed.FPS <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidFPS, ed.FPS)
	}

	if ed.Width <= 0 || ed.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidFrameSize, ed.Width, ed.Height)
	}

	if ed.VideoTracks < 0 || ed.BackingAudioTracks < 0 {
		return fmt.Errorf("%w: %d video, %d backing audio", ErrInvalidTracks, ed.VideoTracks, ed.BackingAudioTracks)
	}

	if ed.AudioRate <= 0 || ed.AudioChannels <= 0 {
		return fmt.Errorf("%w: %d Hz, %d channels", ErrInvalidAudio, ed.AudioRate, ed.AudioChannels)
	}

	_, err := multitrack.ParseInsertMode(ed.InsertMode)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidInsertMode, ed.InsertMode)
	}

	_, err = multitrack.ParseGravity(ed.Gravity)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidGravity, ed.Gravity)
	}

	_, err = undo.ParseBudget(c.Undo.BufferSize)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidUndoBuffer, err)
	}

	if c.Rectify.MaxInstances <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxInstances, c.Rectify.MaxInstances)
	}

	_, err = parseLevel(c.Observability.LogLevel)
	if err != nil {
		return err
	}

	if c.Observability.SampleRatio < 0 || c.Observability.SampleRatio > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRatio, c.Observability.SampleRatio)
	}

	return nil
}

// EditorOptions builds the options of a new editor. The logger and metrics
// are left for the caller.
func (c *Config) EditorOptions() (multitrack.Options, error) {
	opts := multitrack.DefaultOptions()

	mode, err := multitrack.ParseInsertMode(c.Editor.InsertMode)
	if err != nil {
		return opts, fmt.Errorf("%w: %w", ErrInvalidInsertMode, err)
	}

	gravity, err := multitrack.ParseGravity(c.Editor.Gravity)
	if err != nil {
		return opts, fmt.Errorf("%w: %w", ErrInvalidGravity, err)
	}

	budget, err := undo.ParseBudget(c.Undo.BufferSize)
	if err != nil {
		return opts, fmt.Errorf("%w: %w", ErrInvalidUndoBuffer, err)
	}

	opts.FPS = c.Editor.FPS
	opts.Width = c.Editor.Width
	opts.Height = c.Editor.Height
	opts.Audio = event.AudioFormat{
		Channels:   c.Editor.AudioChannels,
		Rate:       c.Editor.AudioRate,
		SampleSize: sampleSize,
		Signed:     true,
	}
	opts.VideoTracks = c.Editor.VideoTracks
	opts.BackingAudioTracks = c.Editor.BackingAudioTracks
	opts.PerTrackAudio = c.Editor.PerTrackAudio
	opts.InsertMode = mode
	opts.Gravity = gravity
	opts.MoveEffects = c.Editor.MoveEffects
	opts.AudioVolume = c.Editor.AudioVolume
	opts.UndoBudget = budget
	opts.UndoCompress = c.Undo.Compress
	opts.MaxInstances = c.Rectify.MaxInstances

	return opts, nil
}

// ObservabilityConfig builds the observability settings for mode.
func (c *Config) ObservabilityConfig(mode observability.AppMode) observability.Config {
	cfg := observability.DefaultConfig()
	cfg.ServiceVersion = version.Version
	cfg.Environment = c.Observability.Environment
	cfg.Mode = mode
	cfg.OTLPEndpoint = c.Observability.OTLPEndpoint
	cfg.OTLPInsecure = c.Observability.OTLPInsecure
	cfg.Prometheus = c.Observability.MetricsAddr != ""
	cfg.SampleRatio = c.Observability.SampleRatio
	cfg.TraceVerbose = c.Observability.TraceVerbose
	cfg.LogJSON = c.Observability.LogJSON

	level, err := parseLevel(c.Observability.LogLevel)
	if err == nil {
		cfg.LogLevel = level
	}

	return cfg
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level

	err := level.UnmarshalText([]byte(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, s)
	}

	return level, nil
}

package config

import (
	"time"

	"github.com/Sumatoshi-tech/cutfang/pkg/filter"
	"github.com/Sumatoshi-tech/cutfang/pkg/multitrack"
	"github.com/Sumatoshi-tech/cutfang/pkg/rectify"
)

// Editor defaults.
const (
	DefaultFPS                = multitrack.DefaultFPS
	DefaultWidth              = multitrack.DefaultWidth
	DefaultHeight             = multitrack.DefaultHeight
	DefaultVideoTracks        = multitrack.DefaultVideoTracks
	DefaultBackingAudioTracks = 1
	DefaultAudioRate          = multitrack.DefaultAudioRate
	DefaultAudioChannels      = multitrack.DefaultChannels
	DefaultInsertMode         = "normal"
	DefaultGravity            = "normal"
	DefaultMoveEffects        = true
	DefaultPerTrackAudio      = false
	DefaultAudioVolume        = filter.NameAudioVolume
)

// Undo defaults.
const (
	DefaultUndoBufferSize = "32MiB"
	DefaultUndoCompress   = true
)

// Backup defaults.
const (
	DefaultBackupInterval = 2 * time.Minute
	DefaultBackupDir      = ""
)

// Rectify defaults.
const (
	DefaultMaxInstances = rectify.DefaultMaxInstances
	DefaultResave       = false
	DefaultLogRepairs   = true
)

// Layout defaults.
const (
	DefaultLayoutCompress = false
	DefaultSetDir         = ""
)

// Observability defaults.
const (
	DefaultLogLevel     = "info"
	DefaultLogJSON      = false
	DefaultOTLPEndpoint = ""
	DefaultOTLPInsecure = false
	DefaultMetricsAddr  = ""
	DefaultSampleRatio  = 0.0
	DefaultTraceVerbose = false
)

// Package observability provides OpenTelemetry tracing, metrics and
// structured logging for the cutfang tools.
package observability

import "log/slog"

// AppMode identifies how the binary was launched.
type AppMode string

const (
	// ModeCLI is a one-shot command.
	ModeCLI AppMode = "cli"
	// ModeServe is a command that keeps the diagnostics endpoint up.
	ModeServe AppMode = "serve"
)

const (
	defaultServiceName        = "cutfang"
	defaultShutdownTimeoutSec = 5
)

// Config holds all observability configuration.
type Config struct {
	// ServiceName is the OTel resource service name.
	ServiceName string

	// ServiceVersion is the version of the running binary.
	ServiceVersion string

	// Environment is the deployment environment, e.g. "dev".
	Environment string

	// Mode identifies how the binary was launched.
	Mode AppMode

	// OTLPEndpoint is the OTLP gRPC collector address. Empty disables
	// export.
	OTLPEndpoint string

	// OTLPHeaders are extra gRPC metadata headers for the exporter.
	OTLPHeaders map[string]string

	// OTLPInsecure disables TLS for the OTLP connection.
	OTLPInsecure bool

	// Prometheus collects metrics for a scrape endpoint instead of, or as
	// well as, pushing them over OTLP.
	Prometheus bool

	// DebugTrace forces every trace to be sampled.
	DebugTrace bool

	// SampleRatio is the trace sampling ratio used without DebugTrace.
	// Zero keeps the SDK default.
	SampleRatio float64

	// LogLevel is the minimum slog severity.
	LogLevel slog.Level

	// TraceVerbose keeps the per-tick backup spans.
	TraceVerbose bool

	// LogJSON switches the log output to JSON.
	LogJSON bool

	// ShutdownTimeoutSec bounds the flush on shutdown.
	ShutdownTimeoutSec int
}

// DefaultConfig returns the zero-setup configuration.
func DefaultConfig() Config {
	return Config{
		ServiceName:        defaultServiceName,
		Mode:               ModeCLI,
		LogLevel:           slog.LevelInfo,
		ShutdownTimeoutSec: defaultShutdownTimeoutSec,
	}
}

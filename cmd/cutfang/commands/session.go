// Package commands implements the cutfang command line.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/cutfang/pkg/clip"
	"github.com/Sumatoshi-tech/cutfang/pkg/config"
	"github.com/Sumatoshi-tech/cutfang/pkg/filter"
	"github.com/Sumatoshi-tech/cutfang/pkg/multitrack"
	"github.com/Sumatoshi-tech/cutfang/pkg/observability"
)

// Options holds the flags shared by every command.
type Options struct {
	ConfigPath  string
	ClipsPath   string
	MetricsAddr string
	Verbose     bool
	Quiet       bool
}

// Register adds the shared flags to root.
func (o *Options) Register(root *cobra.Command) {
	flags := root.PersistentFlags()
	flags.StringVar(&o.ConfigPath, "config", "", "Config file (default: .cutfang.yaml in the working or home directory)")
	flags.StringVar(&o.ClipsPath, "clips", "", "YAML clip manifest resolving the clip numbers of layouts")
	flags.StringVar(&o.MetricsAddr, "metrics-addr", "", "Serve /metrics, /healthz and /readyz on this address while running")
	flags.BoolVarP(&o.Verbose, "verbose", "v", false, "Debug logging")
	flags.BoolVarP(&o.Quiet, "quiet", "q", false, "Log errors only")
}

// session is the state of one command run.
type session struct {
	cfg       *config.Config
	providers observability.Providers
	logger    *slog.Logger
	red       *observability.REDMetrics
	engine    *observability.EngineMetrics
	diag      *observability.DiagnosticsServer
	clipsPath string
	clips     *clip.Registry
}

func (o *Options) open() (*session, error) {
	cfg, err := config.LoadConfig(o.ConfigPath)
	if err != nil {
		return nil, err
	}

	if o.MetricsAddr != "" {
		cfg.Observability.MetricsAddr = o.MetricsAddr
	}

	switch {
	case o.Verbose:
		cfg.Observability.LogLevel = "debug"
	case o.Quiet:
		cfg.Observability.LogLevel = "error"
	}

	mode := observability.ModeCLI
	if cfg.Observability.MetricsAddr != "" {
		mode = observability.ModeServe
	}

	providers, err := observability.Init(cfg.ObservabilityConfig(mode))
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	s := &session{cfg: cfg, providers: providers, logger: providers.Logger, clipsPath: o.ClipsPath}

	s.red, err = observability.NewREDMetrics(providers.Meter)
	if err != nil {
		return nil, errors.Join(err, s.close())
	}

	s.engine, err = observability.NewEngineMetrics(providers.Meter)
	if err != nil {
		return nil, errors.Join(err, s.close())
	}

	if addr := cfg.Observability.MetricsAddr; addr != "" {
		s.diag, err = observability.NewDiagnosticsServer(addr, observability.DiagnosticsOptions{
			Metrics: providers.MetricsHandler,
			Tracer:  providers.Tracer,
			RED:     s.red,
			Logger:  providers.Logger,
		})
		if err != nil {
			return nil, errors.Join(err, s.close())
		}

		s.logger.Info("diagnostics listening", "addr", s.diag.Addr())
	}

	return s, nil
}

func (s *session) close() error {
	ctx := context.Background()

	var errs []error

	if s.diag != nil {
		errs = append(errs, s.diag.Close(ctx))
	}

	errs = append(errs, s.providers.Shutdown(ctx))

	return errors.Join(errs...)
}

// clipSet loads the clip manifest once. Without one every clip number is
// unknown and loading a layout drops its frames.
func (s *session) clipSet() (*clip.Registry, error) {
	if s.clips != nil {
		return s.clips, nil
	}

	if s.clipsPath == "" {
		s.logger.Warn("no clip manifest given, layouts load without clips")

		reg, err := clip.NewRegistry()
		if err != nil {
			return nil, fmt.Errorf("empty clip registry: %w", err)
		}

		s.clips = reg

		return reg, nil
	}

	reg, err := clip.LoadManifest(s.clipsPath)
	if err != nil {
		return nil, err
	}

	s.clips = reg

	return reg, nil
}

// editor creates an editor over the session's clips, configured from the
// editor, undo and rectify sections.
func (s *session) editor() (*multitrack.Editor, error) {
	clips, err := s.clipSet()
	if err != nil {
		return nil, err
	}

	opts, err := s.cfg.EditorOptions()
	if err != nil {
		return nil, err
	}

	opts.Logger = s.logger
	opts.Metrics = s.engine

	ed, err := multitrack.New(opts, filter.BuiltinRegistry(), clips)
	if err != nil {
		return nil, fmt.Errorf("create editor: %w", err)
	}

	return ed, nil
}

type action func(ctx context.Context, s *session, cmd *cobra.Command, args []string) error

// run wraps fn in a session, a span named after op and a RED request.
func (o *Options) run(op string, fn action) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		s, err := o.open()
		if err != nil {
			return err
		}

		defer func() { err = errors.Join(err, s.close()) }()

		ctx, span := s.providers.Tracer.Start(cmd.Context(), "cutfang.cli."+op,
			trace.WithAttributes(attribute.StringSlice("cli.args", args)))
		defer span.End()

		done := s.red.TrackInflight(ctx, op)
		started := time.Now()

		err = fn(ctx, s, cmd, args)

		done()

		status := observability.StatusOK
		if err != nil {
			status = observability.StatusError

			span.RecordError(err)
			span.SetStatus(codes.Error, "command failed")
		}

		s.red.RecordRequest(ctx, op, status, time.Since(started))

		return err
	}
}

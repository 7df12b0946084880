package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/OCAP2/simtools/internal/config"
	"github.com/OCAP2/simtools/internal/logging"
	intOtel "github.com/OCAP2/simtools/internal/otel"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/trace"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.0.1"
	BuildDate      string = "unknown"

	AppName string = "simtools"
)

const tracerName = "github.com/OCAP2/simtools/cmd/simtools"

// app carries the per-invocation services shared by all commands
type app struct {
	configDir    string
	logLevel     string
	sessionStart time.Time

	out  io.Writer
	errs io.Writer

	slogManager  *logging.SlogManager
	logger       *slog.Logger
	zlog         zerolog.Logger
	otelProvider *intOtel.Provider
	span         trace.Span

	logFile     *os.File
	logFilePath string
	session     logging.Session
	closers     []io.Closer
}

func newApp(out, errs io.Writer) *app {
	return &app{
		sessionStart: time.Now(),
		out:          out,
		errs:         errs,
		slogManager:  logging.NewSlogManager(),
		logger:       slog.Default(),
		zlog:         zerolog.Nop(),
	}
}

func main() {
	a := newApp(os.Stdout, os.Stderr)
	err := newRootCmd(a).Execute()
	a.shutdown(err)
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           AppName,
		Short:         "Generate, inspect and replay two-team movement scenarios",
		Version:       fmt.Sprintf("%s (%s)", CurrentVersion, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errs)

	root.PersistentFlags().StringVar(&a.configDir, "config", ".", "directory holding "+config.FileName)
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(
		newGenerateCmd(a),
		newScenarioCmd(a),
		newTraceCmd(a),
	)
	return root
}

// setup loads the config and wires logging, mirroring the recorder's init flow:
// config, log file, OTel provider, then the final slog setup.
func (a *app) setup(cmd *cobra.Command) error {
	a.session = logging.NewSession(cmd.CommandPath())

	configErr := config.Load(a.configDir)

	level := a.logLevel
	if level == "" {
		level = viper.GetString("logLevel")
	}

	// resolve path set in config
	// create logs dir if it doesn't exist
	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		fmt.Fprintf(a.errs, "Failed to create logs dir: %v\n", err)
	}

	a.logFilePath = logging.LogFilePath(logsDir, AppName, a.sessionStart)
	if _, err := os.Stat(a.logFilePath); err == nil {
		os.Rename(a.logFilePath, a.logFilePath+".old")
	}
	logFile, err := os.OpenFile(a.logFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		fmt.Fprintf(a.errs, "Failed to create log file, logging to stdout: %v\n", err)
		logFile = nil
	}
	a.logFile = logFile

	var logWriter io.Writer
	if logFile != nil {
		logWriter = logFile
	}

	// Initialize OTel provider if enabled (after log file is created)
	var otelLogProvider *sdklog.LoggerProvider
	otelCfg := config.GetOTelConfig()
	var otelErr error
	if otelCfg.Enabled {
		a.otelProvider, otelErr = intOtel.New(intOtel.FromConfig(otelCfg, logWriter))
		if otelErr == nil {
			otelLogProvider = a.otelProvider.LoggerProvider()
		}
	}

	var extra []slog.Handler
	graylogCfg := config.GetGraylogConfig()
	var gelfErr error
	if graylogCfg.Enabled {
		h, closer, err := logging.NewGELFHandler(graylogCfg.Address, level)
		if err != nil {
			gelfErr = err
		} else {
			extra = append(extra, h)
			a.closers = append(a.closers, closer)
		}
	}

	a.slogManager.WithSession(a.session)
	a.slogManager.Setup(logWriter, level, otelLogProvider, extra...)
	a.logger = a.slogManager.Logger()

	zw := io.Writer(os.Stderr)
	if logWriter != nil {
		zw = logWriter
	}
	a.zlog = zerolog.New(zw).Level(zerologLevel(level)).With().
		Timestamp().
		Str("session", a.session.ID).
		Str("command", a.session.Command).
		Logger()

	if configErr != nil {
		a.logger.Warn("Failed to load config, using defaults!", "error", configErr, "dir", a.configDir)
	} else {
		a.logger.Info("Loaded config", "dir", a.configDir)
	}
	if otelErr != nil {
		a.logger.Error("Failed to initialize OTel provider", "error", otelErr)
	} else if a.otelProvider != nil {
		a.logger.Info("OTel provider initialized", "file", a.logFilePath, "endpoint", otelCfg.Endpoint)
	}
	if gelfErr != nil {
		a.logger.Error("Failed to connect to Graylog", "error", gelfErr, "address", graylogCfg.Address)
	}
	a.logger.Debug("Starting", "version", CurrentVersion, "build", BuildDate)

	if a.otelProvider != nil {
		ctx, span := a.otelProvider.Tracer(tracerName).Start(cmd.Context(), a.session.Command,
			trace.WithAttributes(attribute.String("session", a.session.ID)))
		a.span = span
		cmd.SetContext(ctx)
	}
	return nil
}

// shutdown ends the command span, flushes telemetry and closes everything
// setup opened. runErr is the command's result.
func (a *app) shutdown(runErr error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if a.span != nil {
		if runErr != nil {
			a.span.RecordError(runErr)
			a.span.SetStatus(codes.Error, runErr.Error())
		}
		a.span.End()
		a.span = nil
	}

	if err := a.slogManager.Flush(ctx); err != nil {
		fmt.Fprintf(a.errs, "Failed to flush logs: %v\n", err)
	}
	if a.otelProvider != nil {
		if err := a.otelProvider.Shutdown(ctx); err != nil {
			fmt.Fprintf(a.errs, "Failed to shut down OTel: %v\n", err)
		}
		a.otelProvider = nil
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i].Close()
	}
	a.closers = nil
	if a.logFile != nil {
		a.logFile.Close()
		a.logFile = nil
	}
}

func zerologLevel(level string) zerolog.Level {
	switch logging.ParseLevel(strings.TrimSpace(level)) {
	case slog.LevelDebug:
		return zerolog.DebugLevel
	case slog.LevelWarn:
		return zerolog.WarnLevel
	case slog.LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

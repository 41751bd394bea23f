package logs

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/lmittmann/tint"
	"github.com/silverlining-sec/nimbus/pkg/options"
	"github.com/silverlining-sec/nimbus/pkg/types"
)

var (
	mu           sync.Mutex
	activeLogger *slog.Logger
	debugEnabled bool
	logSink      *os.File
)

// Configure installs the process-wide logger: a tint console handler on
// stderr at debug level when verbose, plus a JSON file handler appending to
// logFile when one is given. It is called once at startup, before any stage
// loggers exist.
func Configure(verbose bool, logFile string) error {
	mu.Lock()
	defer mu.Unlock()

	debugEnabled = verbose
	handler := consoleHandler(verbose)

	if logSink != nil {
		logSink.Close()
		logSink = nil
	}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return err
		}
		logSink = f
		handler = teeHandler{
			console: handler,
			file: slog.NewJSONHandler(f, &slog.HandlerOptions{
				AddSource: true,
				Level:     slog.LevelDebug,
			}),
		}
	}

	activeLogger = slog.New(handler)
	slog.SetDefault(activeLogger)
	return nil
}

// ConsoleLogger returns the configured process logger, installing a
// console-only default on first use.
func ConsoleLogger() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()

	if activeLogger == nil {
		activeLogger = slog.New(consoleHandler(debugEnabled))
		slog.SetDefault(activeLogger)
	}
	return activeLogger
}

func consoleHandler(verbose bool) slog.Handler {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	})
}

// FileLogger returns a JSON logger appending to the given path. Callers own
// closing the returned file.
func FileLogger(path string) (*slog.Logger, *os.File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, err
	}

	handler := slog.NewJSONHandler(f, &slog.HandlerOptions{
		AddSource: true,
		Level:     slog.LevelDebug,
	})
	return slog.New(handler), f, nil
}

// NewStageLogger returns a child logger tagged with the stage name. A run
// whose options ask for verbose output gets debug level even when the
// process-wide logger does not.
func NewStageLogger(ctx context.Context, opts []*types.Option, stage string) *slog.Logger {
	logger := ConsoleLogger().With(slog.String("stage", stage))

	mu.Lock()
	debug := debugEnabled
	mu.Unlock()

	if verbose := options.GetOptionByName(options.VerboseOpt.Name, opts); verbose != nil && verbose.Value == "true" && !debug {
		logger = slog.New(consoleHandler(true)).With(slog.String("stage", stage))
	}

	return logger
}

type teeHandler struct {
	console slog.Handler
	file    slog.Handler
}

func (h teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.console.Enabled(ctx, level) || h.file.Enabled(ctx, level)
}

func (h teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var err error
	if h.console.Enabled(ctx, record.Level) {
		err = h.console.Handle(ctx, record.Clone())
	}
	if h.file.Enabled(ctx, record.Level) {
		if ferr := h.file.Handle(ctx, record.Clone()); ferr != nil && err == nil {
			err = ferr
		}
	}
	return err
}

func (h teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return teeHandler{console: h.console.WithAttrs(attrs), file: h.file.WithAttrs(attrs)}
}

func (h teeHandler) WithGroup(name string) slog.Handler {
	return teeHandler{console: h.console.WithGroup(name), file: h.file.WithGroup(name)}
}

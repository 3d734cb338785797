// Package app wires configuration, the debug adapter session and the
// context collector into a runnable program.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dshills/debugctx/internal/backend"
	"github.com/dshills/debugctx/internal/backend/adapters"
	"github.com/dshills/debugctx/internal/collect"
	"github.com/dshills/debugctx/internal/config"
	"github.com/dshills/debugctx/internal/source"
)

// collectTimeout bounds one full context collection after a stop.
const collectTimeout = 30 * time.Second

// ErrNoTarget is returned when neither a program nor an attach target is
// configured.
var ErrNoTarget = errors.New("nothing to debug: provide a program, process id or adapter port")

// Options are the command line options.
type Options struct {
	// ConfigPath is the configuration file. Empty means defaults.
	ConfigPath string

	// LogLevel overrides the configured log level when set.
	LogLevel string

	// Adapter overrides the configured adapter type when set.
	Adapter string

	// Program is the program to debug.
	Program string

	// ProgramArgs are the debuggee arguments.
	ProgramArgs []string

	// ProcessID attaches to a running process instead of launching.
	ProcessID int

	// Host and Port point at an already running adapter.
	Host string
	Port int

	// KeepRunning resumes the debuggee after each report instead of
	// disconnecting after the first stop.
	KeepRunning bool

	// Watch reloads budgets when the configuration file changes.
	Watch bool
}

// stopEvent is one debuggee pause delivered by the session.
type stopEvent struct {
	reason   string
	threadID int
}

// Report is the JSON document emitted for one debuggee stop.
type Report struct {
	// Reason is the DAP stop reason.
	Reason string `json:"reason"`

	// ThreadID is the stopped thread.
	ThreadID int `json:"threadId"`

	// Items are the collected context items.
	Items []collect.ContextItem `json:"items"`
}

// App is the collector application.
type App struct {
	opts      Options
	cfg       config.Config
	logger    *slog.Logger
	collector *collect.Collector
	registry  *adapters.Registry
	out       io.Writer

	session *backend.Session
	watcher *config.Watcher
}

// New loads configuration and builds the application. Reports go to out.
func New(opts Options, out io.Writer) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	logger := newLogger(level)

	collector := collect.NewCollector(cfg.CollectBudgets(),
		collect.WithNavigator(source.NewNavigator()),
		collect.WithLogger(logger),
	)

	a := &App{
		opts:      opts,
		cfg:       cfg,
		logger:    logger,
		collector: collector,
		registry:  adapters.NewRegistry(),
		out:       out,
	}

	if opts.Watch && opts.ConfigPath != "" {
		a.watcher, err = config.NewWatcher(opts.ConfigPath, a.onConfigReload, a.onConfigError)
		if err != nil {
			return nil, fmt.Errorf("watch config: %w", err)
		}
	}

	return a, nil
}

// newLogger builds a text logger on stderr at the given level.
func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

// onConfigReload applies reloaded budgets to the collector. Collections in
// flight keep the budgets they started with.
func (a *App) onConfigReload(cfg config.Config) {
	a.collector.SetBudgets(cfg.CollectBudgets())
	a.logger.Info("budgets reloaded", "config", a.opts.ConfigPath)
}

func (a *App) onConfigError(err error) {
	a.logger.Warn("config reload failed", "error", err)
}

// adapterSpec merges configuration and options into one adapter spec.
func (a *App) adapterSpec() (adapters.Spec, error) {
	spec := adapters.Spec{
		Kind:        adapters.Kind(a.cfg.Adapter.Type),
		Command:     a.cfg.Adapter.Command,
		CommandArgs: a.cfg.Adapter.Args,
		Host:        a.cfg.Adapter.Host,
		Port:        a.cfg.Adapter.Port,
		Program:     a.opts.Program,
		ProgramArgs: a.opts.ProgramArgs,
		ProcessID:   a.opts.ProcessID,
	}

	if a.opts.Adapter != "" {
		spec.Kind = adapters.Kind(a.opts.Adapter)
	} else if a.opts.Program != "" {
		if kind, ok := adapters.DetectKind(a.opts.Program); ok {
			spec.Kind = kind
		}
	}
	if a.opts.Host != "" {
		spec.Host = a.opts.Host
	}
	if a.opts.Port != 0 {
		spec.Port = a.opts.Port
	}

	if spec.Program == "" && spec.ProcessID == 0 && spec.Port == 0 {
		return adapters.Spec{}, ErrNoTarget
	}
	return spec, nil
}

// Run starts the debug session and emits one report per debuggee stop. It
// returns when the debuggee terminates, after the first report unless
// KeepRunning is set, or when ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	spec, err := a.adapterSpec()
	if err != nil {
		return err
	}

	adapter, err := a.registry.Create(spec)
	if err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, a.cfg.Adapter.LaunchTimeout)
	session, err := adapters.Start(startCtx, adapter)
	cancel()
	if err != nil {
		return err
	}
	a.session = session

	stops := make(chan stopEvent, 4)
	terminated := make(chan struct{}, 1)
	session.SetHandlers(backend.SessionHandlers{
		OnStopped: func(reason string, threadID int) {
			stops <- stopEvent{reason: reason, threadID: threadID}
		},
		OnTerminated: func() {
			select {
			case terminated <- struct{}{}:
			default:
			}
		},
		OnOutput: func(category, output string) {
			a.logger.Debug("debuggee output", "category", category, "output", output)
		},
	})

	if err := a.configure(ctx, session, adapter, spec); err != nil {
		session.Close()
		return err
	}

	a.logger.Info("session started", "adapter", spec.Kind)

	for {
		select {
		case <-ctx.Done():
			return a.session.Disconnect(context.Background(), true)

		case <-terminated:
			a.logger.Info("debuggee terminated")
			a.collector.Clear()
			return nil

		case stop := <-stops:
			a.logger.Info("debuggee stopped", "reason", stop.reason, "thread", stop.threadID)
			report := a.collect(stop)
			if err := a.emit(report); err != nil {
				return fmt.Errorf("write report: %w", err)
			}

			if !a.opts.KeepRunning {
				return a.session.Disconnect(context.Background(), a.opts.ProcessID == 0)
			}
			if err := a.session.Continue(ctx); err != nil {
				return fmt.Errorf("resume debuggee: %w", err)
			}
		}
	}
}

// configure runs the DAP startup sequence for the chosen adapter.
func (a *App) configure(ctx context.Context, session *backend.Session, adapter adapters.Adapter, spec adapters.Spec) error {
	sessionConfig := backend.DefaultSessionConfig()
	sessionConfig.AdapterID = string(spec.Kind)

	if err := session.Initialize(ctx, sessionConfig); err != nil {
		return err
	}

	if spec.ProcessID > 0 || spec.Program == "" {
		args, err := adapter.AttachArguments()
		if err != nil {
			return err
		}
		if err := session.Attach(ctx, args); err != nil {
			return err
		}
	} else {
		args, err := adapter.LaunchArguments()
		if err != nil {
			return err
		}
		if err := session.Launch(ctx, args); err != nil {
			return err
		}
	}

	return session.ConfigurationDone(ctx)
}

// collect gathers the stack plus either the active exception or a locals
// snapshot for one stop. Collection failures yield unsuccessful items
// rather than an error; a partial report is still a report.
func (a *App) collect(stop stopEvent) Report {
	report := Report{Reason: stop.reason, ThreadID: stop.threadID}

	src := a.session.StackSource()
	frame, _ := src.ActiveFrame()

	results := make(chan collect.ContextItem, 2)
	a.collector.CollectStack(src, func(item collect.ContextItem) {
		results <- item
	})
	if stop.reason == "exception" {
		a.collector.CollectException(frame, func(item collect.ContextItem) {
			results <- item
		})
	} else {
		a.collector.CollectSnapshot(frame, func(item collect.ContextItem) {
			results <- item
		})
	}

	deadline := time.After(collectTimeout)
	for len(report.Items) < 2 {
		select {
		case item := <-results:
			report.Items = append(report.Items, item)
		case <-deadline:
			a.logger.Warn("collection timed out", "collected", len(report.Items))
			return report
		}
	}
	return report
}

// emit writes one report as indented JSON.
func (a *App) emit(report Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = a.out.Write(data)
	return err
}

// Shutdown releases the session and the config watcher. It is safe to call
// on every exit path.
func (a *App) Shutdown() {
	if a.watcher != nil {
		a.watcher.Close()
	}
	if a.session != nil {
		a.session.Close()
	}
}

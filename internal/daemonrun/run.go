// Package daemonrun assembles and runs the anythingd daemon process: logging,
// the process lock, the plugin factory registry, and the backend orchestrator.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"anything/internal/backend"
	"anything/internal/busguard"
	"anything/internal/config"
	"anything/internal/fsevent"
	"anything/internal/loader"
	"anything/internal/logging"
	"anything/internal/mountinfo"
	"anything/internal/mountwatch"
	"anything/internal/plugin"
	"anything/internal/plugins/hooks"
	"anything/internal/plugins/journal"
	"anything/internal/supervisor"
)

// Options configures daemon process runtime behavior.
type Options struct {
	// LogLevel overrides the configured log level when non-empty.
	LogLevel string
}

// Run starts the anythingd daemon and blocks until the context is cancelled
// or a termination signal arrives. The error it returns maps to the process
// exit code: backend.ErrAlreadyRunning when another instance holds the
// service identity, busguard.ErrPublishObject when the control object could
// not be published.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("anythingd-%s.log", runID))

	level := cfg.Logging.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		CorrelationID:    uuid.NewString(),
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update anythingd.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "anythingd-*.log", Exclude: []string{logPath}},
	)

	// The flock catches a second daemon before it touches the bus; the bus
	// name claim remains the authoritative singleton check.
	lockPath := filepath.Join(cfg.Paths.LogDir, "anythingd.lock")
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire process lock: %w", err)
	}
	if !locked {
		logger.Warn("another daemon instance holds the process lock",
			logging.String("lock", lockPath),
			logging.String(logging.FieldEventType, "process_lock_held"),
			logging.String(logging.FieldImpact, "this instance is standing down"),
		)
		return backend.ErrAlreadyRunning
	}
	defer func() { _ = lock.Unlock() }()

	pidPath := filepath.Join(cfg.Paths.LogDir, "anythingd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	factories := plugin.NewFactories()
	registerBuiltinPlugins(factories, cfg, logger)

	sup := supervisor.New(factories, logger,
		supervisor.WithEventBuffer(cfg.Workers.EventBuffer),
		supervisor.WithDrainTimeout(time.Duration(cfg.Workers.DrainTimeoutSeconds)*time.Second),
	)
	relay := mountinfo.New(cfg.MountRelay.SourcePath, cfg.MountRelay.SinkPath, logger)
	guard := busguard.New(cfg.Bus.ServiceName, cfg.Bus.ObjectPath, cfg.Bus.UseSessionBus, logger)
	source := fsevent.NewChanSource(cfg.Workers.EventBuffer)

	b := backend.New(guard, relay, sup, source, factories, logger)
	if err := b.Connect(signalCtx); err != nil {
		return err
	}
	defer b.Close()

	ldr := loader.New(cfg.Paths.PluginDir, sup, logger)
	if err := ldr.Start(signalCtx); err != nil {
		logger.Warn("plugin loader failed to start",
			logging.Error(err),
			logging.String(logging.FieldEventType, "loader_start_failed"),
			logging.String(logging.FieldErrorHint, "check the plugin directory permissions"),
			logging.String(logging.FieldImpact, "manifest plugins will not load"),
		)
	} else {
		defer ldr.Stop()
	}

	watcher := mountwatch.New(logger, func() { b.RefreshMountInfo() })
	if err := watcher.Start(signalCtx); err != nil {
		logger.Warn("mount watcher failed to start", logging.Error(err))
	} else {
		defer watcher.Stop()
	}

	logger.Info("anythingd started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("service", cfg.Bus.ServiceName),
		logging.String("lock", lockPath),
	)

	<-signalCtx.Done()
	logger.Info("anythingd shutting down",
		logging.String(logging.FieldEventType, "daemon_stopping"),
	)
	return nil
}

// registerBuiltinPlugins wires the compiled-in plugin factories. A factory
// returning nil means the plugin declined to load under the current
// configuration.
func registerBuiltinPlugins(factories *plugin.Factories, cfg *config.Config, logger *slog.Logger) {
	if cfg.Journal.Enabled {
		factories.Register(journal.Key, func() plugin.Handler {
			return journal.New(cfg.Journal.Path, logger)
		})
	}
	if cfg.Hooks.Enabled {
		factories.Register(hooks.Key, func() plugin.Handler {
			p := hooks.New(hooks.Options{
				Addr:     cfg.Hooks.RedisAddr,
				Password: cfg.Hooks.RedisPassword,
				DB:       cfg.Hooks.RedisDB,
				Channel:  cfg.Hooks.Channel,
			}, logger)
			if p == nil {
				return nil
			}
			return p
		})
	}
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "anythingd.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

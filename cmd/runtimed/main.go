package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"runtimed/internal/config"
	"runtimed/internal/httpapi"
	"runtimed/internal/manager"
	"runtimed/internal/memory"
	"runtimed/internal/registry"
	"runtimed/internal/routing"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	var (
		cfgPath    string
		addr       string
		modelsDir  string
		logLevel   string
		warningMB  int
		criticalMB int
		provider   string
		watch      bool
	)
	root := &cobra.Command{
		Use:           "runtimed",
		Short:         "On-device model runtime daemon: lifecycle, memory, routing",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Config{}
			if cfgPath != "" {
				loaded, err := config.Load(cfgPath)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				cfg = loaded
			}
			// Flags override file values when set explicitly.
			if cmd.Flags().Changed("addr") || cfg.Addr == "" {
				cfg.Addr = addr
			}
			if cmd.Flags().Changed("models-dir") || cfg.ModelsDir == "" {
				cfg.ModelsDir = modelsDir
			}
			if cmd.Flags().Changed("warning-mb") {
				cfg.Memory.WarningMB = warningMB
			}
			if cmd.Flags().Changed("critical-mb") {
				cfg.Memory.CriticalMB = criticalMB
			}
			if cmd.Flags().Changed("cloud-provider") {
				cfg.Routing.CloudProvider = provider
			}
			return run(cmd.Context(), cfg, cfgPath, watch, logLevel)
		},
	}
	root.Flags().StringVar(&cfgPath, "config", "", "Config file (.yaml/.json/.toml); flags override file values")
	root.Flags().StringVar(&addr, "addr", ":8080", "HTTP listen address")
	root.Flags().StringVar(&modelsDir, "models-dir", "~/models", "Directory to scan for model artifacts")
	root.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	root.Flags().IntVar(&warningMB, "warning-mb", 0, "Available-memory warning threshold in MB (0=default)")
	root.Flags().IntVar(&criticalMB, "critical-mb", 0, "Available-memory critical threshold in MB (0=default)")
	root.Flags().StringVar(&provider, "cloud-provider", "", "Cloud provider name for delegated execution (empty disables cloud)")
	root.Flags().BoolVar(&watch, "watch-config", false, "Reload routing policy when the config file changes")
	return root
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}

func run(ctx context.Context, cfg config.Config, cfgPath string, watch bool, logLevel string) error {
	logger := newLogger(logLevel)

	models, err := registry.LoadDir(cfg.ModelsDir)
	if err != nil {
		return fmt.Errorf("scan models dir: %w", err)
	}
	logger.Info().Int("models", len(models)).Str("dir", cfg.ModelsDir).Msg("model scan complete")

	const mb = 1024 * 1024
	monitor := memory.NewMonitor(memory.MonitorConfig{
		Interval:      time.Duration(cfg.Memory.MonitorIntervalMS) * time.Millisecond,
		WarningBytes:  uint64(cfg.Memory.WarningMB) * mb,
		CriticalBytes: uint64(cfg.Memory.CriticalMB) * mb,
		WindowAge:     time.Duration(cfg.Memory.SampleWindowSec) * time.Second,
		Logger:        &logger,
	})
	watcher := memory.NewThresholdWatcher(memory.WatcherConfig{
		WarningBytes:  uint64(cfg.Memory.WarningMB) * mb,
		CriticalBytes: uint64(cfg.Memory.CriticalMB) * mb,
		Hysteresis:    cfg.Memory.Hysteresis,
		Logger:        &logger,
	})

	// Execution adapters are host integrations registered here as they
	// become available; an empty registry still serves discovery, routing,
	// and cloud delegation.
	adapters := routing.NewAdapterRegistry()

	mgr, err := manager.NewWithConfig(manager.ManagerConfig{
		Models:   models,
		Monitor:  monitor,
		Watcher:  watcher,
		Engine:   routing.NewEngine(&logger),
		Adapters: adapters,
		Policy:   cfg.Routing,
		Logger:   &logger,
		Leaks: memory.LeakDetectorConfig{
			MinDuration:           time.Duration(cfg.Memory.LeakMinDurationSec) * time.Second,
			GrowthRateBytesPerSec: cfg.Memory.LeakGrowthBytesPerSec,
			AbsoluteSizeBytes:     uint64(cfg.Memory.LeakAbsoluteMB) * mb,
		},
	})
	if err != nil {
		return fmt.Errorf("construct manager: %w", err)
	}
	mgr.Start()
	defer mgr.Close()

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)
	httpapi.SetLogger(logger)

	if watch && cfgPath != "" {
		w := config.NewWatcher(cfgPath, func(updated config.Config) {
			mgr.SetPolicy(updated.Routing)
		}, logger)
		go func() {
			if err := w.Run(baseCtx); err != nil {
				logger.Warn().Err(err).Msg("config watcher stopped")
			}
		}()
	}

	srv := &http.Server{Addr: cfg.Addr, Handler: httpapi.NewMux(mgr)}
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("runtimed listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-stop:
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	cancelBase()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("graceful shutdown error")
	}
	return nil
}

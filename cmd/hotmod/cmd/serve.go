package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/hotmod"
	"github.com/GoCodeAlone/hotmod/adapters/chimux"
	"github.com/GoCodeAlone/hotmod/config"
	"github.com/GoCodeAlone/hotmod/monitoring"
	"github.com/GoCodeAlone/hotmod/watcher"
)

type serveOptions struct {
	configPath string
	modulesDir string
	addr       string
	dashboard  bool
	noWatch    bool
}

// NewServeCommand runs the module host
func NewServeCommand() *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the modules of a directory with hot reload",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			opts.apply(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Config file (yaml, toml or json)")
	cmd.Flags().StringVarP(&opts.modulesDir, "modules", "m", "", "Module manifest directory")
	cmd.Flags().StringVar(&opts.addr, "addr", "", "Address for module routes")
	cmd.Flags().BoolVar(&opts.dashboard, "dashboard", false, "Enable the monitoring dashboard")
	cmd.Flags().BoolVar(&opts.noWatch, "no-watch", false, "Disable reloading on file changes")
	return cmd
}

// apply lets explicitly set flags override file and environment values.
func (o *serveOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("modules") {
		cfg.ModulesDir = o.modulesDir
	}
	if cmd.Flags().Changed("addr") {
		cfg.HTTP.Addr = o.addr
	}
	if cmd.Flags().Changed("dashboard") {
		cfg.Dashboard.Enabled = o.dashboard
	}
	if cmd.Flags().Changed("no-watch") {
		cfg.Watch.Enabled = !o.noWatch
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger, err := cfg.Log.NewLogger(os.Stderr)
	if err != nil {
		return err
	}

	adapter := chimux.NewAdapter()
	loader := hotmod.NewFileLoader()
	monitor := monitoring.NewMonitor(monitoring.WithHistoryLimit(cfg.HistoryLimit))
	kernel, err := hotmod.NewKernel(adapter,
		hotmod.WithLogger(logger),
		hotmod.WithLoader(loader),
		hotmod.WithMonitor(monitor),
	)
	if err != nil {
		return err
	}

	if err := kernel.LoadDir(ctx, cfg.ModulesDir); err != nil {
		logger.Error("Some modules failed to load", "dir", cfg.ModulesDir, "error", err)
	}
	logger.Info("Initial module load complete", "modules", len(kernel.List()))

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           adapter,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "address", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var dashboard *monitoring.Dashboard
	if cfg.Dashboard.Enabled {
		dashboard = monitoring.NewDashboard(monitor, cfg.Dashboard.Addr, logger)
		if err := dashboard.Start(ctx); err != nil {
			logger.Error("Failed to start dashboard", "error", err)
			dashboard = nil
		}
	}

	var w *watcher.Watcher
	if cfg.Watch.Enabled {
		w = watcher.New(watcher.Config{
			Dir:       cfg.ModulesDir,
			Debounce:  cfg.Watch.Debounce,
			Rescan:    cfg.Watch.Rescan,
			Manifests: loader,
		}, kernel, logger)
		if err := w.Start(ctx); err != nil {
			logger.Error("Failed to start watcher", "error", err)
			w = nil
		}
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err := <-serverErr:
		runErr = fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	var errs []error
	if runErr != nil {
		errs = append(errs, runErr)
	}
	if w != nil {
		if err := w.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop watcher: %w", err))
		}
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("error shutting down HTTP server: %w", err))
	}
	if err := kernel.UnloadAll(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if dashboard != nil {
		if err := dashboard.Stop(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

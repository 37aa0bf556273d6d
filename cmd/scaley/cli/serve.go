package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/getscaley/scaley/internal/activity"
	"github.com/getscaley/scaley/internal/config"
	"github.com/getscaley/scaley/internal/metrics"
	"github.com/getscaley/scaley/internal/server"
)

const banner = `
  ___  ___ __ _| | ___ _   _
 / __|/ __/ _' | |/ _ \ | | |
 \__ \ (_| (_| | |  __/ |_| |
 |___/\___\__,_|_|\___|\__, |
                       |___/
`

func newServeCmd(a *app) *cobra.Command {
	var (
		dev        bool
		background bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the admin API server",
		Long:  "Start the HTTP server that exposes the admin API under /api.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			if background {
				return startBackground(cmd, cfg)
			}
			return runServe(cmd.Context(), cfg, dev)
		},
	}

	cmd.Flags().IntP("port", "p", 4000, "HTTP listen port")
	cmd.Flags().String("host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (debug logging, error detail in responses)")
	cmd.Flags().BoolVar(&background, "background", false, "Run the server detached, logging to <data-dir>/scaley.log")

	a.viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	a.viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, dev bool) error {
	if dev {
		cfg.Env = config.EnvDevelopment
	}
	logger, err := newLogger(cfg, dev, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Print(banner)
	fmt.Println()

	// 1. Credential store
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	logger.Info("store initialized", "driver", st.Dialect())

	// 2. Services and bootstrap data
	svc := newServices(st, cfg, logger)
	if cfg.IsDevelopment() {
		if err := svc.seeder.SeedDevelopment(ctx); err != nil {
			return fmt.Errorf("seed development data: %w", err)
		}
	} else if err := svc.seeder.EnsureDefaultRoles(ctx); err != nil {
		return fmt.Errorf("ensure default roles: %w", err)
	}
	if n, err := st.CountAdmins(ctx); err != nil {
		logger.Warn("failed to count admins", "error", err)
	} else if n == 0 {
		logger.Warn("no admin account found - run: scaley seed --email <email>")
	}

	// 3. Metrics and activity recorder
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}
	deps := server.Deps{Store: st, Auth: svc.auth, Admins: svc.admins, Metrics: m}

	var rec *activity.Recorder
	if cfg.Activity.Enabled {
		opts := activity.Options{QueueSize: cfg.Activity.QueueSize, Logger: logger}
		if m != nil {
			opts.Observer = m
		}
		rec = activity.NewRecorder(st, opts)
		deps.Recorder = rec
	}

	// 4. HTTP server
	srv, err := server.New(serverConfig(cfg), deps, logger)
	if err != nil {
		return err
	}

	if err := writePID(cfg, os.Getpid()); err != nil {
		logger.Warn("failed to write PID file", "error", err)
	}
	defer removePID(cfg)

	fmt.Printf("→ scaley %s (%s)\n", versionString(), cfg.Env)
	fmt.Printf("→ Listening on http://%s\n", srv.Addr())
	fmt.Printf("→ Health:  http://%s/api/health\n", srv.Addr())
	if m != nil {
		fmt.Printf("→ Metrics: http://%s/metrics\n", srv.Addr())
	}
	fmt.Println()

	// The recorder outlives the server so entries from draining requests
	// are still written.
	recCtx, stopRecorder := context.WithCancel(context.WithoutCancel(ctx))
	defer stopRecorder()

	g, gctx := errgroup.WithContext(ctx)
	if rec != nil {
		g.Go(func() error { return rec.Run(recCtx) })
	}
	g.Go(func() error {
		defer stopRecorder()
		return srv.Run(gctx)
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if rec != nil {
		stats := rec.Stats()
		logger.Info("activity recorder stopped", "written", stats.Written, "dropped", stats.Dropped, "failed", stats.Failed)
	}
	return nil
}

// serverConfig maps the loaded configuration onto the HTTP server's.
func serverConfig(cfg *config.Config) server.Config {
	return server.Config{
		Host:             cfg.Server.Host,
		Port:             cfg.Server.Port,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
		MaxBodySize:      cfg.Server.MaxBodySize,
		CORSOrigins:      cfg.Server.CORSOrigins,
		IPAllowlist:      cfg.Server.IPAllowlist,
		TrustProxy:       cfg.Server.TrustProxy,
		RateLimitEnabled: cfg.RateLimit.Enabled,
		RateLimitMax:     cfg.RateLimit.Max,
		RateLimitWindow:  cfg.RateLimit.Window,
		Development:      cfg.IsDevelopment(),
	}
}

// startBackground re-executes the current binary detached from the
// terminal, with output appended to the log file.
func startBackground(cmd *cobra.Command, cfg *config.Config) error {
	if pid, err := readPID(cfg); err == nil && isProcessRunning(pid) {
		return fmt.Errorf("server already running (PID %d)", pid)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	logFile, err := os.OpenFile(logFilePath(cfg), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	args := make([]string, 0, len(os.Args))
	for _, arg := range os.Args[1:] {
		if arg != "--background" {
			args = append(args, arg)
		}
	}

	child := exec.Command(exe, args...)
	child.Stdout = logFile
	child.Stderr = logFile
	setSysProcAttr(child)
	if err := child.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Server started in background (PID %d)\n", child.Process.Pid)
	fmt.Fprintf(cmd.OutOrStdout(), "  Logs: %s\n", logFilePath(cfg))
	return child.Process.Release()
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"checkbook-calc/internal/config"
	"checkbook-calc/internal/desk"
	"checkbook-calc/internal/observability"
	"checkbook-calc/internal/server"
	"checkbook-calc/internal/store"

	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "checkbook-api:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to checkbook.toml")
	flag.Parse()

	ctx := context.Background()

	envFile, err := loadDotEnv()
	if err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	// Logger
	if err := observability.InitLogger(cfg.Observability.LogLevel); err != nil {
		return err
	}
	defer observability.SyncLogger()
	observability.SetServiceName(cfg.Observability.ServiceName)
	if envFile != "" {
		observability.Logger.Info("loaded env file", zap.String("path", envFile))
	}

	// Tracing, metrics and log export
	if cfg.Observability.OTLPEnabled {
		shutdown, err := initTelemetry(ctx)
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer shutdown(context.Background())
	}

	// Storage
	st, err := store.NewFileStore(cfg.Storage.DataDir, store.WithMaxEntries(cfg.Storage.MaxHistoryEntries))
	if err != nil {
		return err
	}
	purgeExpiredHistory(ctx, st)

	// Sessions
	sessions := desk.NewSessions(cfg.SessionTTL(), cfg.SessionCleanup())
	err = observability.RegisterGaugeFunc("checkbook_active_sessions", "Open calculator sessions.", func() float64 {
		return float64(sessions.Len())
	})
	if err != nil {
		return err
	}

	api := desk.NewAPI(st, sessions,
		desk.WithUndoDepth(cfg.Calculator.UndoDepth),
		desk.WithFeedbackDismiss(cfg.FeedbackDismiss()),
	)

	// Router
	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.NewRouter(api),
	}

	errCh := make(chan error, 1)
	go func() {
		observability.Logger.Info("server started",
			zap.String("addr", cfg.Server.Addr),
			zap.String("data_dir", cfg.Storage.DataDir),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	return waitForShutdown(srv, sessions, cfg, errCh)
}

// purgeExpiredHistory applies the stored retention setting once at startup.
func purgeExpiredHistory(ctx context.Context, st store.Store) {
	settings, err := st.LoadSettings(ctx)
	if err != nil {
		observability.Logger.Warn("loading settings failed, using defaults", zap.Error(err))
		settings = store.DefaultSettings()
	}

	removed, err := st.PurgeOlderThan(ctx, settings.RetentionDays)
	if err != nil {
		observability.Logger.Warn("history purge failed", zap.Error(err))
		return
	}
	if removed > 0 {
		observability.Logger.Info("expired history purged",
			zap.Int("removed", removed),
			zap.Int("retention_days", settings.RetentionDays),
		)
	}
}

func waitForShutdown(srv *http.Server, sessions *desk.Sessions, cfg *config.Config, errCh <-chan error) error {

	stop := make(chan os.Signal, 1)

	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
	case err := <-errCh:
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()

	observability.Logger.Info("shutting down")

	err := srv.Shutdown(ctx)

	// Idle sessions may expire on their own within the timeout; Close evicts
	// whatever is left. Eviction flushes each desk's pending history writes.
	if serr := sessions.Shutdown(ctx); serr != nil && !errors.Is(serr, context.DeadlineExceeded) {
		err = errors.Join(err, serr)
	}
	if cerr := sessions.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	return err
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fxlab/dashsync/internal/api"
	"github.com/fxlab/dashsync/internal/cache"
	"github.com/fxlab/dashsync/internal/config"
	"github.com/fxlab/dashsync/internal/connection"
	"github.com/fxlab/dashsync/internal/database"
	"github.com/fxlab/dashsync/internal/model"
	"github.com/fxlab/dashsync/internal/notify"
	"github.com/fxlab/dashsync/internal/recorder"
	"github.com/fxlab/dashsync/internal/router"
	"github.com/fxlab/dashsync/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/dashsyncd.yaml", "path to config file")
	healthAddr := flag.String("health", ":8091", "health endpoint listen address, empty to disable")
	flag.Parse()

	// .env is optional; config expansion reads the environment.
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting dashsyncd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"pair", cfg.Instance.Pair,
		"api_url", cfg.API.BaseURL,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	apiClient := api.NewClient(
		cfg.API.BaseURL,
		api.StaticToken(cfg.API.Token),
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
	)

	mgrCfg := connection.DefaultManagerConfig()
	mgrCfg.WSBaseURL = cfg.API.WSBaseURL
	mgrCfg.Token = cfg.API.Token
	mgrCfg.ReconnectInterval = cfg.Connection.ReconnectInterval
	mgrCfg.MaxAttempts = cfg.Connection.MaxAttempts
	mgrCfg.PingInterval = cfg.Connection.PingInterval
	mgrCfg.PingTimeout = cfg.Connection.PingTimeout
	mgrCfg.WriteTimeout = cfg.Connection.WriteTimeout

	mgr := connection.NewManager(mgrCfg, nil, logger)
	defer mgr.Close()

	store := cache.New(cache.DefaultConfig(), nil, logger)
	defer store.Close()

	// Waking from a suspend reconnects channels and distrusts the cache.
	mgr.OnWake(store.MarkAllStale)

	hupCh := make(chan os.Signal, 1)
	signal.Notify(hupCh, syscall.SIGHUP)
	go func() {
		for range hupCh {
			logger.Info("received SIGHUP, forcing resync")
			mgr.Wake()
		}
	}()

	// Dashboard push channel and its handler wiring.
	dashRouter := router.New(logger.With("channel", "dashboard"))
	registerPush[model.Rate](dashRouter, store, router.TypeRateUpdate, model.DomainRate)
	registerPush[model.Signal](dashRouter, store, router.TypeSignalUpdate, model.DomainSignal)
	registerPush[[]model.Prediction](dashRouter, store, router.TypePredictionUpdate, model.DomainPredictions)
	// A new alert is an event, not a snapshot of the active-alerts list;
	// invalidate so the next poll refetches the full list.
	dashRouter.Register(router.TypeAlertCreated, func(router.Envelope) {
		store.Invalidate(model.DomainAlerts)
	})

	dispatcher := notify.NewDispatcher(logSink(logger), logger)
	dispatcher.SetPermission(true)
	if cfg.Notifications.Enabled {
		dispatcher.Enable()
	}
	dispatcher.Attach(dashRouter)

	var rec *recorder.Recorder
	if cfg.Database.Enabled() {
		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Name,
		)
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		rec = recorder.New(cfg.Recorder, pool, logger)
		rec.Attach(dashRouter)
		if err := rec.Start(ctx); err != nil {
			logger.Error("failed to start recorder", "error", err)
			os.Exit(1)
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			rec.Stop(stopCtx)
		}()
	}

	dash, err := mgr.Open("dashboard")
	if err != nil {
		logger.Error("failed to open dashboard channel", "error", err)
		os.Exit(1)
	}
	defer dash.Close()
	dash.OnMessage(dashRouter.Dispatch)
	dash.OnStateChange(func(st connection.State) {
		logger.Info("dashboard channel state",
			"status", st.Status,
			"attempt", st.Attempt,
			"error", st.LastErr,
		)
	})

	if err := startPollers(store, apiClient, cfg); err != nil {
		logger.Error("failed to start pollers", "error", err)
		os.Exit(1)
	}

	var healthServer *http.Server
	if *healthAddr != "" {
		healthServer = &http.Server{
			Addr:    *healthAddr,
			Handler: createHealthHandler(mgr, store, dashRouter, rec),
		}
		go func() {
			logger.Info("starting health server", "addr", *healthAddr)
			if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
				logger.Error("health server error", "error", err)
			}
		}()
	}

	logger.Info("dashsyncd running",
		"instance_id", cfg.Instance.ID,
		"pair", cfg.Instance.Pair,
	)

	<-ctx.Done()

	logger.Info("shutting down...")

	if healthServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		healthServer.Shutdown(shutdownCtx)
	}

	logger.Info("dashsyncd stopped")
}

// registerPush wires one push type into the cache store's write path.
func registerPush[T any](rt *router.Router, store *cache.Store, t router.MessageType, domain string) {
	rt.Register(t, func(env router.Envelope) {
		value, err := router.Decode[T](env)
		if err != nil {
			slog.Warn("bad push payload", "type", t, "error", err)
			return
		}
		store.ApplyPush(domain, value, env.Timestamp)
	})
}

// logSink is the headless notification sink.
func logSink(logger *slog.Logger) notify.Sink {
	return notify.SinkFunc(func(title, body string) error {
		logger.Info("ALERT", "title", title, "body", body)
		return nil
	})
}

// startPollers registers every dashboard domain with its fetcher.
func startPollers(store *cache.Store, client *api.Client, cfg *config.Config) error {
	pair := cfg.Instance.Pair

	pollers := []struct {
		domain string
		cfg    config.DomainConfig
		fetch  cache.FetchFunc
	}{
		{model.DomainRate, cfg.Domains.Rate, func(ctx context.Context) (any, time.Time, error) {
			rate, err := client.GetCurrentRate(ctx, pair)
			return rate, rate.Timestamp, err
		}},
		{model.DomainSignal, cfg.Domains.Signal, func(ctx context.Context) (any, time.Time, error) {
			sig, err := client.GetCurrentSignal(ctx, pair)
			return sig, sig.GeneratedAt, err
		}},
		{model.DomainPredictions, cfg.Domains.Predictions, func(ctx context.Context) (any, time.Time, error) {
			preds, err := client.GetLatestPredictions(ctx, pair)
			return preds, time.Time{}, err
		}},
		{model.DomainAlerts, cfg.Domains.Alerts, func(ctx context.Context) (any, time.Time, error) {
			alerts, err := client.GetActiveAlerts(ctx)
			return alerts, time.Time{}, err
		}},
		{model.DomainRisk, cfg.Domains.Risk, func(ctx context.Context) (any, time.Time, error) {
			risk, err := client.GetRiskMetrics(ctx, pair)
			return risk, risk.CalculatedAt, err
		}},
		{model.DomainDataStatus, cfg.Domains.DataStatus, func(ctx context.Context) (any, time.Time, error) {
			status, err := client.GetDataStatus(ctx)
			return status, time.Time{}, err
		}},
	}

	for _, p := range pollers {
		if err := store.StartPolling(p.domain, p.fetch, p.cfg.PollInterval, p.cfg.StaleAfter); err != nil {
			return err
		}
	}
	return nil
}

// createHealthHandler creates the HTTP handler for health checks.
func createHealthHandler(mgr *connection.Manager, store *cache.Store, rt *router.Router, rec *recorder.Recorder) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		mgrStats := mgr.Stats()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		health.Components["connections"] = mgrStats
		if mgrStats.Connected == 0 {
			health.Status = "degraded"
		}
		health.Components["cache"] = store.Stats()
		health.Components["router"] = rt.Stats()
		if rec != nil {
			health.Components["recorder"] = rec.Stats()
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}

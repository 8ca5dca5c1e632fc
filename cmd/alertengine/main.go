package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"pricewatch/config"
	"pricewatch/internal/api"
	"pricewatch/internal/engine"
	"pricewatch/internal/feed"
	"pricewatch/internal/indicator"
	"pricewatch/internal/logger"
	"pricewatch/internal/metrics"
	"pricewatch/internal/model"
	"pricewatch/internal/notification"
	"pricewatch/internal/registry"
	redisstore "pricewatch/internal/store/redis"
	sqlitestore "pricewatch/internal/store/sqlite"
)

func main() {
	cfg := config.Load()
	log := logger.Init("alertengine", logger.ParseLevel(cfg.LogLevel))
	log.Info("starting", "feed_mode", cfg.FeedMode, "tick_interval", cfg.TickInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Durable alert store ----
	os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755)
	sqlStore, err := sqlitestore.New(sqlitestore.Config{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Error("sqlite init failed", "err", err)
		os.Exit(1)
	}
	defer sqlStore.Close()

	reg := registry.New()
	if alerts, err := sqlStore.LoadAlerts(ctx); err != nil {
		log.Error("alert restore failed", "err", err)
		os.Exit(1)
	} else {
		reg.Restore(alerts)
		log.Info("alerts restored", "count", len(alerts))
	}

	// ---- Indicator store, seeded from Redis when configured ----
	store := indicator.NewStore(cfg.WindowCapacity)

	var redisStore *redisstore.Store
	if cfg.RedisAddr != "" {
		redisStore, err = redisstore.New(redisstore.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			log.Warn("redis init failed, continuing without series snapshots", "err", err)
			redisStore = nil
		}
	}
	if redisStore != nil {
		restored := 0
		for _, asset := range reg.ListActiveAssets() {
			samples, err := redisStore.LoadSeries(ctx, asset)
			if err != nil {
				log.Warn("series restore failed", "asset", asset, "err", err)
				continue
			}
			if len(samples) > 0 {
				store.RestoreSeries(asset, samples)
				restored++
			}
		}
		log.Info("series restored", "assets", restored)
		defer redisStore.Close()
	}

	// ---- Price feed ----
	var priceFeed feed.PriceFeed
	switch cfg.FeedMode {
	case "ws":
		if cfg.FeedWSURL == "" {
			log.Error("FEED_WS_URL required in ws mode")
			os.Exit(1)
		}
		sf := feed.NewStreamFeed(cfg.FeedWSURL, log)
		go sf.Run(ctx)
		priceFeed = sf
	default:
		priceFeed = feed.NewRESTFeed(cfg.FeedURL)
	}

	// ---- Notification sinks ----
	sinks := notification.Multi{notification.NewLogSink()}
	if cfg.TelegramBotToken != "" {
		sinks = append(sinks, notification.NewTelegramSink(cfg.TelegramBotToken))
	}
	if cfg.WebhookURL != "" {
		sinks = append(sinks, notification.NewWebhookSink(cfg.WebhookURL))
	}
	if redisStore != nil {
		sinks = append(sinks, notification.NewRedisSink(redisStore.Client()))
	}
	log.Info("notification sinks ready", "count", len(sinks))

	// ---- Engine ----
	met := metrics.New()
	eval := engine.NewEvaluator(reg, store, priceFeed, sinks, met, log, engine.EvaluatorOptions{
		Workers:     cfg.Workers,
		FeedTimeout: cfg.FeedTimeout,
	})
	sched := engine.NewScheduler(cfg.TickInterval, engine.RealClock{}, eval, met, log)
	sched.Start(ctx)

	// ---- Periodic durable flush ----
	go func() {
		ticker := time.NewTicker(cfg.FlushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				flush(ctx, log, sqlStore, redisStore, reg, store)
			}
		}
	}()

	// ---- Metrics server ----
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", met.Handler())
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}
	go func() {
		log.Info("metrics server listening", "addr", cfg.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", "err", err)
		}
	}()

	// ---- Intake API ----
	apiSrv := &http.Server{
		Addr:    cfg.APIAddr,
		Handler: api.NewServer(reg, log).Router(),
	}
	go func() {
		log.Info("api server listening", "addr", cfg.APIAddr)
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("api server failed", "err", err)
		}
	}()

	<-sigCh
	log.Info("shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	apiSrv.Shutdown(shutdownCtx)
	metricsSrv.Shutdown(shutdownCtx)
	sched.Stop()

	flush(shutdownCtx, log, sqlStore, redisStore, reg, store)
	log.Info("shutdown complete")
}

// flush persists the registry snapshot to SQLite and the price series to
// Redis so a restart resumes with full alert state and indicator history.
func flush(ctx context.Context, log *slog.Logger, sqlStore *sqlitestore.Store,
	redisStore *redisstore.Store, reg *registry.Registry, store *indicator.Store) {

	snapshot := reg.Snapshot()
	if err := sqlStore.SaveAlerts(ctx, snapshot); err != nil {
		log.Warn("alert flush failed", "err", err)
	} else {
		log.Info("alerts flushed", "count", len(snapshot))
	}

	if redisStore == nil {
		return
	}
	series := make(map[string][]model.Sample, 16)
	for _, asset := range store.Assets() {
		if samples := store.SnapshotSeries(asset); len(samples) > 0 {
			series[asset] = samples
		}
	}
	if err := redisStore.SaveAllSeries(ctx, series); err != nil {
		log.Warn("series flush failed", "err", err)
	}
}

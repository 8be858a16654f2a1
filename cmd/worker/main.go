package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rollcall/internal/attendance"
	"rollcall/internal/changefeed"
	"rollcall/internal/config"
	"rollcall/internal/history"
	"rollcall/internal/metrics"
	"rollcall/internal/model"
	"rollcall/internal/roster"
	"rollcall/internal/store"
	"rollcall/pkg/logging"
)

// refreshEvery batches bursts of change events into one dashboard rebuild.
const refreshEvery = 2 * time.Second

// historySource joins the attendance and roster repositories into a
// history.Source.
type historySource struct {
	*attendance.Repository
	people *roster.Repository
}

func (s historySource) ListPeople(ctx context.Context) ([]model.Person, error) {
	return s.people.ListPeople(ctx)
}

// Worker follows the change feed and keeps the cached dashboards fresh.
func main() {
	cfg := config.Load()
	logging.SetupWithLevel(logging.ParseLevel(cfg.LogLevel))

	if err := run(cfg); err != nil {
		slog.Error("worker failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.App) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.FeedBackend == "memory" {
		return errors.New("the worker needs FEED_BACKEND=redis; an in-memory feed never leaves the api process")
	}

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	svc := history.NewService(
		historySource{attendance.NewRepository(db.Client, nil), roster.NewRepository(db.Client)},
		history.NewRedisCache(redisClient.Client, "", cfg.DashboardCacheTTL),
		cfg.Location,
	)

	events, err := changefeed.NewRedis(redisClient.Client, "").Subscribe(ctx, "")
	if err != nil {
		return err
	}

	go serveMetrics(ctx, cfg.MetricsPort)

	refresh(ctx, svc)
	slog.Info("worker started, waiting for changes")

	ticker := time.NewTicker(refreshEvery)
	defer ticker.Stop()
	dirty := false
	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped")
			return nil
		case evt, ok := <-events:
			if !ok {
				return errors.New("change feed closed")
			}
			metrics.FeedEvents.WithLabelValues(string(evt.Type)).Inc()
			dirty = true
		case <-ticker.C:
			if dirty {
				dirty = false
				refresh(ctx, svc)
			}
		}
	}
}

func refresh(ctx context.Context, svc *history.Service) {
	start := time.Now()
	err := svc.Refresh(ctx)
	metrics.DashboardRefreshes.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		slog.Warn("dashboard refresh failed", "error", err)
		return
	}
	slog.Debug("dashboards refreshed", "duration_ms", time.Since(start).Milliseconds())
}

func serveMetrics(ctx context.Context, port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Warn("metrics server failed", "error", err)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rollcall/internal/attendance"
	"rollcall/internal/auth"
	"rollcall/internal/changefeed"
	"rollcall/internal/config"
	"rollcall/internal/handler"
	"rollcall/internal/history"
	"rollcall/internal/httpmiddleware"
	"rollcall/internal/model"
	"rollcall/internal/roster"
	"rollcall/internal/search"
	"rollcall/internal/settings"
	"rollcall/internal/store"
	"rollcall/pkg/logging"
)

// historySource joins the attendance and roster repositories into a
// history.Source.
type historySource struct {
	*attendance.Repository
	people *roster.Repository
}

func (s historySource) ListPeople(ctx context.Context) ([]model.Person, error) {
	return s.people.ListPeople(ctx)
}

func main() {
	cfg := config.Load()
	logging.SetupWithLevel(logging.ParseLevel(cfg.LogLevel))

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		slog.Error("http server failed", "error", err)
		os.Exit(1)
	}
}

func runHTTP(cfg config.App) error {
	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// appCtx outlives the signal so pending removals can still be committed
	// while shutting down.
	appCtx, cancelApp := context.WithCancel(context.Background())
	defer cancelApp()

	db, err := store.NewDB(sigCtx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.ApplySchema {
		if err := db.Migrate(sigCtx); err != nil {
			return err
		}
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	var feed changefeed.Feed
	if cfg.FeedBackend == "memory" {
		feed = changefeed.NewInMemory(64)
	} else {
		feed = changefeed.NewRedis(redisClient.Client, "")
	}

	records := attendance.NewRepository(db.Client, feed)
	people := roster.NewRepository(db.Client)

	rosterSvc := roster.NewService(people, search.NewEngine())
	if err := rosterSvc.Sync(sigCtx); err != nil {
		return fmt.Errorf("load roster: %w", err)
	}
	if events, err := feed.Subscribe(appCtx, ""); err != nil {
		slog.Warn("roster will not follow attendance changes", "error", err)
	} else {
		go rosterSvc.Watch(appCtx, events)
	}

	hub := attendance.NewHub(appCtx, records, feed, attendance.WithUndoWindow(cfg.UndoWindow))
	defer hub.Close()

	historySvc := history.NewService(
		historySource{records, people},
		history.NewRedisCache(redisClient.Client, "", cfg.DashboardCacheTTL),
		cfg.Location,
	)
	if events, err := feed.Subscribe(appCtx, ""); err != nil {
		slog.Warn("dashboards will not follow attendance changes", "error", err)
	} else {
		go historySvc.Watch(appCtx, events)
	}

	tokens := auth.NewTokens(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
	h := handler.New(
		auth.NewGate(auth.NewConfigRepository(db.Client), tokens),
		tokens,
		hub,
		records,
		rosterSvc,
		historySvc,
		settings.New(settings.NewRedisBackend(redisClient.Client, "")),
	)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger("/healthz", "/metrics"))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin, httpmiddleware.ByClientIP).Middleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Healthy(c.Request.Context())
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})
	h.Register(r, httpmiddleware.NewTokenBucket(0, cfg.SessionRateLimitPerMin, httpmiddleware.BySession).Middleware())

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "port", cfg.HTTPPort, "feed", cfg.FeedBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-sigCtx.Done():
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("server forced shutdown", "error", err)
	}
	slog.Info("server exited")
	return nil
}

// corsMiddleware allows browser clients on any origin.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}

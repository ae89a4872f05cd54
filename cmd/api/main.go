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

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"schoolms/internal/attendance"
	"schoolms/internal/auth"
	"schoolms/internal/config"
	"schoolms/internal/handler"
	"schoolms/internal/httpmiddleware"
	"schoolms/internal/logger"
	"schoolms/internal/marks"
	"schoolms/internal/notify"
	"schoolms/internal/queue"
	"schoolms/internal/sms"
	"schoolms/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, log); err != nil {
		log.Error("http server failed", "error", err)
		os.Exit(1)
	}
}

func runHTTP(cfg config.App, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	notifier, err := buildNotifier(cfg, redisClient, log)
	if err != nil {
		return err
	}

	tracker := attendance.NewTracker(
		attendance.NewRepository(db.Client),
		notifier,
		attendance.LocalMidnight{Loc: loc},
		log.With("component", "attendance"),
	)
	pipeline := marks.NewPipeline(marks.NewRepository(db.Client), log.With("component", "marks"))

	var limiter httpmiddleware.Limiter = httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	if redisClient.Healthy(ctx) {
		limiter = httpmiddleware.Fallback{
			Primary:   httpmiddleware.NewRedisWindow(redisClient.Client, cfg.RateLimitPerMin),
			Secondary: limiter,
			Log:       log,
		}
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:   []string{"Content-Disposition"},
		MaxAge:          24 * time.Hour,
	}))
	r.Use(securityHeaders())
	r.Use(httpmiddleware.RateLimit(limiter, log))

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

	v1 := r.Group("/v1", auth.Bearer(cfg.JWTSigningKey, cfg.JWTIssuer))
	handler.New(tracker, pipeline, loc, cfg.MaxUploadBytes, log).Register(v1,
		auth.RequireRole(auth.RoleDevice, auth.RoleTeacher),
		auth.RequireRole(auth.RoleTeacher),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", srv.Addr, "notifier", cfg.Notifier, "timezone", loc.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server forced shutdown", "error", err)
	}
	log.Info("server exited")
	return nil
}

// buildNotifier picks how guardian messages leave the API: queued for the
// worker, sent inline through the gateway, or only logged.
func buildNotifier(cfg config.App, redisClient *store.Redis, log *slog.Logger) (notify.Notifier, error) {
	switch cfg.Notifier {
	case "queue":
		var q queue.Queue
		if cfg.QueueBackend == "memory" {
			mem := queue.NewInMemory(256)
			go func() {
				// nothing else can read an in-process queue, so drain it here
				_ = notify.NewWorker(mem, notify.NewLogNotifier(log), log).Run(context.Background())
			}()
			q = mem
		} else {
			q = queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
		}
		return notify.NewQueueNotifier(q), nil
	case "sms":
		return notify.NewSMSNotifier(sms.New(cfg.SMS.BaseURL, cfg.SMS.Username, cfg.SMS.APIKey, cfg.SMS.SenderID, cfg.SMS.Skip, cfg.SMS.Timeout)), nil
	case "log":
		return notify.NewLogNotifier(log), nil
	default:
		return nil, fmt.Errorf("unknown NOTIFIER %q", cfg.Notifier)
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

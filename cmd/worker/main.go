package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"schoolms/internal/config"
	"schoolms/internal/logger"
	"schoolms/internal/notify"
	"schoolms/internal/queue"
	"schoolms/internal/sms"
	"schoolms/internal/store"
)

// Worker consumes queued guardian notifications and sends them as SMS.
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.QueueBackend != "redis" {
		log.Error("worker needs QUEUE_BACKEND=redis", "queue_backend", cfg.QueueBackend)
		os.Exit(1)
	}
	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		log.Warn("redis not reachable yet, consumer will keep retrying", "addr", cfg.RedisAddr)
	}

	gateway := sms.New(cfg.SMS.BaseURL, cfg.SMS.Username, cfg.SMS.APIKey, cfg.SMS.SenderID, cfg.SMS.Skip, cfg.SMS.Timeout)
	if !cfg.SMS.Skip {
		if err := gateway.Health(ctx); err != nil {
			log.Warn("sms gateway not available", "error", err)
		} else {
			log.Info("sms gateway connected")
		}
	}

	q := queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
	w := notify.NewWorker(q, notify.NewSMSNotifier(gateway), log.With("component", "worker"))

	log.Info("worker started, waiting for messages", "queue", cfg.QueueKey)
	if err := w.Run(ctx); err != nil {
		log.Error("worker failed", "error", err)
		os.Exit(1)
	}
	log.Info("worker stopped")
}

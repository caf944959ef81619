package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/harentsoaR/consultation-api/internal/app"
	"github.com/harentsoaR/consultation-api/internal/config"
	"github.com/harentsoaR/consultation-api/internal/metrics"
	"github.com/harentsoaR/consultation-api/internal/queue"
	"github.com/harentsoaR/consultation-api/internal/services"
)

// Mailer consumes notification jobs published with NOTIFY_MODE=queue and
// delivers them over SMTP.
func main() {
	cfg, err := config.LoadMailer()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logger := app.NewLogger(cfg.Env)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Shutdown signal received")
		cancel()
	}()

	mailer, err := services.NewMailNotifier(services.MailConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.EmailUser,
		Password: cfg.EmailPass,
	}, logger)
	if err != nil {
		logger.Fatal("SMTP client init failed", zap.Error(err))
	}

	client := queue.NewRedisClient(cfg.RedisAddr)
	defer client.Close()
	q := queue.NewRedisQueue(client, cfg.NotifyQueueKey)

	messages, err := q.Consume(ctx)
	if err != nil {
		logger.Fatal("Queue consume init failed", zap.Error(err), zap.String("redis", cfg.RedisAddr))
	}

	admin := metricsServer(":" + cfg.MetricsPort)
	go func() {
		if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		_ = admin.Shutdown(shutdownCtx)
	}()

	logger.Info("Mailer started, waiting for jobs...",
		zap.String("queue", cfg.NotifyQueueKey),
		zap.String("metrics", admin.Addr),
	)
	for msg := range messages {
		// a job in flight finishes even if shutdown starts
		sendCtx, cancelSend := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		err := services.Deliver(sendCtx, msg, mailer)
		cancelSend()
		if err != nil {
			metrics.Notifications.WithLabelValues(msg.Type, "delivery_failed").Inc()
			logger.Warn("Job delivery failed", zap.String("type", msg.Type), zap.Error(err))
			continue
		}
		metrics.Notifications.WithLabelValues(msg.Type, "delivered").Inc()
	}

	logger.Info("Mailer stopped")
}

// metricsServer exposes the delivery counters for scraping.
func metricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

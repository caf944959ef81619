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

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/harentsoaR/consultation-api/internal/app"
	"github.com/harentsoaR/consultation-api/internal/config"
	"github.com/harentsoaR/consultation-api/internal/handlers"
	"github.com/harentsoaR/consultation-api/internal/middleware"
	"github.com/harentsoaR/consultation-api/internal/queue"
	"github.com/harentsoaR/consultation-api/internal/services"
	"github.com/harentsoaR/consultation-api/internal/store"
	"github.com/harentsoaR/consultation-api/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := app.NewLogger(cfg.Env)
	defer logger.Sync()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func run(cfg config.App, logger *zap.Logger) error {
	// --- Store ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.Close(closeCtx); err != nil {
			logger.Warn("Store close failed", zap.Error(err))
		}
	}()

	checks := map[string]handlers.CheckFunc{"store": st.Ping}

	// --- Notifier ---
	notifier, shutdownNotifier, err := buildNotifier(cfg, logger, checks)
	if err != nil {
		return err
	}
	defer shutdownNotifier()

	// --- Services ---
	tokens := utils.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
	auth := services.NewAuthService(st, st, tokens, services.AuthConfig{
		AllowedDomains: cfg.AllowedDomains,
		BcryptCost:     cfg.BcryptCost,
	}, logger)
	h := handlers.NewHandler(handlers.Services{
		Auth:      auth,
		Bookings:  services.NewBookingService(st, notifier, logger),
		Directory: services.NewDirectoryService(st),
		Profiles:  services.NewProfileService(st, auth, logger),
	}, checks, logger)

	// --- Gin Router ---
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger, "/healthz", "/metrics"))
	r.Use(middleware.SecurityHeaders())
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))

	r.GET("/", h.Root)
	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limiter := middleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	h.Routes(r.Group("/api/v1"), middleware.AuthMiddleware(auth), limiter.Limit())

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server",
			zap.String("port", cfg.Port),
			zap.String("store", cfg.StoreBackend),
			zap.String("notify_mode", cfg.NotifyMode),
			zap.Bool("mail_enabled", cfg.MailEnabled()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server forced shutdown", zap.Error(err))
	}
	logger.Info("Server exited")
	return nil
}

func openStore(ctx context.Context, cfg config.App, logger *zap.Logger) (store.Store, error) {
	switch cfg.StoreBackend {
	case "memory":
		logger.Warn("Using in-memory store, data is lost on restart")
		return store.NewMemory(), nil

	case "postgres":
		pg, err := store.ConnectPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		var migrator *app.Migrator
		if cfg.MigrationsDir != "" {
			migrator, err = app.NewMigrator(pg.Pool(), nil, cfg.MigrationsDir, logger)
		} else {
			migrator, err = app.NewMigrator(pg.Pool(), store.Migrations, "migrations", logger)
		}
		if err != nil {
			pg.Close(ctx)
			return nil, err
		}
		defer migrator.Close()
		if err := migrator.Run(ctx); err != nil {
			pg.Close(ctx)
			return nil, err
		}
		logger.Info("Successfully connected to PostgreSQL!")
		return pg, nil

	default:
		m, err := store.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		logger.Info("Successfully connected to MongoDB!", zap.String("database", cfg.MongoDatabase))
		return m, nil
	}
}

// buildNotifier resolves the notifier once at startup. The returned func flushes
// pending deliveries and releases connections.
func buildNotifier(cfg config.App, logger *zap.Logger, checks map[string]handlers.CheckFunc) (services.Notifier, func(), error) {
	if !cfg.MailEnabled() {
		logger.Warn("EMAIL_USER/EMAIL_PASS not set, notifications disabled")
		return services.NoopNotifier{}, func() {}, nil
	}

	if cfg.NotifyMode == "queue" {
		client := queue.NewRedisClient(cfg.RedisAddr)
		q := queue.NewRedisQueue(client, cfg.NotifyQueueKey)
		checks["redis"] = func(ctx context.Context) error {
			if !q.Healthy(ctx) {
				return errors.New("redis unreachable")
			}
			return nil
		}
		return services.NewQueueNotifier(q), func() { _ = client.Close() }, nil
	}

	mailer, err := services.NewMailNotifier(services.MailConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.EmailUser,
		Password: cfg.EmailPass,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	if cfg.NotifyMode == "inline" {
		return mailer, func() {}, nil
	}
	async := services.NewAsyncNotifier(mailer, 30*time.Second, logger)
	return async, async.Wait, nil
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}

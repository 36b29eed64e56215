package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/JonMunkholm/csvshare/internal/catalog"
	"github.com/JonMunkholm/csvshare/internal/config"
	"github.com/JonMunkholm/csvshare/internal/contentstore"
	"github.com/JonMunkholm/csvshare/internal/core"
	"github.com/JonMunkholm/csvshare/internal/logging"
	"github.com/JonMunkholm/csvshare/internal/mail"
	"github.com/JonMunkholm/csvshare/internal/web"
	"github.com/JonMunkholm/csvshare/internal/web/middleware"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration loaded", "config", cfg.String())

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"content_dir", cfg.Upload.ContentDir,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	if cfg.Database.AutoMigrate {
		if err := catalog.Migrate(cfg.Database.URL, slog.Default()); err != nil {
			slog.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
	}

	// Parse and configure connection pool
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		slog.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	ctx := context.Background()
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	content, err := contentstore.New(cfg.Upload.ContentDir)
	if err != nil {
		slog.Error("failed to open content store", "dir", cfg.Upload.ContentDir, "error", err)
		os.Exit(1)
	}
	slog.Info("content store ready", "dir", content.Dir())

	sender, err := newSender(cfg.Mail)
	if err != nil {
		slog.Error("failed to configure mail", "error", err)
		os.Exit(1)
	}

	service, err := core.NewService(catalog.NewPostgresStore(pool), content, sender, core.Options{
		MaxFileSize:         cfg.Upload.MaxFileSize,
		FrontendURL:         cfg.Share.FrontendURL,
		SharePath:           cfg.Share.LinkPath,
		MaxConcurrentWrites: cfg.Upload.MaxConcurrent,
		MaxWriteWait:        cfg.Upload.MaxWaitTime,
	})
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	limiters, closeLimiters, err := newLimiters(ctx, cfg.Rate)
	if err != nil {
		slog.Error("failed to configure rate limiting", "error", err)
		os.Exit(1)
	}
	defer closeLimiters()

	server := web.NewServer(service, cfg, limiters)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := service.Limiter().Status(); status.Active > 0 {
			slog.Info("waiting for content writes to complete", "active", status.Active)
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}

// newSender selects SMTP delivery, or logging when no relay is configured.
func newSender(cfg config.MailConfig) (mail.Sender, error) {
	from := mail.Address{Name: cfg.FromName, Address: cfg.From}
	if cfg.Host == "" {
		slog.Warn("SMTP_HOST not set, share emails will only be logged")
		return mail.NewLogSender(from, slog.Default()), nil
	}
	return mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		Secure:   cfg.Secure,
		From:     from,
		Timeout:  cfg.Timeout,
	})
}

// newLimiters builds the API and write limiters. Redis is used when an
// address is configured, process memory otherwise.
func newLimiters(ctx context.Context, cfg config.RateLimitConfig) (web.Limiters, func(), error) {
	if !cfg.Enabled {
		slog.Warn("rate limiting disabled")
		return web.Limiters{}, func() {}, nil
	}

	if cfg.RedisAddr == "" {
		api := middleware.NewMemoryLimiter(cfg.RequestsPerMinute, time.Minute)
		writes := middleware.NewMemoryLimiter(cfg.UploadLimit, time.Minute)
		return web.Limiters{API: api, Writes: writes}, func() {
			api.Close()
			writes.Close()
		}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return web.Limiters{}, nil, err
	}

	api, err := middleware.NewRedisLimiter(client, cfg.RedisPrefix, cfg.RequestsPerMinute, time.Minute)
	if err != nil {
		client.Close()
		return web.Limiters{}, nil, err
	}
	writes, err := middleware.NewRedisLimiter(client, cfg.RedisPrefix, cfg.UploadLimit, time.Minute)
	if err != nil {
		client.Close()
		return web.Limiters{}, nil, err
	}

	slog.Info("rate limiting backed by redis", "addr", cfg.RedisAddr)
	return web.Limiters{API: api, Writes: writes}, func() { client.Close() }, nil
}

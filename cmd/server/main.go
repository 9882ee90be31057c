package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"docvault/internal/app"
	"docvault/internal/config"
	"docvault/internal/notify"
	"docvault/internal/server"
	"docvault/internal/util"
	"docvault/pkg/storage"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	sessionTTL, err := config.ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		log.Fatalf("failed to parse session TTL: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	objects, err := buildObjectStore(cfg)
	if err != nil {
		log.Fatalf("failed to init object store: %v", err)
	}
	notifier, err := buildNotifier(cfg)
	if err != nil {
		log.Fatalf("failed to init notifier: %v", err)
	}

	appCore, err := app.New(app.Config{
		DatabaseURL: cfg.DatabaseURL,
		JWTSecret:   cfg.JWTSecret,
		SessionTTL:  sessionTTL,
		Objects:     objects,
		Notifier:    notifier,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer, err := server.New(server.Config{
		App:                        appCore,
		RedisAddr:                  cfg.RedisAddr,
		RedisPassword:              cfg.RedisPassword,
		MaxUploadBytes:             cfg.MaxUploadBytes,
		VerifyRateLimitPerMinute:   cfg.VerifyRateLimitPerMinute,
		RequestRateLimitPerMinute:  cfg.RequestRateLimitPerMinute,
		ValidateRateLimitPerMinute: cfg.ValidateRateLimitPerMinute,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("docvault server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}

func buildObjectStore(cfg config.FileConfig) (storage.ObjectStore, error) {
	if cfg.BlobBackend == "b2" {
		return storage.NewB2Gateway(storage.B2Config{
			AuthBaseURL: cfg.B2AuthURL,
			KeyID:       cfg.B2KeyID,
			AppKey:      cfg.B2AppKey,
			BucketID:    cfg.B2BucketID,
			BucketName:  cfg.B2BucketName,
		})
	}
	return storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
}

func buildNotifier(cfg config.FileConfig) (notify.Notifier, error) {
	switch cfg.NotifyBackend {
	case "redis":
		return notify.NewRedisStreamNotifier(notify.RedisStreamConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			Stream:   cfg.NotifyStream,
		})
	case "amqp":
		return notify.NewAMQPNotifier(cfg.AMQPURL, cfg.AMQPQueue)
	default:
		return notify.LogNotifier{}, nil
	}
}

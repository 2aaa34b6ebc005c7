package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"time"

	"bloodlink/internal/app"
	"bloodlink/internal/config"
	"bloodlink/internal/notify"
	"bloodlink/internal/server"
	"bloodlink/internal/util"
	"bloodlink/pkg/geo"
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

	trustedProxies, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}

	alertQueue, err := notify.NewRedisAlertQueue(notify.RedisAlertConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		Stream:   cfg.AlertStream,
	})
	if err != nil {
		log.Fatalf("failed to init alert queue: %v", err)
	}

	var geocoderOpts []geo.GeocoderOption
	if cfg.GeocoderBaseURL != "" {
		geocoderOpts = append(geocoderOpts, geo.WithBaseURL(cfg.GeocoderBaseURL))
	}

	appCore, err := app.New(app.Config{
		DatabaseURL:   cfg.DatabaseURL,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		SessionTTL:    sessionTTL,
		JWTSecret:     cfg.JWTSecret,
		Geocoder:      geo.NewGeocoder(geocoderOpts...),
		Alerts:        alertQueue,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	if cfg.AdminEmail != "" {
		if err := appCore.EnsureAdmin(cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			log.Fatalf("failed to seed admin: %v", err)
		}
	}

	worker := notify.NewWorker(notify.WorkerConfig{
		Store:       appCore.Store(),
		Queue:       alertQueue,
		RadiusKm:    cfg.AlertRadiusKm,
		Concurrency: cfg.AlertWorkers,
	})
	worker.Start(context.Background())

	httpServer, err := server.New(server.Config{
		App:                      appCore,
		RedisAddr:                cfg.RedisAddr,
		RedisPassword:            cfg.RedisPassword,
		SignupRateLimitPerMinute: cfg.SignupRateLimitPerMinute,
		LoginRateLimitPerMinute:  cfg.LoginRateLimitPerMinute,
		SearchRateLimitPerMinute: cfg.SearchRateLimitPerMinute,
		TrustedProxies:           trustedProxies,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}

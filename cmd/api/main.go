package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"concierge/api/internal/app"
	"concierge/api/internal/blob"
	"concierge/api/internal/config"
	"concierge/api/internal/email"
	"concierge/api/internal/logging"
	"concierge/api/internal/search"
	"concierge/api/internal/session"
	"concierge/api/internal/store"
)

func main() {
	flags := flag.NewFlagSet("concierge-api", flag.ExitOnError)
	envFile := flags.String("env-file", ".env", "dotenv file to load before reading the environment")
	migrateOnly := flags.Bool("migrate-only", false, "apply database migrations and exit")
	seedOnly := flags.Bool("seed", false, "apply migrations, seed the catalog and admin account, then exit")
	_ = flags.Parse(os.Args[1:])

	cfg := config.Load(*envFile)
	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	log := logrus.StandardLogger()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db); err != nil {
		log.WithError(err).Fatal("migrations failed")
	}
	if *migrateOnly {
		log.Info("migrations applied")
		return
	}

	dataStore := store.NewSQLStore(db)

	var blobs *blob.MinioStore
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		blobs, err = blob.NewMinioStore(blob.Options{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			PublicURL: cfg.MinioPublicURL,
		})
		if err != nil {
			log.WithError(err).Fatal("object storage configuration invalid")
		}
		if err := blobs.EnsureBucket(ctx); err != nil {
			log.WithError(err).Warn("object storage unreachable, uploads will fail until it recovers")
		}
	} else {
		log.Warn("MINIO_ENDPOINT not set, file uploads are disabled")
	}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, log)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, search.NewSQLSearch(dataStore), log)

	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
		AppURL:   cfg.AppURL,
	})
	if !mailer.IsConfigured() {
		log.Info("SMTP not configured, completion emails are disabled")
	}

	deps := app.Dependencies{
		Search: searchService,
		Mailer: mailer,
		Logger: log,
	}
	// A nil *MinioStore must not end up inside the interface.
	if blobs != nil {
		deps.Blobs = blobs
	}

	var service *app.Service
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisStore, err := session.NewRedisStore(cfg.RedisURL, dataStore)
		if err != nil {
			log.WithError(err).Warn("redis unavailable, using the database for refresh tokens")
			service = app.New(cfg, dataStore, deps)
		} else {
			log.Info("using redis for refresh token storage")
			defer redisStore.Close()
			service = app.NewWithSessionStore(cfg, dataStore, redisStore, deps)
		}
	} else {
		log.Info("using the database for refresh token storage")
		service = app.New(cfg, dataStore, deps)
	}

	if err := service.Bootstrap(ctx); err != nil {
		if *seedOnly {
			log.WithError(err).Fatal("seeding failed")
		}
		log.WithError(err).Warn("bootstrap error (will retry on next restart)")
	}
	if *seedOnly {
		log.Info("catalog seeded")
		return
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.Addr).Info("concierge API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("shutdown error")
	}
	service.WaitForNotifications()
}

// Package main runs the taskforge API server.
package main

import (
	"context"
	"database/sql"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	app "github.com/taskforge/taskforge/internal/app"
	"github.com/taskforge/taskforge/internal/app/httpapi"
	"github.com/taskforge/taskforge/internal/app/storage/postgres"
	redisstore "github.com/taskforge/taskforge/internal/app/storage/redis"
	"github.com/taskforge/taskforge/internal/config"
	"github.com/taskforge/taskforge/internal/platform/migrations"
	"github.com/taskforge/taskforge/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (optional)")
	flag.Parse()

	// .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.NewDefault("main").WithError(err).Error("load configuration")
		os.Exit(1)
	}

	log := logger.New(cfg.Logging).WithField("component", "main")

	stores := app.Stores{}
	if cfg.Database.DSN != "" {
		db, err := sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			log.WithError(err).Error("open database")
			os.Exit(1)
		}
		defer db.Close()

		if err := db.Ping(); err != nil {
			log.WithError(err).Error("ping database")
			os.Exit(1)
		}
		if err := migrations.Apply(context.Background(), db); err != nil {
			log.WithError(err).Error("apply migrations")
			os.Exit(1)
		}

		pg := postgres.New(db)
		stores = app.Stores{
			Tx:          pg,
			Users:       pg,
			Projects:    pg,
			Memberships: pg,
			Milestones:  pg,
			Activities:  pg,
			Tasks:       pg,
			Comments:    pg,
			Notes:       pg,
			Attachments: pg,
			History:     pg,
			Tokens:      pg,
		}
		log.Info("using postgres storage")
	} else {
		log.Warn("no database DSN configured; using in-memory storage")
	}

	if cfg.Redis.Addr != "" {
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			log.WithError(err).Error("ping redis")
			os.Exit(1)
		}
		stores.Tokens = redisstore.NewTokenStore(client)
		log.Info("using redis token store")
	}

	application, err := app.New(stores, app.Options{
		AuthSecret:    []byte(cfg.Auth.Secret),
		TokenTTL:      cfg.Auth.TokenTTL.Std(),
		SweepInterval: cfg.Sweep.Interval.Std(),
	}, logger.New(cfg.Logging))
	if err != nil {
		log.WithError(err).Error("build application")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.WithError(err).Error("start application")
		os.Exit(1)
	}

	handler, err := httpapi.NewHandler(application, httpapi.Options{
		AuditFile:      cfg.Audit.File,
		AuditMax:       cfg.Audit.Max,
		CORSOrigins:    cfg.Server.CORSOrigins,
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
		Log:            log,
	})
	if err != nil {
		log.WithError(err).Error("build http handler")
		os.Exit(1)
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.WithError(err).Error("server error")
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("application shutdown")
	}
	log.Info("stopped")
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/rs/zerolog"

	"taskmanager/internal/config"
	"taskmanager/internal/logging"
	"taskmanager/internal/server"
	"taskmanager/internal/storage/mongo"
	"taskmanager/internal/storage/sqlite"
)

// storeCloseTimeout bounds the datastore disconnect after the HTTP server
// has drained.
const storeCloseTimeout = 5 * time.Second

func main() {
	var usageCfg config.Config
	flag.Usage = cleanenv.FUsage(os.Stdout, &usageCfg, nil, flag.Usage)
	flag.Parse()

	cfg, err := config.Read()
	if err != nil {
		fmt.Fprintf(os.Stderr, "read config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Env, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	logger.Info().Str("env", cfg.Env).Str("db_driver", cfg.DB.Driver).Msg("task manager starting")

	store, closeStore, err := openStore(cfg.DB, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("unable to open datastore")
	}

	srv := server.New(store, logger, server.Options{
		CORSOrigins: cfg.HTTP.CORSOrigins(),
		StaticDir:   cfg.Static.Dir,
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           srv.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("starting server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server stopped unexpectedly")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}

	closeCtx, closeCancel := context.WithTimeout(context.Background(), storeCloseTimeout)
	defer closeCancel()

	if err := closeStore(closeCtx); err != nil {
		logger.Error().Err(err).Msg("failed to close datastore")
	}

	logger.Info().Msg("server stopped")
}

// openStore builds the configured repository. Mongo connects in the
// background; until it answers, the availability gate rejects task requests.
func openStore(cfg config.DBConfig, logger zerolog.Logger) (server.TaskStore, func(context.Context) error, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, func(context.Context) error { return store.Close() }, nil
	default:
		store, err := mongo.Open(mongo.Options{
			URI:            cfg.MongoURI,
			Database:       cfg.MongoDatabase,
			ConnectTimeout: cfg.MongoConnectTimeout,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		go func() {
			if err := store.Connect(context.Background()); err != nil {
				logger.Error().Err(err).Msg("mongo connection failed")
			}
		}()
		return store, store.Close, nil
	}
}

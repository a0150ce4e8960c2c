// Command server runs the portfolio backend.
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

	"go.uber.org/zap"

	"portfolio/internal/cache"
	redisc "portfolio/internal/cache/redis"
	"portfolio/internal/config"
	"portfolio/internal/db"
	"portfolio/internal/logger"
	"portfolio/internal/server"
	"portfolio/internal/store"
)

func main() {
	cfg := config.Load()

	log := logger.New(logger.Options{
		Level:      cfg.LogLevel,
		FilePath:   cfg.LogFile,
		FlushEvery: 5 * time.Minute,
	})
	defer log.Close()

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *logger.Logger) error {
	mem := cache.NewMemory(cfg.CacheMaxEntries, cfg.CacheSweepInterval, log)
	defer mem.Stop()

	// The Redis tier connects in the background; an absent socket just
	// leaves the second tier off.
	redisClient := redisc.New(cfg.RedisSocket, log)
	defer redisClient.Close()

	dsn := cfg.DBPath
	if !strings.Contains(dsn, "?") {
		dsn += "?_foreign_keys=on"
	}
	database, err := db.Open(dsn, mem, log, db.Config{
		MaxConns:    cfg.DBMaxConns,
		WaitTimeout: cfg.DBWaitTimeout,
		SlowAfter:   cfg.SlowQueryAfter,
	})
	if err != nil {
		return err
	}
	defer database.Close()

	tiered := cache.NewTiered(mem, redisClient, log)
	st := store.New(database, tiered, cfg.CacheDefaultTTL, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := st.Migrate(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.New(st, tiered, database, log).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}

// Package main is the gateway process: the public HTTP surface that
// accepts uploads and jobs and hands off to the orchestrator.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"cloudcost/internal/cache"
	"cloudcost/internal/config"
	"cloudcost/internal/httpapi"
	"cloudcost/internal/logging"
	"cloudcost/internal/orchestrator"
	"cloudcost/internal/pipeline"
	"cloudcost/internal/store"
)

const version = "1.0.0"

func main() {
	addr := flag.String("addr", ":8080", "Gateway listen address")
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	config.Set(cfg)

	if err := logging.Initialize(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	resultStore, err := getResultStore(cfg)
	if err != nil {
		logging.Fatal("result store unavailable", zap.Error(err))
	}

	uploads := pipeline.NewUploadStore(getCache(cfg))
	jobs := orchestrator.NewMemStore()
	jobService := httpapi.NewJobService(jobs, uploads, resultStore)
	gateway := httpapi.NewGatewayServer(version, jobService)

	server := &http.Server{
		Addr:         *addr,
		Handler:      gateway,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logging.Info("gateway listening", zap.String("addr", *addr), zap.String("version", version))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal("gateway server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info("shutting down gateway")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logging.Fatal("gateway forced to shutdown", zap.Error(err))
	}
	logging.Info("gateway stopped")
}

// getCache builds the layered LRU+Redis cache uploads are staged through.
// The Redis prefix must match cmd/orchestrator's: an upload accepted here
// is read back by the orchestrator's PLANNING stage from a different
// process, so they have to land in the same keyspace. Falls back to LRU
// alone when cfg.Cache.Enabled is false, which also means uploads won't be
// visible to a separately-running orchestrator process.
func getCache(cfg *config.Config) cache.Cache {
	local := cache.NewLRU(cfg.Cache.LocalMaxKeys)
	if !cfg.Cache.Enabled {
		return local
	}
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Cache.RedisAddr,
		DB:   cfg.Cache.RedisDB,
	})
	return cache.NewLayered(local, cache.NewRedis(client, "cloudcost:pipeline"))
}

// getResultStore prefers the durable Postgres-backed immutable result
// store; when the database isn't reachable it falls back to a local
// file-backed store so a single-box deployment still has somewhere to
// persist results, the same degrade-don't-crash posture the teacher's
// own server bootstrap took toward its pricing database.
func getResultStore(cfg *config.Config) (store.Store, error) {
	pg, err := store.NewPostgresStore(cfg.Database)
	if err == nil {
		logging.Info("connected to result store database")
		return pg, nil
	}
	logging.Warn("database not available, falling back to local result store", zap.Error(err))
	return store.NewImmutableResultStore("./data/results")
}

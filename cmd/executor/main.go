// Package main is the plan executor process: a fleet of sandboxed
// Terraform workers draining a shared queue, fronted by an internal HTTP
// API the orchestrator's PLANNING stage submits work to.
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

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cloudcost/internal/config"
	"cloudcost/internal/executor"
	"cloudcost/internal/httpapi"
	"cloudcost/internal/logging"
)

const version = "1.0.0"

func main() {
	addr := flag.String("addr", ":8081", "Executor internal API listen address")
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

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr, DB: cfg.Cache.RedisDB})
	queue := executor.NewRedisQueue(redisClient)
	recordStore := executor.NewRedisStore(redisClient)
	service := executor.NewService(queue, recordStore)

	credentials, err := newCredentialResolver(cfg)
	if err != nil {
		logging.Warn("credential resolver unavailable, executions with a credential_reference will fail", zap.Error(err))
	}

	if err := os.MkdirAll(cfg.Executor.WorkspaceRoot, 0o755); err != nil {
		logging.Fatal("create workspace root", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	group, groupCtx := errgroup.WithContext(ctx)

	concurrency := cfg.Executor.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	for i := 0; i < concurrency; i++ {
		workerConfig := executor.DefaultWorkerConfig(fmt.Sprintf("worker-%d", i), cfg.Executor.WorkspaceRoot)
		workerConfig.TerraformPath = cfg.Executor.TerraformPath
		workerConfig.MaxWorkspaceBytes = cfg.Executor.MaxWorkspaceBytes
		workerConfig.WallClockTimeout = cfg.Executor.WallClockTimeout
		worker := executor.NewWorker(workerConfig, queue, recordStore, credentials)
		group.Go(func() error {
			err := worker.Run(groupCtx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	server := &http.Server{
		Addr:         *addr,
		Handler:      httpapi.NewExecutorServer(service),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	group.Go(func() error {
		logging.Info("executor listening", zap.String("addr", *addr), zap.Int("concurrency", concurrency))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		logging.Info("shutting down executor")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
		cancel()
	}()

	if err := group.Wait(); err != nil {
		logging.Fatal("executor stopped with error", zap.Error(err))
	}
	logging.Info("executor stopped")
}

// newCredentialResolver builds the STS-backed credential resolver workers
// use to exchange a submission's credential_reference for short-lived
// session credentials. The RoleResolver is a static map of role names to
// ARNs, keyed off the single role this deployment is configured to assume;
// a multi-role deployment would back this with a lookup table instead.
func newCredentialResolver(cfg *config.Config) (*executor.CredentialResolver, error) {
	if cfg.Executor.CredentialRoleARN == "" {
		return nil, fmt.Errorf("executor.credential_role_arn not configured")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, fmt.Errorf("load AWS SDK config: %w", err)
	}
	stsClient := sts.NewFromConfig(awsCfg)

	resolve := func(roleName string) (string, error) {
		if roleName != "default" {
			return "", fmt.Errorf("unknown role reference %q", roleName)
		}
		return cfg.Executor.CredentialRoleARN, nil
	}

	return executor.NewCredentialResolver(stsClient, resolve, "cloudcost-executor"), nil
}

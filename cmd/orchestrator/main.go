// Package main is the orchestrator process: it drives every job through
// PLANNING, PARSING, ENRICHING, and COSTING by polling for pending jobs and
// running each one's next stage through the state machine in
// internal/orchestrator, with the actual stage work supplied by
// internal/pipeline.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"cloudcost/core/types"
	"cloudcost/internal/cache"
	"cloudcost/internal/config"
	"cloudcost/internal/costengine"
	"cloudcost/internal/httpapi"
	"cloudcost/internal/logging"
	"cloudcost/internal/metadata"
	"cloudcost/internal/orchestrator"
	"cloudcost/internal/pipeline"
	"cloudcost/internal/pricing"
	"cloudcost/internal/store"
	"cloudcost/internal/usage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	executorURL := flag.String("executor-url", "http://localhost:8081", "Base URL of the plan executor's internal API")
	pollInterval := flag.Duration("poll-interval", 2*time.Second, "How often to scan for pending jobs")
	costCeiling := flag.Float64("cost-ceiling", 0, "Reject a completed result whose expected monthly cost exceeds this many dollars (0 disables the check)")
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
	sharedCache := getCache(cfg, redisClient)

	resultStore, err := getResultStore(cfg)
	if err != nil {
		logging.Fatal("result store unavailable", zap.Error(err))
	}

	metadataRegistry, err := buildMetadataRegistry(sharedCache)
	if err != nil {
		logging.Warn("AWS metadata adapters unavailable, enrichment will pass nodes through unchanged", zap.Error(err))
		metadataRegistry = metadata.NewRegistry()
	}

	usageMgr := usage.NewManager(usage.NewRegistry(), usage.NewEstimatorRegistry(), usage.Config{})

	pricingSource := pricing.NewAWSPricingAPIClient(pricing.DefaultAWSPricingConfig())
	pricingResolver := pricing.NewCatalogResolver(pricingSource, sharedCache)

	var gate *store.Gate
	if *costCeiling > 0 {
		gate = store.NewGate(&store.ThresholdRule{Limit: cfg.Pricing.DefaultCurrency, Max: *costCeiling})
	}

	pipe := pipeline.New(
		httpapi.NewExecutorClient(*executorURL),
		pipeline.NewUploadStore(sharedCache),
		pipeline.NewArtifactStore(sharedCache),
		metadataRegistry,
		usageMgr,
		pricingResolver,
		costengine.New(),
		resultStore,
		gate,
	)

	jobStore := orchestrator.NewMemStore()
	machine := orchestrator.New(jobStore, redisClient, orchestrator.DefaultPolicies())
	machine.RegisterStage(types.StagePlanning, pipe.Plan)
	machine.RegisterStage(types.StageParsing, pipe.Parse)
	machine.RegisterStage(types.StageEnriching, pipe.Enrich)
	machine.RegisterStage(types.StageCosting, pipe.Cost)

	ctx, cancel := context.WithCancel(context.Background())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		logging.Info("shutting down orchestrator")
		cancel()
	}()

	logging.Info("orchestrator polling", zap.Duration("interval", *pollInterval))
	runPollLoop(ctx, jobStore, machine, *pollInterval)
	logging.Info("orchestrator stopped")
}

// runPollLoop scans jobStore for pending jobs every interval, advancing
// each one's next stage (or, for a freshly uploaded job, bumping it into
// PLANNING) in its own goroutine so one slow Terraform plan never blocks
// every other job's progress. Jobs already claimed by another orchestrator
// instance are skipped: Machine.RunStage's distributed lock makes that
// race safe, not just polite.
func runPollLoop(ctx context.Context, jobStore *orchestrator.MemStore, machine *orchestrator.Machine, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pending, err := jobStore.ListPending(ctx)
			if err != nil {
				logging.Error("list pending jobs", zap.Error(err))
				continue
			}
			for _, job := range pending {
				go advance(ctx, jobStore, machine, job)
			}
		}
	}
}

// advance runs one pending job's next step: UPLOADED jobs are bumped into
// PLANNING (the one transition RunStage itself never performs, since
// nothing has run yet to guard), every other non-terminal state maps
// directly onto the stage whose expected state it is.
func advance(ctx context.Context, jobStore *orchestrator.MemStore, machine *orchestrator.Machine, job *types.Job) {
	var stage types.StageName
	switch job.CurrentState {
	case types.JobStateUploaded:
		bumpToPlanning(ctx, jobStore, job)
		return
	case types.JobStatePlanning:
		stage = types.StagePlanning
	case types.JobStateParsing:
		stage = types.StageParsing
	case types.JobStateEnriching:
		stage = types.StageEnriching
	case types.JobStateCosting:
		stage = types.StageCosting
	default:
		return
	}

	if err := machine.RunStage(ctx, job.JobID, stage); err != nil {
		logging.Error("stage run failed",
			zap.String("job_id", job.JobID),
			zap.String("stage", string(stage)),
			zap.Error(err))
	}
}

func bumpToPlanning(ctx context.Context, jobStore *orchestrator.MemStore, job *types.Job) {
	job.PreviousState = job.CurrentState
	job.CurrentState = types.JobStatePlanning
	job.RefreshProgress()
	if err := jobStore.SaveJob(ctx, job); err != nil {
		logging.Error("bump job to planning", zap.String("job_id", job.JobID), zap.Error(err))
	}
}

// getCache builds the layered LRU+Redis cache shared with cmd/gateway.
// The Redis prefix must match the gateway's: this is how an upload
// accepted by one process becomes visible to the PLANNING stage run by
// another.
func getCache(cfg *config.Config, client *redis.Client) cache.Cache {
	local := cache.NewLRU(cfg.Cache.LocalMaxKeys)
	if !cfg.Cache.Enabled {
		return local
	}
	return cache.NewLayered(local, cache.NewRedis(client, "cloudcost:pipeline"))
}

func getResultStore(cfg *config.Config) (store.Store, error) {
	pg, err := store.NewPostgresStore(cfg.Database)
	if err == nil {
		logging.Info("connected to result store database")
		return pg, nil
	}
	logging.Warn("database not available, falling back to local result store", zap.Error(err))
	return store.NewImmutableResultStore("./data/results")
}

// buildMetadataRegistry wires the EC2, RDS, and ELBv2 enrichment adapters
// against a real AWS SDK config. Any of the three failing to construct is
// not fatal to the process: a registry with fewer adapters just passes
// more resource types through ENRICHING unchanged.
func buildMetadataRegistry(c cache.Cache) (*metadata.Registry, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, fmt.Errorf("load AWS SDK config: %w", err)
	}

	registry := metadata.NewRegistry()
	registry.Register(metadata.NewEC2Adapter(ec2.NewFromConfig(awsCfg), c))
	registry.Register(metadata.NewRDSAdapter(rds.NewFromConfig(awsCfg), c))
	registry.Register(metadata.NewELBv2Adapter(elasticloadbalancingv2.NewFromConfig(awsCfg), c))
	return registry, nil
}

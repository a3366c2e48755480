package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cloudcost/core/types"
	"cloudcost/internal/costengine"
	"cloudcost/internal/errors"
	"cloudcost/internal/executor"
	"cloudcost/internal/interpreter"
	"cloudcost/internal/metadata"
	"cloudcost/internal/pricing"
	"cloudcost/internal/store"
	"cloudcost/internal/usage"
)

const (
	stagePlanDocument = "plan_document"
	stageNRG          = "nrg"
	stageERG          = "erg"
)

// pollInterval governs how often the PLANNING stage polls the executor
// for a submitted plan's terminal status.
const pollInterval = 2 * time.Second

// ExecutorClient is the subset of httpapi.ExecutorClient the PLANNING
// stage needs, kept as an interface here so pipeline doesn't import
// httpapi (which in turn imports pipeline for the gateway's job service).
type ExecutorClient interface {
	Execute(ctx context.Context, jobID string, files []executor.SourceFile, variables map[string]string, credentialReference string) (string, error)
	Status(ctx context.Context, executionID string) (*executor.Record, error)
}

// Pipeline wires the plan interpreter, metadata resolver, usage modeler,
// and cost engine into the four orchestrator.StageFunc-shaped methods
// PLANNING, PARSING, ENRICHING, and COSTING run against. Every stage reads
// its input graph from artifacts and writes its output graph back to
// artifacts, rather than returning it directly, since the orchestrator's
// StageFunc signature carries only the job.
type Pipeline struct {
	executor  ExecutorClient
	uploads   *UploadStore
	artifacts *ArtifactStore
	metadata  *metadata.Registry
	usageMgr  usage.Manager
	pricing   pricing.Resolver
	cost      *costengine.Engine
	results   store.Store
	gate      *store.Gate
}

// New builds a Pipeline from its collaborators. Any of metadata, usageMgr,
// or pricingResolver may legitimately do nothing for a given resource type
// (an adapter-less metadata registry, an estimator-less usage manager) --
// the graph passes through with lower confidence rather than erroring.
func New(
	executorClient ExecutorClient,
	uploads *UploadStore,
	artifacts *ArtifactStore,
	metadataRegistry *metadata.Registry,
	usageMgr usage.Manager,
	pricingResolver pricing.Resolver,
	costEngine *costengine.Engine,
	results store.Store,
	gate *store.Gate,
) *Pipeline {
	return &Pipeline{
		executor:  executorClient,
		uploads:   uploads,
		artifacts: artifacts,
		metadata:  metadataRegistry,
		usageMgr:  usageMgr,
		pricing:   pricingResolver,
		cost:      costEngine,
		results:   results,
		gate:      gate,
	}
}

// Plan runs the PLANNING stage: submit the job's uploaded source files to
// the plan executor, poll until terminal, and store the resulting plan
// document as this job's first pipeline artifact.
func (p *Pipeline) Plan(ctx context.Context, job *types.Job) error {
	files, err := p.uploads.Get(ctx, job.UploadID)
	if err != nil {
		return err
	}

	variables := map[string]string{}
	credentialReference := job.Metadata["credential_reference"]

	executionID, err := p.executor.Execute(ctx, job.JobID, files, variables, credentialReference)
	if err != nil {
		return err
	}
	job.Metadata["execution_id"] = executionID

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		record, err := p.executor.Status(ctx, executionID)
		if err != nil {
			return err
		}
		if record.Status.IsTerminal() {
			if record.Status != executor.StatusCompleted {
				return errors.Wrap(errors.TypeSubprocessFailure, "plan execution did not complete",
					fmt.Errorf("%s: %s", record.Status, record.ErrorMessage))
			}
			if record.PlanDocument == nil {
				return errors.DeterministicTransformFailure("completed execution carries no plan document")
			}
			return p.artifacts.Put(ctx, job.JobID, stagePlanDocument, record.PlanDocument)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Parse runs the PARSING stage: interpret the plan document produced by
// PLANNING into a Normalized Resource Graph.
func (p *Pipeline) Parse(ctx context.Context, job *types.Job) error {
	var doc types.PlanDocument
	if err := p.artifacts.Get(ctx, job.JobID, stagePlanDocument, &doc); err != nil {
		return err
	}

	nrg, _, err := interpreter.Interpret(&doc)
	if err != nil {
		return err
	}
	return p.artifacts.Put(ctx, job.JobID, stageNRG, nrg)
}

// Enrich runs the ENRICHING stage: apply provider metadata adapters to the
// Normalized Resource Graph, producing an Enriched Resource Graph.
func (p *Pipeline) Enrich(ctx context.Context, job *types.Job) error {
	var nrg types.NRG
	if err := p.artifacts.Get(ctx, job.JobID, stageNRG, &nrg); err != nil {
		return err
	}
	nrg.Index()

	erg, err := p.metadata.EnrichGraph(ctx, &nrg)
	if err != nil {
		return err
	}
	return p.artifacts.Put(ctx, job.JobID, stageERG, erg)
}

// Cost runs the COSTING stage: estimate usage, resolve pricing, compute
// the Final Cost Model, gate it, and persist the immutable result.
func (p *Pipeline) Cost(ctx context.Context, job *types.Job) error {
	var erg types.ERG
	if err := p.artifacts.Get(ctx, job.JobID, stageERG, &erg); err != nil {
		return err
	}
	erg.Index()

	region := types.Region(job.Metadata["region"])
	uctx := &usage.Context{
		Profile:  &types.UsageProfile{Name: job.Metadata["usage_profile"]},
		Region:   region,
		Scenario: types.ScenarioExpected,
	}

	uarg, err := p.usageMgr.EstimateAll(ctx, &erg, uctx)
	if err != nil {
		return err
	}

	provider := types.ProviderAWS
	if len(uarg.Nodes) > 0 {
		provider = uarg.Nodes[0].Provider
	}

	snapshot, err := p.pricing.GetSnapshot(ctx, provider, string(region))
	if err != nil {
		return err
	}

	keys := rateKeysFor(uarg)
	prices, err := p.pricing.Resolve(ctx, keys, snapshot)
	if err != nil {
		return err
	}

	fcm, err := p.cost.Compute(ctx, uarg, prices)
	if err != nil {
		return err
	}

	result := types.ImmutableCostResult{
		ResultID:  uuid.NewString(),
		JobID:     job.JobID,
		ProjectID: job.Metadata["project_id"],
		FCM:       *fcm,
		InputHash: job.Metadata["input_hash"],
		CreatedAt: time.Now().UTC(),
	}
	if err := p.results.Create(ctx, result); err != nil {
		return err
	}

	if p.gate != nil {
		if _, err := store.EvaluateGate(ctx, p.results, p.gate, result, "orchestrator"); err != nil {
			return err
		}
	}

	job.ResultReference = result.ResultID
	for _, stage := range []string{stagePlanDocument, stageNRG, stageERG} {
		_ = p.artifacts.Delete(ctx, job.JobID, stage)
	}
	return nil
}

// rateKeysFor derives one RateKey per usage dimension across graph,
// mirroring costengine's own (unexported) derivation so pricing can be
// resolved before Compute is called. The usage label is folded into the
// SKU attribute set for the same reason costengine does it: distinct
// dimensions on one resource must never collide in the pricing result's
// key space.
func rateKeysFor(graph *types.UARG) []types.RateKey {
	var keys []types.RateKey
	for _, node := range graph.Nodes {
		for label := range node.Usage {
			attrs := make(map[string]string, len(node.Attributes)+1)
			for k, v := range node.Attributes {
				attrs[k] = fmt.Sprintf("%v", v.Value)
			}
			attrs["usage_dimension"] = label

			keys = append(keys, types.RateKey{
				Provider:      node.Provider,
				Service:       node.Type,
				ProductFamily: label,
				Region:        string(node.Region),
				Attributes:    attrs,
			})
		}
	}
	return keys
}

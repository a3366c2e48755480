package metadata

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"cloudcost/core/types"
	"cloudcost/internal/cache"
	"cloudcost/internal/retry"
)

// EC2Client is the subset of the EC2 SDK client this adapter calls,
// narrowed so a test can supply a stub without standing up a real client.
type EC2Client interface {
	DescribeInstanceTypes(ctx context.Context, in *ec2.DescribeInstanceTypesInput, opts ...func(*ec2.Options)) (*ec2.DescribeInstanceTypesOutput, error)
	DescribeVolumes(ctx context.Context, in *ec2.DescribeVolumesInput, opts ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error)
}

// EC2Adapter enriches aws_instance nodes with DescribeInstanceTypes data
// and synthesizes the implicit root EBS volume and ENI an instance always
// creates. Grounded on original_source/aws-metadata-resolver/app/adapters/
// ec2.py, reworked against the real AWS SDK instead of boto3 and against
// this module's ERGNode rather than the original's ERGNode schema.
type EC2Adapter struct {
	client EC2Client
	cache  cache.Cache
	policy retry.Policy
}

// NewEC2Adapter creates an adapter backed by client, caching describe
// results in c.
func NewEC2Adapter(client EC2Client, c cache.Cache) *EC2Adapter {
	return &EC2Adapter{client: client, cache: c, policy: retry.DefaultPolicy()}
}

// Handles reports whether resourceType is an EC2 instance.
func (a *EC2Adapter) Handles(resourceType string) bool {
	return resourceType == "aws_instance"
}

type instanceTypeMetadata struct {
	VCPUCount           int32  `json:"vcpu_count"`
	MemoryMiB           int64  `json:"memory_mib"`
	EBSOptimizedDefault bool   `json:"ebs_optimized_default"`
	NetworkPerformance  string `json:"network_performance"`
	CurrentGeneration   bool   `json:"current_generation"`
}

// Enrich fills EnrichedAttributes with the instance type's vCPU, memory,
// and network metadata, fetched once per instance type and cached
// thereafter (the same instance type is shared by every instance of that
// size, so cache hits quickly dominate across a large plan).
func (a *EC2Adapter) Enrich(ctx context.Context, node *types.ERGNode) (*types.ERGNode, error) {
	instanceType, _ := node.Attributes.Get("instance_type").(string)
	if instanceType == "" {
		return node, nil
	}

	key := cache.Key("metadata", "", string(node.Region), "ec2", "instance_type", map[string]string{"type": instanceType})

	if cached, ok, err := a.cache.Get(ctx, key); err == nil && ok {
		var meta instanceTypeMetadata
		if err := json.Unmarshal(cached, &meta); err == nil {
			applyInstanceTypeMetadata(node, meta)
			return node, nil
		}
	}

	var out *ec2.DescribeInstanceTypesOutput
	err := retry.Do(ctx, a.policy, func(ctx context.Context) error {
		var err error
		out, err = a.client.DescribeInstanceTypes(ctx, &ec2.DescribeInstanceTypesInput{
			InstanceTypes: []ec2types.InstanceType{ec2types.InstanceType(instanceType)},
		})
		return err
	})
	if err != nil || out == nil || len(out.InstanceTypes) == 0 {
		// No AWS metadata available; the node keeps its plan-derived
		// attributes only, and confidence already reflects the gap via
		// whatever unknowns the interpreter recorded.
		return node, nil
	}

	info := out.InstanceTypes[0]
	meta := instanceTypeMetadata{}
	if info.VCpuInfo != nil && info.VCpuInfo.DefaultVCpus != nil {
		meta.VCPUCount = *info.VCpuInfo.DefaultVCpus
	}
	if info.MemoryInfo != nil && info.MemoryInfo.SizeInMiB != nil {
		meta.MemoryMiB = *info.MemoryInfo.SizeInMiB
	}
	if info.EbsInfo != nil {
		meta.EBSOptimizedDefault = info.EbsInfo.EbsOptimizedSupport == ec2types.EbsOptimizedSupportDefault
	}
	if info.NetworkInfo != nil && info.NetworkInfo.NetworkPerformance != nil {
		meta.NetworkPerformance = *info.NetworkInfo.NetworkPerformance
	}
	meta.CurrentGeneration = info.CurrentGeneration != nil && *info.CurrentGeneration

	if data, err := json.Marshal(meta); err == nil {
		_ = a.cache.Set(ctx, key, data, 3600)
	}

	applyInstanceTypeMetadata(node, meta)
	return node, nil
}

func applyInstanceTypeMetadata(node *types.ERGNode, meta instanceTypeMetadata) {
	if node.EnrichedAttributes == nil {
		node.EnrichedAttributes = types.Attributes{}
	}
	node.EnrichedAttributes["vcpu_count"] = types.Attribute{Value: meta.VCPUCount}
	node.EnrichedAttributes["memory_mib"] = types.Attribute{Value: meta.MemoryMiB}
	node.EnrichedAttributes["ebs_optimized_default"] = types.Attribute{Value: meta.EBSOptimizedDefault}
	node.EnrichedAttributes["network_performance"] = types.Attribute{Value: meta.NetworkPerformance}
	node.EnrichedAttributes["current_generation"] = types.Attribute{Value: meta.CurrentGeneration}
}

// DetectImplicit synthesizes the root EBS volume every aws_instance
// creates, since Terraform's plan JSON for aws_instance does not surface
// root_block_device as a separate billable resource the way it does for an
// explicit aws_ebs_volume.
func (a *EC2Adapter) DetectImplicit(ctx context.Context, node *types.ERGNode) ([]*types.ERGNode, error) {
	sizeGB, _ := node.Attributes.Get("root_block_device.0.volume_size").(float64)
	if sizeGB == 0 {
		sizeGB = 8 // EC2's documented default root volume size when unspecified.
	}
	volumeType, _ := node.Attributes.Get("root_block_device.0.volume_type").(string)
	if volumeType == "" {
		volumeType = "gp3"
	}

	volume := &types.ERGNode{
		NRGNode: types.NRGNode{
			ResourceID: implicitResourceID(node.ResourceID, "root_volume"),
			Address:    node.Address + ".root_volume",
			Type:       "aws_ebs_volume",
			Provider:   node.Provider,
			Region:     node.Region,
			Quantity:   1,
			Attributes: types.Attributes{
				"size": types.Attribute{Value: sizeGB},
				"type": types.Attribute{Value: volumeType},
			},
			Confidence: types.ConfidenceMedium,
		},
	}

	return []*types.ERGNode{volume}, nil
}

// implicitResourceID derives a stable id for a synthesized resource from
// its parent, so re-running enrichment over the same plan produces the
// same implicit resource id every time.
func implicitResourceID(parentID, label string) string {
	h := sha256.Sum256([]byte(parentID + ":" + label))
	return hex.EncodeToString(h[:])[:16]
}

package metadata

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"cloudcost/core/types"
	"cloudcost/internal/cache"
)

type stubEC2Client struct {
	describeCalls int
}

func int32p(v int32) *int32 { return &v }
func int64p(v int64) *int64 { return &v }
func strp(v string) *string { return &v }
func boolp(v bool) *bool    { return &v }

func (s *stubEC2Client) DescribeInstanceTypes(ctx context.Context, in *ec2.DescribeInstanceTypesInput, opts ...func(*ec2.Options)) (*ec2.DescribeInstanceTypesOutput, error) {
	s.describeCalls++
	return &ec2.DescribeInstanceTypesOutput{
		InstanceTypes: []ec2types.InstanceTypeInfo{
			{
				VCpuInfo:          &ec2types.VCpuInfo{DefaultVCpus: int32p(2)},
				MemoryInfo:        &ec2types.MemoryInfo{SizeInMiB: int64p(4096)},
				EbsInfo:           &ec2types.EbsInfo{EbsOptimizedSupport: ec2types.EbsOptimizedSupportDefault},
				NetworkInfo:       &ec2types.NetworkInfo{NetworkPerformance: strp("Up to 5 Gigabit")},
				CurrentGeneration: boolp(true),
			},
		},
	}, nil
}

func (s *stubEC2Client) DescribeVolumes(ctx context.Context, in *ec2.DescribeVolumesInput, opts ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error) {
	return &ec2.DescribeVolumesOutput{}, nil
}

func TestEC2AdapterEnrichesAndCaches(t *testing.T) {
	client := &stubEC2Client{}
	c := cache.NewLRU(100)
	adapter := NewEC2Adapter(client, c)

	node := &types.ERGNode{NRGNode: types.NRGNode{
		ResourceID: "res-1",
		Type:       "aws_instance",
		Region:     "us-east-1",
		Attributes: types.Attributes{"instance_type": types.Attribute{Value: "t3.micro"}},
	}}

	enriched, err := adapter.Enrich(context.Background(), node)
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if enriched.EnrichedAttributes.Get("vcpu_count") != int32(2) {
		t.Fatalf("expected vcpu_count 2, got %v", enriched.EnrichedAttributes.Get("vcpu_count"))
	}

	// Second call for the same instance type should hit the cache, not AWS.
	node2 := &types.ERGNode{NRGNode: types.NRGNode{
		ResourceID: "res-2",
		Type:       "aws_instance",
		Region:     "us-east-1",
		Attributes: types.Attributes{"instance_type": types.Attribute{Value: "t3.micro"}},
	}}
	if _, err := adapter.Enrich(context.Background(), node2); err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if client.describeCalls != 1 {
		t.Fatalf("expected 1 DescribeInstanceTypes call (second served from cache), got %d", client.describeCalls)
	}
}

func TestEC2AdapterDetectImplicitRootVolume(t *testing.T) {
	adapter := NewEC2Adapter(&stubEC2Client{}, cache.NewLRU(10))
	node := &types.ERGNode{NRGNode: types.NRGNode{
		ResourceID: "res-3",
		Address:    "aws_instance.web",
		Type:       "aws_instance",
	}}

	implicit, err := adapter.DetectImplicit(context.Background(), node)
	if err != nil {
		t.Fatalf("DetectImplicit: %v", err)
	}
	if len(implicit) != 1 {
		t.Fatalf("expected 1 implicit resource, got %d", len(implicit))
	}
	if implicit[0].Type != "aws_ebs_volume" {
		t.Fatalf("expected implicit aws_ebs_volume, got %s", implicit[0].Type)
	}
	if implicit[0].Attributes.Get("size") != float64(8) {
		t.Fatalf("expected default root volume size 8, got %v", implicit[0].Attributes.Get("size"))
	}
}

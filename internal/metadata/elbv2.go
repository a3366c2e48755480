package metadata

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"

	"cloudcost/core/types"
	"cloudcost/internal/cache"
	"cloudcost/internal/retry"
)

// ELBv2Client is the subset of the ELBv2 SDK client this adapter calls.
type ELBv2Client interface {
	DescribeLoadBalancers(ctx context.Context, in *elasticloadbalancingv2.DescribeLoadBalancersInput, opts ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.DescribeLoadBalancersOutput, error)
}

// ELBv2Adapter enriches aws_lb/aws_alb/aws_elb nodes with the load
// balancer's type and scheme from DescribeLoadBalancers, the inputs the
// pricing resolver needs to pick an LCU-hour rate. Grounded on
// original_source/aws-metadata-resolver/app/adapters/elb.py.
type ELBv2Adapter struct {
	client ELBv2Client
	cache  cache.Cache
	policy retry.Policy
}

// NewELBv2Adapter creates an adapter backed by client.
func NewELBv2Adapter(client ELBv2Client, c cache.Cache) *ELBv2Adapter {
	return &ELBv2Adapter{client: client, cache: c, policy: retry.DefaultPolicy()}
}

// Handles reports whether resourceType is a load balancer.
func (a *ELBv2Adapter) Handles(resourceType string) bool {
	switch resourceType {
	case "aws_lb", "aws_alb", "aws_elb":
		return true
	default:
		return false
	}
}

type loadBalancerMetadata struct {
	Type   string `json:"type"`
	Scheme string `json:"scheme"`
}

// Enrich fetches the load balancer's type (application/network/gateway)
// and scheme by name, degrading confidence to MEDIUM when the plan has no
// name yet to look up (e.g. Terraform will generate one at apply time).
func (a *ELBv2Adapter) Enrich(ctx context.Context, node *types.ERGNode) (*types.ERGNode, error) {
	name := node.Attributes.GetString("name")
	if name == "" {
		node.Confidence = node.Confidence.Min(types.ConfidenceMedium)
		return node, nil
	}

	key := cache.Key("metadata", "", string(node.Region), "elbv2", "load_balancer", map[string]string{"name": name})
	if cached, ok, err := a.cache.Get(ctx, key); err == nil && ok {
		var meta loadBalancerMetadata
		if err := json.Unmarshal(cached, &meta); err == nil {
			applyLoadBalancerMetadata(node, meta)
			return node, nil
		}
	}

	var out *elasticloadbalancingv2.DescribeLoadBalancersOutput
	err := retry.Do(ctx, a.policy, func(ctx context.Context) error {
		var err error
		out, err = a.client.DescribeLoadBalancers(ctx, &elasticloadbalancingv2.DescribeLoadBalancersInput{
			Names: []string{name},
		})
		return err
	})
	if err != nil || out == nil || len(out.LoadBalancers) == 0 {
		node.Confidence = node.Confidence.Min(types.ConfidenceMedium)
		return node, nil
	}

	lb := out.LoadBalancers[0]
	meta := loadBalancerMetadata{Type: string(lb.Type), Scheme: string(lb.Scheme)}

	if data, err := json.Marshal(meta); err == nil {
		_ = a.cache.Set(ctx, key, data, 3600)
	}

	applyLoadBalancerMetadata(node, meta)
	return node, nil
}

func applyLoadBalancerMetadata(node *types.ERGNode, meta loadBalancerMetadata) {
	if node.EnrichedAttributes == nil {
		node.EnrichedAttributes = types.Attributes{}
	}
	node.EnrichedAttributes["lb_type"] = types.Attribute{Value: meta.Type}
	node.EnrichedAttributes["lb_scheme"] = types.Attribute{Value: meta.Scheme}
}

// DetectImplicit returns nothing: a load balancer's LCU-hour cost is its
// own billable dimension, with no implicit sub-resource the way an
// instance's root volume is.
func (a *ELBv2Adapter) DetectImplicit(ctx context.Context, node *types.ERGNode) ([]*types.ERGNode, error) {
	return nil, nil
}

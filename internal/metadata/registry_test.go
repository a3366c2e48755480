package metadata

import (
	"context"
	"testing"

	"cloudcost/core/types"
	"cloudcost/internal/cache"
)

func TestEnrichGraphAppliesAdapterAndImplicitNodes(t *testing.T) {
	registry := NewRegistry()
	registry.Register(NewEC2Adapter(&stubEC2Client{}, cache.NewLRU(10)))

	nrg := &types.NRG{Nodes: []types.NRGNode{
		{
			ResourceID: "res-1",
			Address:    "aws_instance.web",
			Type:       "aws_instance",
			Attributes: types.Attributes{"instance_type": types.Attribute{Value: "t3.micro"}},
		},
		{
			ResourceID: "res-2",
			Address:    "aws_s3_bucket.logs",
			Type:       "aws_s3_bucket",
		},
	}}

	erg, err := registry.EnrichGraph(context.Background(), nrg)
	if err != nil {
		t.Fatalf("EnrichGraph: %v", err)
	}

	// The instance, its synthesized root volume, and the untouched bucket.
	if len(erg.Nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(erg.Nodes))
	}

	var sawImplicit, sawDeclaredBucket bool
	for _, n := range erg.Nodes {
		if n.Provenance == types.ProvenanceImplicit {
			sawImplicit = true
			if n.ParentResourceID != "res-1" {
				t.Fatalf("expected implicit node's parent to be res-1, got %s", n.ParentResourceID)
			}
		}
		if n.ResourceID == "res-2" && n.Provenance == types.ProvenanceDeclared {
			sawDeclaredBucket = true
		}
	}
	if !sawImplicit {
		t.Fatal("expected an implicit node for the instance's root volume")
	}
	if !sawDeclaredBucket {
		t.Fatal("expected the untouched bucket to remain DECLARED")
	}
}

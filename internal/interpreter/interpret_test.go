package interpreter

import (
	"testing"

	"cloudcost/core/types"
)

func samplePlan() *types.PlanDocument {
	return &types.PlanDocument{
		FormatVersion: "1.2",
		Configuration: &types.PlanConfiguration{
			ProviderConfig: map[string]types.PlanProviderConfig{
				"aws": {
					Name: "aws",
					Expressions: map[string]interface{}{
						"region": map[string]interface{}{"constant_value": "us-east-1"},
					},
				},
			},
			RootModule: types.PlanModuleConfig{
				Resources: []types.PlanResourceConfig{
					{
						Address: "aws_instance.web",
						Type:    "aws_instance",
						Name:    "web",
						DependsOn: []string{
							"aws_s3_bucket.logs",
						},
					},
					{
						Address: "aws_s3_bucket.logs",
						Type:    "aws_s3_bucket",
						Name:    "logs",
					},
				},
			},
		},
		ResourceChanges: []types.ResourceChange{
			{
				Address: "aws_instance.web",
				Mode:    "managed",
				Type:    "aws_instance",
				Name:    "web",
				Change: types.PlanChange{
					Actions: []string{"create"},
					After: map[string]interface{}{
						"instance_type": "t3.micro",
						"ami":           "ami-1234",
					},
					AfterUnknown: map[string]interface{}{
						"arn": true,
						"id":  true,
					},
				},
			},
			{
				Address: "aws_s3_bucket.logs",
				Mode:    "managed",
				Type:    "aws_s3_bucket",
				Name:    "logs",
				Change: types.PlanChange{
					Actions: []string{"create"},
					After: map[string]interface{}{
						"bucket": "my-logs",
					},
				},
			},
		},
		PlannedValues: &types.PlannedValues{
			RootModule: types.PlannedModule{
				Resources: []types.PlannedResource{
					{
						Address: "aws_instance.web",
						Mode:    "managed",
						Type:    "aws_instance",
						Name:    "web",
						Values: map[string]interface{}{
							"instance_type": "t3.micro",
							"ami":           "ami-1234",
						},
					},
					{
						Address: "aws_s3_bucket.logs",
						Mode:    "managed",
						Type:    "aws_s3_bucket",
						Name:    "logs",
						Values: map[string]interface{}{
							"bucket": "my-logs",
						},
					},
				},
			},
		},
	}
}

func TestInterpretProducesStableResourceIDsAndPlanHash(t *testing.T) {
	doc := samplePlan()

	nrg1, meta1, err := Interpret(doc)
	if err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	nrg2, meta2, err := Interpret(samplePlan())
	if err != nil {
		t.Fatalf("Interpret (second run): %v", err)
	}

	if len(nrg1.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(nrg1.Nodes))
	}
	if meta1.PlanHash != meta2.PlanHash {
		t.Fatalf("plan_hash not stable across runs: %s vs %s", meta1.PlanHash, meta2.PlanHash)
	}
	for i := range nrg1.Nodes {
		if nrg1.Nodes[i].ResourceID != nrg2.Nodes[i].ResourceID {
			t.Fatalf("resource_id not stable across runs for %s: %s vs %s",
				nrg1.Nodes[i].Address, nrg1.Nodes[i].ResourceID, nrg2.Nodes[i].ResourceID)
		}
	}
}

func TestInterpretSplitsKnownAndUnknownAttributes(t *testing.T) {
	nrg, _, err := Interpret(samplePlan())
	if err != nil {
		t.Fatalf("Interpret: %v", err)
	}

	nrg.Index()
	var instance *types.NRGNode
	for i := range nrg.Nodes {
		if nrg.Nodes[i].Address == "aws_instance.web" {
			instance = &nrg.Nodes[i]
		}
	}
	if instance == nil {
		t.Fatal("expected aws_instance.web in the NRG")
	}

	if instance.Attributes.GetString("instance_type") != "t3.micro" {
		t.Fatalf("expected known instance_type attribute, got %v", instance.Attributes.Get("instance_type"))
	}
	if len(instance.UnknownAttributes) != 2 {
		t.Fatalf("expected 2 unknown attributes, got %v", instance.UnknownAttributes)
	}
	// 2 known (instance_type, ami) / 4 total = 0.5 -> MEDIUM.
	if instance.Confidence != types.ConfidenceMedium {
		t.Fatalf("expected MEDIUM confidence, got %s", instance.Confidence)
	}
	if instance.Provider != types.ProviderAWS {
		t.Fatalf("expected provider aws, got %s", instance.Provider)
	}
	if instance.Region != types.Region("us-east-1") {
		t.Fatalf("expected region us-east-1, got %s", instance.Region)
	}
}

func TestInterpretResolvesDependsOnToResourceID(t *testing.T) {
	nrg, _, err := Interpret(samplePlan())
	if err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	nrg.Index()

	var instance, bucket *types.NRGNode
	for i := range nrg.Nodes {
		switch nrg.Nodes[i].Address {
		case "aws_instance.web":
			instance = &nrg.Nodes[i]
		case "aws_s3_bucket.logs":
			bucket = &nrg.Nodes[i]
		}
	}
	if instance == nil || bucket == nil {
		t.Fatal("expected both nodes in the NRG")
	}
	if len(instance.Dependencies) != 1 || instance.Dependencies[0] != bucket.ResourceID {
		t.Fatalf("expected instance to depend on bucket's resource_id, got %v", instance.Dependencies)
	}
}

func TestInterpretRejectsMissingPlannedValues(t *testing.T) {
	_, _, err := Interpret(&types.PlanDocument{})
	if err == nil {
		t.Fatal("expected an error for a plan document with no planned_values")
	}
}

package metadata

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/service/rds"

	"cloudcost/core/types"
	"cloudcost/internal/cache"
	"cloudcost/internal/retry"
)

// RDSClient is the subset of the RDS SDK client this adapter calls.
type RDSClient interface {
	DescribeDBInstances(ctx context.Context, in *rds.DescribeDBInstancesInput, opts ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error)
}

// RDSAdapter enriches aws_db_instance nodes with allocated storage,
// multi-AZ, and backup retention from DescribeDBInstances, and
// synthesizes the implicit backup storage billable resource multi-AZ/
// long-retention instances carry. Grounded on original_source/
// aws-metadata-resolver/app/adapters/rds.py.
type RDSAdapter struct {
	client RDSClient
	cache  cache.Cache
	policy retry.Policy
}

// NewRDSAdapter creates an adapter backed by client.
func NewRDSAdapter(client RDSClient, c cache.Cache) *RDSAdapter {
	return &RDSAdapter{client: client, cache: c, policy: retry.DefaultPolicy()}
}

// Handles reports whether resourceType is an RDS instance.
func (a *RDSAdapter) Handles(resourceType string) bool {
	return resourceType == "aws_db_instance"
}

type dbInstanceMetadata struct {
	InstanceClass          string `json:"instance_class"`
	Engine                 string `json:"engine"`
	AllocatedStorageGB     int32  `json:"allocated_storage_gb"`
	MultiAZ                bool   `json:"multi_az"`
	BackupRetentionPeriod  int32  `json:"backup_retention_period"`
	StorageType            string `json:"storage_type"`
}

// Enrich fetches the DB instance's storage, engine, and availability
// metadata by identifier.
func (a *RDSAdapter) Enrich(ctx context.Context, node *types.ERGNode) (*types.ERGNode, error) {
	identifier := node.Attributes.GetString("identifier")
	if identifier == "" {
		node.Confidence = node.Confidence.Min(types.ConfidenceMedium)
		return node, nil
	}

	key := cache.Key("metadata", "", string(node.Region), "rds", "db_instance", map[string]string{"identifier": identifier})
	if cached, ok, err := a.cache.Get(ctx, key); err == nil && ok {
		var meta dbInstanceMetadata
		if err := json.Unmarshal(cached, &meta); err == nil {
			applyDBInstanceMetadata(node, meta)
			return node, nil
		}
	}

	var out *rds.DescribeDBInstancesOutput
	err := retry.Do(ctx, a.policy, func(ctx context.Context) error {
		var err error
		out, err = a.client.DescribeDBInstances(ctx, &rds.DescribeDBInstancesInput{
			DBInstanceIdentifier: &identifier,
		})
		return err
	})
	if err != nil || out == nil || len(out.DBInstances) == 0 {
		node.Confidence = node.Confidence.Min(types.ConfidenceMedium)
		return node, nil
	}

	db := out.DBInstances[0]
	meta := dbInstanceMetadata{}
	if db.DBInstanceClass != nil {
		meta.InstanceClass = *db.DBInstanceClass
	}
	if db.Engine != nil {
		meta.Engine = *db.Engine
	}
	if db.AllocatedStorage != nil {
		meta.AllocatedStorageGB = *db.AllocatedStorage
	}
	if db.MultiAZ != nil {
		meta.MultiAZ = *db.MultiAZ
	}
	if db.BackupRetentionPeriod != nil {
		meta.BackupRetentionPeriod = *db.BackupRetentionPeriod
	}
	if db.StorageType != nil {
		meta.StorageType = *db.StorageType
	}

	if data, err := json.Marshal(meta); err == nil {
		_ = a.cache.Set(ctx, key, data, 3600)
	}

	applyDBInstanceMetadata(node, meta)
	return node, nil
}

func applyDBInstanceMetadata(node *types.ERGNode, meta dbInstanceMetadata) {
	if node.EnrichedAttributes == nil {
		node.EnrichedAttributes = types.Attributes{}
	}
	node.EnrichedAttributes["instance_class"] = types.Attribute{Value: meta.InstanceClass}
	node.EnrichedAttributes["engine"] = types.Attribute{Value: meta.Engine}
	node.EnrichedAttributes["allocated_storage_gb"] = types.Attribute{Value: meta.AllocatedStorageGB}
	node.EnrichedAttributes["multi_az"] = types.Attribute{Value: meta.MultiAZ}
	node.EnrichedAttributes["backup_retention_period"] = types.Attribute{Value: meta.BackupRetentionPeriod}
	node.EnrichedAttributes["storage_type"] = types.Attribute{Value: meta.StorageType}
}

// DetectImplicit synthesizes the implicit backup storage a multi-AZ
// instance bills separately from its primary allocated storage, since the
// plan's aws_db_instance attributes don't surface it as its own resource.
func (a *RDSAdapter) DetectImplicit(ctx context.Context, node *types.ERGNode) ([]*types.ERGNode, error) {
	multiAZ, _ := node.EnrichedAttributes.Get("multi_az").(bool)
	if !multiAZ {
		return nil, nil
	}

	storageGB, _ := node.EnrichedAttributes.Get("allocated_storage_gb").(int32)

	backup := &types.ERGNode{
		NRGNode: types.NRGNode{
			ResourceID: implicitResourceID(node.ResourceID, "standby_storage"),
			Address:    node.Address + ".standby_storage",
			Type:       "aws_db_instance_standby_storage",
			Provider:   node.Provider,
			Region:     node.Region,
			Quantity:   1,
			Attributes: types.Attributes{
				"allocated_storage_gb": types.Attribute{Value: storageGB},
			},
			Confidence: types.ConfidenceMedium,
		},
	}
	return []*types.ERGNode{backup}, nil
}

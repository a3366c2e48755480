package executor

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/aws-sdk-go-v2/service/sts/types"
)

type fakeSTS struct {
	lastInput *sts.AssumeRoleInput
}

func (f *fakeSTS) AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error) {
	f.lastInput = params
	return &sts.AssumeRoleOutput{
		Credentials: &types.Credentials{
			AccessKeyId:     aws.String("AKIAFAKE"),
			SecretAccessKey: aws.String("secretvalue"),
			SessionToken:    aws.String("sessiontoken"),
		},
	}, nil
}

func TestCredentialResolverExchangesAssumeRoleReference(t *testing.T) {
	fake := &fakeSTS{}
	resolver := NewCredentialResolver(fake, func(name string) (string, error) {
		return "arn:aws:iam::123456789012:role/" + name, nil
	}, "cloudcost-test")

	env, err := resolver.Env(context.Background(), "assume-role:cost-estimator")
	if err != nil {
		t.Fatalf("Env: %v", err)
	}
	if len(env) != 3 {
		t.Fatalf("expected 3 env entries, got %d: %v", len(env), env)
	}
	if fake.lastInput == nil {
		t.Fatal("expected AssumeRole to be called")
	}
	if aws.ToInt32(fake.lastInput.DurationSeconds) != maxCredentialDuration {
		t.Fatalf("expected duration capped at %d, got %d", maxCredentialDuration, aws.ToInt32(fake.lastInput.DurationSeconds))
	}
	if aws.ToString(fake.lastInput.RoleArn) != "arn:aws:iam::123456789012:role/cost-estimator" {
		t.Fatalf("unexpected role arn: %s", aws.ToString(fake.lastInput.RoleArn))
	}
}

func TestCredentialResolverRejectsRawCredentialReference(t *testing.T) {
	fake := &fakeSTS{}
	resolver := NewCredentialResolver(fake, func(name string) (string, error) { return "", nil }, "")

	if _, err := resolver.Env(context.Background(), "AKIAABCDEF1234567890"); err == nil {
		t.Fatal("expected a raw credential reference to be rejected")
	}
	if fake.lastInput != nil {
		t.Fatal("expected AssumeRole never to be called for a rejected reference")
	}
}

func TestCredentialResolverEmptyReferenceIsNoCredentials(t *testing.T) {
	resolver := NewCredentialResolver(&fakeSTS{}, nil, "")
	env, err := resolver.Env(context.Background(), "")
	if err != nil {
		t.Fatalf("Env: %v", err)
	}
	if env != nil {
		t.Fatalf("expected nil env for an empty reference, got %v", env)
	}
}

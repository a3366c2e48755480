package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"cloudcost/internal/errors"
)

// maxCredentialDuration is the hard ceiling on assumed-role session length;
// a request asking for longer is silently capped rather than rejected.
const maxCredentialDuration = 900 // seconds

// assumeRoleReferencePrefix identifies a credential_reference that names a
// role to assume, as opposed to one the resolver doesn't recognize.
const assumeRoleReferencePrefix = "assume-role:"

// STSAssumeRoler is the subset of *sts.Client the credential resolver
// needs, narrowed so tests can substitute a fake without a live AWS account.
type STSAssumeRoler interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

// RoleResolver maps a credential reference's role name to the full ARN to
// assume. The caller supplies this since role naming is deployment-specific.
type RoleResolver func(roleName string) (string, error)

// CredentialResolver exchanges a submission's credential_reference for
// short-lived credentials, injected into a subprocess's environment and
// never logged or echoed back in a Record.
type CredentialResolver struct {
	sts      STSAssumeRoler
	resolve  RoleResolver
	sessName string
}

// NewCredentialResolver builds a resolver backed by an STS client. sessName
// is the RoleSessionName recorded in the target account's CloudTrail.
func NewCredentialResolver(stsClient STSAssumeRoler, resolve RoleResolver, sessName string) *CredentialResolver {
	if sessName == "" {
		sessName = "cloudcost-executor"
	}
	return &CredentialResolver{sts: stsClient, resolve: resolve, sessName: sessName}
}

// Env resolves ref (empty string means "no credentials needed") into a set
// of environment variables for the sandboxed subprocess. A raw access key
// or any reference that isn't of the form assume-role:<name> is rejected:
// the contract only ever accepts a reference, never a literal credential.
func (r *CredentialResolver) Env(ctx context.Context, ref string) ([]string, error) {
	if ref == "" {
		return nil, nil
	}
	if !strings.HasPrefix(ref, assumeRoleReferencePrefix) {
		return nil, errors.Newf(errors.TypeSecurityViolation, "credential_reference must be of the form %s<name>, not a raw credential", assumeRoleReferencePrefix)
	}
	roleName := strings.TrimPrefix(ref, assumeRoleReferencePrefix)
	if roleName == "" {
		return nil, errors.Security("credential_reference names no role")
	}

	roleARN, err := r.resolve(roleName)
	if err != nil {
		return nil, errors.Wrapf(errors.TypeSecurityViolation, err, "resolve role %q", roleName)
	}

	out, err := r.sts.AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         aws.String(roleARN),
		RoleSessionName: aws.String(r.sessName),
		DurationSeconds: aws.Int32(maxCredentialDuration),
	})
	if err != nil {
		return nil, errors.Wrap(errors.TypeUpstreamUnavailable, "sts assume role", err)
	}
	if out.Credentials == nil {
		return nil, errors.Internal("sts assume role returned no credentials", nil)
	}

	creds := out.Credentials
	return []string{
		fmt.Sprintf("AWS_ACCESS_KEY_ID=%s", aws.ToString(creds.AccessKeyId)),
		fmt.Sprintf("AWS_SECRET_ACCESS_KEY=%s", aws.ToString(creds.SecretAccessKey)),
		fmt.Sprintf("AWS_SESSION_TOKEN=%s", aws.ToString(creds.SessionToken)),
	}, nil
}

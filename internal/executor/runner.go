// Package executor runs a plan submission through an isolated Terraform
// workspace: security scanning the HCL before anything executes, brokering
// short-lived credentials, and enforcing a hard wall-clock kill on the
// subprocess.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"cloudcost/core/types"
)

// RunnerConfig configures a single Terraform CLI invocation.
type RunnerConfig struct {
	TerraformPath string
	WorkDir       string
	PluginCacheDir string

	VarFiles []string
	Vars     map[string]string

	// ExtraEnv is appended to every stage's environment, e.g. short-lived
	// AWS credentials resolved from a submission's credential_reference.
	// Never logged: callers must not put anything here they wouldn't want
	// to appear in a core dump.
	ExtraEnv []string

	// StageTimeout bounds a single terraform command (init/validate/plan/show).
	StageTimeout time.Duration

	Parallelism int
	LockTimeout time.Duration
}

// DefaultRunnerConfig returns sensible defaults for a sandboxed invocation.
func DefaultRunnerConfig(workDir string) *RunnerConfig {
	return &RunnerConfig{
		TerraformPath: "terraform",
		WorkDir:       workDir,
		StageTimeout:  5 * time.Minute,
		Parallelism:   10,
		LockTimeout:   1 * time.Minute,
	}
}

// Runner drives a single Terraform CLI through the init/validate/plan/show
// sequence inside one scanned, isolated workspace. Every command it runs is
// placed in its own process group so a stage timeout or a top-level
// deadline from the caller's context can kill the whole subprocess tree,
// never just the parent.
type Runner struct {
	terraformPath string
	workDir       string
	config        *RunnerConfig
}

// NewRunner creates a Runner rooted at config.WorkDir.
func NewRunner(config *RunnerConfig) (*Runner, error) {
	if config == nil {
		return nil, fmt.Errorf("runner config is required")
	}

	workDir, err := filepath.Abs(config.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("resolve work dir: %w", err)
	}

	return &Runner{
		terraformPath: config.TerraformPath,
		workDir:       workDir,
		config:        config,
	}, nil
}

// Init runs `terraform init` with plugin caching on and network access off
// for providers already warmed in the cache; the plan stage that follows
// still fails closed if a required provider is missing rather than fetching
// one over the network mid-run.
func (r *Runner) Init(ctx context.Context) error {
	args := []string{"init", "-input=false", "-no-color"}
	env := os.Environ()
	if r.config.PluginCacheDir != "" {
		env = append(env, "TF_PLUGIN_CACHE_DIR="+r.config.PluginCacheDir)
	}
	if len(r.config.ExtraEnv) > 0 {
		env = append(env, r.config.ExtraEnv...)
	}
	_, err := r.runWithEnv(ctx, env, args...)
	return err
}

// Validate runs `terraform validate`.
func (r *Runner) Validate(ctx context.Context) error {
	_, err := r.run(ctx, "validate", "-json", "-no-color")
	return err
}

// Plan runs `terraform plan -out=<outFile>`.
func (r *Runner) Plan(ctx context.Context, outFile string) error {
	args := []string{"plan", "-input=false", "-no-color", "-out=" + outFile}

	if r.config.Parallelism > 0 {
		args = append(args, fmt.Sprintf("-parallelism=%d", r.config.Parallelism))
	}
	if r.config.LockTimeout > 0 {
		args = append(args, fmt.Sprintf("-lock-timeout=%s", r.config.LockTimeout))
	}
	for _, varFile := range r.config.VarFiles {
		args = append(args, "-var-file="+varFile)
	}
	for k, v := range r.config.Vars {
		args = append(args, fmt.Sprintf("-var=%s=%s", k, v))
	}

	_, err := r.run(ctx, args...)
	return err
}

// ShowPlanJSON runs `terraform show -json <planFile>` and parses the result
// into a PlanDocument for the interpreter to consume.
func (r *Runner) ShowPlanJSON(ctx context.Context, planFile string) (*types.PlanDocument, error) {
	output, err := r.run(ctx, "show", "-json", "-no-color", planFile)
	if err != nil {
		return nil, err
	}

	var doc types.PlanDocument
	if err := json.Unmarshal([]byte(output), &doc); err != nil {
		return nil, fmt.Errorf("parse plan JSON: %w", err)
	}
	return &doc, nil
}

// run executes a Terraform command under a per-stage timeout, in its own
// process group, killing the entire group rather than just the child
// process if the stage or an enclosing caller deadline expires. The
// process environment is os.Environ() plus the Runner's configured
// ExtraEnv (later entries win on conflict, per os/exec's Cmd.Env rules).
func (r *Runner) run(ctx context.Context, args ...string) (string, error) {
	env := os.Environ()
	if len(r.config.ExtraEnv) > 0 {
		env = append(env, r.config.ExtraEnv...)
	}
	return r.runWithEnv(ctx, env, args...)
}

func (r *Runner) runWithEnv(ctx context.Context, env []string, args ...string) (string, error) {
	stageCtx, cancel := context.WithTimeout(ctx, r.config.StageTimeout)
	defer cancel()

	cmd := exec.Command(r.terraformPath, args...)
	cmd.Dir = r.workDir
	cmd.Env = env
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start terraform %s: %w", strings.Join(args, " "), err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-stageCtx.Done():
		// Kill the whole process group, not just the direct child: terraform
		// forks plugin processes that survive a plain cmd.Process.Kill().
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		<-done
		return "", fmt.Errorf("terraform %s: %w", strings.Join(args, " "), stageCtx.Err())
	case err := <-done:
		if err != nil {
			return "", fmt.Errorf("terraform %s failed: %w: %s", strings.Join(args, " "), err, stderr.String())
		}
		return stdout.String(), nil
	}
}

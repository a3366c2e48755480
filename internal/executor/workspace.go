package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cloudcost/internal/errors"
)

// Workspace is one execution's isolated directory on disk. It is always
// allocated under a configured root, keyed by execution ID, and must be
// destroyed via Close on every exit path — success, failure, or panic.
type Workspace struct {
	root string
	dir  string
}

// NewWorkspace allocates a fresh temp directory under root for executionID.
// root is created if it doesn't already exist.
func NewWorkspace(root, executionID string) (*Workspace, error) {
	if executionID == "" {
		return nil, errors.New(errors.TypeInternal, "workspace: empty execution id")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(errors.TypeInternal, "create workspace root", err)
	}
	dir, err := os.MkdirTemp(root, "exec-"+executionID+"-")
	if err != nil {
		return nil, errors.Wrap(errors.TypeInternal, "allocate workspace directory", err)
	}
	return &Workspace{root: root, dir: dir}, nil
}

// Dir returns the workspace's root directory on disk.
func (w *Workspace) Dir() string {
	return w.dir
}

// WriteFile copies a single source file into the workspace. relPath is
// rejected if it is absolute or escapes the workspace via "..", regardless
// of how many path separators it takes to do so.
func (w *Workspace) WriteFile(relPath string, contents []byte) error {
	if err := validateRelPath(relPath); err != nil {
		return err
	}
	target := filepath.Join(w.dir, relPath)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.Wrap(errors.TypeInternal, "create workspace subdirectory", err)
	}
	if err := os.WriteFile(target, contents, 0o644); err != nil {
		return errors.Wrap(errors.TypeInternal, "write workspace file", err)
	}
	return nil
}

// WriteFiles copies every source file into the workspace, stopping at the
// first one that fails path validation or the write itself.
func (w *Workspace) WriteFiles(files []SourceFile) error {
	for _, f := range files {
		if err := w.WriteFile(f.Path, f.Contents); err != nil {
			return err
		}
	}
	return nil
}

// validateRelPath rejects any path that is absolute or that, once cleaned,
// still climbs above the workspace root — the two ways a crafted filename
// could escape the sandboxed directory during copy-in.
func validateRelPath(relPath string) error {
	if relPath == "" {
		return errors.Security("workspace: empty file path")
	}
	if filepath.IsAbs(relPath) {
		return errors.Newf(errors.TypeSecurityViolation, "workspace: absolute path not permitted: %s", relPath)
	}
	cleaned := filepath.Clean(relPath)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return errors.Newf(errors.TypeSecurityViolation, "workspace: path escapes workspace root: %s", relPath)
	}
	return nil
}

// SizeBytes walks the workspace and returns the total size of its contents,
// used to enforce the configured ceiling before any subprocess runs.
func (w *Workspace) SizeBytes() (int64, error) {
	var total int64
	err := filepath.Walk(w.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(errors.TypeInternal, "compute workspace size", err)
	}
	return total, nil
}

// EnforceSizeCeiling fails if the workspace's total byte size exceeds max.
func (w *Workspace) EnforceSizeCeiling(max int64) error {
	if max <= 0 {
		return nil
	}
	size, err := w.SizeBytes()
	if err != nil {
		return err
	}
	if size > max {
		return errors.Newf(errors.TypeSecurityViolation, "workspace size %d bytes exceeds ceiling of %d bytes", size, max)
	}
	return nil
}

// Close recursively removes the workspace directory. It is safe to call
// more than once and safe to call from a deferred panic recovery path.
func (w *Workspace) Close() error {
	if w == nil || w.dir == "" {
		return nil
	}
	if err := os.RemoveAll(w.dir); err != nil {
		return fmt.Errorf("remove workspace %s: %w", w.dir, err)
	}
	return nil
}

package executor

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWorkspaceWriteFileAndSize(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir(), "exec-1")
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	defer ws.Close()

	if err := ws.WriteFile("main.tf", []byte("resource \"null_resource\" \"x\" {}")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := ws.WriteFile("modules/nested/vars.tf", []byte("variable \"x\" {}")); err != nil {
		t.Fatalf("WriteFile nested: %v", err)
	}

	size, err := ws.SizeBytes()
	if err != nil {
		t.Fatalf("SizeBytes: %v", err)
	}
	if size == 0 {
		t.Fatal("expected non-zero workspace size")
	}

	if _, err := os.Stat(filepath.Join(ws.Dir(), "modules/nested/vars.tf")); err != nil {
		t.Fatalf("expected nested file to exist: %v", err)
	}
}

func TestWorkspaceRejectsPathEscape(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir(), "exec-2")
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	defer ws.Close()

	cases := []string{"../escape.tf", "a/../../escape.tf", "/etc/passwd"}
	for _, c := range cases {
		if err := ws.WriteFile(c, []byte("x")); err == nil {
			t.Fatalf("expected %q to be rejected", c)
		}
	}
}

func TestWorkspaceEnforceSizeCeiling(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir(), "exec-3")
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	defer ws.Close()

	if err := ws.WriteFile("big.tf", make([]byte, 1024)); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := ws.EnforceSizeCeiling(100); err == nil {
		t.Fatal("expected a ceiling violation")
	}
	if err := ws.EnforceSizeCeiling(1 << 20); err != nil {
		t.Fatalf("expected no violation under a generous ceiling: %v", err)
	}
}

func TestWorkspaceCloseRemovesDirectory(t *testing.T) {
	root := t.TempDir()
	ws, err := NewWorkspace(root, "exec-4")
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	dir := ws.Dir()

	if err := ws.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("expected workspace directory to be removed, stat err = %v", err)
	}

	// Close must be idempotent.
	if err := ws.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

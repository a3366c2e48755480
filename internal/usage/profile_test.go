package usage

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleProfileYAML = `
name: prod
version: "2"
entries:
  - resource_type: aws_instance
    scenarios:
      - metric: monthly_hours
        min: 730
        expected: 730
        max: 730
        unit: hours
        assumption: runs the full month
  - resource_type: aws_s3_bucket
    scenarios:
      - metric: monthly_gb
        min: 10
        expected: 100
        max: 1000
        unit: GB
        assumption: storage grows over the month
`

func TestRegistryLoadDirParsesYAMLProfiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "prod.yaml"), []byte(sampleProfileYAML), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	// A non-YAML file in the same directory must be ignored, not rejected.
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("not a profile"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	registry := NewRegistry()
	if err := registry.LoadDir(dir); err != nil {
		t.Fatalf("LoadDir: %v", err)
	}

	profile, ok := registry.Get("prod")
	if !ok {
		t.Fatal("expected profile \"prod\" to be registered")
	}
	if profile.Version != "2" {
		t.Fatalf("expected version 2, got %s", profile.Version)
	}

	entry, ok := profile.EntryFor("aws_s3_bucket")
	if !ok {
		t.Fatal("expected an aws_s3_bucket entry")
	}
	if len(entry.Scenarios) != 1 || entry.Scenarios[0].Max != 1000 {
		t.Fatalf("unexpected scenarios: %+v", entry.Scenarios)
	}
}

func TestRegistryLoadFileRejectsUnnamedProfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "anon.yaml")
	if err := os.WriteFile(path, []byte("entries: []\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	registry := NewRegistry()
	if err := registry.LoadFile(path); err == nil {
		t.Fatal("expected an error for a profile with no name")
	}
}

// Package executor runs a plan submission through an isolated Terraform
// workspace: security scanning the HCL before anything executes, brokering
// short-lived credentials, and enforcing a hard wall-clock kill on the
// subprocess.
package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"

	"cloudcost/internal/errors"
)

// disallowedProvisioners may never appear in a scanned workspace: both
// execute arbitrary commands on the operator's infrastructure or the
// sandbox host, defeating the point of sandboxing in the first place.
var disallowedProvisioners = map[string]bool{
	"local-exec":  true,
	"remote-exec": true,
}

// allowedProviders is the provider allowlist a workspace's configuration
// must stay within. Anything else is rejected before terraform ever runs.
var allowedProviders = map[string]bool{
	"aws":   true,
	"azurerm": true,
	"google": true,
	"random": true,
	"null":  true,
}

// Violation describes a single security scan finding.
type Violation struct {
	File    string
	Line    int
	Rule    string
	Message string
}

// ScanReport is the result of scanning a workspace's HCL files.
type ScanReport struct {
	Violations []Violation
}

// Clean reports whether the scan found nothing to reject.
func (r *ScanReport) Clean() bool {
	return len(r.Violations) == 0
}

// SecurityScanner statically inspects a workspace's .tf files for
// constructs that must never run inside the sandbox: provisioners that
// shell out, external data sources, backend blocks that would exfiltrate
// state, and providers outside the allowlist.
type SecurityScanner struct {
	parser *hclparse.Parser
}

// NewSecurityScanner creates a scanner with a fresh HCL parser.
func NewSecurityScanner() *SecurityScanner {
	return &SecurityScanner{parser: hclparse.NewParser()}
}

// Scan walks dir for *.tf files and validates each one. It returns as soon
// as parsing succeeds for every file, collecting violations across all of
// them; a caller should refuse to execute terraform unless Clean() is true.
func (s *SecurityScanner) Scan(dir string) (*ScanReport, error) {
	report := &ScanReport{}

	var tfFiles []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(path, ".tf") {
			tfFiles = append(tfFiles, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.TypeSecurityViolation, "walk workspace directory", err)
	}

	for _, file := range tfFiles {
		if err := s.scanFile(file, report); err != nil {
			return nil, err
		}
	}

	return report, nil
}

func (s *SecurityScanner) scanFile(file string, report *ScanReport) error {
	src, err := os.ReadFile(file)
	if err != nil {
		return errors.Wrapf(errors.TypeSecurityViolation, err, "read %s", file)
	}

	hclFile, diags := s.parser.ParseHCL(src, file)
	if diags.HasErrors() {
		return errors.Newf(errors.TypeSecurityViolation, "parse %s: %s", file, diags.Error())
	}

	content, _, _ := hclFile.Body.PartialContent(&hcl.BodySchema{
		Blocks: []hcl.BlockHeaderSchema{
			{Type: "resource", LabelNames: []string{"type", "name"}},
			{Type: "data", LabelNames: []string{"type", "name"}},
			{Type: "provider", LabelNames: []string{"name"}},
			{Type: "terraform"},
		},
	})

	for _, block := range content.Blocks {
		switch block.Type {
		case "resource":
			s.scanResource(block, file, report)
		case "data":
			s.scanDataSource(block, file, report)
		case "provider":
			s.scanProvider(block, file, report)
		case "terraform":
			s.scanTerraformBlock(block, file, report)
		}
	}

	return nil
}

func (s *SecurityScanner) scanResource(block *hcl.Block, file string, report *ScanReport) {
	body, ok := block.Body.(interface {
		PartialContent(*hcl.BodySchema) (*hcl.BodyContent, hcl.Body, hcl.Diagnostics)
	})
	if !ok {
		return
	}
	content, _, _ := body.PartialContent(&hcl.BodySchema{
		Blocks: []hcl.BlockHeaderSchema{{Type: "provisioner", LabelNames: []string{"type"}}},
	})
	for _, prov := range content.Blocks {
		if len(prov.Labels) == 0 {
			continue
		}
		kind := prov.Labels[0]
		if disallowedProvisioners[kind] {
			report.Violations = append(report.Violations, Violation{
				File:    file,
				Line:    prov.DefRange.Start.Line,
				Rule:    "disallowed-provisioner",
				Message: fmt.Sprintf("provisioner %q is not permitted in sandboxed workspaces", kind),
			})
		}
	}
}

func (s *SecurityScanner) scanDataSource(block *hcl.Block, file string, report *ScanReport) {
	if len(block.Labels) == 0 {
		return
	}
	dataType := block.Labels[0]
	if dataType == "external" || dataType == "http" {
		report.Violations = append(report.Violations, Violation{
			File:    file,
			Line:    block.DefRange.Start.Line,
			Rule:    "external-data-source",
			Message: fmt.Sprintf("data source %q can run arbitrary code or reach the network and is not permitted", dataType),
		})
	}
}

func (s *SecurityScanner) scanProvider(block *hcl.Block, file string, report *ScanReport) {
	if len(block.Labels) == 0 {
		return
	}
	name := block.Labels[0]
	if !allowedProviders[name] {
		report.Violations = append(report.Violations, Violation{
			File:    file,
			Line:    block.DefRange.Start.Line,
			Rule:    "disallowed-provider",
			Message: fmt.Sprintf("provider %q is outside the sandbox allowlist", name),
		})
	}
}

func (s *SecurityScanner) scanTerraformBlock(block *hcl.Block, file string, report *ScanReport) {
	content, _, _ := block.Body.PartialContent(&hcl.BodySchema{
		Blocks: []hcl.BlockHeaderSchema{{Type: "backend", LabelNames: []string{"type"}}},
	})
	for _, b := range content.Blocks {
		report.Violations = append(report.Violations, Violation{
			File:    file,
			Line:    b.DefRange.Start.Line,
			Rule:    "backend-block",
			Message: "backend blocks are not permitted; the sandbox controls state storage",
		})
	}
}

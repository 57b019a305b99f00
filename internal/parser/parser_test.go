package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harrison/runci/internal/models"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		filename string
		want     Format
	}{
		{"ci-checks.yaml", FormatYAML},
		{"ci-checks.yml", FormatYAML},
		{"ci-docs.md", FormatMarkdown},
		{"ci-docs.markdown", FormatMarkdown},
		{"CI-CHECKS.YAML", FormatYAML},
		{"workflow.json", FormatUnknown},
		{"workflow", FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := DetectFormat(tt.filename); got != tt.want {
				t.Errorf("DetectFormat(%q) = %v, want %v", tt.filename, got, tt.want)
			}
		})
	}
}

func TestNewParserUnknownFormat(t *testing.T) {
	if _, err := NewParser(FormatUnknown); err == nil {
		t.Error("Expected error for unknown format")
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ci-checks.yaml")

	content := `
name: checks
jobs:
  lint:
    steps:
      - run: echo lint
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write workflow file: %v", err)
	}

	workflow, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}

	if workflow.Name != "checks" {
		t.Errorf("Expected name 'checks', got %q", workflow.Name)
	}
	if !filepath.IsAbs(workflow.FilePath) {
		t.Errorf("Expected absolute FilePath, got %q", workflow.FilePath)
	}
}

func TestParseFileDefaultsNameFromFilename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ci-benchmarks.yaml")

	content := `
jobs:
  bench:
    steps:
      - run: echo bench
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write workflow file: %v", err)
	}

	workflow, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if workflow.Name != "ci-benchmarks" {
		t.Errorf("Expected name 'ci-benchmarks', got %q", workflow.Name)
	}
}

func TestParseFileRejectsInvalidWorkflow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ci-bad.yaml")

	content := `
jobs:
  a:
    needs: missing
    steps:
      - run: echo hi
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write workflow file: %v", err)
	}

	if _, err := ParseFile(path); err == nil {
		t.Error("Expected validation error for unknown needs")
	}
}

func TestParseFileUnknownExtension(t *testing.T) {
	if _, err := ParseFile("workflow.txt"); err == nil {
		t.Error("Expected error for unknown extension")
	}
}

func TestMergeWorkflows(t *testing.T) {
	first := &models.Workflow{
		Name:     "checks",
		On:       models.Trigger{Push: &models.BranchFilter{Branches: []string{"main"}}},
		FilePath: "/tmp/ci-checks.yaml",
		Jobs: []models.Job{
			{ID: "lint", Steps: []models.Step{{Run: "echo lint"}}},
		},
	}
	second := &models.Workflow{
		Name:     "docs",
		FilePath: "/tmp/ci-docs.yaml",
		Jobs: []models.Job{
			{ID: "docs", Needs: []string{"lint"}, Steps: []models.Step{{Run: "echo docs"}}},
		},
	}

	merged, err := MergeWorkflows(first, second)
	if err != nil {
		t.Fatalf("MergeWorkflows() error = %v", err)
	}

	if merged.Name != "checks" {
		t.Errorf("Expected merged name from first workflow, got %q", merged.Name)
	}
	if merged.On.Push == nil {
		t.Error("Expected merged trigger from first workflow")
	}
	if len(merged.Jobs) != 2 {
		t.Fatalf("Expected 2 jobs, got %d", len(merged.Jobs))
	}
	if merged.Jobs[1].SourceFile != "/tmp/ci-docs.yaml" {
		t.Errorf("Expected job source file to be tagged, got %q", merged.Jobs[1].SourceFile)
	}
}

func TestMergeWorkflowsDuplicateJobID(t *testing.T) {
	a := &models.Workflow{Jobs: []models.Job{{ID: "lint", Steps: []models.Step{{Run: "true"}}}}}
	b := &models.Workflow{Jobs: []models.Job{{ID: "lint", Steps: []models.Step{{Run: "true"}}}}}

	if _, err := MergeWorkflows(a, b); err == nil {
		t.Error("Expected duplicate job id error")
	}
}

func TestFilterWorkflowFiles(t *testing.T) {
	dir := t.TempDir()

	files := map[string]bool{
		"ci-checks.yaml":  true,
		"ci-docs.md":      true,
		"ci-slow.yml":     true,
		"readme.md":       false,
		"checks.yaml":     false,
		"ci-notes.txt":    false,
		"sub/ci-deep.yml": true,
	}

	for name := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create dir: %v", err)
		}
		if err := os.WriteFile(path, []byte("jobs: {}\n"), 0644); err != nil {
			t.Fatalf("Failed to write file: %v", err)
		}
	}

	result, err := FilterWorkflowFiles([]string{dir})
	if err != nil {
		t.Fatalf("FilterWorkflowFiles() error = %v", err)
	}

	want := 0
	for _, include := range files {
		if include {
			want++
		}
	}
	if len(result) != want {
		t.Fatalf("Expected %d files, got %d: %v", want, len(result), result)
	}

	for _, path := range result {
		base := filepath.Base(path)
		if !strings.HasPrefix(base, "ci-") {
			t.Errorf("Unexpected file in result: %s", path)
		}
	}
}

func TestFilterWorkflowFilesDirectFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ci-checks.yaml")
	if err := os.WriteFile(path, []byte("jobs: {}\n"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	result, err := FilterWorkflowFiles([]string{path})
	if err != nil {
		t.Fatalf("FilterWorkflowFiles() error = %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("Expected 1 file, got %d", len(result))
	}
}

func TestFilterWorkflowFilesNoMatches(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "readme.md"), []byte("# hi\n"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	if _, err := FilterWorkflowFiles([]string{dir}); err == nil {
		t.Error("Expected error when no workflow files match")
	}
}

// Package parser loads CI workflow definitions from YAML and Markdown files.
package parser

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/harrison/runci/internal/fileutil"
	"github.com/harrison/runci/internal/models"
)

// Format represents the format of a workflow file
type Format int

const (
	// FormatUnknown represents an unknown or unsupported file format
	FormatUnknown Format = iota
	// FormatYAML represents a YAML (.yaml, .yml) workflow file
	FormatYAML
	// FormatMarkdown represents a Markdown (.md, .markdown) workflow file
	FormatMarkdown
)

// String returns the string representation of the Format
func (f Format) String() string {
	switch f {
	case FormatYAML:
		return "yaml"
	case FormatMarkdown:
		return "markdown"
	default:
		return "unknown"
	}
}

// Parser is the interface that all workflow parsers must implement
type Parser interface {
	// Parse reads from an io.Reader and returns a parsed Workflow
	Parse(r io.Reader) (*models.Workflow, error)
}

// DetectFormat automatically detects the workflow format based on file extension
// Supported extensions:
//   - .yaml, .yml -> FormatYAML
//   - .md, .markdown -> FormatMarkdown
//   - all others -> FormatUnknown
func DetectFormat(filename string) Format {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".yaml", ".yml":
		return FormatYAML
	case ".md", ".markdown":
		return FormatMarkdown
	default:
		return FormatUnknown
	}
}

// NewParser creates a new parser instance for the specified format
// Returns an error if the format is unknown or unsupported
func NewParser(format Format) (Parser, error) {
	switch format {
	case FormatYAML:
		return NewYAMLParser(), nil
	case FormatMarkdown:
		return NewMarkdownParser(), nil
	default:
		return nil, fmt.Errorf("unsupported format: %v", format)
	}
}

// ParseFile is a convenience function that:
//  1. Auto-detects the format from the file extension
//  2. Opens and parses the file
//  3. Runs semantic validation on the result
//  4. Stores the original file path in workflow.FilePath
//
// This is the recommended way to parse workflow files from disk.
func ParseFile(path string) (*models.Workflow, error) {
	workflow, err := parseFile(path)
	if err != nil {
		return nil, err
	}

	if err := Validate(workflow); err != nil {
		return nil, fmt.Errorf("invalid workflow %s: %w", path, err)
	}

	// Store the original file path for later use
	// Convert to absolute path for consistency
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	workflow.FilePath = absPath

	return workflow, nil
}

// parseFile is the internal implementation that parses a single file
// without semantic validation
func parseFile(path string) (*models.Workflow, error) {
	format := DetectFormat(path)
	if format == FormatUnknown {
		return nil, fmt.Errorf("unknown file format: %s (supported: .yaml, .yml, .md, .markdown)", path)
	}

	p, err := NewParser(format)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	workflow, err := p.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse workflow: %w", err)
	}

	if workflow.Name == "" {
		workflow.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	return workflow, nil
}

// MergeWorkflows combines multiple workflows into a single workflow
// while preserving all job dependencies. Job IDs must be unique across
// all merged files. The first workflow provides the name, trigger, and
// environment settings.
func MergeWorkflows(workflows ...*models.Workflow) (*models.Workflow, error) {
	if len(workflows) == 0 {
		return &models.Workflow{Jobs: []models.Job{}}, nil
	}

	seen := make(map[string]bool)
	var mergedJobs []models.Job

	for _, wf := range workflows {
		if wf == nil {
			continue
		}
		for _, job := range wf.Jobs {
			if seen[job.ID] {
				return nil, fmt.Errorf("duplicate job id: %s", job.ID)
			}
			seen[job.ID] = true
			// Track which workflow file this job comes from
			job.SourceFile = wf.FilePath
			mergedJobs = append(mergedJobs, job)
		}
	}

	var result *models.Workflow
	for _, wf := range workflows {
		if wf != nil {
			result = &models.Workflow{
				Name:     wf.Name,
				On:       wf.On,
				Env:      wf.Env,
				EnvFile:  wf.EnvFile,
				Jobs:     mergedJobs,
				FilePath: wf.FilePath,
			}
			break
		}
	}

	if result == nil {
		result = &models.Workflow{Jobs: mergedJobs}
	}
	return result, nil
}

// FilterWorkflowFiles accepts an array of file and/or directory paths and
// returns a deduplicated, sorted list of absolute file paths that match the
// ci-* pattern.
//
// Pattern matching rules:
//   - Files MUST start with the "ci-" prefix
//   - Files MUST have extension: .yaml, .yml, .md, or .markdown
//   - Examples: ci-checks.yaml, ci-benchmarks.yml, ci-docs.md
//
// For directories, recursively scans for files matching the pattern.
// For files, checks if the filename matches the pattern.
func FilterWorkflowFiles(paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no paths provided")
	}

	// Use map for deduplication
	workflowFiles := make(map[string]bool)

	filePattern := regexp.MustCompile(`^ci-.*\.(yaml|yml|md|markdown)$`)

	opts := fileutil.ScanOptions{
		Pattern:    "^ci-.*",
		Extensions: []string{".yaml", ".yml", ".md", ".markdown"},
		Recursive:  true,
	}

	for _, path := range paths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve path %q: %w", path, err)
		}

		info, err := os.Stat(absPath)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("path %q does not exist", absPath)
			}
			return nil, fmt.Errorf("failed to access path %q: %w", absPath, err)
		}

		if info.IsDir() {
			result, err := fileutil.ScanDirectory(absPath, opts)
			if err != nil {
				return nil, fmt.Errorf("failed to scan directory %q: %w", absPath, err)
			}
			for _, file := range result.Files {
				workflowFiles[file] = true
			}
		} else {
			if filePattern.MatchString(filepath.Base(absPath)) {
				workflowFiles[absPath] = true
			}
		}
	}

	if len(workflowFiles) == 0 {
		return nil, fmt.Errorf("no workflow files found matching pattern ci-*.{yaml,yml,md,markdown}")
	}

	result := make([]string, 0, len(workflowFiles))
	for path := range workflowFiles {
		result = append(result, path)
	}
	sort.Strings(result)

	return result, nil
}

package parser

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harrison/runci/internal/models"
)

// YAMLParser parses workflow definitions in YAML format
type YAMLParser struct{}

// NewYAMLParser creates a new YAML workflow parser
func NewYAMLParser() *YAMLParser {
	return &YAMLParser{}
}

// yamlWorkflow is the top-level YAML document shape.
// Jobs are decoded through yaml.Node to preserve document order,
// which a plain map would lose.
type yamlWorkflow struct {
	Name    string            `yaml:"name"`
	On      yaml.Node         `yaml:"on"`
	Env     map[string]string `yaml:"env"`
	EnvFile string            `yaml:"env_file"`
	Jobs    yaml.Node         `yaml:"jobs"`
}

type yamlJob struct {
	Name            string            `yaml:"name"`
	Needs           yaml.Node         `yaml:"needs"`
	Env             map[string]string `yaml:"env"`
	WorkingDir      string            `yaml:"working_dir"`
	Timeout         string            `yaml:"timeout"`
	ContinueOnError bool              `yaml:"continue_on_error"`
	Steps           []yamlStep        `yaml:"steps"`
}

type yamlStep struct {
	Name            string            `yaml:"name"`
	Run             string            `yaml:"run"`
	Shell           string            `yaml:"shell"`
	Env             map[string]string `yaml:"env"`
	WorkingDir      string            `yaml:"working_dir"`
	Timeout         string            `yaml:"timeout"`
	ContinueOnError bool              `yaml:"continue_on_error"`
}

type yamlBranchFilter struct {
	Branches []string `yaml:"branches"`
}

// Parse reads a YAML workflow definition from r
func (p *YAMLParser) Parse(r io.Reader) (*models.Workflow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}

	var doc yamlWorkflow
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	workflow := &models.Workflow{
		Name:    doc.Name,
		Env:     doc.Env,
		EnvFile: doc.EnvFile,
	}

	trigger, err := parseTrigger(&doc.On)
	if err != nil {
		return nil, err
	}
	workflow.On = trigger

	jobs, err := parseJobs(&doc.Jobs)
	if err != nil {
		return nil, err
	}
	workflow.Jobs = jobs

	return workflow, nil
}

// parseTrigger decodes the "on" section, which may be:
//   - a scalar:   on: push
//   - a sequence: on: [push, pull_request]
//   - a mapping:  on: {push: {branches: [main]}, pull_request: {branches: [main]}}
func parseTrigger(node *yaml.Node) (models.Trigger, error) {
	var trigger models.Trigger
	if node == nil || node.Kind == 0 {
		return trigger, nil
	}

	switch node.Kind {
	case yaml.ScalarNode:
		var kind string
		if err := node.Decode(&kind); err != nil {
			return trigger, fmt.Errorf("invalid on section: %w", err)
		}
		return triggerForKinds([]string{kind})

	case yaml.SequenceNode:
		var kinds []string
		if err := node.Decode(&kinds); err != nil {
			return trigger, fmt.Errorf("invalid on section: %w", err)
		}
		return triggerForKinds(kinds)

	case yaml.MappingNode:
		// Mapping content alternates key, value
		for i := 0; i+1 < len(node.Content); i += 2 {
			keyNode := node.Content[i]
			valueNode := node.Content[i+1]

			filter := &models.BranchFilter{}
			if valueNode.Kind == yaml.MappingNode {
				var raw yamlBranchFilter
				if err := valueNode.Decode(&raw); err != nil {
					return trigger, fmt.Errorf("invalid on.%s section: %w", keyNode.Value, err)
				}
				filter.Branches = raw.Branches
			}

			switch keyNode.Value {
			case models.EventPush:
				trigger.Push = filter
			case models.EventPullRequest:
				trigger.PullRequest = filter
			default:
				return trigger, fmt.Errorf("unsupported trigger event %q", keyNode.Value)
			}
		}
		return trigger, nil

	default:
		return trigger, fmt.Errorf("invalid on section: expected scalar, sequence, or mapping")
	}
}

// triggerForKinds builds a trigger that matches any branch for each listed kind
func triggerForKinds(kinds []string) (models.Trigger, error) {
	var trigger models.Trigger
	for _, kind := range kinds {
		switch kind {
		case models.EventPush:
			trigger.Push = &models.BranchFilter{}
		case models.EventPullRequest:
			trigger.PullRequest = &models.BranchFilter{}
		default:
			return trigger, fmt.Errorf("unsupported trigger event %q", kind)
		}
	}
	return trigger, nil
}

// parseJobs decodes the "jobs" mapping in document order
func parseJobs(node *yaml.Node) ([]models.Job, error) {
	if node == nil || node.Kind == 0 {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("jobs section must be a mapping of job id to job definition")
	}

	var jobs []models.Job
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode := node.Content[i]
		valueNode := node.Content[i+1]

		var raw yamlJob
		if err := valueNode.Decode(&raw); err != nil {
			return nil, fmt.Errorf("invalid job %q: %w", keyNode.Value, err)
		}

		job, err := buildJob(keyNode.Value, &raw)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// buildJob converts a decoded yamlJob into a models.Job
func buildJob(id string, raw *yamlJob) (models.Job, error) {
	job := models.Job{
		ID:              id,
		Name:            raw.Name,
		Env:             raw.Env,
		WorkingDir:      raw.WorkingDir,
		ContinueOnError: raw.ContinueOnError,
	}

	needs, err := parseNeeds(&raw.Needs)
	if err != nil {
		return job, fmt.Errorf("invalid job %q: %w", id, err)
	}
	job.Needs = needs

	if raw.Timeout != "" {
		timeout, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return job, fmt.Errorf("invalid job %q timeout %q: %w", id, raw.Timeout, err)
		}
		job.Timeout = timeout
	}

	for i, rawStep := range raw.Steps {
		step := models.Step{
			Name:            rawStep.Name,
			Run:             rawStep.Run,
			Shell:           rawStep.Shell,
			Env:             rawStep.Env,
			WorkingDir:      rawStep.WorkingDir,
			ContinueOnError: rawStep.ContinueOnError,
		}
		if rawStep.Timeout != "" {
			timeout, err := time.ParseDuration(rawStep.Timeout)
			if err != nil {
				return job, fmt.Errorf("invalid job %q step %d timeout %q: %w", id, i+1, rawStep.Timeout, err)
			}
			step.Timeout = timeout
		}
		job.Steps = append(job.Steps, step)
	}

	return job, nil
}

// parseNeeds decodes the "needs" field, which may be a scalar or a sequence
func parseNeeds(node *yaml.Node) ([]string, error) {
	if node == nil || node.Kind == 0 {
		return nil, nil
	}

	switch node.Kind {
	case yaml.ScalarNode:
		var need string
		if err := node.Decode(&need); err != nil {
			return nil, fmt.Errorf("invalid needs: %w", err)
		}
		if need == "" {
			return nil, nil
		}
		return []string{need}, nil
	case yaml.SequenceNode:
		var needs []string
		if err := node.Decode(&needs); err != nil {
			return nil, fmt.Errorf("invalid needs: %w", err)
		}
		return needs, nil
	default:
		return nil, fmt.Errorf("needs must be a job id or a list of job ids")
	}
}

package models

import (
	"errors"
	"fmt"
	"time"
)

// Workflow represents a parsed CI workflow definition
type Workflow struct {
	Name     string            // Workflow name
	On       Trigger           // Trigger surface (push / pull_request)
	Env      map[string]string // Workflow-level environment variables
	EnvFile  string            // Path to an environment-definition file
	Jobs     []Job             // Jobs to execute
	Waves    []Wave            // Execution waves (grouped jobs)
	FilePath string            // Original file path (for display and history)
}

// Wave represents a group of jobs that can be executed in parallel
type Wave struct {
	Name           string   // Wave name (e.g., "Wave 1")
	JobIDs         []string // Job IDs in this wave
	MaxConcurrency int      // Maximum concurrent jobs in this wave
}

// Job represents a single job in a workflow: an ordered list of steps
// executed sequentially on one runner
type Job struct {
	ID              string            // Unique job identifier
	Name            string            // Human-readable job name (defaults to ID)
	Needs           []string          // Job IDs this job depends on
	Env             map[string]string // Job-level environment variables
	WorkingDir      string            // Working directory for all steps (optional)
	Timeout         time.Duration     // Maximum execution time for the job (0 = none)
	ContinueOnError bool              // Whether the run continues when this job fails
	Steps           []Step            // Steps executed in order
	SourceFile      string            // Source workflow file (for multi-file workflows)
}

// Step represents a single command invocation within a job
type Step struct {
	Name            string            // Step name (optional, defaults to the command)
	Run             string            // Shell command to execute
	Shell           string            // Shell to use ("sh" or "bash", default "sh")
	Env             map[string]string // Step-level environment variables
	WorkingDir      string            // Working directory override (optional)
	Timeout         time.Duration     // Maximum execution time for the step (0 = job timeout)
	ContinueOnError bool              // Whether the job continues when this step fails
}

// Validate checks if the job has all required fields
func (j *Job) Validate() error {
	if j.ID == "" {
		return errors.New("job id is required")
	}
	if len(j.Steps) == 0 {
		return fmt.Errorf("job %q has no steps", j.ID)
	}
	for i := range j.Steps {
		if err := j.Steps[i].Validate(); err != nil {
			return fmt.Errorf("job %q step %d: %w", j.ID, i+1, err)
		}
	}
	return nil
}

// Validate checks if the step has all required fields
func (s *Step) Validate() error {
	if s.Run == "" {
		return errors.New("step run command is required")
	}
	switch s.Shell {
	case "", "sh", "bash":
	default:
		return fmt.Errorf("unsupported shell %q (supported: sh, bash)", s.Shell)
	}
	return nil
}

// DisplayName returns the step name, falling back to the command itself
func (s *Step) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Run
}

// DisplayName returns the job name, falling back to the job ID
func (j *Job) DisplayName() string {
	if j.Name != "" {
		return j.Name
	}
	return j.ID
}

// JobByID finds a job by its ID in a job list
func JobByID(jobs []Job, id string) (*Job, bool) {
	for i := range jobs {
		if jobs[i].ID == id {
			return &jobs[i], true
		}
	}
	return nil, false
}

// HasCyclicDependencies detects circular dependencies in a list of jobs
// using DFS with color marking (white=unvisited, gray=visiting, black=visited)
func HasCyclicDependencies(jobs []Job) bool {
	// Build adjacency list: job ID -> list of dependent job IDs
	adjacency := make(map[string][]string)
	jobSet := make(map[string]bool)

	for _, job := range jobs {
		jobSet[job.ID] = true
		adjacency[job.ID] = []string{}
	}

	// Build edges: if job A needs B, then B -> A
	for _, job := range jobs {
		for _, dep := range job.Needs {
			if dep == job.ID {
				return true
			}
			if jobSet[dep] {
				adjacency[dep] = append(adjacency[dep], job.ID)
			}
		}
	}

	const (
		white = 0 // not visited
		gray  = 1 // currently visiting
		black = 2 // visited
	)

	colors := make(map[string]int)
	for id := range jobSet {
		colors[id] = white
	}

	var dfs func(string) bool
	dfs = func(node string) bool {
		colors[node] = gray

		for _, neighbor := range adjacency[node] {
			if colors[neighbor] == gray {
				// Back edge found - cycle detected
				return true
			}
			if colors[neighbor] == white && dfs(neighbor) {
				return true
			}
		}

		colors[node] = black
		return false
	}

	for id := range jobSet {
		if colors[id] == white {
			if dfs(id) {
				return true
			}
		}
	}

	return false
}

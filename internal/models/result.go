package models

import "time"

// Job and step execution status constants
const (
	StatusSuccess   = "success"   // Completed with exit code 0
	StatusFailed    = "failed"    // Non-zero exit or execution error
	StatusSkipped   = "skipped"   // Not executed because a dependency failed
	StatusCancelled = "cancelled" // Interrupted before completion
	StatusTimedOut  = "timed_out" // Deadline exceeded
)

// StepResult represents the result of executing a single step
type StepResult struct {
	Step     Step          // The step that was executed
	Status   string        // One of the Status* constants
	ExitCode int           // Process exit code (-1 if the process never ran)
	Output   string        // Combined stdout/stderr
	Error    error         // Error if execution failed
	Duration time.Duration // Time taken to execute
}

// JobResult represents the result of executing a single job
type JobResult struct {
	Job      Job           // The job that was executed
	Status   string        // One of the Status* constants
	Steps    []StepResult  // Results of executed steps, in order
	Error    error         // First error encountered
	Duration time.Duration // Time taken to execute
}

// Failed reports whether the job result represents a failure
func (r JobResult) Failed() bool {
	switch r.Status {
	case StatusFailed, StatusTimedOut, StatusCancelled:
		return true
	}
	return r.Error != nil
}

// RunResult represents the aggregate result of executing a workflow
type RunResult struct {
	RunID      string        // Unique identifier for this run
	Workflow   string        // Workflow name
	Event      *Event        // Event the run was triggered for (nil = manual)
	TotalJobs  int           // Total number of jobs
	Succeeded  int           // Number of successful jobs
	Failed     int           // Number of failed jobs
	Skipped    int           // Number of skipped jobs
	Duration   time.Duration // Total execution time
	StartedAt  time.Time     // When execution started
	JobResults []JobResult   // All job results in execution order
	FailedJobs []JobResult   // Details of failed jobs
}

// Success reports whether every job either succeeded or was allowed to fail
func (r *RunResult) Success() bool {
	return r.Failed == 0
}

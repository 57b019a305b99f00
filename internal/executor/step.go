package executor

import (
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/harrison/runci/internal/models"
)

// DefaultShell is the shell used when a step does not specify one
const DefaultShell = "sh"

// StepRunner executes a single step as a subprocess.
// The base environment is shared across steps; job- and step-level
// variables are layered on top per invocation.
type StepRunner struct {
	// BaseEnv is the KEY=VALUE environment every step starts from
	// (process env merged with the env file and workflow env)
	BaseEnv []string
	// WorkingDir is the default working directory for steps
	WorkingDir string
}

// NewStepRunner creates a StepRunner with the given base environment
// and default working directory
func NewStepRunner(baseEnv []string, workingDir string) *StepRunner {
	return &StepRunner{
		BaseEnv:    baseEnv,
		WorkingDir: workingDir,
	}
}

// Run executes the step and blocks until the subprocess exits or the
// context is done. The step's exit code is the only success signal:
// zero means success, anything else fails the step.
func (r *StepRunner) Run(ctx context.Context, job models.Job, step models.Step) models.StepResult {
	result := models.StepResult{
		Step:     step,
		ExitCode: -1,
	}

	stepCtx := ctx
	var cancel context.CancelFunc
	if step.Timeout > 0 {
		stepCtx, cancel = context.WithTimeout(ctx, step.Timeout)
		defer cancel()
	}

	shell := step.Shell
	if shell == "" {
		shell = DefaultShell
	}

	cmd := exec.CommandContext(stepCtx, shell, "-c", step.Run)
	cmd.Env = MergeEnv(r.BaseEnv, job.Env, step.Env)
	cmd.Dir = r.WorkingDir
	if job.WorkingDir != "" {
		cmd.Dir = job.WorkingDir
	}
	if step.WorkingDir != "" {
		cmd.Dir = step.WorkingDir
	}

	startTime := time.Now()
	output, err := cmd.CombinedOutput()
	result.Duration = time.Since(startTime)
	result.Output = string(output)

	if err == nil {
		result.Status = models.StatusSuccess
		result.ExitCode = 0
		return result
	}

	result.Error = err

	// Distinguish a step deadline from an outer cancellation: the step
	// context expiring while the parent is still live is a step timeout.
	switch {
	case stepCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil:
		result.Status = models.StatusTimedOut
	case ctx.Err() != nil:
		if ctx.Err() == context.DeadlineExceeded {
			result.Status = models.StatusTimedOut
		} else {
			result.Status = models.StatusCancelled
		}
	default:
		result.Status = models.StatusFailed
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
	}

	return result
}

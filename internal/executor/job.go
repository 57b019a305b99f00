package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/harrison/runci/internal/models"
)

// JobExecutor defines the behavior required to execute individual jobs
// within a wave.
type JobExecutor interface {
	Execute(ctx context.Context, job models.Job) (models.JobResult, error)
}

// StepLogger receives per-step progress notifications during job execution.
// Implementations must be safe for concurrent use since jobs in a wave run
// in parallel.
type StepLogger interface {
	LogStepStart(job models.Job, step models.Step)
	LogStepResult(job models.Job, result models.StepResult)
}

// JobRunner executes a job's steps strictly sequentially, stopping at the
// first failed step unless that step allows continuation.
type JobRunner struct {
	stepRunner *StepRunner
	stepLogger StepLogger // optional, may be nil
}

// NewJobRunner creates a JobRunner backed by the given step runner
func NewJobRunner(stepRunner *StepRunner, stepLogger StepLogger) *JobRunner {
	return &JobRunner{
		stepRunner: stepRunner,
		stepLogger: stepLogger,
	}
}

// Execute runs the job's steps in order. A non-zero exit fails the job
// and skips the remaining steps, unless the failed step is marked
// continue_on_error. The returned error is non-nil only for context
// cancellation; ordinary step failures are reported through the result.
func (r *JobRunner) Execute(ctx context.Context, job models.Job) (models.JobResult, error) {
	result := models.JobResult{
		Job:    job,
		Status: models.StatusSuccess,
	}

	if r.stepRunner == nil {
		result.Status = models.StatusFailed
		result.Error = fmt.Errorf("step runner is required")
		return result, result.Error
	}

	jobCtx := ctx
	var cancel context.CancelFunc
	if job.Timeout > 0 {
		jobCtx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	startTime := time.Now()

	for _, step := range job.Steps {
		if err := jobCtx.Err(); err != nil {
			result.Status = statusForContextErr(jobCtx, ctx)
			result.Error = err
			break
		}

		if r.stepLogger != nil {
			r.stepLogger.LogStepStart(job, step)
		}

		stepResult := r.stepRunner.Run(jobCtx, job, step)
		result.Steps = append(result.Steps, stepResult)

		if r.stepLogger != nil {
			r.stepLogger.LogStepResult(job, stepResult)
		}

		if stepResult.Status == models.StatusSuccess {
			continue
		}

		if stepResult.Status == models.StatusFailed && step.ContinueOnError {
			// Step is allowed to fail; the job stays green
			continue
		}

		// First blocking failure: mark the job and stop, the standard
		// fail-fast behavior of sequential CI steps
		result.Status = stepResult.Status
		if stepResult.Error != nil {
			result.Error = NewJobError(job.ID, fmt.Sprintf("step %q failed", step.DisplayName()), stepResult.Error)
		}
		break
	}

	// A job deadline that expired mid-run overrides the step status
	if jobCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		result.Status = models.StatusTimedOut
	}

	result.Duration = time.Since(startTime)

	if ctx.Err() != nil {
		return result, ctx.Err()
	}
	return result, nil
}

// statusForContextErr maps a context error to a job status, distinguishing
// a job-level deadline from an outer cancellation
func statusForContextErr(jobCtx, ctx context.Context) string {
	if jobCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		return models.StatusTimedOut
	}
	if ctx.Err() == context.DeadlineExceeded {
		return models.StatusTimedOut
	}
	return models.StatusCancelled
}

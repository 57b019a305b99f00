package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/harrison/runci/internal/models"
)

// Logger defines the interface for logging execution progress and results.
type Logger interface {
	LogWaveStart(wave models.Wave)
	LogWaveComplete(wave models.Wave, duration time.Duration)
	LogJobStart(job models.Job)
	LogJobResult(result models.JobResult) error
	LogSummary(result models.RunResult)
}

// WaveExecutor coordinates sequential wave execution with bounded
// parallelism per wave. Jobs inside a wave run concurrently; a blocking
// job failure stops subsequent waves when failFast is set and always
// skips the failed job's dependents.
type WaveExecutor struct {
	jobExecutor JobExecutor
	logger      Logger
	failFast    bool
}

// NewWaveExecutor constructs a WaveExecutor with the provided job executor.
// The logger parameter is optional and can be nil to disable logging.
func NewWaveExecutor(jobExecutor JobExecutor, logger Logger, failFast bool) *WaveExecutor {
	return &WaveExecutor{
		jobExecutor: jobExecutor,
		logger:      logger,
		failFast:    failFast,
	}
}

// ExecuteWorkflow runs the workflow's waves sequentially while executing
// jobs within each wave in parallel. It returns all collected job results
// and the first context error encountered, if any.
func (w *WaveExecutor) ExecuteWorkflow(ctx context.Context, workflow *models.Workflow) ([]models.JobResult, error) {
	if w == nil {
		return nil, fmt.Errorf("wave executor is nil")
	}
	if workflow == nil {
		return nil, fmt.Errorf("workflow cannot be nil")
	}
	if w.jobExecutor == nil {
		return nil, fmt.Errorf("job executor is required")
	}

	jobMap := make(map[string]models.Job, len(workflow.Jobs))
	for _, job := range workflow.Jobs {
		jobMap[job.ID] = job
	}

	// Transitive dependents of blocking failures; these jobs are skipped
	blocked := make(map[string]bool)
	// Once set, every remaining job is skipped without executing
	stopped := false

	var allResults []models.JobResult
	var firstErr error

	for _, wave := range workflow.Waves {
		waveResults, err := w.executeWave(ctx, wave, jobMap, blocked, stopped)
		allResults = append(allResults, waveResults...)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			break
		}

		var failedIDs []string
		for _, result := range waveResults {
			if result.Status == models.StatusSkipped {
				continue
			}
			if result.Failed() && !result.Job.ContinueOnError {
				failedIDs = append(failedIDs, result.Job.ID)
				if w.failFast {
					stopped = true
				}
			}
		}

		if len(failedIDs) > 0 {
			dependents, depErr := DependentsOf(workflow.Jobs, failedIDs)
			if depErr != nil {
				if firstErr == nil {
					firstErr = depErr
				}
				break
			}
			for id := range dependents {
				blocked[id] = true
			}
		}
	}

	return allResults, firstErr
}

// executeWave runs a single wave. Blocked jobs, and all jobs once the
// run has stopped, receive synthetic skipped results.
func (w *WaveExecutor) executeWave(ctx context.Context, wave models.Wave, jobMap map[string]models.Job, blocked map[string]bool, stopped bool) ([]models.JobResult, error) {
	if len(wave.JobIDs) == 0 {
		return []models.JobResult{}, nil
	}

	var runnable []models.Job
	resultMap := make(map[string]models.JobResult, len(wave.JobIDs))

	for _, jobID := range wave.JobIDs {
		job, ok := jobMap[jobID]
		if !ok {
			return nil, NewJobError(jobID, fmt.Sprintf("job not found in %s", wave.Name), nil)
		}

		if stopped || blocked[jobID] {
			skipped := models.JobResult{
				Job:    job,
				Status: models.StatusSkipped,
			}
			resultMap[jobID] = skipped
			if w.logger != nil {
				_ = w.logger.LogJobResult(skipped)
			}
			continue
		}

		runnable = append(runnable, job)
	}

	var execErr error

	if len(runnable) > 0 {
		if w.logger != nil {
			w.logger.LogWaveStart(wave)
		}
		waveStartTime := time.Now()

		maxConcurrency := wave.MaxConcurrency
		if maxConcurrency <= 0 || maxConcurrency > len(runnable) {
			maxConcurrency = len(runnable)
		}

		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(maxConcurrency)

		var mu sync.Mutex

		for _, job := range runnable {
			job := job
			group.Go(func() error {
				if w.logger != nil {
					w.logger.LogJobStart(job)
				}

				result, err := w.jobExecutor.Execute(groupCtx, job)
				if result.Job.ID == "" {
					result.Job = job
				}

				mu.Lock()
				resultMap[job.ID] = result
				mu.Unlock()

				if w.logger != nil {
					_ = w.logger.LogJobResult(result)
				}

				// Only context errors abort the group; an ordinary job
				// failure must not cancel its wave siblings
				if err != nil && groupCtx.Err() != nil {
					return err
				}
				return nil
			})
		}

		execErr = group.Wait()

		if w.logger != nil {
			w.logger.LogWaveComplete(wave, time.Since(waveStartTime))
		}
	}

	// Return results in the wave's declared job order
	waveResults := make([]models.JobResult, 0, len(wave.JobIDs))
	for _, jobID := range wave.JobIDs {
		if result, ok := resultMap[jobID]; ok {
			waveResults = append(waveResults, result)
		}
	}

	return waveResults, execErr
}

package executor

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/runci/internal/models"
)

// WorkflowExecutor defines the behavior required to execute a workflow's waves.
type WorkflowExecutor interface {
	ExecuteWorkflow(ctx context.Context, workflow *models.Workflow) ([]models.JobResult, error)
}

// Orchestrator coordinates workflow execution, handles graceful shutdown,
// and aggregates results into a RunResult.
type Orchestrator struct {
	waveExecutor WorkflowExecutor
	logger       Logger
}

// NewOrchestrator creates a new Orchestrator instance.
// The logger parameter is optional and can be nil.
func NewOrchestrator(waveExecutor WorkflowExecutor, logger Logger) *Orchestrator {
	if waveExecutor == nil {
		panic("wave executor cannot be nil")
	}

	return &Orchestrator{
		waveExecutor: waveExecutor,
		logger:       logger,
	}
}

// ExecuteWorkflow orchestrates a workflow run with graceful shutdown
// support. It handles SIGINT/SIGTERM, coordinates wave execution, and
// aggregates job results. The event, if non-nil, records what triggered
// the run.
func (o *Orchestrator) ExecuteWorkflow(ctx context.Context, workflow *models.Workflow, event *models.Event) (*models.RunResult, error) {
	if workflow == nil {
		return nil, fmt.Errorf("workflow cannot be nil")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Graceful shutdown on SIGINT/SIGTERM: cancel the context and let
	// in-flight subprocesses be killed through exec.CommandContext
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(os.Stderr, "\nReceived interrupt signal, shutting down gracefully...")
			cancel()
		case <-ctx.Done():
		}
	}()

	startTime := time.Now()

	results, err := o.waveExecutor.ExecuteWorkflow(ctx, workflow)

	duration := time.Since(startTime)

	runResult := o.aggregateResults(workflow, event, results, startTime, duration)

	if o.logger != nil {
		o.logger.LogSummary(*runResult)
	}

	return runResult, err
}

// aggregateResults processes job results and creates a RunResult summary
func (o *Orchestrator) aggregateResults(workflow *models.Workflow, event *models.Event, results []models.JobResult, startTime time.Time, duration time.Duration) *models.RunResult {
	runResult := &models.RunResult{
		RunID:      uuid.NewString(),
		Workflow:   workflow.Name,
		Event:      event,
		TotalJobs:  len(workflow.Jobs),
		Duration:   duration,
		StartedAt:  startTime,
		JobResults: results,
		FailedJobs: []models.JobResult{},
	}

	executed := make(map[string]bool, len(results))
	for _, result := range results {
		executed[result.Job.ID] = true
		switch {
		case result.Status == models.StatusSuccess:
			runResult.Succeeded++
		case result.Status == models.StatusSkipped:
			runResult.Skipped++
		case result.Failed() && result.Job.ContinueOnError:
			// Allowed failure: counted as succeeded for the run verdict,
			// the job result itself still records the failure
			runResult.Succeeded++
		default:
			runResult.Failed++
			runResult.FailedJobs = append(runResult.FailedJobs, result)
		}
	}

	// Jobs never reached (run stopped before their wave) count as skipped
	for _, job := range workflow.Jobs {
		if !executed[job.ID] {
			runResult.Skipped++
		}
	}

	return runResult
}

package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harrison/runci/internal/models"
)

// FileLogger writes detailed execution logs to a per-run file in the log
// directory. Unlike the console logger it always records step output,
// making the log file the complete record of a run.
type FileLogger struct {
	file     *os.File
	path     string
	logLevel string
	mutex    sync.Mutex
}

// NewFileLogger creates a FileLogger writing to a timestamped file in
// logDir. The directory is created if it doesn't exist.
func NewFileLogger(logDir, logLevel string) (*FileLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
	}

	filename := fmt.Sprintf("run-%s.log", time.Now().Format("20060102-150405"))
	path := filepath.Join(logDir, filename)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file %s: %w", path, err)
	}

	return &FileLogger{
		file:     file,
		path:     path,
		logLevel: normalizeLogLevel(logLevel),
	}, nil
}

// Path returns the path of the log file
func (fl *FileLogger) Path() string {
	return fl.path
}

// Close closes the underlying log file
func (fl *FileLogger) Close() error {
	fl.mutex.Lock()
	defer fl.mutex.Unlock()
	if fl.file == nil {
		return nil
	}
	err := fl.file.Close()
	fl.file = nil
	return err
}

// logf writes a timestamped line under the mutex
func (fl *FileLogger) logf(format string, args ...interface{}) {
	fl.mutex.Lock()
	defer fl.mutex.Unlock()
	if fl.file == nil {
		return
	}
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(fl.file, "[%s] "+format+"\n", append([]interface{}{timestamp}, args...)...)
}

// LogWaveStart logs the start of a wave execution
func (fl *FileLogger) LogWaveStart(wave models.Wave) {
	fl.logf("wave start: %s jobs=%s", wave.Name, strings.Join(wave.JobIDs, ","))
}

// LogWaveComplete logs the completion of a wave
func (fl *FileLogger) LogWaveComplete(wave models.Wave, duration time.Duration) {
	fl.logf("wave complete: %s duration=%s", wave.Name, duration.Round(time.Millisecond))
}

// LogJobStart logs the start of a job execution
func (fl *FileLogger) LogJobStart(job models.Job) {
	fl.logf("job start: %s", job.ID)
}

// LogJobResult logs a job result with the full output of every step
func (fl *FileLogger) LogJobResult(result models.JobResult) error {
	fl.logf("job result: %s status=%s duration=%s", result.Job.ID, result.Status, result.Duration.Round(time.Millisecond))

	fl.mutex.Lock()
	defer fl.mutex.Unlock()
	if fl.file == nil {
		return nil
	}

	for _, step := range result.Steps {
		fmt.Fprintf(fl.file, "  step %q status=%s exit=%d duration=%s\n",
			step.Step.DisplayName(), step.Status, step.ExitCode, step.Duration.Round(time.Millisecond))
		if output := strings.TrimSpace(step.Output); output != "" {
			for _, line := range strings.Split(output, "\n") {
				fmt.Fprintf(fl.file, "    | %s\n", line)
			}
		}
	}

	if result.Error != nil {
		fmt.Fprintf(fl.file, "  error: %v\n", result.Error)
	}

	return nil
}

// LogStepStart logs the start of a step
func (fl *FileLogger) LogStepStart(job models.Job, step models.Step) {
	fl.logf("step start: job=%s step=%q", job.ID, step.DisplayName())
}

// LogStepResult logs a step result
func (fl *FileLogger) LogStepResult(job models.Job, result models.StepResult) {
	fl.logf("step result: job=%s step=%q status=%s exit=%d",
		job.ID, result.Step.DisplayName(), result.Status, result.ExitCode)
}

// LogSummary logs the run summary
func (fl *FileLogger) LogSummary(result models.RunResult) {
	fl.logf("run summary: workflow=%s run_id=%s total=%d succeeded=%d failed=%d skipped=%d duration=%s",
		result.Workflow, result.RunID, result.TotalJobs, result.Succeeded,
		result.Failed, result.Skipped, result.Duration.Round(time.Millisecond))
}

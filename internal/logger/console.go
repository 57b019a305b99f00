// Package logger provides logging implementations for workflow execution.
//
// The logger package offers structured logging of execution progress at the
// wave, job, and step levels. Implementations are thread-safe and support
// various output destinations (console, file).
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/harrison/runci/internal/models"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// ConsoleLogger logs execution progress to a writer with timestamps and
// thread safety. All output is prefixed with [HH:MM:SS] timestamps.
// It supports log level filtering to control message verbosity.
// Color output is automatically enabled for terminal output.
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
	scheme      *colorScheme
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided
// io.Writer. If writer is nil, messages are silently discarded.
// logLevel determines the minimum log level for messages to be output.
// Valid levels: trace, debug, info, warn, error (case-insensitive).
// If logLevel is empty or invalid, defaults to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	normalizedLevel := normalizeLogLevel(logLevel)
	useColor := isTerminal(writer)

	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizedLevel,
		colorOutput: useColor,
		scheme:      newColorScheme(),
	}
}

// isTerminal checks if the writer is a terminal that supports colors.
// Honors the NO_COLOR convention.
func isTerminal(w io.Writer) bool {
	if w == nil {
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// normalizeLogLevel converts a log level string to lowercase and validates it.
// Returns "info" as default for empty or invalid levels.
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if validLevels[normalized] {
		return normalized
	}

	return "info" // Default level
}

// shouldLog checks if a message at the given level should be logged
func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

// logLevelToInt converts a log level string to its numeric value
func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

// logf writes a timestamped line under the mutex
func (cl *ConsoleLogger) logf(format string, args ...interface{}) {
	if cl.writer == nil {
		return
	}
	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	timestamp := time.Now().Format("15:04:05")
	fmt.Fprintf(cl.writer, "[%s] "+format+"\n", append([]interface{}{timestamp}, args...)...)
}

// LogDebug logs a debug-level message.
// Format: "[HH:MM:SS] [DEBUG] <message>"
func (cl *ConsoleLogger) LogDebug(message string) {
	if cl.shouldLog("debug") {
		cl.logf("[DEBUG] %s", message)
	}
}

// LogInfo logs an info-level message.
// Format: "[HH:MM:SS] [INFO] <message>"
func (cl *ConsoleLogger) LogInfo(message string) {
	if cl.shouldLog("info") {
		cl.logf("[INFO] %s", message)
	}
}

// LogWarn logs a warning-level message.
// Format: "[HH:MM:SS] [WARN] <message>"
func (cl *ConsoleLogger) LogWarn(message string) {
	if cl.shouldLog("warn") {
		cl.logf("[WARN] %s", message)
	}
}

// LogError logs an error-level message.
// Format: "[HH:MM:SS] [ERROR] <message>"
func (cl *ConsoleLogger) LogError(message string) {
	if cl.shouldLog("error") {
		cl.logf("[ERROR] %s", message)
	}
}

// LogWaveStart logs the start of a wave execution
func (cl *ConsoleLogger) LogWaveStart(wave models.Wave) {
	if cl.shouldLog("info") {
		cl.logf("Starting %s with %d job(s)", wave.Name, len(wave.JobIDs))
	}
}

// LogWaveComplete logs the completion of a wave
func (cl *ConsoleLogger) LogWaveComplete(wave models.Wave, duration time.Duration) {
	if cl.shouldLog("info") {
		cl.logf("Completed %s in %s", wave.Name, duration.Round(time.Second))
	}
}

// LogJobStart logs the start of a job execution
func (cl *ConsoleLogger) LogJobStart(job models.Job) {
	if cl.shouldLog("info") {
		cl.logf("Job %s: started", job.DisplayName())
	}
}

// LogJobResult logs the result of a job execution with a colorized status
func (cl *ConsoleLogger) LogJobResult(result models.JobResult) error {
	if cl.writer == nil || !cl.shouldLog("info") {
		return nil
	}

	status := result.Status
	if cl.colorOutput {
		status = cl.scheme.forStatus(result.Status).Sprint(result.Status)
	}

	// Build the whole block first and write it in one locked call so
	// parallel jobs' failure output never interleaves line by line
	var block strings.Builder
	timestamp := time.Now().Format("15:04:05")

	if result.Duration > 0 {
		fmt.Fprintf(&block, "[%s] Job %s: %s (%s)\n", timestamp, result.Job.DisplayName(), status, result.Duration.Round(time.Millisecond))
	} else {
		fmt.Fprintf(&block, "[%s] Job %s: %s\n", timestamp, result.Job.DisplayName(), status)
	}

	// Surface the failing step's output so the console alone is enough
	// to diagnose a red run
	for _, step := range result.Steps {
		if step.Status == models.StatusSuccess || step.Status == models.StatusSkipped {
			continue
		}
		fmt.Fprintf(&block, "[%s]   step %q exited with code %d\n", timestamp, step.Step.DisplayName(), step.ExitCode)
		if output := strings.TrimSpace(step.Output); output != "" {
			for _, line := range strings.Split(output, "\n") {
				fmt.Fprintf(&block, "    %s\n", line)
			}
		}
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	_, err := fmt.Fprint(cl.writer, block.String())
	return err
}

// LogStepStart logs the start of a step at debug level
func (cl *ConsoleLogger) LogStepStart(job models.Job, step models.Step) {
	if cl.shouldLog("debug") {
		cl.logf("[DEBUG] Job %s: running step %q", job.DisplayName(), step.DisplayName())
	}
}

// LogStepResult logs a step result at debug level. At trace level the
// step's full output is echoed as well, successful steps included.
func (cl *ConsoleLogger) LogStepResult(job models.Job, result models.StepResult) {
	if cl.shouldLog("debug") {
		cl.logf("[DEBUG] Job %s: step %q %s (exit %d, %s)",
			job.DisplayName(), result.Step.DisplayName(), result.Status,
			result.ExitCode, result.Duration.Round(time.Millisecond))
	}

	if cl.writer == nil || !cl.shouldLog("trace") {
		return
	}
	if output := strings.TrimSpace(result.Output); output != "" {
		var block strings.Builder
		for _, line := range strings.Split(output, "\n") {
			fmt.Fprintf(&block, "    | %s\n", line)
		}
		cl.mutex.Lock()
		fmt.Fprint(cl.writer, block.String())
		cl.mutex.Unlock()
	}
}

// LogSummary logs the run summary
func (cl *ConsoleLogger) LogSummary(result models.RunResult) {
	if cl.writer == nil {
		return
	}
	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	fmt.Fprintf(cl.writer, "\n")
	fmt.Fprintf(cl.writer, "Run Summary:\n")
	fmt.Fprintf(cl.writer, "  Workflow: %s\n", result.Workflow)
	fmt.Fprintf(cl.writer, "  Total jobs: %d\n", result.TotalJobs)
	fmt.Fprintf(cl.writer, "  Succeeded: %s\n", cl.colorize(cl.scheme.success, result.Succeeded))
	fmt.Fprintf(cl.writer, "  Failed: %s\n", cl.colorize(cl.scheme.fail, result.Failed))
	fmt.Fprintf(cl.writer, "  Skipped: %s\n", cl.colorize(cl.scheme.warn, result.Skipped))
	fmt.Fprintf(cl.writer, "  Total duration: %s\n", result.Duration.Round(time.Second))

	if len(result.FailedJobs) > 0 {
		fmt.Fprintf(cl.writer, "\nFailed Jobs:\n")
		for _, job := range result.FailedJobs {
			fmt.Fprintf(cl.writer, "  - %s (%s)\n", job.Job.DisplayName(), job.Status)
		}
	}
}

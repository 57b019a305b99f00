package logger

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/harrison/runci/internal/models"
)

func TestNormalizeLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"debug", "debug"},
		{"DEBUG", "debug"},
		{" Warn ", "warn"},
		{"", "info"},
		{"shout", "info"},
	}

	for _, tt := range tests {
		if got := normalizeLogLevel(tt.input); got != tt.want {
			t.Errorf("normalizeLogLevel(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestConsoleLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	cl := NewConsoleLogger(&buf, "warn")

	cl.LogDebug("debug message")
	cl.LogInfo("info message")
	cl.LogWarn("warn message")
	cl.LogError("error message")

	output := buf.String()
	if strings.Contains(output, "debug message") || strings.Contains(output, "info message") {
		t.Errorf("Expected debug/info to be filtered at warn level, got:\n%s", output)
	}
	if !strings.Contains(output, "warn message") || !strings.Contains(output, "error message") {
		t.Errorf("Expected warn/error to be logged, got:\n%s", output)
	}
}

func TestConsoleLoggerNilWriter(t *testing.T) {
	cl := NewConsoleLogger(nil, "info")

	// Must not panic
	cl.LogInfo("into the void")
	cl.LogJobStart(models.Job{ID: "a"})
	cl.LogSummary(models.RunResult{})
}

func TestConsoleLoggerNilWriterFailedJob(t *testing.T) {
	cl := NewConsoleLogger(nil, "info")

	// A failed job with step output must be discarded, not panic
	result := models.JobResult{
		Job:    models.Job{ID: "lint"},
		Status: models.StatusFailed,
		Steps: []models.StepResult{
			{Step: models.Step{Run: "flake8 ."}, Status: models.StatusFailed, ExitCode: 1, Output: "E501 line too long\n"},
		},
	}
	if err := cl.LogJobResult(result); err != nil {
		t.Errorf("LogJobResult() error = %v", err)
	}

	cl.LogStepResult(models.Job{ID: "lint"}, result.Steps[0])
}

// countingWriter records how many Write calls it receives
type countingWriter struct {
	bytes.Buffer
	writes int
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.writes++
	return w.Buffer.Write(p)
}

func TestConsoleLoggerJobResultSingleWrite(t *testing.T) {
	w := &countingWriter{}
	cl := NewConsoleLogger(w, "info")

	result := models.JobResult{
		Job:    models.Job{ID: "test"},
		Status: models.StatusFailed,
		Steps: []models.StepResult{
			{Step: models.Step{Run: "make test"}, Status: models.StatusFailed, ExitCode: 2, Output: "FAIL TestA\nFAIL TestB\n"},
		},
	}

	if err := cl.LogJobResult(result); err != nil {
		t.Fatalf("LogJobResult() error = %v", err)
	}

	// The whole block goes out in one write so failure output from
	// parallel jobs cannot interleave
	if w.writes != 1 {
		t.Errorf("Expected 1 write for the job result block, got %d", w.writes)
	}
	output := w.String()
	if !strings.Contains(output, "FAIL TestA") || !strings.Contains(output, "FAIL TestB") {
		t.Errorf("Expected step output in block, got:\n%s", output)
	}
}

func TestConsoleLoggerJobResult(t *testing.T) {
	var buf bytes.Buffer
	cl := NewConsoleLogger(&buf, "info")

	result := models.JobResult{
		Job:      models.Job{ID: "lint", Name: "Run linters"},
		Status:   models.StatusFailed,
		Duration: 1200 * time.Millisecond,
		Steps: []models.StepResult{
			{Step: models.Step{Run: "flake8 ."}, Status: models.StatusSuccess, ExitCode: 0},
			{Step: models.Step{Run: "mypy ."}, Status: models.StatusFailed, ExitCode: 1, Output: "error: bad type\n"},
		},
	}

	if err := cl.LogJobResult(result); err != nil {
		t.Fatalf("LogJobResult() error = %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "Run linters") {
		t.Errorf("Expected job display name in output, got:\n%s", output)
	}
	if !strings.Contains(output, "failed") {
		t.Errorf("Expected status in output, got:\n%s", output)
	}
	// Failing step output is surfaced, successful step output is not
	if !strings.Contains(output, "error: bad type") {
		t.Errorf("Expected failing step output, got:\n%s", output)
	}
	if !strings.Contains(output, "exited with code 1") {
		t.Errorf("Expected failing exit code, got:\n%s", output)
	}
}

func TestConsoleLoggerWaveEvents(t *testing.T) {
	var buf bytes.Buffer
	cl := NewConsoleLogger(&buf, "info")

	wave := models.Wave{Name: "Wave 1", JobIDs: []string{"a", "b"}}
	cl.LogWaveStart(wave)
	cl.LogWaveComplete(wave, 3*time.Second)

	output := buf.String()
	if !strings.Contains(output, "Starting Wave 1 with 2 job(s)") {
		t.Errorf("Expected wave start line, got:\n%s", output)
	}
	if !strings.Contains(output, "Completed Wave 1") {
		t.Errorf("Expected wave complete line, got:\n%s", output)
	}
}

func TestConsoleLoggerStepEventsAtDebug(t *testing.T) {
	var buf bytes.Buffer
	cl := NewConsoleLogger(&buf, "info")

	job := models.Job{ID: "j"}
	step := models.Step{Run: "echo hi"}
	cl.LogStepStart(job, step)
	if buf.Len() != 0 {
		t.Errorf("Expected step start to be hidden at info level, got:\n%s", buf.String())
	}

	cl = NewConsoleLogger(&buf, "debug")
	cl.LogStepStart(job, step)
	if !strings.Contains(buf.String(), "running step") {
		t.Errorf("Expected step start at debug level, got:\n%s", buf.String())
	}
}

func TestConsoleLoggerStepOutputAtTrace(t *testing.T) {
	result := models.StepResult{
		Step:   models.Step{Run: "echo hi"},
		Status: models.StatusSuccess,
		Output: "hi there\nsecond line\n",
	}
	job := models.Job{ID: "j"}

	var debugBuf bytes.Buffer
	NewConsoleLogger(&debugBuf, "debug").LogStepResult(job, result)
	if strings.Contains(debugBuf.String(), "hi there") {
		t.Errorf("Expected step output to be hidden at debug level, got:\n%s", debugBuf.String())
	}

	var traceBuf bytes.Buffer
	NewConsoleLogger(&traceBuf, "trace").LogStepResult(job, result)
	output := traceBuf.String()
	if !strings.Contains(output, "| hi there") || !strings.Contains(output, "| second line") {
		t.Errorf("Expected step output at trace level, got:\n%s", output)
	}
}

func TestConsoleLoggerSummary(t *testing.T) {
	var buf bytes.Buffer
	cl := NewConsoleLogger(&buf, "info")

	cl.LogSummary(models.RunResult{
		Workflow:  "checks",
		TotalJobs: 3,
		Succeeded: 1,
		Failed:    1,
		Skipped:   1,
		Duration:  2 * time.Second,
		FailedJobs: []models.JobResult{
			{Job: models.Job{ID: "bad"}, Status: models.StatusFailed},
		},
	})

	output := buf.String()
	for _, want := range []string{"Run Summary:", "Total jobs: 3", "Succeeded: 1", "Failed: 1", "Skipped: 1", "Failed Jobs:", "bad"} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected %q in summary, got:\n%s", want, output)
		}
	}
}

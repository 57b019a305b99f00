package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/runci/internal/config"
	"github.com/harrison/runci/internal/executor"
	"github.com/harrison/runci/internal/filelock"
	"github.com/harrison/runci/internal/history"
	"github.com/harrison/runci/internal/logger"
	"github.com/harrison/runci/internal/models"
	"github.com/harrison/runci/internal/parser"
)

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <workflow-file-or-directory>...",
		Short: "Execute a CI workflow",
		Long: `Execute a CI workflow by running its jobs as subprocesses.

The run command parses the specified workflow file(s) or directory (YAML
or Markdown format), resolves job dependencies into execution waves, and
runs each job's steps strictly in order. A step exiting non-zero fails
its job and skips the remaining steps; a failed job skips its dependents
and, by default, stops the run.

For directories and multiple files, only files matching the pattern
ci-*.{yaml,yml,md,markdown} are loaded and merged into a single workflow.

Configuration is loaded from .runci/config.yaml if present.
CLI flags override configuration file settings.

Examples:
  # Single workflow execution
  runci run ci-checks.yaml

  # Directory execution (loads ci-*.yaml and ci-*.md files)
  runci run .ci/

  # Only run when the workflow's triggers match an event
  runci run --event push --branch main ci-checks.yaml
  runci run --event pull_request --target-branch main ci-checks.yaml

  # Other options
  runci run --dry-run ci-checks.yaml        # Validate and show waves
  runci run --timeout 1h ci-checks.yaml     # Set 1 hour run timeout
  runci run --verbose ci-checks.yaml        # Show per-step progress
  runci run --env-file env.yml ci-checks.yaml
  runci run --no-history ci-checks.yaml     # Skip history recording`,
		Args: cobra.MinimumNArgs(1),
		RunE: runCommand,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .runci/config.yaml)")
	cmd.Flags().Bool("dry-run", false, "Validate the workflow without executing jobs")
	cmd.Flags().Int("max-concurrency", -1, "Maximum number of concurrent jobs (0 = unlimited, -1 = use config)")
	cmd.Flags().String("timeout", "", "Maximum run time (e.g., 30m, 2h, 1h30m)")
	cmd.Flags().Bool("verbose", false, "Show detailed execution information")
	cmd.Flags().String("log-dir", "", "Directory for log files")
	cmd.Flags().String("event", "", "Only run if the workflow triggers on this event (push, pull_request)")
	cmd.Flags().String("branch", "", "Branch a push event targets")
	cmd.Flags().String("target-branch", "", "Branch a pull_request event targets")
	cmd.Flags().String("env-file", "", "Environment-definition file (overrides workflow env_file)")
	cmd.Flags().Bool("fail-fast", false, "Stop the run at the first failed job")
	cmd.Flags().Bool("no-fail-fast", false, "Run remaining independent jobs after a failure")
	cmd.Flags().Bool("no-history", false, "Do not record this run in the history database")

	return cmd
}

// runCommand implements the run command logic
func runCommand(cmd *cobra.Command, args []string) error {
	// Load configuration from file
	configPath, _ := cmd.Flags().GetString("config")
	var cfg *config.Config
	var err error

	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
	} else {
		cfg, err = config.LoadConfigFromDir(".")
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	}

	// Get flag values
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	maxConcurrencyFlag, _ := cmd.Flags().GetInt("max-concurrency")
	timeoutStr, _ := cmd.Flags().GetString("timeout")
	logDirFlag, _ := cmd.Flags().GetString("log-dir")
	envFileFlag, _ := cmd.Flags().GetString("env-file")
	failFastFlag, _ := cmd.Flags().GetBool("fail-fast")
	noFailFastFlag, _ := cmd.Flags().GetBool("no-fail-fast")
	noHistoryFlag, _ := cmd.Flags().GetBool("no-history")

	if cmd.Flags().Changed("fail-fast") && cmd.Flags().Changed("no-fail-fast") {
		return fmt.Errorf("cannot use both --fail-fast and --no-fail-fast")
	}

	// Build flag pointers for merge (only changed values)
	var maxConcurrencyPtr *int
	if cmd.Flags().Changed("max-concurrency") {
		maxConcurrencyPtr = &maxConcurrencyFlag
	}

	var timeoutPtr *time.Duration
	if cmd.Flags().Changed("timeout") {
		timeout, err := time.ParseDuration(timeoutStr)
		if err != nil {
			return fmt.Errorf("invalid timeout format %q: %w", timeoutStr, err)
		}
		timeoutPtr = &timeout
	}

	var logDirPtr *string
	if cmd.Flags().Changed("log-dir") {
		logDirPtr = &logDirFlag
	}

	var envFilePtr *string
	if cmd.Flags().Changed("env-file") {
		envFilePtr = &envFileFlag
	}

	var failFastPtr *bool
	if cmd.Flags().Changed("fail-fast") {
		failFastPtr = &failFastFlag
	} else if cmd.Flags().Changed("no-fail-fast") {
		noFailFast := !noFailFastFlag
		failFastPtr = &noFailFast
	}

	var noHistoryPtr *bool
	if cmd.Flags().Changed("no-history") {
		noHistoryPtr = &noHistoryFlag
	}

	// Merge CLI flags with config (flags take precedence)
	cfg.MergeWithFlags(maxConcurrencyPtr, timeoutPtr, logDirPtr, failFastPtr, envFilePtr, noHistoryPtr)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	verbose, _ := cmd.Flags().GetBool("verbose")

	// Load and parse workflow file(s)
	workflow, workflowFile, err := loadWorkflow(cmd, args)
	if err != nil {
		return err
	}

	if len(workflow.Jobs) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Workflow file is valid but contains no jobs.\n")
		return nil
	}

	// Evaluate the trigger surface if an event was given
	event, err := eventFromFlags(cmd)
	if err != nil {
		return err
	}
	if event != nil && !workflow.On.Matches(*event) {
		fmt.Fprintf(cmd.OutOrStdout(), "Workflow %q is not triggered by %s", workflow.Name, event.Kind)
		if event.Branch != "" {
			fmt.Fprintf(cmd.OutOrStdout(), " on branch %q", event.Branch)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "; nothing to do.\n")
		return nil
	}

	// Build dependency graph and calculate execution waves
	fmt.Fprintf(cmd.OutOrStdout(), "Validating job dependencies...\n")
	waves, err := executor.CalculateWaves(workflow.Jobs)
	if err != nil {
		return fmt.Errorf("failed to calculate execution waves: %w", err)
	}

	if cfg.MaxConcurrency > 0 {
		for i := range waves {
			waves[i].MaxConcurrency = cfg.MaxConcurrency
		}
	}
	workflow.Waves = waves

	// Display workflow summary
	fmt.Fprintf(cmd.OutOrStdout(), "\nWorkflow Summary:\n")
	fmt.Fprintf(cmd.OutOrStdout(), "  Name: %s\n", workflow.Name)
	fmt.Fprintf(cmd.OutOrStdout(), "  Total jobs: %d\n", len(workflow.Jobs))
	fmt.Fprintf(cmd.OutOrStdout(), "  Execution waves: %d\n", len(waves))
	fmt.Fprintf(cmd.OutOrStdout(), "  Timeout: %s\n", cfg.Timeout)
	if cfg.MaxConcurrency > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "  Max concurrency: %d\n", cfg.MaxConcurrency)
	}

	// Dry-run mode: validate only
	if dryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "\nDry-run mode: workflow is valid and ready for execution.\n")
		fmt.Fprintf(cmd.OutOrStdout(), "\nExecution waves:\n")
		for i, wave := range waves {
			fmt.Fprintf(cmd.OutOrStdout(), "  Wave %d: %d job(s)\n", i+1, len(wave.JobIDs))
			if verbose {
				for _, jobID := range wave.JobIDs {
					if job, ok := models.JobByID(workflow.Jobs, jobID); ok {
						fmt.Fprintf(cmd.OutOrStdout(), "    - %s: %d step(s)\n", job.DisplayName(), len(job.Steps))
					}
				}
			}
		}
		return nil
	}

	// One runner per workspace: refuse to start if another run holds the lock
	lock := filelock.NewFileLock(filepath.Join(".runci", "run.lock"))
	if err := os.MkdirAll(".runci", 0755); err != nil {
		return fmt.Errorf("failed to create .runci directory: %w", err)
	}
	acquired, err := lock.TryLock()
	if err != nil {
		return err
	}
	if !acquired {
		return fmt.Errorf("another run is already in progress in this workspace")
	}
	defer lock.Unlock()

	fmt.Fprintf(cmd.OutOrStdout(), "\nStarting execution...\n\n")

	// Determine log level: verbose flag overrides config
	logLevel := cfg.LogLevel
	if verbose {
		logLevel = "debug"
	}

	consoleLog := logger.NewConsoleLogger(os.Stdout, logLevel)

	fileLog, err := logger.NewFileLogger(cfg.LogDir, logLevel)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer fileLog.Close()

	multiLog := &multiLogger{
		loggers: []runLogger{consoleLog, fileLog},
	}

	// Build the base environment: process env, then the environment-
	// definition file, then workflow-level env
	baseEnv, err := buildBaseEnv(cfg, workflow)
	if err != nil {
		return err
	}

	stepRunner := executor.NewStepRunner(baseEnv, "")
	jobRunner := executor.NewJobRunner(stepRunner, multiLog)
	waveExec := executor.NewWaveExecutor(jobRunner, multiLog, cfg.FailFast)
	orch := executor.NewOrchestrator(waveExec, multiLog)

	ctx := context.Background()
	var cancel context.CancelFunc
	if cfg.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	result, err := orch.ExecuteWorkflow(ctx, workflow, event)

	// Persist the last-run summary and record history even when the run
	// failed; both describe the failure
	if result != nil {
		if writeErr := writeLastRunSummary(result); writeErr != nil {
			fmt.Fprintf(cmd.OutOrStderr(), "Warning: failed to write last-run summary: %v\n", writeErr)
		}
		if cfg.History.Enabled {
			if histErr := recordHistory(cfg, result, workflowFile); histErr != nil {
				fmt.Fprintf(cmd.OutOrStderr(), "Warning: failed to record run history: %v\n", histErr)
			}
		}
	}

	if err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}

	if result.Failed > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "\nRun completed with %d failed job(s).\n", result.Failed)
		return fmt.Errorf("%d job(s) failed", result.Failed)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nRun completed successfully!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Logs written to: %s\n", fileLog.Path())

	return nil
}

// loadWorkflow parses the workflow from the given arguments. A single
// file argument is parsed directly; directories and multiple arguments
// are filtered for ci-* files and merged.
func loadWorkflow(cmd *cobra.Command, args []string) (*models.Workflow, string, error) {
	useDirectParse := false
	if len(args) == 1 {
		info, err := os.Stat(args[0])
		if err != nil || !info.IsDir() {
			// Single file (or non-existent path, caught by ParseFile)
			useDirectParse = true
		}
	}

	if useDirectParse {
		workflowFile := args[0]
		fmt.Fprintf(cmd.OutOrStdout(), "Loading workflow from %s...\n", workflowFile)
		workflow, err := parser.ParseFile(workflowFile)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load workflow file: %w", err)
		}
		return workflow, workflowFile, nil
	}

	workflowFiles, err := parser.FilterWorkflowFiles(args)
	if err != nil {
		return nil, "", fmt.Errorf("failed to filter workflow files: %w", err)
	}

	if len(workflowFiles) == 1 {
		workflowFile := workflowFiles[0]
		fmt.Fprintf(cmd.OutOrStdout(), "Loading workflow from %s...\n", workflowFile)
		workflow, err := parser.ParseFile(workflowFile)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load workflow file: %w", err)
		}
		return workflow, workflowFile, nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Loading and merging workflows from %d files...\n", len(workflowFiles))

	var workflows []*models.Workflow
	for _, wf := range workflowFiles {
		w, err := parser.ParseFile(wf)
		if err != nil {
			return nil, "", fmt.Errorf("failed to parse %s: %w", wf, err)
		}
		workflows = append(workflows, w)
	}

	merged, err := parser.MergeWorkflows(workflows...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to merge workflows: %w", err)
	}
	if err := parser.Validate(merged); err != nil {
		return nil, "", fmt.Errorf("invalid merged workflow: %w", err)
	}

	return merged, strings.Join(workflowFiles, ", "), nil
}

// eventFromFlags builds the trigger event from --event/--branch/--target-branch.
// Returns nil when no event was requested.
func eventFromFlags(cmd *cobra.Command) (*models.Event, error) {
	kind, _ := cmd.Flags().GetString("event")
	if kind == "" {
		return nil, nil
	}

	branch, _ := cmd.Flags().GetString("branch")
	targetBranch, _ := cmd.Flags().GetString("target-branch")

	event := models.Event{Kind: kind, Branch: branch}
	if kind == models.EventPullRequest && targetBranch != "" {
		event.Branch = targetBranch
	}

	if err := event.Validate(); err != nil {
		return nil, err
	}
	return &event, nil
}

// buildBaseEnv layers the environment-definition file and workflow env
// over the process environment. The env file is chosen in precedence
// order: --env-file/config, the RUNCI_ENV_FILE variable, the workflow's
// env_file key.
func buildBaseEnv(cfg *config.Config, workflow *models.Workflow) ([]string, error) {
	envFilePath := cfg.EnvFile
	if envFilePath == "" {
		envFilePath = os.Getenv(executor.EnvFileVar)
	}
	if envFilePath == "" {
		envFilePath = workflow.EnvFile
	}

	var envFileVars map[string]string
	if envFilePath != "" {
		vars, err := executor.LoadEnvFile(envFilePath)
		if err != nil {
			return nil, err
		}
		envFileVars = vars
	}

	return executor.MergeEnv(os.Environ(), envFileVars, workflow.Env), nil
}

// lastRunSummary is the JSON shape of .runci/last-run.json
type lastRunSummary struct {
	RunID     string    `json:"run_id"`
	Workflow  string    `json:"workflow"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
	Duration  string    `json:"duration"`
	StartedAt time.Time `json:"started_at"`
}

// writeLastRunSummary atomically writes the run summary for other tools
// (badges, prompts) to read
func writeLastRunSummary(result *models.RunResult) error {
	summary := lastRunSummary{
		RunID:     result.RunID,
		Workflow:  result.Workflow,
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		Skipped:   result.Skipped,
		Duration:  result.Duration.Round(time.Millisecond).String(),
		StartedAt: result.StartedAt.UTC(),
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	return filelock.AtomicWrite(filepath.Join(".runci", "last-run.json"), data)
}

// recordHistory stores the run in the history database and applies the
// retention policy
func recordHistory(cfg *config.Config, result *models.RunResult, workflowFile string) error {
	store, err := history.NewStore(cfg.History.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.RecordRun(result, workflowFile); err != nil {
		return err
	}

	if _, err := store.Prune(cfg.History.KeepRunsDays, cfg.History.MaxRuns); err != nil {
		return err
	}
	return nil
}

// runLogger is the union of the wave-level and step-level logger
// interfaces implemented by both the console and file loggers
type runLogger interface {
	executor.Logger
	executor.StepLogger
}

// multiLogger implements executor.Logger and executor.StepLogger by
// delegating to multiple loggers
type multiLogger struct {
	loggers []runLogger
}

// LogWaveStart forwards to all loggers
func (ml *multiLogger) LogWaveStart(wave models.Wave) {
	for _, l := range ml.loggers {
		l.LogWaveStart(wave)
	}
}

// LogWaveComplete forwards to all loggers
func (ml *multiLogger) LogWaveComplete(wave models.Wave, duration time.Duration) {
	for _, l := range ml.loggers {
		l.LogWaveComplete(wave, duration)
	}
}

// LogJobStart forwards to all loggers
func (ml *multiLogger) LogJobStart(job models.Job) {
	for _, l := range ml.loggers {
		l.LogJobStart(job)
	}
}

// LogJobResult forwards to all loggers
func (ml *multiLogger) LogJobResult(result models.JobResult) error {
	var lastErr error
	for _, l := range ml.loggers {
		if err := l.LogJobResult(result); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// LogStepStart forwards to all loggers
func (ml *multiLogger) LogStepStart(job models.Job, step models.Step) {
	for _, l := range ml.loggers {
		l.LogStepStart(job, step)
	}
}

// LogStepResult forwards to all loggers
func (ml *multiLogger) LogStepResult(job models.Job, result models.StepResult) {
	for _, l := range ml.loggers {
		l.LogStepResult(job, result)
	}
}

// LogSummary forwards to all loggers
func (ml *multiLogger) LogSummary(result models.RunResult) {
	for _, l := range ml.loggers {
		l.LogSummary(result)
	}
}

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harrison/runci/internal/config"
	"github.com/harrison/runci/internal/history"
	"github.com/harrison/runci/internal/models"
)

// NewHistoryCommand creates the history command with its subcommands
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect past workflow runs",
		Long: `History lists and inspects workflow runs recorded in the local
SQLite database (.runci/history.db by default).

Examples:
  runci history list
  runci history list --limit 10
  runci history show 3f2a
  runci history clear`,
	}

	cmd.PersistentFlags().String("db", "", "Path to the history database (default: from config)")

	cmd.AddCommand(newHistoryListCommand())
	cmd.AddCommand(newHistoryShowCommand())
	cmd.AddCommand(newHistoryClearCommand())

	return cmd
}

func newHistoryListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		RunE:  historyListCommand,
	}
	cmd.Flags().Int("limit", 20, "Maximum number of runs to show (0 = all)")
	return cmd
}

func newHistoryShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run and its job results",
		Long: `Show displays a single run with per-job status, duration, and the
output of any failed steps. The run may be addressed by its full run ID
or by a unique prefix.`,
		Args: cobra.ExactArgs(1),
		RunE: historyShowCommand,
	}
}

func newHistoryClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all recorded runs",
		RunE:  historyClearCommand,
	}
}

// openHistoryStore resolves the database path from the --db flag or the
// workspace config and opens the store
func openHistoryStore(cmd *cobra.Command) (*history.Store, error) {
	dbPath, _ := cmd.Flags().GetString("db")
	if dbPath == "" {
		cfg, err := config.LoadConfigFromDir(".")
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		dbPath = cfg.History.DBPath
	}
	return history.NewStore(dbPath)
}

func historyListCommand(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	store, err := openHistoryStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(limit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet.")
		return nil
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-10s  %-20s  %-14s  %-8s  %-10s  %s\n",
		"RUN", "WORKFLOW", "EVENT", "JOBS", "DURATION", "STARTED")
	for _, r := range runs {
		status := runStatusLabel(r)
		event := r.EventKind
		if event == "" {
			event = "manual"
		} else if r.EventBranch != "" {
			event = fmt.Sprintf("%s/%s", r.EventKind, r.EventBranch)
		}
		fmt.Fprintf(out, "%-10s  %-20s  %-14s  %-8s  %-10s  %s  %s\n",
			shortRunID(r.RunID),
			truncate(r.Workflow, 20),
			truncate(event, 14),
			fmt.Sprintf("%d/%d", r.Succeeded, r.TotalJobs),
			r.Duration.Round(time.Millisecond),
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			status)
	}
	return nil
}

func historyShowCommand(cmd *cobra.Command, args []string) error {
	store, err := openHistoryStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	run, jobs, err := store.GetRun(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:       %s\n", run.RunID)
	fmt.Fprintf(out, "Workflow:  %s\n", run.Workflow)
	if run.WorkflowFile != "" {
		fmt.Fprintf(out, "File:      %s\n", run.WorkflowFile)
	}
	if run.EventKind != "" {
		event := run.EventKind
		if run.EventBranch != "" {
			event = fmt.Sprintf("%s (branch %s)", run.EventKind, run.EventBranch)
		}
		fmt.Fprintf(out, "Event:     %s\n", event)
	}
	fmt.Fprintf(out, "Started:   %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Duration:  %s\n", run.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "Jobs:      %d total, %d succeeded, %d failed, %d skipped\n",
		run.TotalJobs, run.Succeeded, run.Failed, run.Skipped)

	fmt.Fprintf(out, "\nJob results:\n")
	for _, j := range jobs {
		fmt.Fprintf(out, "  %s %-24s %-10s %s\n",
			statusSymbol(j.Status), j.JobID, j.Status, j.Duration.Round(time.Millisecond))
		if j.Error != "" {
			fmt.Fprintf(out, "      error: %s\n", j.Error)
		}
		if j.Output != "" {
			for _, line := range strings.Split(strings.TrimRight(j.Output, "\n"), "\n") {
				fmt.Fprintf(out, "      | %s\n", line)
			}
		}
	}
	return nil
}

func historyClearCommand(cmd *cobra.Command, _ []string) error {
	store, err := openHistoryStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Clear(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Run history cleared.")
	return nil
}

// runStatusLabel returns a colorized pass/fail label for a run record
func runStatusLabel(r history.RunRecord) string {
	if r.Failed > 0 {
		return color.New(color.FgRed).Sprint("FAILED")
	}
	return color.New(color.FgGreen).Sprint("OK")
}

// statusSymbol maps a job status to its display marker
func statusSymbol(status string) string {
	switch status {
	case models.StatusSuccess:
		return color.New(color.FgGreen).Sprint("✓")
	case models.StatusSkipped:
		return color.New(color.FgYellow).Sprint("-")
	default:
		return color.New(color.FgRed).Sprint("✗")
	}
}

// shortRunID returns the first 8 characters of a run ID
func shortRunID(runID string) string {
	if len(runID) > 8 {
		return runID[:8]
	}
	return runID
}

// truncate shortens s to max characters with an ellipsis
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

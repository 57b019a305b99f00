package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harrison/runci/internal/executor"
	"github.com/harrison/runci/internal/models"
)

// NewValidateCommand creates the validate command
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <workflow-file-or-directory>...",
		Short: "Validate workflow files without executing them",
		Long: `Validate parses the given workflow files, checks their job and step
definitions, and verifies that the dependency graph is acyclic.

Nothing is executed. The command exits non-zero if any file is invalid.

Examples:
  runci validate ci-checks.yaml
  runci validate .ci/
  runci validate --verbose ci-checks.yaml ci-docs.md`,
		Args: cobra.MinimumNArgs(1),
		RunE: validateCommand,
	}

	cmd.Flags().Bool("verbose", false, "Show job and wave details for valid workflows")

	return cmd
}

// validateCommand implements the validate command logic
func validateCommand(cmd *cobra.Command, args []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")

	workflow, _, err := loadWorkflow(cmd, args)
	if err != nil {
		return err
	}

	waves, err := executor.CalculateWaves(workflow.Jobs)
	if err != nil {
		return fmt.Errorf("invalid dependency graph: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Workflow %q is valid.\n", workflow.Name)
	fmt.Fprintf(cmd.OutOrStdout(), "  Jobs: %d\n", len(workflow.Jobs))
	fmt.Fprintf(cmd.OutOrStdout(), "  Execution waves: %d\n", len(waves))
	if !workflow.On.IsZero() {
		fmt.Fprintf(cmd.OutOrStdout(), "  Triggers: %s\n", describeTrigger(workflow.On))
	}
	if workflow.EnvFile != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "  Env file: %s\n", workflow.EnvFile)
		if _, statErr := os.Stat(workflow.EnvFile); statErr != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "  Warning: env file %s does not exist\n", workflow.EnvFile)
		}
	}

	if verbose {
		fmt.Fprintf(cmd.OutOrStdout(), "\nExecution waves:\n")
		for i, wave := range waves {
			fmt.Fprintf(cmd.OutOrStdout(), "  Wave %d:\n", i+1)
			for _, jobID := range wave.JobIDs {
				job, ok := models.JobByID(workflow.Jobs, jobID)
				if !ok {
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "    - %s: %d step(s)", job.DisplayName(), len(job.Steps))
				if len(job.Needs) > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), " (needs: %s)", strings.Join(job.Needs, ", "))
				}
				fmt.Fprintln(cmd.OutOrStdout())
			}
		}
	}

	return nil
}

// describeTrigger renders the trigger surface in a compact single line
func describeTrigger(t models.Trigger) string {
	var parts []string
	if t.Push != nil {
		parts = append(parts, describeFilter(models.EventPush, t.Push))
	}
	if t.PullRequest != nil {
		parts = append(parts, describeFilter(models.EventPullRequest, t.PullRequest))
	}
	return strings.Join(parts, ", ")
}

func describeFilter(kind string, f *models.BranchFilter) string {
	if len(f.Branches) == 0 {
		return kind
	}
	return fmt.Sprintf("%s [%s]", kind, strings.Join(f.Branches, ", "))
}

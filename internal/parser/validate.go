package parser

import (
	"fmt"

	"github.com/harrison/runci/internal/models"
)

// Validate runs semantic validation over a parsed workflow:
// job IDs must be unique, every needs reference must resolve to an
// existing job, the needs edges must be acyclic, and every job and step
// must be individually valid.
func Validate(workflow *models.Workflow) error {
	if workflow == nil {
		return fmt.Errorf("workflow is nil")
	}

	jobIDs := make(map[string]bool, len(workflow.Jobs))
	for i := range workflow.Jobs {
		job := &workflow.Jobs[i]
		if jobIDs[job.ID] {
			return fmt.Errorf("duplicate job id %q", job.ID)
		}
		jobIDs[job.ID] = true

		if err := job.Validate(); err != nil {
			return err
		}
	}

	for i := range workflow.Jobs {
		job := &workflow.Jobs[i]
		for _, need := range job.Needs {
			if need == job.ID {
				return fmt.Errorf("job %q depends on itself", job.ID)
			}
			if !jobIDs[need] {
				return fmt.Errorf("job %q needs unknown job %q", job.ID, need)
			}
		}
	}

	if models.HasCyclicDependencies(workflow.Jobs) {
		return fmt.Errorf("circular dependency detected in job needs")
	}

	return nil
}

package executor

import "fmt"

// JobError wraps an error with the ID of the job it occurred in
type JobError struct {
	JobID   string
	Message string
	Err     error
}

// NewJobError creates a JobError for the given job
func NewJobError(jobID, message string, err error) *JobError {
	return &JobError{
		JobID:   jobID,
		Message: message,
		Err:     err,
	}
}

// Error implements the error interface
func (e *JobError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("job %s: %s: %v", e.JobID, e.Message, e.Err)
	}
	return fmt.Sprintf("job %s: %s", e.JobID, e.Message)
}

// Unwrap returns the wrapped error
func (e *JobError) Unwrap() error {
	return e.Err
}

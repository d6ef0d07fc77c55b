package horde

import (
	"fmt"
	"time"
)

// TransportError is a failed exchange with the facilitator: either no response at all
// (StatusCode 0, Err set) or a non-2xx response.
type TransportError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s %s failed: %v", e.Method, e.URL, e.Err)
	}
	return fmt.Sprintf("compute horde responded with status code %d to %s %s", e.StatusCode, e.Method, e.URL)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NotFoundError is returned for an unknown job uuid. It matches *TransportError as well.
type NotFoundError struct {
	*TransportError
	JobUUID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("job %s not found", e.JobUUID)
}

func (e *NotFoundError) Unwrap() error {
	return e.TransportError
}

// ValidationError reports invalid caller input or a response that does not match the expected schema.
type ValidationError struct {
	Field string
	Cause error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %v", e.Cause)
	}
	return fmt.Sprintf("validation of %s failed: %v", e.Field, e.Cause)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// SubmissionError is returned by CreateJob when the facilitator rejected or garbled the submission.
type SubmissionError struct {
	Cause error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("job submission failed: %v", e.Cause)
}

func (e *SubmissionError) Unwrap() error {
	return e.Cause
}

// JobTimeoutError is returned by Wait when the job is still in progress after the timeout.
type JobTimeoutError struct {
	JobUUID    string
	LastStatus Status
	// Budget is the timeout Wait was called with.
	Budget     time.Duration
}

func (e *JobTimeoutError) Error() string {
	return fmt.Sprintf("job %s did not complete within %s, last status: %s", e.JobUUID, e.Budget, e.LastStatus)
}

// Timeout lets callers treat the error like other net timeouts.
func (e *JobTimeoutError) Timeout() bool {
	return true
}

// InconsistentStateError is returned when the facilitator reports a different status
// for a job that was already observed in a terminal status.
type InconsistentStateError struct {
	JobUUID  string
	Observed Status
	Reported Status
}

func (e *InconsistentStateError) Error() string {
	return fmt.Sprintf("job %s: terminal status %q reported as %q", e.JobUUID, e.Observed, e.Reported)
}

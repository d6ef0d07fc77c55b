package horde

import (
	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/validate"
)

// Status is the job status as reported by the facilitator.
type Status string

const (
	StatusSent          Status = "Sent"
	StatusReceived      Status = "Received"
	StatusAccepted      Status = "Accepted"
	StatusExecutorReady Status = "Executor Ready"
	StatusVolumesReady  Status = "Volumes Ready"
	StatusExecutionDone Status = "Execution Done"
	StatusCompleted     Status = "Completed"
	StatusRejected      Status = "Rejected"
	StatusFailed        Status = "Failed"
	StatusHordeFailed   Status = "Horde Failed"
)

var statusEnum = []interface{}{
	string(StatusSent),
	string(StatusReceived),
	string(StatusAccepted),
	string(StatusExecutorReady),
	string(StatusVolumesReady),
	string(StatusExecutionDone),
	string(StatusCompleted),
	string(StatusRejected),
	string(StatusFailed),
	string(StatusHordeFailed),
}

// IsInProgress reports whether the job may still change status.
func (s Status) IsInProgress() bool {
	switch s {
	case StatusSent, StatusReceived, StatusAccepted, StatusExecutorReady, StatusVolumesReady, StatusExecutionDone:
		return true
	}
	return false
}

// IsTerminal reports whether s is a final status. Terminal statuses never change.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusRejected, StatusFailed, StatusHordeFailed:
		return true
	}
	return false
}

// IsSuccessful reports whether s is Completed.
func (s Status) IsSuccessful() bool {
	return s == StatusCompleted
}

// IsFailed reports whether s is terminal but not Completed.
func (s Status) IsFailed() bool {
	return s.IsTerminal() && !s.IsSuccessful()
}

// String returns the wire value.
func (s Status) String() string {
	return string(s)
}

// Validate validates Status against the closed set of facilitator values
func (s Status) Validate(formats strfmt.Registry) error {
	if err := validate.EnumCase("status", "body", string(s), statusEnum, true); err != nil {
		return err
	}
	return nil
}

// ParseStatus maps a wire value to a Status.
func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if err := s.Validate(strfmt.Default); err != nil {
		return "", &ValidationError{Field: "status", Cause: err}
	}
	return s, nil
}

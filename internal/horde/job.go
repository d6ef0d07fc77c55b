package horde

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/kashguard/go-horde-sdk/internal/util"
	"github.com/pkg/errors"
)

// Job is a job running on Compute Horde. Status and Result are safe to read while another
// goroutine waits on the job.
type Job struct {
	UUID string

	client *Client

	mu     sync.Mutex
	status Status
	result *JobResult
}

func newJobFromResponse(c *Client, resp *JobResponse) *Job {
	return &Job{
		UUID:   resp.UUID,
		client: c,
		status: resp.Status,
		result: resp.result(),
	}
}

// ValidateJobUUID checks that id is a single, unescaped path segment. Ids that are not
// uuids are left to the facilitator, which answers 404 for them.
func ValidateJobUUID(id string) error {
	switch {
	case id == "":
		return &ValidationError{Field: "job_uuid", Cause: errors.New("job uuid must not be empty")}
	case id == "." || id == "..":
		return &ValidationError{Field: "job_uuid", Cause: errors.Errorf("invalid job uuid %q", id)}
	case strings.ContainsAny(id, "/?#%\\") || strings.IndexFunc(id, unicode.IsSpace) >= 0:
		return &ValidationError{Field: "job_uuid", Cause: errors.Errorf("job uuid %q is not a valid path segment", id)}
	}
	return nil
}

func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Result is nil until the facilitator reports output for the job.
func (j *Job) Result() *JobResult {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// Refresh updates the job in place from the facilitator.
// Once a terminal status was observed, it never changes: a different terminal status reported
// afterwards yields an *InconsistentStateError, an in-progress one is ignored.
func (j *Job) Refresh(ctx context.Context) error {
	resp, err := j.client.getJobResponse(ctx, j.UUID)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "refresh aborted")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.status.IsTerminal() {
		switch {
		case resp.Status == j.status:
		case resp.Status.IsTerminal():
			return &InconsistentStateError{JobUUID: j.UUID, Observed: j.status, Reported: resp.Status}
		default:
			// stale response of a request that raced the one reporting the terminal status
			util.LogFromContext(ctx).Debug().
				Str("job_uuid", j.UUID).
				Str("status", j.status.String()).
				Str("reported", resp.Status.String()).
				Msg("Ignoring in-progress status of a finished job")
		}
		return nil
	}

	if resp.Status != j.status {
		util.LogFromContext(ctx).Debug().
			Str("job_uuid", j.UUID).
			Str("from", j.status.String()).
			Str("to", resp.Status.String()).
			Msg("Job status changed")
	}

	j.status = resp.Status
	j.result = resp.result()
	if j.status.IsTerminal() {
		j.client.metrics.jobFinished(j.status)
	}
	return nil
}

// Wait polls the facilitator until the job leaves the in-progress statuses.
// A zero timeout waits without limit. ctx cancellation stops both the request and the sleep.
func (j *Job) Wait(ctx context.Context, timeout time.Duration) error {
	clock := j.client.clock
	start := clock.Now()

	for j.Status().IsInProgress() {
		if timeout > 0 && clock.Now().Sub(start) >= timeout {
			return &JobTimeoutError{JobUUID: j.UUID, LastStatus: j.Status(), Budget: timeout}
		}
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "wait aborted")
		}

		j.client.metrics.poll()
		if err := j.Refresh(ctx); err != nil {
			return err
		}
		if !j.Status().IsInProgress() {
			break
		}

		sleep := j.client.pollInterval
		if timeout > 0 {
			if remaining := timeout - clock.Now().Sub(start); remaining < sleep {
				sleep = remaining
			}
		}
		if sleep <= 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "wait aborted")
		case <-clock.After(sleep):
		}
	}

	return nil
}

// SubmitFeedback reports how correct the job's result was, between 0 and 1.
// expectedDuration, in seconds, is optional.
func (j *Job) SubmitFeedback(ctx context.Context, resultCorrectness float64, expectedDuration *float64) error {
	if !j.Status().IsTerminal() {
		util.LogFromContext(ctx).Debug().Str("job_uuid", j.UUID).Str("status", j.Status().String()).Msg("Submitting feedback for a job that has not finished")
	}

	return j.client.submitJobFeedback(ctx, j.UUID, &FeedbackPayload{
		ResultCorrectness: resultCorrectness,
		ExpectedDuration:  expectedDuration,
	})
}

package horde

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dropbox/godropbox/time2"
	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/swag"
	"github.com/kashguard/go-horde-sdk/internal/signature"
	"github.com/kashguard/go-horde-sdk/internal/util"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"
)

const (
	// DefaultFacilitatorURL is the public Compute Horde facilitator API.
	DefaultFacilitatorURL = "https://facilitator.computehorde.io/api/v1/"
	// DefaultPollInterval is how often Wait refreshes a job.
	DefaultPollInterval = 3 * time.Second
	// DefaultRequestTimeout bounds a single facilitator round trip.
	DefaultRequestTimeout = 30 * time.Second
)

// Client talks to the facilitator. It is safe for concurrent use.
type Client struct {
	baseURL         string
	token           string
	validatorHotkey string
	signer          *signature.Signer
	httpClient      *http.Client
	pollInterval    time.Duration
	clock           time2.Clock
	metrics         *Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client. nil is ignored.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithValidatorHotkey routes jobs to a specific validator. Not covered by the job signature.
func WithValidatorHotkey(hotkey string) Option {
	return func(c *Client) {
		c.validatorHotkey = hotkey
	}
}

// WithPollInterval sets the Wait poll interval. Non-positive values keep DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithClock sets the clock used by Wait. nil is ignored.
func WithClock(clock time2.Clock) Option {
	return func(c *Client) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithMetrics enables client metrics. A nil Metrics records nothing.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates a facilitator client. An empty baseURL means DefaultFacilitatorURL.
func NewClient(baseURL, token string, signer *signature.Signer, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultFacilitatorURL
	}

	if err := vala.BeginValidation().Validate(
		vala.StringNotEmpty(token, "token"),
		vala.IsNotNil(signer, "signer"),
	).Check(); err != nil {
		return nil, &ValidationError{Field: "client", Cause: err}
	}

	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, &ValidationError{Field: "facilitator_url", Cause: errors.Errorf("invalid facilitator url %q", baseURL)}
	}

	c := &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		token:        token,
		signer:       signer,
		httpClient:   &http.Client{Timeout: DefaultRequestTimeout},
		pollInterval: DefaultPollInterval,
		clock:        time2.DefaultClock,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// PollInterval returns the sleep between two refreshes in Wait.
func (c *Client) PollInterval() time.Duration {
	return c.pollInterval
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + path
}

// makeRequest sends a request to the facilitator and returns the response body of a 2xx response.
func (c *Client) makeRequest(ctx context.Context, method, path string, query url.Values, body interface{}, headers map[string]string) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal request body")
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	endpoint := c.endpoint(path)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Token "+c.token)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	logger := util.LogFromContext(ctx)
	logger.Debug().Str("method", method).Str("url", endpoint).Msg("Sending facilitator request")

	start := c.clock.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrapf(ctx.Err(), "%s %s aborted", method, path)
		}
		c.metrics.observeRequest(method, metricsEndpoint(path), 0, c.clock.Now().Sub(start))
		return nil, &TransportError{Method: method, URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	c.metrics.observeRequest(method, metricsEndpoint(path), resp.StatusCode, c.clock.Now().Sub(start))
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrapf(ctx.Err(), "%s %s aborted", method, path)
		}
		return nil, &TransportError{Method: method, URL: endpoint, StatusCode: resp.StatusCode, Err: errors.Wrap(err, "failed to read response body")}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Error().
			Int("status", resp.StatusCode).
			Str("method", method).
			Str("url", endpoint).
			Str("body", string(respBody)).
			Msg("Facilitator responded with error status")
		return nil, &TransportError{Method: method, URL: endpoint, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return respBody, nil
}

// metricsEndpoint drops job ids from paths to keep label cardinality bounded.
func metricsEndpoint(path string) string {
	switch {
	case strings.HasSuffix(path, "/feedback/"):
		return "/jobs/{uuid}/feedback/"
	case strings.HasPrefix(path, "/jobs/") && path != "/jobs/":
		return "/jobs/{uuid}"
	}
	return path
}

func parseJobResponse(raw []byte) (*JobResponse, error) {
	var resp JobResponse
	if err := swag.ReadJSON(raw, &resp); err != nil {
		return nil, &ValidationError{Field: "response", Cause: errors.Wrap(err, "compute horde returned malformed response")}
	}
	if err := resp.Validate(strfmt.Default); err != nil {
		return nil, &ValidationError{Field: "response", Cause: err}
	}
	return &resp, nil
}

// CreateJob submits spec to the facilitator. The job signature covers spec's SignedFields only.
func (c *Client) CreateJob(ctx context.Context, spec *JobSpec) (*Job, error) {
	// 1. build and validate the body
	payload, err := NewCreateJobPayload(spec, c.validatorHotkey)
	if err != nil {
		return nil, err
	}

	// 2. sign the reduced fields
	sig, err := c.signer.Sign(payload.SignedFields())
	if err != nil {
		return nil, err
	}
	headers, err := signature.ToHeaders(sig, signature.DefaultHeaderPrefix)
	if err != nil {
		return nil, err
	}

	logger := util.LogFromContext(ctx)
	logger.Debug().Str("docker_image", spec.DockerImage).Str("signatory", sig.Signatory).Msg("Creating job")

	// 3. submit
	raw, err := c.makeRequest(ctx, http.MethodPost, "/job-docker/", nil, payload, headers)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, &SubmissionError{Cause: err}
	}

	resp, err := parseJobResponse(raw)
	if err != nil {
		return nil, &SubmissionError{Cause: err}
	}

	job := newJobFromResponse(c, resp)
	c.metrics.jobCreated()
	logger.Debug().Str("job_uuid", job.UUID).Str("status", job.Status().String()).Msg("Created job")

	return job, nil
}

// GetJob fetches the current state of a job.
func (c *Client) GetJob(ctx context.Context, jobUUID string) (*Job, error) {
	resp, err := c.getJobResponse(ctx, jobUUID)
	if err != nil {
		return nil, err
	}
	return newJobFromResponse(c, resp), nil
}

func (c *Client) getJobResponse(ctx context.Context, jobUUID string) (*JobResponse, error) {
	if err := ValidateJobUUID(jobUUID); err != nil {
		return nil, err
	}

	util.LogFromContext(ctx).Debug().Str("job_uuid", jobUUID).Msg("Fetching job")

	raw, err := c.makeRequest(ctx, http.MethodGet, "/jobs/"+jobUUID, nil, nil, nil)
	if err != nil {
		var transportErr *TransportError
		if errors.As(err, &transportErr) && transportErr.StatusCode == http.StatusNotFound {
			return nil, &NotFoundError{TransportError: transportErr, JobUUID: jobUUID}
		}
		return nil, err
	}

	return parseJobResponse(raw)
}

// GetJobs lists the caller's jobs, newest first. page starts at 1.
func (c *Client) GetJobs(ctx context.Context, page, pageSize int) ([]*Job, error) {
	if page < 1 {
		return nil, &ValidationError{Field: "page", Cause: errors.Errorf("page must be >= 1, got %d", page)}
	}
	if pageSize < 1 {
		return nil, &ValidationError{Field: "page_size", Cause: errors.Errorf("page_size must be >= 1, got %d", pageSize)}
	}

	util.LogFromContext(ctx).Debug().Int("page", page).Int("page_size", pageSize).Msg("Fetching jobs")

	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("page_size", strconv.Itoa(pageSize))

	raw, err := c.makeRequest(ctx, http.MethodGet, "/jobs/", query, nil, nil)
	if err != nil {
		return nil, err
	}

	var resp JobsResponse
	if err := swag.ReadJSON(raw, &resp); err != nil {
		return nil, &ValidationError{Field: "response", Cause: errors.Wrap(err, "compute horde returned malformed response")}
	}
	if err := resp.Validate(strfmt.Default); err != nil {
		return nil, &ValidationError{Field: "response", Cause: err}
	}

	jobs := make([]*Job, 0, len(resp.Results))
	for i := range resp.Results {
		jobs = append(jobs, newJobFromResponse(c, &resp.Results[i]))
	}
	return jobs, nil
}

func (c *Client) submitJobFeedback(ctx context.Context, jobUUID string, feedback *FeedbackPayload) error {
	if err := ValidateJobUUID(jobUUID); err != nil {
		return err
	}
	if err := feedback.Validate(strfmt.Default); err != nil {
		return &ValidationError{Field: "feedback", Cause: err}
	}

	util.LogFromContext(ctx).Debug().Str("job_uuid", jobUUID).Msg("Submitting feedback")

	_, err := c.makeRequest(ctx, http.MethodPut, "/jobs/"+jobUUID+"/feedback/", nil, feedback, nil)
	return err
}

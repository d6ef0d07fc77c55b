package mockfacilitator

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dropbox/godropbox/time2"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/kashguard/go-horde-sdk/internal/horde"
	"github.com/kashguard/go-horde-sdk/internal/keys"
	"github.com/kashguard/go-horde-sdk/internal/signature"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	accept "github.com/timewasted/go-accept-headers"
)

// APIPrefix is where the facilitator API is mounted.
const APIPrefix = "/api/v1"

// DefaultStatusSteps is the status sequence a new job walks through, one step per poll.
var DefaultStatusSteps = []horde.Status{
	horde.StatusSent,
	horde.StatusAccepted,
	horde.StatusExecutorReady,
	horde.StatusCompleted,
}

// Server is an in-memory facilitator that verifies job signatures like the real one.
type Server struct {
	Echo *echo.Echo
	// Registry holds the request metrics served on /metrics.
	Registry *prometheus.Registry

	token     string
	steps     []horde.Status
	verifiers signature.Verifiers
	clock     time2.Clock

	mu       sync.Mutex
	jobs     map[string]*job
	order    []string
	feedback map[string]horde.FeedbackPayload
}

type job struct {
	resp      horde.JobResponse
	steps     []horde.Status
	polls     int
	signatory string
	body      map[string]any
}

// Option configures a Server.
type Option func(*Server)

// WithToken makes the server require "Authorization: Token <token>".
func WithToken(token string) Option {
	return func(s *Server) {
		s.token = token
	}
}

// WithStatusSteps replaces DefaultStatusSteps for jobs created afterwards.
func WithStatusSteps(steps ...horde.Status) Option {
	return func(s *Server) {
		if len(steps) > 0 {
			s.steps = steps
		}
	}
}

func WithVerifiers(v signature.Verifiers) Option {
	return func(s *Server) {
		s.verifiers = v
	}
}

func WithClock(clock time2.Clock) Option {
	return func(s *Server) {
		s.clock = clock
	}
}

// New creates the server and registers its routes.
func New(opts ...Option) *Server {
	s := &Server{
		steps:     DefaultStatusSteps,
		verifiers: keys.DefaultVerifiers(),
		clock:     time2.DefaultClock,
		jobs:      make(map[string]*job),
		feedback:  make(map[string]horde.FeedbackPayload),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.Registry = prometheus.NewRegistry()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "mock_facilitator",
		Registerer: s.Registry,
	}))
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: s.Registry}))

	g := e.Group(APIPrefix, negotiateJSON, s.authenticate)
	g.POST("/job-docker/", s.postJobDocker)
	g.GET("/jobs/", s.getJobs)
	g.GET("/jobs/:uuid", s.getJob)
	g.PUT("/jobs/:uuid/feedback/", s.putFeedback)

	s.Echo = e
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Echo.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	errs := make(chan error, 1)
	go func() {
		errs <- s.Echo.Start(addr)
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Echo.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "failed to shut down mock facilitator")
	}
	return nil
}

// negotiateJSON answers 406 to clients that cannot accept a JSON response.
func negotiateJSON(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAccept)
		if header == "" {
			return next(c)
		}
		if ctype, err := accept.Negotiate(header, echo.MIMEApplicationJSON); err != nil || ctype == "" {
			return c.JSON(http.StatusNotAcceptable, map[string]string{"detail": "Could not satisfy the request Accept header."})
		}
		return next(c)
	}
}

func (s *Server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.token != "" && c.Request().Header.Get(echo.HeaderAuthorization) != "Token "+s.token {
			return c.JSON(http.StatusUnauthorized, map[string]string{"detail": "Invalid token."})
		}
		return next(c)
	}
}

func (s *Server) postJobDocker(c echo.Context) error {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"detail": err.Error()})
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"detail": "JSON parse error"})
	}

	sig, err := signature.FromHeaders(c.Request().Header, signature.DefaultHeaderPrefix)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"detail": err.Error()})
	}
	if err := signature.Verify(sig, horde.SignedFieldsFromBody(body), s.verifiers); err != nil {
		log.Debug().Err(err).Str("signatory", sig.Signatory).Msg("Rejecting job with bad signature")
		return c.JSON(http.StatusForbidden, map[string]string{"detail": "Invalid signature."})
	}

	dockerImage, _ := body["docker_image"].(string)
	if dockerImage == "" {
		return c.JSON(http.StatusBadRequest, map[string][]string{"docker_image": {"This field is required."}})
	}
	executorClass, _ := body["executor_class"].(string)

	now := strfmt.DateTime(s.clock.Now().UTC())
	j := &job{
		resp: horde.JobResponse{
			UUID:          uuid.New().String(),
			ExecutorClass: executorClass,
			CreatedAt:     &now,
			LastUpdate:    &now,
			Status:        s.steps[0],
		},
		steps:     s.steps,
		signatory: sig.Signatory,
		body:      body,
	}

	s.mu.Lock()
	s.jobs[j.resp.UUID] = j
	s.order = append(s.order, j.resp.UUID)
	resp := j.resp
	s.mu.Unlock()

	log.Debug().Str("job_uuid", resp.UUID).Str("signatory", sig.Signatory).Msg("Accepted job")
	return c.JSON(http.StatusCreated, resp)
}

// advance moves j one step forward and fills the output once it completes.
func (s *Server) advance(j *job) {
	if j.resp.Status.IsTerminal() {
		return
	}
	j.polls++
	idx := j.polls
	if idx >= len(j.steps) {
		idx = len(j.steps) - 1
	}
	j.resp.Status = j.steps[idx]
	now := strfmt.DateTime(s.clock.Now().UTC())
	j.resp.LastUpdate = &now

	if j.resp.Status == horde.StatusCompleted {
		args, _ := j.body["args"].(string)
		if rest, ok := strings.CutPrefix(args, "echo "); ok {
			j.resp.Stdout = rest + "\n"
		}
		if dir, _ := j.body["artifacts_dir"].(string); dir != "" {
			j.resp.Artifacts = map[string]string{
				strings.TrimSuffix(dir, "/") + "/stdout.txt": base64.StdEncoding.EncodeToString([]byte(j.resp.Stdout)),
			}
		}
	}
}

func (s *Server) getJob(c echo.Context) error {
	id := c.Param("uuid")

	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"detail": "Not found."})
	}
	s.advance(j)
	return c.JSON(http.StatusOK, j.resp)
}

func (s *Server) getJobs(c echo.Context) error {
	page, err := strconv.Atoi(c.QueryParam("page"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(c.QueryParam("page_size"))
	if err != nil || pageSize < 1 {
		pageSize = 10
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// newest first
	ids := make([]string, len(s.order))
	for i, id := range s.order {
		ids[len(s.order)-1-i] = id
	}

	start := (page - 1) * pageSize
	if start > len(ids) {
		return c.JSON(http.StatusNotFound, map[string]string{"detail": "Invalid page."})
	}
	end := start + pageSize
	if end > len(ids) {
		end = len(ids)
	}

	resp := horde.JobsResponse{
		Count:   int64(len(ids)),
		Results: make([]horde.JobResponse, 0, end-start),
	}
	for _, id := range ids[start:end] {
		resp.Results = append(resp.Results, s.jobs[id].resp)
	}
	if end < len(ids) {
		next := c.Request().URL.Path + "?page=" + strconv.Itoa(page+1) + "&page_size=" + strconv.Itoa(pageSize)
		resp.Next = &next
	}
	if page > 1 {
		prev := c.Request().URL.Path + "?page=" + strconv.Itoa(page-1) + "&page_size=" + strconv.Itoa(pageSize)
		resp.Previous = &prev
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) putFeedback(c echo.Context) error {
	id := c.Param("uuid")

	var payload horde.FeedbackPayload
	if err := json.NewDecoder(c.Request().Body).Decode(&payload); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"detail": "JSON parse error"})
	}
	if err := payload.Validate(strfmt.Default); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"detail": err.Error()})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"detail": "Not found."})
	}
	s.feedback[id] = payload
	return c.JSON(http.StatusOK, payload)
}

// SetJobStatus forces the reported status of a job, e.g. to simulate an inconsistent facilitator.
func (s *Server) SetJobStatus(id string, status horde.Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return false
	}
	j.resp.Status = status
	j.steps = []horde.Status{status}
	j.polls = 0
	return true
}

// Feedback returns the feedback stored for a job.
func (s *Server) Feedback(id string) (horde.FeedbackPayload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.feedback[id]
	return f, ok
}

// Signatory returns who signed the job submission.
func (s *Server) Signatory(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		return j.signatory
	}
	return ""
}

// JobUUIDs lists all known jobs in creation order.
func (s *Server) JobUUIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := append([]string(nil), s.order...)
	return ids
}

// Polls returns how many fetches moved the job forward.
func (s *Server) Polls(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		return j.polls
	}
	return 0
}

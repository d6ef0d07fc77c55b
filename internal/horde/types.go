package horde

import (
	"context"
	"encoding/base64"
	"math"
	"strings"

	"github.com/go-openapi/errors"
	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/swag"
	"github.com/go-openapi/validate"
)

// ExecutorClass names the kind of machine a job runs on.
type ExecutorClass string

const (
	ExecutorClassSpinUp4MinGPU24GB ExecutorClass = "spin_up-4min.gpu-24gb"
	ExecutorClassAlwaysOnGPU24GB   ExecutorClass = "always_on.gpu-24gb"
	ExecutorClassAlwaysOnLLMA6000  ExecutorClass = "always_on.llm.a6000"
	ExecutorClassAlwaysOnTest      ExecutorClass = "always_on.test"

	DefaultExecutorClass = ExecutorClassSpinUp4MinGPU24GB
)

// JobSpec is what a caller asks the facilitator to run.
type JobSpec struct {
	ExecutorClass ExecutorClass
	// JobNamespace tells where the job comes from, e.g. "SN123.0".
	JobNamespace string
	DockerImage  string
	Args         []string
	Env          map[string]string
	// ArtifactsDir is an absolute path whose files are returned with the job result.
	ArtifactsDir  string
	InputVolumes  map[string]InputVolume
	OutputVolumes map[string]OutputVolume
	// UseGPU defaults to true.
	UseGPU *bool

	RunCrossValidation bool
}

// Validate validates JobSpec
func (s *JobSpec) Validate(formats strfmt.Registry) error {
	var res []error

	if err := validate.RequiredString("executor_class", "body", string(s.ExecutorClass)); err != nil {
		res = append(res, err)
	}
	if err := validate.RequiredString("docker_image", "body", s.DockerImage); err != nil {
		res = append(res, err)
	}
	if s.ArtifactsDir != "" && !strings.HasPrefix(s.ArtifactsDir, "/") {
		res = append(res, errors.New(422, "artifacts_dir in body must be an absolute path, got %q", s.ArtifactsDir))
	}
	if s.RunCrossValidation {
		res = append(res, errors.New(422, "cross validation is not supported yet, create the job with RunCrossValidation=false"))
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}

// CreateJobPayload is the full body of POST /job-docker/.
type CreateJobPayload struct {
	TargetValidatorHotkey *string           `json:"target_validator_hotkey"`
	JobNamespace          string            `json:"job_namespace,omitempty"`
	ExecutorClass         string            `json:"executor_class"`
	DockerImage           string            `json:"docker_image"`
	Args                  string            `json:"args"`
	Env                   map[string]string `json:"env"`
	UseGPU                bool              `json:"use_gpu"`
	ArtifactsDir          string            `json:"artifacts_dir,omitempty"`
	Volumes               []Volume          `json:"volumes,omitempty"`
	Uploads               []Upload          `json:"uploads,omitempty"`
}

// NewCreateJobPayload builds the request body for spec.
func NewCreateJobPayload(spec *JobSpec, validatorHotkey string) (*CreateJobPayload, error) {
	if spec == nil {
		return nil, &ValidationError{Field: "spec", Cause: errors.Required("spec", "body", nil)}
	}
	if spec.ExecutorClass == "" {
		withDefault := *spec
		withDefault.ExecutorClass = DefaultExecutorClass
		spec = &withDefault
	}
	if err := spec.Validate(strfmt.Default); err != nil {
		return nil, &ValidationError{Cause: err}
	}

	volumes, err := buildVolumes(spec.InputVolumes)
	if err != nil {
		return nil, err
	}
	uploads, err := buildUploads(spec.OutputVolumes)
	if err != nil {
		return nil, err
	}

	env := spec.Env
	if env == nil {
		env = map[string]string{}
	}

	p := &CreateJobPayload{
		JobNamespace:  spec.JobNamespace,
		ExecutorClass: string(spec.ExecutorClass),
		DockerImage:   spec.DockerImage,
		Args:          strings.Join(spec.Args, " "),
		Env:           env,
		UseGPU:        swag.BoolValue(spec.UseGPU) || spec.UseGPU == nil,
		ArtifactsDir:  spec.ArtifactsDir,
		Volumes:       volumes,
		Uploads:       uploads,
	}
	if validatorHotkey != "" {
		p.TargetValidatorHotkey = swag.String(validatorHotkey)
	}
	return p, nil
}

// SignedFields reduces the body to the fields covered by the job signature.
func (p *CreateJobPayload) SignedFields() SignedFields {
	f := SignedFields{
		ExecutorClass: p.ExecutorClass,
		DockerImage:   p.DockerImage,
		Args:          p.Args,
		Env:           p.Env,
		UseGPU:        p.UseGPU,
		Volumes:       make([]any, 0, len(p.Volumes)),
		Uploads:       make([]any, 0, len(p.Uploads)),
	}
	if f.Env == nil {
		f.Env = map[string]string{}
	}
	for _, v := range p.Volumes {
		f.Volumes = append(f.Volumes, v)
	}
	for _, u := range p.Uploads {
		f.Uploads = append(f.Uploads, u)
	}
	return f
}

// SignedFields is the subset of a job request that the facilitator checks the signature against.
// Routing hints such as the target validator are not part of it.
type SignedFields struct {
	ExecutorClass string            `json:"executor_class"`
	DockerImage   string            `json:"docker_image"`
	RawScript     string            `json:"raw_script"`
	Args          string            `json:"args"`
	Env           map[string]string `json:"env"`
	UseGPU        bool              `json:"use_gpu"`
	Volumes       []any             `json:"volumes"`
	Uploads       []any             `json:"uploads"`
}

// SignedFieldsFromBody extracts the signed fields from a decoded request body the way the
// facilitator does on its side.
func SignedFieldsFromBody(body map[string]any) SignedFields {
	str := func(key string) string {
		s, _ := body[key].(string)
		return s
	}
	list := func(key string) []any {
		l, _ := body[key].([]any)
		if l == nil {
			return []any{}
		}
		return l
	}

	env := map[string]string{}
	if m, ok := body["env"].(map[string]any); ok {
		for k, v := range m {
			s, _ := v.(string)
			env[k] = s
		}
	}
	useGPU, _ := body["use_gpu"].(bool)

	return SignedFields{
		ExecutorClass: str("executor_class"),
		DockerImage:   str("docker_image"),
		RawScript:     str("raw_script"),
		Args:          str("args"),
		Env:           env,
		UseGPU:        useGPU,
		Volumes:       list("volumes"),
		Uploads:       list("uploads"),
	}
}

// JobResult is the output of a finished job.
type JobResult struct {
	Stdout string
	// Artifacts maps a path inside ArtifactsDir to the decoded file contents.
	Artifacts map[string][]byte
	// UploadResults maps an output path to the upload response.
	UploadResults map[string]string
}

// JobResponse is the facilitator's representation of a job.
type JobResponse struct {
	UUID          string            `json:"uuid"`
	ExecutorClass string            `json:"executor_class,omitempty"`
	CreatedAt     *strfmt.DateTime  `json:"created_at,omitempty"`
	LastUpdate    *strfmt.DateTime  `json:"last_update,omitempty"`
	Status        Status            `json:"status"`
	Stdout        string            `json:"stdout,omitempty"`
	Artifacts     map[string]string `json:"artifacts,omitempty"`
	UploadResults map[string]string `json:"upload_results,omitempty"`
}

// Validate validates JobResponse
func (m *JobResponse) Validate(formats strfmt.Registry) error {
	var res []error

	if err := validate.RequiredString("uuid", "body", m.UUID); err != nil {
		res = append(res, err)
	} else if err := validate.FormatOf("uuid", "body", "uuid", m.UUID, formats); err != nil {
		res = append(res, err)
	}

	if err := validate.RequiredString("status", "body", string(m.Status)); err != nil {
		res = append(res, err)
	} else if err := m.Status.Validate(formats); err != nil {
		res = append(res, err)
	}

	for path, contents := range m.Artifacts {
		if _, err := base64.StdEncoding.DecodeString(contents); err != nil {
			res = append(res, errors.New(422, "artifacts.%s in body must be base64 encoded", path))
		}
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}

// ContextValidate validates this payload based on context it is used
func (m *JobResponse) ContextValidate(ctx context.Context, formats strfmt.Registry) error {
	return nil
}

// MarshalBinary interface implementation
func (m *JobResponse) MarshalBinary() ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return swag.WriteJSON(m)
}

// UnmarshalBinary interface implementation
func (m *JobResponse) UnmarshalBinary(b []byte) error {
	var res JobResponse
	if err := swag.ReadJSON(b, &res); err != nil {
		return err
	}
	*m = res
	return nil
}

// result returns nil when the response carries no output yet.
func (m *JobResponse) result() *JobResult {
	if m.Stdout == "" && len(m.Artifacts) == 0 && len(m.UploadResults) == 0 {
		return nil
	}

	r := &JobResult{
		Stdout:        m.Stdout,
		Artifacts:     make(map[string][]byte, len(m.Artifacts)),
		UploadResults: m.UploadResults,
	}
	for path, contents := range m.Artifacts {
		// validated before
		r.Artifacts[path], _ = base64.StdEncoding.DecodeString(contents)
	}
	return r
}

// JobsResponse is a page of jobs.
type JobsResponse struct {
	Count    int64         `json:"count"`
	Next     *string       `json:"next"`
	Previous *string       `json:"previous"`
	Results  []JobResponse `json:"results"`
}

// Validate validates JobsResponse
func (m *JobsResponse) Validate(formats strfmt.Registry) error {
	var res []error

	if err := validate.MinimumInt("count", "body", m.Count, 0, false); err != nil {
		res = append(res, err)
	}
	if m.Results == nil {
		res = append(res, errors.Required("results", "body", m.Results))
	}
	for i := range m.Results {
		if err := m.Results[i].Validate(formats); err != nil {
			if ve, ok := err.(*errors.Validation); ok {
				return ve.ValidateName("results." + swag.FormatInt64(int64(i)))
			}
			res = append(res, err)
		}
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}

// FeedbackPayload is the body of PUT /jobs/{uuid}/feedback/.
type FeedbackPayload struct {
	ResultCorrectness float64  `json:"result_correctness"`
	ExpectedDuration  *float64 `json:"expected_duration,omitempty"`
}

// Validate validates FeedbackPayload
func (m *FeedbackPayload) Validate(formats strfmt.Registry) error {
	var res []error

	if math.IsNaN(m.ResultCorrectness) {
		res = append(res, errors.New(422, "result_correctness in body must be a number"))
	} else {
		if err := validate.Minimum("result_correctness", "body", m.ResultCorrectness, 0, false); err != nil {
			res = append(res, err)
		}
		if err := validate.Maximum("result_correctness", "body", m.ResultCorrectness, 1, false); err != nil {
			res = append(res, err)
		}
	}

	if m.ExpectedDuration != nil {
		if d := swag.Float64Value(m.ExpectedDuration); math.IsNaN(d) || math.IsInf(d, 0) {
			res = append(res, errors.New(422, "expected_duration in body must be a finite number"))
		} else if err := validate.Minimum("expected_duration", "body", d, 0, false); err != nil {
			res = append(res, err)
		}
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}

package horde_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/kashguard/go-horde-sdk/internal/horde"
	"github.com/kashguard/go-horde-sdk/internal/keys"
	"github.com/kashguard/go-horde-sdk/internal/mockfacilitator"
	"github.com/kashguard/go-horde-sdk/internal/signature"
	"github.com/kashguard/go-horde-sdk/internal/test"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJobUUID = "6f1b8e2a-2d4c-4a57-9f3e-0c1d2e3f4a5b"

func writeJSON(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = io.WriteString(w, body)
}

func newRawClient(t *testing.T, handler http.HandlerFunc, opts ...horde.Option) *horde.Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	opts = append([]horde.Option{horde.WithPollInterval(test.PollInterval)}, opts...)
	client, err := horde.NewClient(srv.URL+"/api/v1/", test.FacilitatorToken, test.NewTestSigner(t), opts...)
	require.NoError(t, err)
	return client
}

type capturedRequest struct {
	method string
	path   string
	header http.Header
	body   []byte
}

func TestCreateJobRequest(t *testing.T) {
	var (
		mu       sync.Mutex
		captured capturedRequest
	)
	client := newRawClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		captured = capturedRequest{method: r.Method, path: r.URL.Path, header: r.Header.Clone(), body: body}
		mu.Unlock()
		writeJSON(w, http.StatusCreated, `{"uuid": "`+testJobUUID+`", "status": "Sent"}`)
	}, horde.WithValidatorHotkey("5CvalidatorHotkey"))

	spec := echoSpec()
	spec.Env = map[string]string{"B": "2", "A": "1"}
	spec.InputVolumes = map[string]horde.InputVolume{
		"/volume/models/": horde.HuggingfaceInputVolume{RepoID: "org/model", Revision: "main"},
		"/volume/data.csv": horde.HTTPInputVolume{URL: "https://example.com/data.csv"},
	}
	spec.OutputVolumes = map[string]horde.OutputVolume{
		"/output/result.json": horde.HTTPOutputVolume{HTTPMethod: "PUT", URL: "https://bucket.example/result.json"},
	}

	job, err := client.CreateJob(t.Context(), spec)
	require.NoError(t, err)
	assert.Equal(t, testJobUUID, job.UUID)
	assert.Equal(t, horde.StatusSent, job.Status())

	mu.Lock()
	defer mu.Unlock()

	assert.Equal(t, http.MethodPost, captured.method)
	assert.Equal(t, "/api/v1/job-docker/", captured.path)
	assert.Equal(t, "Token "+test.FacilitatorToken, captured.header.Get("Authorization"))
	assert.Equal(t, "application/json", captured.header.Get("Content-Type"))

	var body map[string]any
	dec := json.NewDecoder(bytes.NewReader(captured.body))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&body))

	assert.Equal(t, "5CvalidatorHotkey", body["target_validator_hotkey"])
	assert.Equal(t, "SN123.0", body["job_namespace"])
	assert.Equal(t, "echo hi", body["args"])
	assert.Equal(t, true, body["use_gpu"])

	volumes := body["volumes"].([]any)
	require.Len(t, volumes, 2)
	assert.Equal(t, "single_file", volumes[0].(map[string]any)["volume_type"])
	assert.Equal(t, "data.csv", volumes[0].(map[string]any)["relative_path"])
	assert.Equal(t, "huggingface_volume", volumes[1].(map[string]any)["volume_type"])
	assert.Equal(t, "models/", volumes[1].(map[string]any)["relative_path"])

	uploads := body["uploads"].([]any)
	require.Len(t, uploads, 1)
	assert.Equal(t, "single_file_put", uploads[0].(map[string]any)["output_upload_type"])

	// the facilitator recomputes the signed fields from the body it received
	sig, err := signature.FromHeaders(captured.header, "")
	require.NoError(t, err)
	assert.Equal(t, keys.SignatureTypeEd25519, sig.SignatureType)
	assert.Equal(t, test.NewTestWallet(t).Signatory(), sig.Signatory)
	require.NoError(t, signature.Verify(sig, horde.SignedFieldsFromBody(body), keys.DefaultVerifiers()))

	// routing hints are not signed
	body["target_validator_hotkey"] = "5Cother"
	body["job_namespace"] = "SN1.0"
	require.NoError(t, signature.Verify(sig, horde.SignedFieldsFromBody(body), keys.DefaultVerifiers()))

	body["docker_image"] = "evil"
	assert.ErrorIs(t, signature.Verify(sig, horde.SignedFieldsFromBody(body), keys.DefaultVerifiers()), signature.ErrInvalidSignature)
}

func TestCreateJobWithoutValidatorSendsNull(t *testing.T) {
	var body map[string]any
	client := newRawClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusCreated, `{"uuid": "`+testJobUUID+`", "status": "Received"}`)
	})

	job, err := client.CreateJob(t.Context(), echoSpec())
	require.NoError(t, err)
	assert.Equal(t, horde.StatusReceived, job.Status())

	v, ok := body["target_validator_hotkey"]
	assert.True(t, ok)
	assert.Nil(t, v)
	_, ok = body["volumes"]
	assert.False(t, ok)
}

func TestCreateJobSubmissionErrors(t *testing.T) {
	tests := []struct {
		name      string
		code      int
		body      string
		wantCause any
	}{
		{name: "server error", code: http.StatusInternalServerError, body: `{"detail": "boom"}`, wantCause: &horde.TransportError{}},
		{name: "bad request", code: http.StatusBadRequest, body: `{"docker_image": ["required"]}`, wantCause: &horde.TransportError{}},
		{name: "unknown status", code: http.StatusCreated, body: `{"uuid": "` + testJobUUID + `", "status": "Queued"}`, wantCause: &horde.ValidationError{}},
		{name: "garbage", code: http.StatusCreated, body: `not json`, wantCause: &horde.ValidationError{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newRawClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.code, tt.body)
			})

			_, err := client.CreateJob(t.Context(), echoSpec())

			var submissionErr *horde.SubmissionError
			require.True(t, errors.As(err, &submissionErr), "expected SubmissionError, got %v", err)

			switch tt.wantCause.(type) {
			case *horde.TransportError:
				var transportErr *horde.TransportError
				require.True(t, errors.As(err, &transportErr))
				assert.Equal(t, tt.code, transportErr.StatusCode)
			case *horde.ValidationError:
				var validationErr *horde.ValidationError
				assert.True(t, errors.As(err, &validationErr))
			}
		})
	}
}

func TestCreateJobRejectsBadSignature(t *testing.T) {
	test.WithMockFacilitator(t, func(srv *mockfacilitator.Server, client *horde.Client) {
		_, err := client.CreateJob(t.Context(), echoSpec())

		var transportErr *horde.TransportError
		require.True(t, errors.As(err, &transportErr))
		assert.Equal(t, http.StatusForbidden, transportErr.StatusCode)
		assert.Empty(t, srv.JobUUIDs())
	}, mockfacilitator.WithVerifiers(signature.Verifiers{}))
}

func TestCreateJobWrongToken(t *testing.T) {
	test.WithMockFacilitator(t, func(srv *mockfacilitator.Server, _ *horde.Client) {
		httpSrv := httptest.NewServer(srv)
		defer httpSrv.Close()

		client, err := horde.NewClient(httpSrv.URL+mockfacilitator.APIPrefix+"/", "wrong", test.NewTestSigner(t))
		require.NoError(t, err)

		_, err = client.CreateJob(t.Context(), echoSpec())
		var transportErr *horde.TransportError
		require.True(t, errors.As(err, &transportErr))
		assert.Equal(t, http.StatusUnauthorized, transportErr.StatusCode)
	})
}

func TestCreateJobInvalidSpec(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *horde.JobSpec)
	}{
		{name: "no image", mutate: func(s *horde.JobSpec) { s.DockerImage = "" }},
		{name: "relative artifacts dir", mutate: func(s *horde.JobSpec) { s.ArtifactsDir = "artifacts" }},
		{name: "cross validation", mutate: func(s *horde.JobSpec) { s.RunCrossValidation = true }},
		{name: "input outside volume", mutate: func(s *horde.JobSpec) {
			s.InputVolumes = map[string]horde.InputVolume{"/data/x": horde.HTTPInputVolume{URL: "https://example.com/x"}}
		}},
		{name: "output outside output", mutate: func(s *horde.JobSpec) {
			s.OutputVolumes = map[string]horde.OutputVolume{"/volume/x": horde.HTTPOutputVolume{URL: "https://example.com/x"}}
		}},
		{name: "upload method", mutate: func(s *horde.JobSpec) {
			s.OutputVolumes = map[string]horde.OutputVolume{"/output/x": horde.HTTPOutputVolume{HTTPMethod: "PATCH", URL: "https://example.com/x"}}
		}},
	}

	calls := 0
	client := newRawClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeJSON(w, http.StatusCreated, `{"uuid": "`+testJobUUID+`", "status": "Sent"}`)
	})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := echoSpec()
			tt.mutate(spec)

			_, err := client.CreateJob(t.Context(), spec)
			var validationErr *horde.ValidationError
			assert.True(t, errors.As(err, &validationErr), "expected ValidationError, got %v", err)
		})
	}

	_, err := client.CreateJob(t.Context(), nil)
	var validationErr *horde.ValidationError
	assert.True(t, errors.As(err, &validationErr))
	assert.Equal(t, 0, calls)
}

func TestNewClientValidation(t *testing.T) {
	signer := test.NewTestSigner(t)

	_, err := horde.NewClient("", "", signer)
	var validationErr *horde.ValidationError
	assert.True(t, errors.As(err, &validationErr))

	_, err = horde.NewClient("not a url", "token", signer)
	assert.True(t, errors.As(err, &validationErr))

	client, err := horde.NewClient("", "token", signer)
	require.NoError(t, err)
	assert.Equal(t, horde.DefaultPollInterval, client.PollInterval())

	client, err = horde.NewClient("", "token", signer,
		horde.WithPollInterval(0),
		horde.WithPollInterval(-time.Second),
		horde.WithHTTPClient(nil),
		horde.WithClock(nil),
		horde.WithMetrics(nil),
	)
	require.NoError(t, err)
	assert.Equal(t, horde.DefaultPollInterval, client.PollInterval())

	client, err = horde.NewClient("", "token", signer, horde.WithPollInterval(time.Second))
	require.NoError(t, err)
	assert.Equal(t, time.Second, client.PollInterval())
}

func TestClientMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := horde.NewMetrics(reg)
	require.NoError(t, err)

	test.WithMockFacilitator(t, func(srv *mockfacilitator.Server, _ *horde.Client) {
		httpSrv := httptest.NewServer(srv)
		defer httpSrv.Close()

		client, err := horde.NewClient(httpSrv.URL+mockfacilitator.APIPrefix+"/", test.FacilitatorToken, test.NewTestSigner(t),
			horde.WithMetrics(metrics), horde.WithPollInterval(test.PollInterval))
		require.NoError(t, err)

		job, err := client.CreateJob(t.Context(), echoSpec())
		require.NoError(t, err)
		require.NoError(t, job.Wait(t.Context(), 0))
	})

	families, err := reg.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if m.GetCounter() != nil {
				values[mf.GetName()] += m.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, 1.0, values["horde_client_jobs_created_total"])
	assert.Equal(t, 1.0, values["horde_client_jobs_finished_total"])
	assert.Equal(t, 3.0, values["horde_client_job_polls_total"])
	assert.Equal(t, 4.0, values["horde_client_requests_total"])

	_, err = horde.NewMetrics(reg)
	assert.Error(t, err, "registering twice fails")
}

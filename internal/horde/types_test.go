package horde_test

import (
	"testing"

	"github.com/kashguard/go-horde-sdk/internal/horde"
	"github.com/kashguard/go-horde-sdk/internal/signature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedFieldsCanonicalForm(t *testing.T) {
	spec := echoSpec()
	spec.Env = map[string]string{"B": "2", "A": "1"}

	payload, err := horde.NewCreateJobPayload(spec, "5Cvalidator")
	require.NoError(t, err)

	b, err := signature.Canonicalize(payload.SignedFields())
	require.NoError(t, err)
	assert.Equal(t,
		`{"args": "echo hi", "docker_image": "alpine", "env": {"A": "1", "B": "2"}, "executor_class": "spin_up-4min.gpu-24gb", "raw_script": "", "uploads": [], "use_gpu": true, "volumes": []}`,
		string(b))
}

func TestSignedFieldsIndependentOfMapOrder(t *testing.T) {
	envA := map[string]string{}
	envB := map[string]string{}
	names := []string{"PATH", "HOME", "LANG", "CUDA_VISIBLE_DEVICES", "HF_TOKEN", "SEED"}
	for i, k := range names {
		envA[k] = k
		envB[names[len(names)-1-i]] = names[len(names)-1-i]
	}

	a := echoSpec()
	a.Env = envA
	b := echoSpec()
	b.Env = envB

	pa, err := horde.NewCreateJobPayload(a, "")
	require.NoError(t, err)
	pb, err := horde.NewCreateJobPayload(b, "")
	require.NoError(t, err)

	ca, err := signature.Canonicalize(pa.SignedFields())
	require.NoError(t, err)
	cb, err := signature.Canonicalize(pb.SignedFields())
	require.NoError(t, err)
	assert.Equal(t, ca, cb)
}

func TestSignedFieldsFromBodyMatchesClientSide(t *testing.T) {
	spec := echoSpec()
	spec.UseGPU = new(bool)
	spec.InputVolumes = map[string]horde.InputVolume{
		"/volume/model": horde.HuggingfaceInputVolume{RepoID: "org/model"},
	}

	payload, err := horde.NewCreateJobPayload(spec, "5Cvalidator")
	require.NoError(t, err)
	assert.False(t, payload.UseGPU)

	body := map[string]any{
		"target_validator_hotkey": "5Cvalidator",
		"executor_class":          string(spec.ExecutorClass),
		"docker_image":            "alpine",
		"args":                    "echo hi",
		"env":                     map[string]any{},
		"use_gpu":                 false,
		"volumes": []any{map[string]any{
			"volume_type":   "huggingface_volume",
			"repo_id":       "org/model",
			"relative_path": "model",
		}},
	}

	client, err := signature.Canonicalize(payload.SignedFields())
	require.NoError(t, err)
	server, err := signature.Canonicalize(horde.SignedFieldsFromBody(body))
	require.NoError(t, err)
	assert.Equal(t, string(client), string(server))
}

func TestCreateJobPayloadDefaultsExecutorClass(t *testing.T) {
	spec := &horde.JobSpec{DockerImage: "alpine:latest", Args: []string{"echo", "hi"}}

	payload, err := horde.NewCreateJobPayload(spec, "")
	require.NoError(t, err)
	assert.Equal(t, string(horde.DefaultExecutorClass), payload.ExecutorClass)
	assert.Empty(t, spec.ExecutorClass)

	spec.ExecutorClass = horde.ExecutorClassAlwaysOnTest
	payload, err = horde.NewCreateJobPayload(spec, "")
	require.NoError(t, err)
	assert.Equal(t, string(horde.ExecutorClassAlwaysOnTest), payload.ExecutorClass)
}

func TestFeedbackPayloadValidate(t *testing.T) {
	for _, v := range []float64{0, 0.25, 1} {
		assert.NoError(t, (&horde.FeedbackPayload{ResultCorrectness: v}).Validate(nil), v)
	}
	for _, v := range []float64{-0.01, 1.0001, 2} {
		assert.Error(t, (&horde.FeedbackPayload{ResultCorrectness: v}).Validate(nil), v)
	}
}

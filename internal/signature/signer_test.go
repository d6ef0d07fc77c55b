package signature_test

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/dropbox/godropbox/time2"
	"github.com/kashguard/go-horde-sdk/internal/signature"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

// MockBackend is a testify mock of a KeyBackend.
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Signatory() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockBackend) SignDigest(digest []byte) ([]byte, error) {
	args := m.Called(digest)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func TestDigest(t *testing.T) {
	payload := []byte(`{"a": 1}`)
	const ts uint64 = 0x0102030405060708

	got, err := signature.Digest(ts, payload)
	require.NoError(t, err)

	var prefix [8]byte
	binary.BigEndian.PutUint64(prefix[:], ts)
	want := blake2b.Sum512(append(prefix[:], payload...))
	assert.Equal(t, want[:], got)
	assert.Len(t, got, 64)

	structured, err := signature.Digest(ts, map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, got, structured, "structured payloads are canonicalized before hashing")

	other, err := signature.Digest(ts+1, payload)
	require.NoError(t, err)
	assert.NotEqual(t, got, other)
}

func TestSignerSign(t *testing.T) {
	now := time.Unix(1718000000, 42)
	clock := time2.NewMockClock(now)

	backend := new(MockBackend)
	backend.On("Signatory").Return("signer-1")
	backend.On("SignDigest", mock.AnythingOfType("[]uint8")).Return([]byte("sig-bytes"), nil)

	signer := signature.NewSigner("test", backend, signature.WithClock(clock))
	payload := map[string]any{"action": "POST /job-docker/"}

	sig, err := signer.Sign(payload)
	require.NoError(t, err)

	assert.Equal(t, "test", sig.SignatureType)
	assert.Equal(t, "signer-1", sig.Signatory)
	assert.Equal(t, uint64(now.UnixNano()), sig.TimestampNS)
	assert.Equal(t, []byte("sig-bytes"), sig.Signature)
	assert.Equal(t, "test", signer.SignatureType())
	assert.Equal(t, "signer-1", signer.Signatory())

	digest, err := signature.Digest(sig.TimestampNS, payload)
	require.NoError(t, err)
	backend.AssertCalled(t, "SignDigest", digest)
}

func TestSignerReadsClockOnEverySignature(t *testing.T) {
	clock := time2.NewMockClock(time.Unix(100, 0))

	backend := new(MockBackend)
	backend.On("Signatory").Return("signer-1")
	backend.On("SignDigest", mock.Anything).Return([]byte{1}, nil)

	signer := signature.NewSigner("test", backend, signature.WithClock(clock))

	first, err := signer.Sign([]byte("x"))
	require.NoError(t, err)

	clock.Set(time.Unix(50, 0))
	second, err := signer.Sign([]byte("x"))
	require.NoError(t, err)

	assert.Equal(t, uint64(100*time.Second), first.TimestampNS)
	assert.Equal(t, uint64(50*time.Second), second.TimestampNS)
}

func TestSignerBackendFailure(t *testing.T) {
	backendErr := errors.New("hsm unavailable")

	backend := new(MockBackend)
	backend.On("Signatory").Return("signer-1")
	backend.On("SignDigest", mock.Anything).Return(nil, backendErr)

	signer := signature.NewSigner("test", backend)
	sig, err := signer.Sign([]byte("payload"))
	assert.Nil(t, sig)

	var signingErr *signature.SigningError
	require.True(t, errors.As(err, &signingErr))
	assert.Equal(t, "test", signingErr.SignatureType)
	assert.ErrorIs(t, err, backendErr)
}

func TestSignerRejectsEmptyBackendSignature(t *testing.T) {
	backend := new(MockBackend)
	backend.On("Signatory").Return("signer-1")
	backend.On("SignDigest", mock.Anything).Return([]byte{}, nil)

	_, err := signature.NewSigner("test", backend).Sign([]byte("payload"))
	var signingErr *signature.SigningError
	assert.True(t, errors.As(err, &signingErr))
}

func TestSignatureForRequest(t *testing.T) {
	clock := time2.NewMockClock(time.Unix(1718000000, 0))

	backend := new(MockBackend)
	backend.On("Signatory").Return("signer-1")
	backend.On("SignDigest", mock.Anything).Return([]byte{1, 2, 3}, nil)

	signer := signature.NewSigner("test", backend, signature.WithClock(clock))
	body := map[string]any{"x": 1}

	sig, err := signer.SignatureForRequest("post", "https://a.example/api/v1/job-docker/", nil, body)
	require.NoError(t, err)

	want, err := signature.Digest(sig.TimestampNS, signature.Payload{Action: "POST /api/v1/job-docker/", JSON: body})
	require.NoError(t, err)
	backend.AssertCalled(t, "SignDigest", want)

	// host independence: same digest through a different host
	sameDigest, err := signature.Digest(sig.TimestampNS, signature.PayloadFromRequest("POST", "http://proxy.internal:8080/api/v1/job-docker/", nil, body))
	require.NoError(t, err)
	assert.Equal(t, want, sameDigest)
}

type staticVerifier struct {
	err error
}

func (v staticVerifier) VerifyDigest(string, []byte, []byte) error {
	return v.err
}

func TestVerifyDispatch(t *testing.T) {
	sig := testSignature()

	err := signature.Verify(sig, []byte("x"), signature.Verifiers{})
	var unsupported *signature.UnsupportedSignatureTypeError
	assert.True(t, errors.As(err, &unsupported))

	assert.NoError(t, signature.Verify(sig, []byte("x"), signature.Verifiers{"ed25519": staticVerifier{}}))

	err = signature.Verify(sig, []byte("x"), signature.Verifiers{"ed25519": staticVerifier{err: signature.ErrInvalidSignature}})
	assert.ErrorIs(t, err, signature.ErrInvalidSignature)

	sig.Signature = nil
	err = signature.Verify(sig, []byte("x"), signature.Verifiers{"ed25519": staticVerifier{}})
	assert.ErrorIs(t, err, signature.ErrIncompleteSignature)
}

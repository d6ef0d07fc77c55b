package signature

import (
	"net/http"

	"github.com/dropbox/godropbox/time2"
	"github.com/pkg/errors"
)

// KeyBackend is the private key capability behind a Signer.
// Implementations never expose key material outside SignDigest.
type KeyBackend interface {
	// Signatory returns the stable public identifier of the key, e.g. an address.
	Signatory() string
	// SignDigest signs an already hashed digest.
	SignDigest(digest []byte) ([]byte, error)
}

// Signer produces signatures of a given type using a KeyBackend.
type Signer struct {
	signatureType string
	backend       KeyBackend
	clock         time2.Clock
}

// SignerOption configures a Signer.
type SignerOption func(*Signer)

// WithClock replaces the wall clock used for signature timestamps.
func WithClock(clock time2.Clock) SignerOption {
	return func(s *Signer) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewSigner creates a Signer tagging its signatures with signatureType.
func NewSigner(signatureType string, backend KeyBackend, opts ...SignerOption) *Signer {
	s := &Signer{
		signatureType: signatureType,
		backend:       backend,
		clock:         time2.DefaultClock,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SignatureType is the tag written into every signature, e.g. "ed25519".
func (s *Signer) SignatureType() string {
	return s.signatureType
}

// Signatory is the backend's public identity.
func (s *Signer) Signatory() string {
	return s.backend.Signatory()
}

// Sign signs payload. The timestamp is read from the clock at this moment, never cached.
func (s *Signer) Sign(payload any) (*Signature, error) {
	now := s.clock.Now().UnixNano()
	if now < 0 {
		return nil, &SigningError{SignatureType: s.signatureType, Err: errors.Errorf("clock is before unix epoch: %d", now)}
	}

	sig := &Signature{
		SignatureType: s.signatureType,
		Signatory:     s.backend.Signatory(),
		TimestampNS:   uint64(now),
	}

	digest, err := Digest(sig.TimestampNS, payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash payload")
	}

	sigBytes, err := s.backend.SignDigest(digest)
	if err != nil {
		return nil, &SigningError{SignatureType: s.signatureType, Err: err}
	}
	if len(sigBytes) == 0 {
		return nil, &SigningError{SignatureType: s.signatureType, Err: errors.New("backend returned an empty signature")}
	}
	sig.Signature = sigBytes

	return sig, nil
}

// SignatureForRequest signs the canonical payload of a request.
func (s *Signer) SignatureForRequest(method, url string, headers http.Header, body any) (*Signature, error) {
	return s.Sign(PayloadFromRequest(method, url, headers, body))
}

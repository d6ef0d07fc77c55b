package signature

import (
	"encoding/base64"
	"encoding/json"

	"github.com/pkg/errors"
)

// Signature is the envelope sent along with a signed request.
type Signature struct {
	SignatureType string `json:"signature_type"`
	Signatory     string `json:"signatory"`
	TimestampNS   uint64 `json:"timestamp_ns"`
	Signature     []byte `json:"signature"`
}

// IsComplete reports whether the signature bytes have been filled in.
func (s *Signature) IsComplete() bool {
	return s != nil && len(s.Signature) > 0
}

// EncodeSignatureBytes encodes raw signature bytes as padded standard base64.
func EncodeSignatureBytes(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeSignatureBytes decodes padded standard base64, rejecting anything malformed.
func DecodeSignatureBytes(s string) ([]byte, error) {
	b, err := base64.StdEncoding.Strict().DecodeString(s)
	if err != nil {
		return nil, &MalformedSignatureError{Field: "signature", Err: err}
	}
	return b, nil
}

type signatureJSON struct {
	SignatureType string `json:"signature_type"`
	Signatory     string `json:"signatory"`
	TimestampNS   uint64 `json:"timestamp_ns"`
	Signature     string `json:"signature"`
}

// MarshalJSON implements json.Marshaler.
func (s Signature) MarshalJSON() ([]byte, error) {
	return json.Marshal(signatureJSON{
		SignatureType: s.SignatureType,
		Signatory:     s.Signatory,
		TimestampNS:   s.TimestampNS,
		Signature:     EncodeSignatureBytes(s.Signature),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Signature) UnmarshalJSON(data []byte) error {
	var raw signatureJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "failed to unmarshal signature")
	}

	sigBytes, err := DecodeSignatureBytes(raw.Signature)
	if err != nil {
		return err
	}

	*s = Signature{
		SignatureType: raw.SignatureType,
		Signatory:     raw.Signatory,
		TimestampNS:   raw.TimestampNS,
		Signature:     sigBytes,
	}
	return nil
}

package signature

import "net/http"

// Verifier checks a signature over a digest against the signatory's public identity.
type Verifier interface {
	VerifyDigest(signatory string, digest, sig []byte) error
}

// Verifiers maps a signature type to its verifier.
type Verifiers map[string]Verifier

// Verify recomputes the digest of payload and checks sig with the matching verifier.
func Verify(sig *Signature, payload any, verifiers Verifiers) error {
	if !sig.IsComplete() {
		return &MalformedSignatureError{Field: headerSignature, Err: ErrIncompleteSignature}
	}

	verifier, ok := verifiers[sig.SignatureType]
	if !ok {
		return &UnsupportedSignatureTypeError{SignatureType: sig.SignatureType}
	}

	digest, err := Digest(sig.TimestampNS, payload)
	if err != nil {
		return err
	}

	return verifier.VerifyDigest(sig.Signatory, digest, sig.Signature)
}

// VerifyRequest parses the X-CH-* headers of r and verifies them against the request payload
// built from r's method and URL with signedBody as its json member.
func VerifyRequest(r *http.Request, signedBody any, verifiers Verifiers) (*Signature, error) {
	sig, err := FromHeaders(r.Header, DefaultHeaderPrefix)
	if err != nil {
		return nil, err
	}

	payload := PayloadFromRequest(r.Method, r.URL.RequestURI(), r.Header, signedBody)
	if err := Verify(sig, payload, verifiers); err != nil {
		return sig, err
	}
	return sig, nil
}

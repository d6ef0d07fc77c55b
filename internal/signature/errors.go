package signature

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidSignature is returned by verifiers when a signature does not match.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrIncompleteSignature marks an in-progress signature that must not be transmitted.
	ErrIncompleteSignature = errors.New("signature bytes are empty")
)

// SigningError wraps a failed private key operation.
type SigningError struct {
	SignatureType string
	Err           error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("failed to sign with %q key: %v", e.SignatureType, e.Err)
}

func (e *SigningError) Unwrap() error {
	return e.Err
}

// MalformedSignatureError reports an encoded signature field that could not be decoded.
type MalformedSignatureError struct {
	Field string
	Err   error
}

func (e *MalformedSignatureError) Error() string {
	return fmt.Sprintf("malformed signature field %s: %v", e.Field, e.Err)
}

func (e *MalformedSignatureError) Unwrap() error {
	return e.Err
}

// UnsupportedSignatureTypeError is returned when no verifier is registered for a type.
type UnsupportedSignatureTypeError struct {
	SignatureType string
}

func (e *UnsupportedSignatureTypeError) Error() string {
	return fmt.Sprintf("unsupported signature type %q", e.SignatureType)
}

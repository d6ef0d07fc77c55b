package signature

import (
	"net/http"
	"strconv"

	"github.com/pkg/errors"
)

// DefaultHeaderPrefix is prepended to every signature header name.
const DefaultHeaderPrefix = "X-CH-"

const (
	headerSignatureType = "Signature-Type"
	headerSignatory     = "Signatory"
	headerTimestampNS   = "Timestamp-NS"
	headerSignature     = "Signature"
)

// ToHeaders converts a complete signature into transport headers.
// An empty prefix means DefaultHeaderPrefix.
func ToHeaders(sig *Signature, prefix string) (map[string]string, error) {
	if !sig.IsComplete() {
		return nil, &MalformedSignatureError{Field: headerSignature, Err: ErrIncompleteSignature}
	}
	if prefix == "" {
		prefix = DefaultHeaderPrefix
	}

	return map[string]string{
		prefix + headerSignatureType: sig.SignatureType,
		prefix + headerSignatory:     sig.Signatory,
		prefix + headerTimestampNS:   strconv.FormatUint(sig.TimestampNS, 10),
		prefix + headerSignature:     EncodeSignatureBytes(sig.Signature),
	}, nil
}

// FromHeaders parses a signature back out of request headers.
func FromHeaders(h http.Header, prefix string) (*Signature, error) {
	if prefix == "" {
		prefix = DefaultHeaderPrefix
	}

	get := func(name string) (string, error) {
		values := h.Values(prefix + name)
		if len(values) == 0 {
			return "", &MalformedSignatureError{Field: prefix + name, Err: errors.New("header is missing")}
		}
		return values[0], nil
	}

	sigType, err := get(headerSignatureType)
	if err != nil {
		return nil, err
	}
	signatory, err := get(headerSignatory)
	if err != nil {
		return nil, err
	}
	rawTimestamp, err := get(headerTimestampNS)
	if err != nil {
		return nil, err
	}
	rawSignature, err := get(headerSignature)
	if err != nil {
		return nil, err
	}

	timestampNS, err := strconv.ParseUint(rawTimestamp, 10, 64)
	if err != nil {
		return nil, &MalformedSignatureError{Field: prefix + headerTimestampNS, Err: err}
	}

	sigBytes, err := DecodeSignatureBytes(rawSignature)
	if err != nil {
		return nil, err
	}
	if len(sigBytes) == 0 {
		return nil, &MalformedSignatureError{Field: prefix + headerSignature, Err: ErrIncompleteSignature}
	}

	return &Signature{
		SignatureType: sigType,
		Signatory:     signatory,
		TimestampNS:   timestampNS,
		Signature:     sigBytes,
	}, nil
}

// ApplyHeaders sets the signature headers on h.
func ApplyHeaders(h http.Header, sig *Signature, prefix string) error {
	headers, err := ToHeaders(sig, prefix)
	if err != nil {
		return err
	}
	for k, v := range headers {
		h.Set(k, v)
	}
	return nil
}

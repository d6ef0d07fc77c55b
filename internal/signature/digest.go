package signature

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

// Digest hashes the big-endian timestamp followed by the payload bytes with BLAKE2b-512.
// Payloads that are not []byte are canonicalized first.
func Digest(timestampNS uint64, payload any) ([]byte, error) {
	data, err := payloadBytes(payload)
	if err != nil {
		return nil, err
	}

	hasher, err := blake2b.New512(nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create blake2b hasher")
	}

	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], timestampNS)
	hasher.Write(ts[:])
	hasher.Write(data)

	return hasher.Sum(nil), nil
}

func payloadBytes(payload any) ([]byte, error) {
	if b, ok := payload.([]byte); ok {
		return b, nil
	}
	return Canonicalize(payload)
}

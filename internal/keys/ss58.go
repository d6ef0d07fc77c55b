package keys

import (
	"bytes"

	"github.com/btcsuite/btcutil/base58"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

// DefaultSS58Prefix is the generic Substrate network prefix used by Bittensor hotkeys.
const DefaultSS58Prefix uint16 = 42

const (
	ss58ChecksumLen = 2
	ss58MaxPrefix   = 16383
	publicKeyLen    = 32
)

var ss58Pre = []byte("SS58PRE")

// SS58Encode encodes a 32 byte public key as an SS58 address.
func SS58Encode(pubKey []byte, prefix uint16) (string, error) {
	if len(pubKey) != publicKeyLen {
		return "", errors.Errorf("invalid public key length: expected %d bytes, got %d", publicKeyLen, len(pubKey))
	}
	if prefix > ss58MaxPrefix {
		return "", errors.Errorf("ss58 prefix %d out of range", prefix)
	}

	// 1. network prefix, one byte below 64, two bytes otherwise
	var payload []byte
	if prefix < 64 {
		payload = []byte{byte(prefix)}
	} else {
		payload = []byte{
			byte((prefix&0x00fc)>>2) | 0x40,
			byte(prefix>>8) | byte((prefix&0x0003)<<6),
		}
	}
	payload = append(payload, pubKey...)

	// 2. checksum over "SS58PRE" | prefix | key
	checksum, err := ss58Checksum(payload)
	if err != nil {
		return "", err
	}

	return base58.Encode(append(payload, checksum...)), nil
}

// SS58Decode returns the public key and network prefix of an SS58 address.
func SS58Decode(address string) ([]byte, uint16, error) {
	raw := base58.Decode(address)
	if len(raw) == 0 {
		return nil, 0, errors.Errorf("invalid ss58 address %q", address)
	}

	var (
		prefix    uint16
		prefixLen int
	)
	switch {
	case raw[0] < 64:
		prefix = uint16(raw[0])
		prefixLen = 1
	case raw[0] < 128:
		if len(raw) < 2 {
			return nil, 0, errors.Errorf("invalid ss58 address %q", address)
		}
		lower := (raw[0] << 2) | (raw[1] >> 6)
		upper := raw[1] & 0x3f
		prefix = uint16(lower) | uint16(upper)<<8
		prefixLen = 2
	default:
		return nil, 0, errors.Errorf("invalid ss58 address %q: reserved prefix byte", address)
	}

	if len(raw) != prefixLen+publicKeyLen+ss58ChecksumLen {
		return nil, 0, errors.Errorf("invalid ss58 address %q: unexpected length %d", address, len(raw))
	}

	body := raw[:prefixLen+publicKeyLen]
	checksum, err := ss58Checksum(body)
	if err != nil {
		return nil, 0, err
	}
	if !bytes.Equal(checksum, raw[prefixLen+publicKeyLen:]) {
		return nil, 0, errors.Errorf("invalid ss58 address %q: checksum mismatch", address)
	}

	pubKey := make([]byte, publicKeyLen)
	copy(pubKey, raw[prefixLen:prefixLen+publicKeyLen])
	return pubKey, prefix, nil
}

func ss58Checksum(payload []byte) ([]byte, error) {
	h, err := blake2b.New512(nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to init blake2b")
	}
	h.Write(ss58Pre)
	h.Write(payload)
	return h.Sum(nil)[:ss58ChecksumLen], nil
}

package config

import (
	"encoding/hex"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/kashguard/go-horde-sdk/internal/keys"
	"github.com/kashguard/go-horde-sdk/internal/signature"
	"github.com/pkg/errors"
)

// KeyFile is a wallet stored as TOML:
//
//	type = "ed25519"
//	seed_hex = "..."
//	ss58_prefix = 42
//
// with type = "bittensor" for an sr25519 hotkey from the same seed_hex, or
//
//	type = "ethereum"
//	private_key_hex = "0x..."
type KeyFile struct {
	Type          string  `toml:"type"`
	SeedHex       string  `toml:"seed_hex"`
	PrivateKeyHex string  `toml:"private_key_hex"`
	SS58Prefix    *uint16 `toml:"ss58_prefix"`
}

// LoadKeyFile parses a wallet file. Unknown keys are rejected.
func LoadKeyFile(path string) (*KeyFile, error) {
	var kf KeyFile
	md, err := toml.DecodeFile(path, &kf)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse key file %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Errorf("key file %s has unknown keys: %v", path, undecoded)
	}
	return &kf, nil
}

// Signer builds the signer for the wallet in the file.
func (k *KeyFile) Signer(opts ...signature.SignerOption) (*signature.Signer, error) {
	switch k.Type {
	case keys.SignatureTypeEd25519:
		seed, prefix, err := k.seed()
		if err != nil {
			return nil, err
		}
		wallet, err := keys.NewEd25519WalletFromSeed(seed, prefix)
		if err != nil {
			return nil, err
		}
		return wallet.Signer(opts...), nil

	case keys.SignatureTypeBittensor:
		seed, prefix, err := k.seed()
		if err != nil {
			return nil, err
		}
		wallet, err := keys.NewSr25519WalletFromSeed(seed, prefix)
		if err != nil {
			return nil, err
		}
		return wallet.Signer(opts...), nil

	case keys.SignatureTypeEthereum:
		wallet, err := keys.NewEthereumWalletFromHex(k.PrivateKeyHex)
		if err != nil {
			return nil, err
		}
		return wallet.Signer(opts...), nil

	default:
		return nil, errors.Errorf("unsupported key type %q", k.Type)
	}
}

func (k *KeyFile) seed() ([]byte, uint16, error) {
	seed, err := hex.DecodeString(strings.TrimPrefix(k.SeedHex, "0x"))
	if err != nil {
		return nil, 0, errors.Wrap(err, "invalid seed_hex")
	}
	prefix := keys.DefaultSS58Prefix
	if k.SS58Prefix != nil {
		prefix = *k.SS58Prefix
	}
	return seed, prefix, nil
}

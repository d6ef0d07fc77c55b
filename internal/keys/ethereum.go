package keys

import (
	"crypto/ecdsa"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/kashguard/go-horde-sdk/internal/signature"
	"github.com/pkg/errors"
)

// SignatureTypeEthereum tags signatures made by an EthereumWallet.
const SignatureTypeEthereum = "ethereum"

// EthereumWallet is a secp256k1 key identified by its checksummed address.
type EthereumWallet struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewEthereumWallet wraps an existing secp256k1 private key.
func NewEthereumWallet(privateKey *ecdsa.PrivateKey) (*EthereumWallet, error) {
	if privateKey == nil {
		return nil, errors.New("private key is required")
	}
	return &EthereumWallet{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
	}, nil
}

// NewEthereumWalletFromHex parses a hex private key, with or without 0x prefix.
func NewEthereumWalletFromHex(hexKey string) (*EthereumWallet, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse secp256k1 private key")
	}
	return NewEthereumWallet(privateKey)
}

// GenerateEthereumWallet creates a fresh random wallet.
func GenerateEthereumWallet() (*EthereumWallet, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate secp256k1 key")
	}
	return NewEthereumWallet(privateKey)
}

func (w *EthereumWallet) Signatory() string {
	return w.address.Hex()
}

// PublicKey returns the 33 byte compressed public key.
func (w *EthereumWallet) PublicKey() []byte {
	return crypto.CompressPubkey(&w.privateKey.PublicKey)
}

// SignDigest signs Keccak256(digest) and returns the 65 byte [R || S || V] recoverable signature.
func (w *EthereumWallet) SignDigest(digest []byte) ([]byte, error) {
	sig, err := crypto.Sign(crypto.Keccak256(digest), w.privateKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign digest")
	}
	return sig, nil
}

// Signer wraps the wallet into a signature.Signer.
func (w *EthereumWallet) Signer(opts ...signature.SignerOption) *signature.Signer {
	return signature.NewSigner(SignatureTypeEthereum, w, opts...)
}

// EthereumAddressFromPublicKey derives the checksummed address of a compressed (33 bytes)
// or uncompressed (65 bytes) secp256k1 public key.
func EthereumAddressFromPublicKey(pubKey []byte) (string, error) {
	if len(pubKey) == 0 {
		return "", errors.New("public key is required")
	}

	var uncompressed64 []byte
	switch {
	case len(pubKey) == 65 && pubKey[0] == 0x04:
		uncompressed64 = pubKey[1:]
	case len(pubKey) == 33 && (pubKey[0] == 0x02 || pubKey[0] == 0x03):
		key, err := btcec.ParsePubKey(pubKey)
		if err != nil {
			return "", errors.Wrap(err, "failed to parse compressed secp256k1 pubkey")
		}
		u := key.SerializeUncompressed() // 0x04 | X | Y
		uncompressed64 = u[1:]
	default:
		return "", errors.Errorf("unsupported public key format: len=%d", len(pubKey))
	}

	hash := crypto.Keccak256(uncompressed64)
	return common.BytesToAddress(hash[12:]).Hex(), nil
}

// EthereumVerifier recovers the signing key and compares its address with the signatory.
type EthereumVerifier struct{}

func (EthereumVerifier) VerifyDigest(signatory string, digest, sig []byte) error {
	if !common.IsHexAddress(signatory) {
		return errors.Wrapf(signature.ErrInvalidSignature, "signatory %q is not an address", signatory)
	}
	if len(sig) != crypto.SignatureLength {
		return errors.Wrapf(signature.ErrInvalidSignature, "unexpected signature length %d", len(sig))
	}

	pubKey, err := crypto.SigToPub(crypto.Keccak256(digest), sig)
	if err != nil {
		return errors.Wrap(signature.ErrInvalidSignature, err.Error())
	}

	recovered, err := EthereumAddressFromPublicKey(crypto.FromECDSAPub(pubKey))
	if err != nil {
		return errors.Wrap(signature.ErrInvalidSignature, err.Error())
	}
	if recovered != common.HexToAddress(signatory).Hex() {
		return signature.ErrInvalidSignature
	}
	return nil
}

// DefaultVerifiers returns the verifiers for every wallet type in this package.
func DefaultVerifiers() signature.Verifiers {
	return signature.Verifiers{
		SignatureTypeEd25519:   Ed25519Verifier{},
		SignatureTypeEthereum:  EthereumVerifier{},
		SignatureTypeBittensor: Sr25519Verifier{},
	}
}

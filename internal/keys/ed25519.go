package keys

import (
	"crypto/ed25519"
	"io"

	"github.com/kashguard/go-horde-sdk/internal/signature"
	"github.com/pkg/errors"
)

// SignatureTypeEd25519 tags signatures made by an Ed25519Wallet.
const SignatureTypeEd25519 = "ed25519"

// Ed25519Wallet is an ed25519 hotkey identified by its SS58 address.
type Ed25519Wallet struct {
	privateKey ed25519.PrivateKey
	address    string
}

// NewEd25519WalletFromSeed derives the wallet from a 32 byte seed.
func NewEd25519WalletFromSeed(seed []byte, ss58Prefix uint16) (*Ed25519Wallet, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, errors.Errorf("invalid ed25519 seed length: expected %d bytes, got %d", ed25519.SeedSize, len(seed))
	}

	privateKey := ed25519.NewKeyFromSeed(seed)
	address, err := SS58Encode(privateKey.Public().(ed25519.PublicKey), ss58Prefix)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode hotkey address")
	}

	return &Ed25519Wallet{
		privateKey: privateKey,
		address:    address,
	}, nil
}

// GenerateEd25519Wallet creates a fresh wallet reading entropy from rand. Used by tests and the mock facilitator.
func GenerateEd25519Wallet(rand io.Reader) (*Ed25519Wallet, error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(rand, seed); err != nil {
		return nil, errors.Wrap(err, "failed to read seed")
	}
	return NewEd25519WalletFromSeed(seed, DefaultSS58Prefix)
}

func (w *Ed25519Wallet) Signatory() string {
	return w.address
}

func (w *Ed25519Wallet) PublicKey() ed25519.PublicKey {
	return w.privateKey.Public().(ed25519.PublicKey)
}

func (w *Ed25519Wallet) SignDigest(digest []byte) ([]byte, error) {
	return ed25519.Sign(w.privateKey, digest), nil
}

// Signer wraps the wallet into a signature.Signer.
func (w *Ed25519Wallet) Signer(opts ...signature.SignerOption) *signature.Signer {
	return signature.NewSigner(SignatureTypeEd25519, w, opts...)
}

// Ed25519Verifier checks ed25519 signatures whose signatory is an SS58 address.
type Ed25519Verifier struct{}

func (Ed25519Verifier) VerifyDigest(signatory string, digest, sig []byte) error {
	pubKey, _, err := SS58Decode(signatory)
	if err != nil {
		return errors.Wrap(signature.ErrInvalidSignature, err.Error())
	}
	if len(sig) != ed25519.SignatureSize {
		return errors.Wrapf(signature.ErrInvalidSignature, "unexpected signature length %d", len(sig))
	}
	if !ed25519.Verify(ed25519.PublicKey(pubKey), digest, sig) {
		return signature.ErrInvalidSignature
	}
	return nil
}

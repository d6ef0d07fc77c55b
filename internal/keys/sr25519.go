package keys

import (
	"io"

	"github.com/ChainSafe/go-schnorrkel"
	"github.com/kashguard/go-horde-sdk/internal/signature"
	"github.com/pkg/errors"
)

// SignatureTypeBittensor tags sr25519 hotkey signatures, the scheme Bittensor wallets use.
const SignatureTypeBittensor = "bittensor"

// substrateContext is the signing context substrate and bittensor wallets sign under.
var substrateContext = []byte("substrate")

const (
	sr25519SeedSize      = 32
	sr25519PublicKeySize = 32
	sr25519SignatureSize = 64
)

// Sr25519Wallet is a schnorrkel hotkey identified by its SS58 address.
type Sr25519Wallet struct {
	secretKey *schnorrkel.SecretKey
	publicKey [sr25519PublicKeySize]byte
	address   string
}

// NewSr25519WalletFromSeed derives the wallet from a 32 byte mini secret key.
func NewSr25519WalletFromSeed(seed []byte, ss58Prefix uint16) (*Sr25519Wallet, error) {
	if len(seed) != sr25519SeedSize {
		return nil, errors.Errorf("invalid sr25519 seed length: expected %d bytes, got %d", sr25519SeedSize, len(seed))
	}

	var raw [sr25519SeedSize]byte
	copy(raw[:], seed)
	miniSecret, err := schnorrkel.NewMiniSecretKeyFromRaw(raw)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load sr25519 mini secret key")
	}

	publicKey := miniSecret.Public().Encode()
	address, err := SS58Encode(publicKey[:], ss58Prefix)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode hotkey address")
	}

	return &Sr25519Wallet{
		secretKey: miniSecret.ExpandEd25519(),
		publicKey: publicKey,
		address:   address,
	}, nil
}

// GenerateSr25519Wallet creates a fresh wallet reading entropy from rand.
func GenerateSr25519Wallet(rand io.Reader) (*Sr25519Wallet, error) {
	seed := make([]byte, sr25519SeedSize)
	if _, err := io.ReadFull(rand, seed); err != nil {
		return nil, errors.Wrap(err, "failed to read seed")
	}
	return NewSr25519WalletFromSeed(seed, DefaultSS58Prefix)
}

// Signatory is the SS58 hotkey address.
func (w *Sr25519Wallet) Signatory() string {
	return w.address
}

func (w *Sr25519Wallet) PublicKey() []byte {
	return append([]byte(nil), w.publicKey[:]...)
}

// SignDigest signs digest under the substrate context. Signatures are randomized.
func (w *Sr25519Wallet) SignDigest(digest []byte) ([]byte, error) {
	sig, err := w.secretKey.Sign(schnorrkel.NewSigningContext(substrateContext, digest))
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign with sr25519 key")
	}
	encoded := sig.Encode()
	return encoded[:], nil
}

// Signer wraps the wallet into a signature.Signer.
func (w *Sr25519Wallet) Signer(opts ...signature.SignerOption) *signature.Signer {
	return signature.NewSigner(SignatureTypeBittensor, w, opts...)
}

// Sr25519Verifier checks sr25519 signatures whose signatory is an SS58 address.
type Sr25519Verifier struct{}

func (Sr25519Verifier) VerifyDigest(signatory string, digest, sig []byte) error {
	pubKeyBytes, _, err := SS58Decode(signatory)
	if err != nil {
		return errors.Wrap(signature.ErrInvalidSignature, err.Error())
	}
	if len(pubKeyBytes) != sr25519PublicKeySize {
		return errors.Wrapf(signature.ErrInvalidSignature, "unexpected public key length %d", len(pubKeyBytes))
	}
	if len(sig) != sr25519SignatureSize {
		return errors.Wrapf(signature.ErrInvalidSignature, "unexpected signature length %d", len(sig))
	}

	var rawKey [sr25519PublicKeySize]byte
	copy(rawKey[:], pubKeyBytes)
	pubKey := &schnorrkel.PublicKey{}
	if err := pubKey.Decode(rawKey); err != nil {
		return errors.Wrap(signature.ErrInvalidSignature, err.Error())
	}

	var rawSig [sr25519SignatureSize]byte
	copy(rawSig[:], sig)
	decoded := &schnorrkel.Signature{}
	if err := decoded.Decode(rawSig); err != nil {
		return errors.Wrap(signature.ErrInvalidSignature, err.Error())
	}

	ok, err := pubKey.Verify(decoded, schnorrkel.NewSigningContext(substrateContext, digest))
	if err != nil {
		return errors.Wrap(signature.ErrInvalidSignature, err.Error())
	}
	if !ok {
		return signature.ErrInvalidSignature
	}
	return nil
}

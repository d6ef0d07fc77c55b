package keys_test

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/kashguard/go-horde-sdk/internal/keys"
	"github.com/kashguard/go-horde-sdk/internal/signature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSigners(t *testing.T) map[string]*signature.Signer {
	t.Helper()

	edWallet, err := keys.NewEd25519WalletFromSeed(bytes.Repeat([]byte{7}, 32), keys.DefaultSS58Prefix)
	require.NoError(t, err)

	ethWallet, err := keys.NewEthereumWalletFromHex("0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	require.NoError(t, err)

	srWallet, err := keys.NewSr25519WalletFromSeed(bytes.Repeat([]byte{9}, 32), keys.DefaultSS58Prefix)
	require.NoError(t, err)

	return map[string]*signature.Signer{
		keys.SignatureTypeEd25519:   edWallet.Signer(),
		keys.SignatureTypeEthereum:  ethWallet.Signer(),
		keys.SignatureTypeBittensor: srWallet.Signer(),
	}
}

func TestEthereumWalletAddress(t *testing.T) {
	wallet, err := keys.NewEthereumWalletFromHex("ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	require.NoError(t, err)
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", wallet.Signatory())

	compressed, err := keys.EthereumAddressFromPublicKey(wallet.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, wallet.Signatory(), compressed)

	pub, err := crypto.DecompressPubkey(wallet.PublicKey())
	require.NoError(t, err)
	uncompressed, err := keys.EthereumAddressFromPublicKey(crypto.FromECDSAPub(pub))
	require.NoError(t, err)
	assert.Equal(t, wallet.Signatory(), uncompressed)

	_, err = keys.EthereumAddressFromPublicKey([]byte{0x05, 0x01})
	assert.Error(t, err)

	_, err = keys.NewEthereumWalletFromHex("zz")
	assert.Error(t, err)
}

func TestEd25519WalletSignatory(t *testing.T) {
	wallet, err := keys.GenerateEd25519Wallet(rand.Reader)
	require.NoError(t, err)

	pubKey, prefix, err := keys.SS58Decode(wallet.Signatory())
	require.NoError(t, err)
	assert.Equal(t, keys.DefaultSS58Prefix, prefix)
	assert.Equal(t, []byte(wallet.PublicKey()), pubKey)

	_, err = keys.NewEd25519WalletFromSeed([]byte{1}, keys.DefaultSS58Prefix)
	assert.Error(t, err)
}

func TestSr25519WalletSignatory(t *testing.T) {
	wallet, err := keys.GenerateSr25519Wallet(rand.Reader)
	require.NoError(t, err)

	pubKey, prefix, err := keys.SS58Decode(wallet.Signatory())
	require.NoError(t, err)
	assert.Equal(t, keys.DefaultSS58Prefix, prefix)
	assert.Equal(t, wallet.PublicKey(), pubKey)

	again, err := keys.NewSr25519WalletFromSeed(bytes.Repeat([]byte{9}, 32), keys.DefaultSS58Prefix)
	require.NoError(t, err)
	same, err := keys.NewSr25519WalletFromSeed(bytes.Repeat([]byte{9}, 32), keys.DefaultSS58Prefix)
	require.NoError(t, err)
	assert.Equal(t, again.Signatory(), same.Signatory())

	_, err = keys.NewSr25519WalletFromSeed([]byte{1}, keys.DefaultSS58Prefix)
	assert.Error(t, err)
}

func TestSr25519SignVerify(t *testing.T) {
	wallet, err := keys.NewSr25519WalletFromSeed(bytes.Repeat([]byte{9}, 32), keys.DefaultSS58Prefix)
	require.NoError(t, err)
	digest := bytes.Repeat([]byte{0xab}, 64)

	sig, err := wallet.SignDigest(digest)
	require.NoError(t, err)
	assert.Len(t, sig, 64)

	verifier := keys.Sr25519Verifier{}
	require.NoError(t, verifier.VerifyDigest(wallet.Signatory(), digest, sig))

	// signatures are randomized but both verify
	sig2, err := wallet.SignDigest(digest)
	require.NoError(t, err)
	assert.NotEqual(t, sig, sig2)
	require.NoError(t, verifier.VerifyDigest(wallet.Signatory(), digest, sig2))

	other := bytes.Repeat([]byte{0xac}, 64)
	assert.ErrorIs(t, verifier.VerifyDigest(wallet.Signatory(), other, sig), signature.ErrInvalidSignature)
	assert.ErrorIs(t, verifier.VerifyDigest(wallet.Signatory(), digest, sig[:63]), signature.ErrInvalidSignature)

	edWallet, err := keys.NewEd25519WalletFromSeed(bytes.Repeat([]byte{9}, 32), keys.DefaultSS58Prefix)
	require.NoError(t, err)
	edSig, err := edWallet.SignDigest(digest)
	require.NoError(t, err)
	assert.ErrorIs(t, verifier.VerifyDigest(edWallet.Signatory(), digest, edSig), signature.ErrInvalidSignature)
}

func TestSignVerifyRoundTrip(t *testing.T) {
	verifiers := keys.DefaultVerifiers()
	payload := signature.PayloadFromRequest("POST", "https://facilitator.example/api/v1/job-docker/", nil, map[string]any{
		"docker_image": "alpine",
		"args":         "echo hi",
		"use_gpu":      false,
	})

	for name, signer := range testSigners(t) {
		t.Run(name, func(t *testing.T) {
			sig, err := signer.Sign(payload)
			require.NoError(t, err)
			assert.Equal(t, name, sig.SignatureType)
			assert.Equal(t, signer.Signatory(), sig.Signatory)

			require.NoError(t, signature.Verify(sig, payload, verifiers))

			// headers survive the transport encoding
			headers, err := signature.ToHeaders(sig, "")
			require.NoError(t, err)
			assert.Len(t, headers, 4)
		})
	}
}

func TestVerifyRejectsSingleByteChanges(t *testing.T) {
	verifiers := keys.DefaultVerifiers()
	payload := map[string]any{"action": "POST /api/v1/job-docker/", "json": map[string]any{"args": "echo hi"}}
	other := map[string]any{"action": "POST /api/v1/job-docker/", "json": map[string]any{"args": "echo ho"}}

	for name, signer := range testSigners(t) {
		t.Run(name, func(t *testing.T) {
			sig, err := signer.Sign(payload)
			require.NoError(t, err)

			for i := range sig.Signature {
				tampered := *sig
				tampered.Signature = append([]byte(nil), sig.Signature...)
				tampered.Signature[i] ^= 0x01
				assert.ErrorIs(t, signature.Verify(&tampered, payload, verifiers), signature.ErrInvalidSignature, "byte %d", i)
			}

			tampered := *sig
			tampered.TimestampNS++
			assert.ErrorIs(t, signature.Verify(&tampered, payload, verifiers), signature.ErrInvalidSignature)

			tampered = *sig
			sigBytes := []byte(sig.Signatory)
			sigBytes[len(sigBytes)-1] ^= 0x01
			tampered.Signatory = string(sigBytes)
			assert.ErrorIs(t, signature.Verify(&tampered, payload, verifiers), signature.ErrInvalidSignature)

			assert.ErrorIs(t, signature.Verify(sig, other, verifiers), signature.ErrInvalidSignature)
		})
	}
}

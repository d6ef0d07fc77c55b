package test

import (
	"bytes"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kashguard/go-horde-sdk/internal/horde"
	"github.com/kashguard/go-horde-sdk/internal/keys"
	"github.com/kashguard/go-horde-sdk/internal/mockfacilitator"
	"github.com/kashguard/go-horde-sdk/internal/signature"
)

const (
	// FacilitatorToken is the token the mock facilitator started by WithMockFacilitator expects.
	FacilitatorToken = "test-token"
	// PollInterval keeps Wait fast in tests.
	PollInterval = 5 * time.Millisecond
)

// NewTestWallet returns a deterministic ed25519 hotkey.
func NewTestWallet(t *testing.T) *keys.Ed25519Wallet {
	t.Helper()

	wallet, err := keys.NewEd25519WalletFromSeed(bytes.Repeat([]byte{0x42}, 32), keys.DefaultSS58Prefix)
	if err != nil {
		t.Fatalf("failed to create test wallet: %v", err)
	}
	return wallet
}

// NewTestSigner returns a signer backed by NewTestWallet.
func NewTestSigner(t *testing.T, opts ...signature.SignerOption) *signature.Signer {
	t.Helper()
	return NewTestWallet(t).Signer(opts...)
}

// WithMockFacilitator starts an in-memory facilitator and hands a client pointed at it to closure.
func WithMockFacilitator(t *testing.T, closure func(srv *mockfacilitator.Server, client *horde.Client), opts ...mockfacilitator.Option) {
	t.Helper()

	srv := mockfacilitator.New(append([]mockfacilitator.Option{mockfacilitator.WithToken(FacilitatorToken)}, opts...)...)
	httpSrv := httptest.NewServer(srv)
	defer httpSrv.Close()

	client, err := horde.NewClient(
		httpSrv.URL+mockfacilitator.APIPrefix+"/",
		FacilitatorToken,
		NewTestSigner(t),
		horde.WithHTTPClient(httpSrv.Client()),
		horde.WithPollInterval(PollInterval),
	)
	if err != nil {
		t.Fatalf("failed to create facilitator client: %v", err)
	}

	closure(srv, client)
}

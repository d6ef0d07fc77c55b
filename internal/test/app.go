package test

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kashguard/go-horde-sdk/internal/app"
	"github.com/kashguard/go-horde-sdk/internal/config"
	"github.com/kashguard/go-horde-sdk/internal/mockfacilitator"
	"github.com/rs/zerolog"
)

// TestKeySeedHex is the seed of NewTestWallet.
var TestKeySeedHex = strings.Repeat("42", 32)

// WriteTestKeyFile stores the NewTestWallet seed as a key file and returns its path.
func WriteTestKeyFile(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "hotkey.toml")
	contents := "type = \"ed25519\"\nseed_hex = \"" + TestKeySeedHex + "\"\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("failed to write key file: %v", err)
	}
	return path
}

// NewTestClientConfig returns a client config pointed at facilitatorURL.
func NewTestClientConfig(t *testing.T, facilitatorURL string) config.Client {
	t.Helper()

	return config.Client{
		FacilitatorURL:   facilitatorURL,
		FacilitatorToken: FacilitatorToken,
		JobQueue:         "test",
		PollInterval:     PollInterval,
		RequestTimeout:   5 * time.Second,
		KeyFile:          WriteTestKeyFile(t),
		Logger: config.Logger{
			Level: zerolog.DebugLevel,
		},
	}
}

// WithTestApp starts a mock facilitator and hands an App configured against it to closure.
func WithTestApp(t *testing.T, closure func(srv *mockfacilitator.Server, a *app.App), opts ...mockfacilitator.Option) {
	t.Helper()

	srv := mockfacilitator.New(append([]mockfacilitator.Option{mockfacilitator.WithToken(FacilitatorToken)}, opts...)...)
	httpSrv := httptest.NewServer(srv)
	defer httpSrv.Close()

	a, cleanup, err := app.InitNewApp(NewTestClientConfig(t, httpSrv.URL+mockfacilitator.APIPrefix+"/"))
	if err != nil {
		t.Fatalf("failed to init app: %v", err)
	}
	defer cleanup()

	closure(srv, a)
}

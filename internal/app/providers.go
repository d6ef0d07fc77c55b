package app

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dropbox/godropbox/time2"
	"github.com/kashguard/go-horde-sdk/internal/config"
	"github.com/kashguard/go-horde-sdk/internal/horde"
	"github.com/kashguard/go-horde-sdk/internal/jobstore"
	"github.com/kashguard/go-horde-sdk/internal/signature"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// PROVIDERS - https://github.com/google/wire/blob/main/docs/guide.md#defining-providers

func NewClock(t ...*testing.T) time2.Clock {
	var clock time2.Clock

	useMock := len(t) > 0 && t[0] != nil

	if useMock {
		clock = time2.NewMockClock(time.Now())
	} else {
		clock = time2.DefaultClock
	}

	return clock
}

func NoTest() []*testing.T {
	return nil
}

// NewSigner loads the hotkey configured by HORDE_KEY_FILE.
func NewSigner(cfg config.Client, clock time2.Clock) (*signature.Signer, error) {
	if cfg.KeyFile == "" {
		return nil, errors.New("key file is not configured")
	}

	kf, err := config.LoadKeyFile(cfg.KeyFile)
	if err != nil {
		return nil, err
	}

	return kf.Signer(signature.WithClock(clock))
}

func NewHTTPClient(cfg config.Client) *http.Client {
	return &http.Client{Timeout: cfg.RequestTimeout}
}

func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

func NewMetrics(reg *prometheus.Registry) (*horde.Metrics, error) {
	return horde.NewMetrics(reg)
}

func NewClient(
	cfg config.Client,
	signer *signature.Signer,
	httpClient *http.Client,
	clock time2.Clock,
	metrics *horde.Metrics,
) (*horde.Client, error) {
	return horde.NewClient(cfg.FacilitatorURL, cfg.FacilitatorToken, signer,
		horde.WithHTTPClient(httpClient),
		horde.WithValidatorHotkey(cfg.ValidatorHotkey),
		horde.WithPollInterval(cfg.PollInterval),
		horde.WithClock(clock),
		horde.WithMetrics(metrics),
	)
}

// NewRedisClient returns nil when no redis address is configured.
func NewRedisClient(cfg config.Client) (*redis.Client, func(), error) {
	if cfg.RedisAddr == "" {
		return nil, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, errors.Wrap(err, "failed to ping redis")
	}

	cleanup := func() {
		if err := client.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close redis client")
		}
	}

	return client, cleanup, nil
}

func NewStore(client *redis.Client) jobstore.Store {
	if client == nil {
		return jobstore.NewMemoryStore()
	}
	return jobstore.NewRedisStore(client, jobstore.DefaultKeyPrefix)
}

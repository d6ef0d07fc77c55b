package app

import (
	"github.com/dropbox/godropbox/time2"
	"github.com/kashguard/go-horde-sdk/internal/config"
	"github.com/kashguard/go-horde-sdk/internal/horde"
	"github.com/kashguard/go-horde-sdk/internal/jobstore"
	"github.com/kashguard/go-horde-sdk/internal/signature"
	"github.com/prometheus/client_golang/prometheus"
)

// App bundles everything a CLI command needs to talk to the facilitator.
type App struct {
	Config   config.Client
	Clock    time2.Clock
	Signer   *signature.Signer
	Client   *horde.Client
	Store    jobstore.Store
	Registry *prometheus.Registry
	Metrics  *horde.Metrics
}

func newApp(
	cfg config.Client,
	clock time2.Clock,
	signer *signature.Signer,
	client *horde.Client,
	store jobstore.Store,
	registry *prometheus.Registry,
	metrics *horde.Metrics,
) *App {
	return &App{
		Config:   cfg,
		Clock:    clock,
		Signer:   signer,
		Client:   client,
		Store:    store,
		Registry: registry,
		Metrics:  metrics,
	}
}

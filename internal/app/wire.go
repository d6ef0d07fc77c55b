//go:build wireinject

//go:generate wire

package app

import (
	"testing"

	"github.com/google/wire"
	"github.com/kashguard/go-horde-sdk/internal/config"
)

// INJECTORS - https://github.com/google/wire/blob/main/docs/guide.md#injectors

var appSet = wire.NewSet(
	newApp,
	NewClock,
	NewSigner,
	NewHTTPClient,
	NewRegistry,
	NewMetrics,
	NewClient,
	NewRedisClient,
	NewStore,
)

// InitNewApp returns a new App instance.
func InitNewApp(
	_ config.Client,
) (*App, func(), error) {
	wire.Build(appSet, NoTest)
	return nil, nil, nil
}

// InitNewAppWithClock is InitNewApp with a mock clock when t is given.
func InitNewAppWithClock(
	_ config.Client,
	t ...*testing.T,
) (*App, func(), error) {
	wire.Build(appSet)
	return nil, nil, nil
}

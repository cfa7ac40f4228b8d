//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/entsync/entsync/internal/config"
	"github.com/entsync/entsync/internal/core/entity"
	"github.com/entsync/entsync/internal/core/observability/log"
	"github.com/entsync/entsync/internal/core/store"
)

func ProvideLogger(cfg *config.Config) *log.Logger {
	wire.Build(provideLevel, log.New)
	return nil
}

func ProvideRegistry(cfg *config.Config, logger *log.Logger) (*entity.Registry, error) {
	wire.Build(provideFileStore, provideRegistry)
	return nil, nil
}

func provideLevel(cfg *config.Config) log.Level {
	return log.ParseLevel(cfg.Log.Level)
}

func provideFileStore(cfg *config.Config, logger *log.Logger) (*store.FileStore, error) {
	return store.OpenFile(cfg.Store.Path, logger)
}

func provideRegistry(cfg *config.Config, logger *log.Logger, fs *store.FileStore) *entity.Registry {
	return entity.NewRegistry(fs,
		entity.WithLog(logger),
		entity.WithFlushDelay(cfg.Registry.FlushDelay.Std()),
		entity.WithExpiryRecheck(cfg.Registry.ExpiryRecheck.Std()),
	)
}

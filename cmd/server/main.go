package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/entsync/entsync/internal/config"
	"github.com/entsync/entsync/internal/core/entity"
	"github.com/entsync/entsync/internal/core/kinds"
	"github.com/entsync/entsync/internal/core/observability/log"
	"github.com/entsync/entsync/internal/core/store"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error loading config:", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	logger := log.New(log.ParseLevel(cfg.Log.Level))
	defer logger.Sync()

	fs, err := store.OpenFile(cfg.Store.Path, logger)
	if err != nil {
		logger.Fatal("failed to open entity store", log.Error(err))
	}

	registry := entity.NewRegistry(fs,
		entity.WithLog(logger),
		entity.WithFlushDelay(cfg.Registry.FlushDelay.Std()),
		entity.WithExpiryRecheck(cfg.Registry.ExpiryRecheck.Std()),
	)
	if err := kinds.RegisterBuiltins(registry, kinds.Deps{
		Log:              logger,
		PresenceInterval: cfg.Kinds.PresenceInterval.Std(),
		DialTimeout:      cfg.Kinds.DialTimeout.Std(),
		MaxBackoff:       cfg.Kinds.MaxBackoff.Std(),
	}); err != nil {
		logger.Fatal("failed to register built-in kinds", log.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGTERM, syscall.SIGINT)

	if err := registry.Start(ctx); err != nil {
		logger.Fatal("failed to start entity registry", log.Error(err))
	}
	logger.Info("entity registry started",
		log.String("store", cfg.Store.Path), log.Int("entities", registry.Len()))

	<-stopCh
	cancel()
	if err := registry.Stop(); err != nil {
		logger.Error("error stopping entity registry", log.Error(err))
	}
	if err := fs.Close(); err != nil {
		logger.Error("error closing entity store", log.Error(err))
	}
}

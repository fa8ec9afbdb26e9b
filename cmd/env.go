package cmd

import (
	"context"
	"fmt"

	"firestige.xyz/aptx/internal/config"
	"firestige.xyz/aptx/internal/log"
	"firestige.xyz/aptx/internal/metrics"
	"firestige.xyz/aptx/pkg/codec"
	"firestige.xyz/aptx/pkg/plugin"
)

// env is the runtime shared by the commands: configuration, logger and the
// codec registry populated by the loaded modules.
type env struct {
	cfg     *config.GlobalConfig
	reg     *codec.Registry
	modules *plugin.Loaded
	metrics *metrics.Server
}

func loadEnv() (*env, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	return newEnv(cfg)
}

func newEnv(cfg *config.GlobalConfig) (*env, error) {
	if err := log.Init(cfg.Log); err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}

	reg := codec.NewRegistry()
	modules, err := plugin.Load(cfg, reg)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, reg: reg, modules: modules}, nil
}

// startMetrics serves the Prometheus endpoint when metrics are enabled.
// It returns false when they are not.
func (e *env) startMetrics(ctx context.Context) (bool, error) {
	if !e.cfg.Metrics.Enabled {
		return false, nil
	}
	srv := metrics.NewServer(e.cfg.Metrics.Listen, e.cfg.Metrics.Path)
	if err := srv.Start(ctx); err != nil {
		return false, err
	}
	e.metrics = srv
	return true, nil
}

func (e *env) Close() {
	if e.metrics != nil {
		if err := e.metrics.Stop(context.Background()); err != nil {
			log.GetLogger().WithError(err).Warn("failed to stop metrics server")
		}
	}
	if err := e.modules.Close(); err != nil {
		log.GetLogger().WithError(err).Warn("failed to close modules")
	}
}

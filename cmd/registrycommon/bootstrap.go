// Package registrycommon wires the registry components shared by the binaries.
package registrycommon

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/ajna-inc/kanon-registry/anoncreds"
	"github.com/ajna-inc/kanon-registry/config"
	"github.com/ajna-inc/kanon-registry/dids"
	"github.com/ajna-inc/kanon-registry/ledger"
	"github.com/ajna-inc/kanon-registry/signingkey"
)

var ConfigFlag = &cli.StringFlag{
	Name:     "config",
	Aliases:  []string{"c"},
	EnvVars:  []string{"KANON_REGISTRY_CONFIG"},
	Required: true,
	Usage:    "path to the YAML registry configuration",
}

// Stack holds the registry components built from one configuration.
type Stack struct {
	Config    *config.Config
	Pool      *ledger.Pool
	Ledger    *ledger.Service
	Registrar *dids.Registrar
	Resolver  *dids.Resolver
	Registry  *anoncreds.Registry
}

// Close releases every ledger connection.
func (s *Stack) Close() {
	s.Pool.Close()
}

// SetupStack loads the configuration named by ConfigFlag, resolves the signing
// keys and builds the registry. Networks are dialed on first use. observer may be nil.
func SetupStack(cCtx *cli.Context, logger *slog.Logger, observer ledger.Observer) (*Stack, error) {
	cfg, err := config.Load(cCtx.String(ConfigFlag.Name))
	if err != nil {
		return nil, err
	}
	return NewStack(cCtx.Context, cfg, logger, observer)
}

// NewStack builds the registry from cfg.
func NewStack(ctx context.Context, cfg *config.Config, logger *slog.Logger, observer ledger.Observer) (*Stack, error) {
	keys := signingkey.NewResolver(cfg.SigningKeyOptions(), logger)
	poolConfig, err := cfg.PoolConfig(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve signing keys: %w", err)
	}

	pool, err := ledger.NewPool(poolConfig, logger)
	if err != nil {
		return nil, err
	}

	service := ledger.NewService(pool, cfg.ClientConfig(), observer, logger)
	resolver, err := dids.NewResolver(service, cfg.ResourceCacheSize, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	registrar := dids.NewRegistrar(service, logger)

	for _, network := range pool.Networks() {
		signer, err := pool.SignerAddress(network)
		if err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("Network configured", "network", network, "signer", signer.Hex())
	}

	return &Stack{
		Config:    cfg,
		Pool:      pool,
		Ledger:    service,
		Registrar: registrar,
		Resolver:  resolver,
		Registry:  anoncreds.NewRegistry(registrar, resolver, logger),
	}, nil
}

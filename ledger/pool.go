package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/ajna-inc/kanon-registry/interfaces"
)

// DefaultRPCEndpoints are used for networks configured without an endpoint.
var DefaultRPCEndpoints = map[string]string{
	"mainnet": "https://eth-sepolia-public.unifra.io",
	"sepolia": "https://eth-sepolia-public.unifra.io",
}

const defaultDialTimeout = 30 * time.Second

// NetworkConfig names a network, its RPC endpoint and the key signing writes on it.
type NetworkConfig struct {
	Name        string
	RPCEndpoint string
	SigningKey  string
}

// Backend is the chain access a Connection needs. *ethclient.Client and the
// go-ethereum simulated client both satisfy it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
}

// Dialer opens a Backend for a network.
type Dialer func(ctx context.Context, network NetworkConfig) (Backend, error)

// DialEthClient is the default Dialer.
func DialEthClient(ctx context.Context, network NetworkConfig) (Backend, error) {
	return ethclient.DialContext(ctx, network.RPCEndpoint)
}

type PoolConfig struct {
	Networks []NetworkConfig

	// DialTimeout bounds the retried dial of a network on first use.
	DialTimeout time.Duration

	// Dialer defaults to DialEthClient.
	Dialer Dialer
}

// Connection is the provider and signer pair of one network.
type Connection struct {
	network string
	backend Backend
	chainID *big.Int
	auth    *bind.TransactOpts

	// writes admits one in-flight transaction per signer.
	writes *semaphore.Weighted
}

// Network returns the normalized network name.
func (c *Connection) Network() string {
	return c.network
}

// Backend returns the chain backend.
func (c *Connection) Backend() Backend {
	return c.backend
}

// ChainID returns the chain ID fetched when the connection was opened.
func (c *Connection) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// Signer returns the address signing writes on this connection.
func (c *Connection) Signer() common.Address {
	return c.auth.From
}

// transactOpts returns a per-transaction copy of the signer options.
func (c *Connection) transactOpts(ctx context.Context, gasLimit uint64) *bind.TransactOpts {
	opts := *c.auth
	opts.Context = ctx
	opts.GasLimit = gasLimit
	return &opts
}

// acquireWrite blocks until no other write is in flight on this signer.
func (c *Connection) acquireWrite(ctx context.Context) error {
	return c.writes.Acquire(ctx, 1)
}

func (c *Connection) releaseWrite() {
	c.writes.Release(1)
}

type poolNetwork struct {
	config NetworkConfig
	key    *ecdsa.PrivateKey
}

// Pool lazily opens one Connection per configured network and keeps it until Close.
type Pool struct {
	networks    map[string]poolNetwork
	dialer      Dialer
	dialTimeout time.Duration
	log         *slog.Logger

	dials singleflight.Group

	mu     sync.Mutex
	conns  map[string]*Connection
	closed bool
}

// NormalizeNetwork returns the lookup key of a network name.
func NormalizeNetwork(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NewPool validates every network configuration. Nothing is dialed until
// ConnectionFor is first called for a network.
func NewPool(cfg PoolConfig, log *slog.Logger) (*Pool, error) {
	if log == nil {
		log = slog.Default()
	}

	networks := make(map[string]poolNetwork, len(cfg.Networks))
	for _, network := range cfg.Networks {
		name := NormalizeNetwork(network.Name)
		if name == "" {
			return nil, errors.New("network name must not be empty")
		}
		if _, exists := networks[name]; exists {
			return nil, fmt.Errorf("network %q configured more than once", network.Name)
		}

		endpoint := network.RPCEndpoint
		if endpoint == "" {
			endpoint = DefaultRPCEndpoints[name]
		}
		if endpoint == "" {
			return nil, fmt.Errorf("network %q has no rpc endpoint and no default", network.Name)
		}

		key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(network.SigningKey), "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid signing key for network %q: %w", network.Name, err)
		}

		networks[name] = poolNetwork{
			config: NetworkConfig{
				Name:        name,
				RPCEndpoint: endpoint,
				SigningKey:  network.SigningKey,
			},
			key: key,
		}
	}

	dialer := cfg.Dialer
	if dialer == nil {
		dialer = DialEthClient
	}

	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}

	return &Pool{
		networks:    networks,
		dialer:      dialer,
		dialTimeout: dialTimeout,
		log:         log,
		conns:       make(map[string]*Connection),
	}, nil
}

// Networks returns the normalized names of all configured networks.
func (p *Pool) Networks() []string {
	names := make([]string, 0, len(p.networks))
	for name := range p.networks {
		names = append(names, name)
	}
	return names
}

// Has reports whether network is configured.
func (p *Pool) Has(network string) bool {
	_, ok := p.networks[NormalizeNetwork(network)]
	return ok
}

// SignerAddress returns the signing account of a network without dialing it.
func (p *Pool) SignerAddress(network string) (common.Address, error) {
	n, ok := p.networks[NormalizeNetwork(network)]
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %s", interfaces.ErrUnknownNetwork, network)
	}
	return crypto.PubkeyToAddress(n.key.PublicKey), nil
}

// ConnectionFor returns the cached connection of a network, opening it on
// first use. Cached connections are not re-validated.
func (p *Pool) ConnectionFor(ctx context.Context, network string) (*Connection, error) {
	name := NormalizeNetwork(network)
	n, ok := p.networks[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrUnknownNetwork, network)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, interfaces.ErrPoolClosed
	}
	if conn, ok := p.conns[name]; ok {
		p.mu.Unlock()
		return conn, nil
	}
	p.mu.Unlock()

	result := p.dials.DoChan(name, func() (interface{}, error) {
		return p.open(n)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-result:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Connection), nil
	}
}

// open dials a network and stores the connection. It runs once per network
// at a time and is not bound to any caller's context.
func (p *Pool) open(n poolNetwork) (*Connection, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.dialTimeout)
	defer cancel()

	log := p.log.With(slog.String("network", n.config.Name))
	log.Debug("Opening ledger connection", slog.String("endpoint", n.config.RPCEndpoint))

	type dialed struct {
		backend Backend
		chainID *big.Int
	}

	retryPolicy := backoff.NewExponentialBackOff()
	retryPolicy.MaxElapsedTime = p.dialTimeout

	res, err := backoff.RetryWithData(func() (dialed, error) {
		backend, err := p.dialer(ctx, n.config)
		if err != nil {
			log.Debug("Dial failed", "err", err)
			return dialed{}, err
		}
		chainID, err := backend.ChainID(ctx)
		if err != nil {
			closeBackend(backend)
			log.Debug("Chain ID request failed", "err", err)
			return dialed{}, err
		}
		return dialed{backend: backend, chainID: chainID}, nil
	}, backoff.WithContext(retryPolicy, ctx))
	if err != nil {
		log.Warn("Could not connect to network", "err", err)
		return nil, connectError(n.config.Name, err)
	}

	auth, err := bind.NewKeyedTransactorWithChainID(n.key, res.chainID)
	if err != nil {
		closeBackend(res.backend)
		return nil, connectError(n.config.Name, fmt.Errorf("could not create transactor: %w", err))
	}

	conn := &Connection{
		network: n.config.Name,
		backend: res.backend,
		chainID: res.chainID,
		auth:    auth,
		writes:  semaphore.NewWeighted(1),
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		closeBackend(res.backend)
		return nil, interfaces.ErrPoolClosed
	}
	p.conns[n.config.Name] = conn

	log.Info("Ledger connection opened",
		slog.String("chainID", res.chainID.String()),
		slog.String("signer", auth.From.Hex()))

	return conn, nil
}

// Close releases every opened connection. The pool cannot be used afterwards.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true

	for name, conn := range p.conns {
		closeBackend(conn.backend)
		p.log.Debug("Ledger connection closed", slog.String("network", name))
	}
	p.conns = nil
}

// connectError keeps the endpoint and RPC text of a failed dial in Err only.
func connectError(network string, err error) error {
	return &interfaces.LedgerError{
		Kind:    interfaces.ErrNetworkUnavailable,
		Network: network,
		Method:  "connect",
		Err:     err,
	}
}

func closeBackend(backend Backend) {
	if closer, ok := backend.(interface{ Close() }); ok {
		closer.Close()
	}
}

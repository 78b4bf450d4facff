package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajna-inc/kanon-registry/interfaces"
)

func TestNewPool_Validation(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	tests := []struct {
		name     string
		networks []NetworkConfig
		wantErr  bool
	}{
		{
			name:     "default endpoint for mainnet",
			networks: []NetworkConfig{{Name: "mainnet", SigningKey: keyHex(key)}},
		},
		{
			name:     "0x prefixed key",
			networks: []NetworkConfig{{Name: "sepolia", SigningKey: "0x" + keyHex(key)}},
		},
		{
			name:     "custom network needs endpoint",
			networks: []NetworkConfig{{Name: "devnet", SigningKey: keyHex(key)}},
			wantErr:  true,
		},
		{
			name:     "empty name",
			networks: []NetworkConfig{{Name: " ", RPCEndpoint: "http://localhost:8545", SigningKey: keyHex(key)}},
			wantErr:  true,
		},
		{
			name: "duplicate names differ in case",
			networks: []NetworkConfig{
				{Name: "mainnet", SigningKey: keyHex(key)},
				{Name: "Mainnet", SigningKey: keyHex(key)},
			},
			wantErr: true,
		},
		{
			name:     "malformed key",
			networks: []NetworkConfig{{Name: "mainnet", SigningKey: "not-a-key"}},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPool(PoolConfig{Networks: tt.networks}, testLogger)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPool_UnknownNetworkFailsBeforeDial(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	var dials atomic.Int32
	pool, err := NewPool(PoolConfig{
		Networks: []NetworkConfig{{Name: "mainnet", SigningKey: keyHex(key)}},
		Dialer: func(ctx context.Context, network NetworkConfig) (Backend, error) {
			dials.Add(1)
			return nil, errors.New("unreachable")
		},
	}, testLogger)
	require.NoError(t, err)

	_, err = pool.ConnectionFor(context.Background(), "nonexistent")
	require.ErrorIs(t, err, interfaces.ErrUnknownNetwork)
	assert.Contains(t, err.Error(), "nonexistent")
	assert.Equal(t, int32(0), dials.Load())

	_, err = pool.SignerAddress("nonexistent")
	assert.ErrorIs(t, err, interfaces.ErrUnknownNetwork)
}

func TestPool_ConnectionIsCachedAndCaseInsensitive(t *testing.T) {
	backend, _, key, err := SetupTestChain()
	require.NoError(t, err)
	defer backend.Close()

	var dials atomic.Int32
	pool, err := NewPool(PoolConfig{
		Networks: []NetworkConfig{{Name: "Testnet", RPCEndpoint: "simulated", SigningKey: keyHex(key)}},
		Dialer: func(ctx context.Context, network NetworkConfig) (Backend, error) {
			dials.Add(1)
			assert.Equal(t, "testnet", network.Name)
			return backend.Client(), nil
		},
	}, testLogger)
	require.NoError(t, err)

	assert.True(t, pool.Has("TESTNET"))
	assert.Equal(t, []string{"testnet"}, pool.Networks())

	var wg sync.WaitGroup
	conns := make([]*Connection, 8)
	for i := range conns {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn, err := pool.ConnectionFor(context.Background(), "testNet")
			assert.NoError(t, err)
			conns[i] = conn
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), dials.Load())
	for _, conn := range conns {
		assert.Same(t, conns[0], conn)
	}

	conn := conns[0]
	assert.Equal(t, "testnet", conn.Network())
	assert.Equal(t, int64(1337), conn.ChainID().Int64())
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), conn.Signer())

	signer, err := pool.SignerAddress("TestNet")
	require.NoError(t, err)
	assert.Equal(t, conn.Signer(), signer)
}

func TestPool_Close(t *testing.T) {
	backend, _, key, err := SetupTestChain()
	require.NoError(t, err)
	defer backend.Close()

	pool, err := NewPool(PoolConfig{
		Networks: []NetworkConfig{{Name: "testnet", RPCEndpoint: "simulated", SigningKey: keyHex(key)}},
		Dialer:   simulatedDialer(backend),
	}, testLogger)
	require.NoError(t, err)

	_, err = pool.ConnectionFor(context.Background(), "testnet")
	require.NoError(t, err)

	pool.Close()
	pool.Close()

	_, err = pool.ConnectionFor(context.Background(), "testnet")
	assert.ErrorIs(t, err, interfaces.ErrPoolClosed)
}

func TestPool_DialHonorsContext(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	release := make(chan struct{})
	defer close(release)

	pool, err := NewPool(PoolConfig{
		Networks: []NetworkConfig{{Name: "mainnet", SigningKey: keyHex(key)}},
		Dialer: func(ctx context.Context, network NetworkConfig) (Backend, error) {
			<-release
			return nil, errors.New("unreachable")
		},
	}, testLogger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = pool.ConnectionFor(ctx, "mainnet")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPool_DialFailureIsNetworkUnavailable(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	pool, err := NewPool(PoolConfig{
		Networks:    []NetworkConfig{{Name: "mainnet", RPCEndpoint: "http://127.0.0.1:1/v3/project-key", SigningKey: keyHex(key)}},
		DialTimeout: 50 * time.Millisecond,
		Dialer: func(ctx context.Context, network NetworkConfig) (Backend, error) {
			return nil, fmt.Errorf("Post %q: connection refused", network.RPCEndpoint)
		},
	}, testLogger)
	require.NoError(t, err)

	_, err = pool.ConnectionFor(context.Background(), "mainnet")
	require.ErrorIs(t, err, interfaces.ErrNetworkUnavailable)

	var ledgerErr *interfaces.LedgerError
	require.ErrorAs(t, err, &ledgerErr)
	assert.Equal(t, "connect", ledgerErr.Method)
	assert.Equal(t, "mainnet", ledgerErr.Network)
	assert.False(t, ledgerErr.Submitted())
}

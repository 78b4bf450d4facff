package ledger

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/stretchr/testify/require"
)

var (
	// stopRuntime accepts every call and returns nothing.
	stopRuntime = []byte{0x00}
	// revertRuntime reverts every call without data.
	revertRuntime = []byte{0x60, 0x00, 0x60, 0x00, 0xfd}
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// SetupTestChain creates a simulated chain with one funded account.
func SetupTestChain() (*simulated.Backend, *bind.TransactOpts, *ecdsa.PrivateKey, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, nil, nil, err
	}

	auth, err := bind.NewKeyedTransactorWithChainID(privateKey, big.NewInt(1337))
	if err != nil {
		return nil, nil, nil, err
	}

	balance := new(big.Int)
	balance.SetString("10000000000000000000", 10) // 10 ETH

	genesisAlloc := map[common.Address]types.Account{
		auth.From: {
			Balance: balance,
		},
	}

	backend := simulated.NewBackend(genesisAlloc, simulated.WithBlockGasLimit(uint64(8000000)))
	return backend, auth, privateKey, nil
}

// deployRuntime deploys runtime as the code of a new contract.
func deployRuntime(backend *simulated.Backend, auth *bind.TransactOpts, runtime []byte) (common.Address, error) {
	size := byte(len(runtime))
	initCode := append([]byte{
		0x60, size, 0x60, 0x0c, 0x60, 0x00, 0x39, // CODECOPY(0, 12, size)
		0x60, size, 0x60, 0x00, 0xf3, // RETURN(0, size)
	}, runtime...)

	contractAddr, tx, _, err := bind.DeployContract(auth, abi.ABI{}, initCode, backend.Client())
	if err != nil {
		return common.Address{}, err
	}

	backend.Commit()

	receipt, err := backend.Client().TransactionReceipt(context.Background(), tx.Hash())
	if err != nil {
		return common.Address{}, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return common.Address{}, fmt.Errorf("contract deployment failed")
	}
	return contractAddr, nil
}

// autoCommit mines a block every few milliseconds until the test ends.
func autoCommit(t *testing.T, backend *simulated.Backend) {
	t.Helper()
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				backend.Commit()
			}
		}
	}()
	t.Cleanup(func() {
		close(done)
		wg.Wait()
	})
}

func keyHex(key *ecdsa.PrivateKey) string {
	return hex.EncodeToString(crypto.FromECDSA(key))
}

func simulatedDialer(backend *simulated.Backend) Dialer {
	return func(ctx context.Context, network NetworkConfig) (Backend, error) {
		return backend.Client(), nil
	}
}

// newTestClient opens a pool over the simulated chain and binds a client to contract.
func newTestClient(t *testing.T, backend *simulated.Backend, key *ecdsa.PrivateKey, contract common.Address, gasLimit uint64) *Client {
	t.Helper()

	pool, err := NewPool(PoolConfig{
		Networks: []NetworkConfig{{Name: "testnet", RPCEndpoint: "simulated", SigningKey: keyHex(key)}},
		Dialer:   simulatedDialer(backend),
	}, testLogger)
	require.NoError(t, err)

	conn, err := pool.ConnectionFor(context.Background(), "testnet")
	require.NoError(t, err)

	cfg := DefaultClientConfig()
	cfg.ContractAddress = contract
	cfg.ConfirmationTimeout = 20 * time.Second
	cfg.GasLimit = gasLimit
	return NewClient(conn, cfg, nil, testLogger)
}

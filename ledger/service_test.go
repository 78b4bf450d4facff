package ledger

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajna-inc/kanon-registry/interfaces"
)

func TestService_RoutesByNetwork(t *testing.T) {
	backend, auth, key, err := SetupTestChain()
	require.NoError(t, err)
	defer backend.Close()

	contract, err := deployRuntime(backend, auth, stopRuntime)
	require.NoError(t, err)
	autoCommit(t, backend)

	pool, err := NewPool(PoolConfig{
		Networks: []NetworkConfig{{Name: "testnet", RPCEndpoint: "simulated", SigningKey: keyHex(key)}},
		Dialer:   simulatedDialer(backend),
	}, testLogger)
	require.NoError(t, err)

	cfg := DefaultClientConfig()
	cfg.ContractAddress = contract
	observer := &recordingObserver{}
	service := NewService(pool, cfg, observer, testLogger)

	first, err := service.ClientFor(context.Background(), "testnet")
	require.NoError(t, err)
	second, err := service.ClientFor(context.Background(), "TESTNET")
	require.NoError(t, err)
	assert.Same(t, first, second)

	receipt, err := service.IssueCredential(context.Background(), "testnet", interfaces.CredentialRecord{
		ID:        "cred-1",
		CredDefID: "did:kanon:testnet:abc/resources/1",
		Issuer:    "did:kanon:testnet:abc",
		Subject:   "did:kanon:testnet:holder",
	})
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
	assert.Equal(t, []string{"testnet/issueCredential"}, observer.calls)

	signer, err := service.SignerAddress(context.Background(), "testnet")
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), signer)

	_, err = service.RegisterSchema(context.Background(), "othernet", "id", "{}")
	assert.ErrorIs(t, err, interfaces.ErrUnknownNetwork)

	_, _, err = service.GetDID(context.Background(), "othernet", "did:kanon:othernet:abc")
	assert.ErrorIs(t, err, interfaces.ErrUnknownNetwork)
}

package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajna-inc/kanon-registry/interfaces"
)

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
	errs  []error
}

func (o *recordingObserver) ObserveLedgerCall(network, method string, write bool, err error, duration time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, network+"/"+method)
	o.errs = append(o.errs, err)
}

func TestRegistryABI_Methods(t *testing.T) {
	methods := map[string]string{
		MethodRegisterDID:                  "registerDID(string,string,string)",
		MethodGetDID:                       "getDID(string)",
		MethodRegisterSchema:               "registerSchema(string,string)",
		MethodAddApprovedIssuer:            "addApprovedIssuer(string,address)",
		MethodGetSchema:                    "getSchema(string)",
		MethodRegisterCredentialDefinition: "registerCredentialDefinition(string,string,address)",
		MethodGetCredentialDefinition:      "getCredentialDefinition(string)",
		MethodIssueCredential:              "issueCredential(string,string,string,string,string,string,string)",
		MethodRevokeCredential:             "revokeCredential(string)",
		MethodIsCredentialRevoked:          "isCredentialRevoked(string)",
		MethodCreateDID:                    "createDID(string,bytes32)",
		MethodUpdateDID:                    "updateDID(string,bytes32)",
		MethodDeactivateDID:                "deactivateDID(string)",
		MethodGetDIDDocument:               "getDIDDocument(string)",
	}

	assert.Len(t, RegistryABI.Methods, len(methods))
	for name, sig := range methods {
		method, ok := RegistryABI.Methods[name]
		require.True(t, ok, name)
		assert.Equal(t, sig, method.Sig)
	}

	assert.Len(t, RegistryABI.Methods[MethodGetSchema].Outputs, 2)
	assert.Len(t, RegistryABI.Methods[MethodGetCredentialDefinition].Outputs, 2)
	assert.True(t, RegistryABI.Methods[MethodIsCredentialRevoked].IsConstant())
}

func TestClient_ReadWithoutContractCode(t *testing.T) {
	backend, _, key, err := SetupTestChain()
	require.NoError(t, err)
	defer backend.Close()

	client := newTestClient(t, backend, key, common.HexToAddress("0x1234"), 0)

	_, _, err = client.GetSchema(context.Background(), "did:kanon:testnet:abc/resources/1")
	require.Error(t, err)
	assert.ErrorIs(t, err, interfaces.ErrLedgerRead)
	assert.ErrorIs(t, err, bind.ErrNoCode)

	var ledgerErr *interfaces.LedgerError
	require.ErrorAs(t, err, &ledgerErr)
	assert.Equal(t, "testnet", ledgerErr.Network)
	assert.Equal(t, MethodGetSchema, ledgerErr.Method)
	assert.False(t, ledgerErr.Submitted())
}

func TestClient_ReadUndecodableOutput(t *testing.T) {
	backend, auth, key, err := SetupTestChain()
	require.NoError(t, err)
	defer backend.Close()

	contract, err := deployRuntime(backend, auth, stopRuntime)
	require.NoError(t, err)

	observer := &recordingObserver{}
	client := newTestClient(t, backend, key, contract, 0)
	client.observer = observer

	_, err = client.GetDIDDocument(context.Background(), "did:kanon:testnet:abc")
	assert.ErrorIs(t, err, interfaces.ErrLedgerRead)

	_, err = client.IsCredentialRevoked(context.Background(), "cred-1")
	assert.ErrorIs(t, err, interfaces.ErrLedgerRead)

	assert.Equal(t, []string{"testnet/getDIDDocument", "testnet/isCredentialRevoked"}, observer.calls)
}

func TestClient_WriteIsConfirmed(t *testing.T) {
	backend, auth, key, err := SetupTestChain()
	require.NoError(t, err)
	defer backend.Close()

	contract, err := deployRuntime(backend, auth, stopRuntime)
	require.NoError(t, err)
	autoCommit(t, backend)

	client := newTestClient(t, backend, key, contract, 0)

	receipt, err := client.RegisterSchema(context.Background(), "did:kanon:testnet:abc/resources/1", `{"name":"test"}`)
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)

	tx, _, err := backend.Client().TransactionByHash(context.Background(), receipt.TxHash)
	require.NoError(t, err)
	assert.Equal(t, contract, *tx.To())

	method, err := RegistryABI.MethodById(tx.Data()[:4])
	require.NoError(t, err)
	assert.Equal(t, MethodRegisterSchema, method.Name)
}

func TestClient_ConcurrentWritesGetDistinctNonces(t *testing.T) {
	backend, auth, key, err := SetupTestChain()
	require.NoError(t, err)
	defer backend.Close()

	contract, err := deployRuntime(backend, auth, stopRuntime)
	require.NoError(t, err)
	autoCommit(t, backend)

	client := newTestClient(t, backend, key, contract, 0)

	const writes = 3
	receipts := make([]*types.Receipt, writes)
	errs := make([]error, writes)

	var wg sync.WaitGroup
	for i := 0; i < writes; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			receipts[i], errs[i] = client.RevokeCredential(context.Background(), "cred")
		}(i)
	}
	wg.Wait()

	nonces := make(map[uint64]bool)
	for i := 0; i < writes; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, types.ReceiptStatusSuccessful, receipts[i].Status)

		tx, _, err := backend.Client().TransactionByHash(context.Background(), receipts[i].TxHash)
		require.NoError(t, err)
		nonces[tx.Nonce()] = true
	}
	assert.Len(t, nonces, writes)
}

func TestClient_RevertedWriteCarriesTxHash(t *testing.T) {
	backend, auth, key, err := SetupTestChain()
	require.NoError(t, err)
	defer backend.Close()

	contract, err := deployRuntime(backend, auth, revertRuntime)
	require.NoError(t, err)
	autoCommit(t, backend)

	client := newTestClient(t, backend, key, contract, 200000)

	receipt, err := client.DeactivateDID(context.Background(), "did:kanon:testnet:abc")
	require.Error(t, err)
	assert.ErrorIs(t, err, interfaces.ErrLedgerWrite)
	require.NotNil(t, receipt)
	assert.Equal(t, types.ReceiptStatusFailed, receipt.Status)

	var ledgerErr *interfaces.LedgerError
	require.ErrorAs(t, err, &ledgerErr)
	assert.True(t, ledgerErr.Submitted())
	assert.Equal(t, receipt.TxHash, ledgerErr.TxHash)
	assert.Equal(t, MethodDeactivateDID, ledgerErr.Method)
}

func TestClient_SubmissionFailureIsNotSubmitted(t *testing.T) {
	backend, auth, key, err := SetupTestChain()
	require.NoError(t, err)
	defer backend.Close()

	contract, err := deployRuntime(backend, auth, revertRuntime)
	require.NoError(t, err)

	client := newTestClient(t, backend, key, contract, 0)

	_, err = client.RegisterDID(context.Background(), "did:kanon:testnet:abc", "{}", "{}")
	require.ErrorIs(t, err, interfaces.ErrLedgerWrite)

	var ledgerErr *interfaces.LedgerError
	require.ErrorAs(t, err, &ledgerErr)
	assert.False(t, ledgerErr.Submitted())
}

func TestClient_WriteQueueHonorsContext(t *testing.T) {
	backend, auth, key, err := SetupTestChain()
	require.NoError(t, err)
	defer backend.Close()

	contract, err := deployRuntime(backend, auth, stopRuntime)
	require.NoError(t, err)

	client := newTestClient(t, backend, key, contract, 0)

	require.NoError(t, client.conn.acquireWrite(context.Background()))
	defer client.conn.releaseWrite()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = client.RevokeCredential(ctx, "cred")
	assert.ErrorIs(t, err, interfaces.ErrLedgerWrite)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_ExecuteDIDOperation(t *testing.T) {
	backend, auth, key, err := SetupTestChain()
	require.NoError(t, err)
	defer backend.Close()

	contract, err := deployRuntime(backend, auth, stopRuntime)
	require.NoError(t, err)
	autoCommit(t, backend)

	client := newTestClient(t, backend, key, contract, 0)

	tests := []struct {
		op     interfaces.DIDOperation
		method string
	}{
		{interfaces.DIDCreate, MethodRegisterDID},
		{interfaces.DIDUpdate, MethodUpdateDID},
		{interfaces.DIDDeactivate, MethodDeactivateDID},
	}

	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			receipt, err := client.ExecuteDIDOperation(context.Background(), tt.op, "did:kanon:testnet:abc", `{"id":"did:kanon:testnet:abc"}`, `{}`)
			require.NoError(t, err)

			tx, _, err := backend.Client().TransactionByHash(context.Background(), receipt.TxHash)
			require.NoError(t, err)
			method, err := RegistryABI.MethodById(tx.Data()[:4])
			require.NoError(t, err)
			assert.Equal(t, tt.method, method.Name)
		})
	}

	_, err = client.ExecuteDIDOperation(context.Background(), "archive", "did:kanon:testnet:abc", "", "")
	assert.ErrorIs(t, err, interfaces.ErrInvalidOperation)
}

func TestDecodeRevert(t *testing.T) {
	assert.Equal(t, "Schema already exists", decodeRevert(errors.New("execution reverted: Schema already exists")))
	assert.True(t, isDuplicateReason("Schema already exists"))
	assert.True(t, isDuplicateReason("DID Already Registered"))
	assert.False(t, isDuplicateReason("execution reverted"))
}

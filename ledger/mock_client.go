package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ajna-inc/kanon-registry/interfaces"
)

type mockDID struct {
	document    string
	metadata    string
	docHash     common.Hash
	deactivated bool
}

type mockSchema struct {
	details string
	issuers []common.Address
}

type mockCredDef struct {
	details string
	issuer  common.Address
}

// MockLedgerClient provides an in-memory implementation of the Ledger
// interface for testing purposes without requiring a blockchain connection.
// Storage is shared between networks, but every call still checks that its
// network is configured. Writes return synthetic receipts with increasing
// block numbers, and registering an existing schema or credential definition
// fails like the contract does.
type MockLedgerClient struct {
	mutex sync.RWMutex

	networks map[string]common.Address
	dids     map[string]*mockDID
	schemas  map[string]*mockSchema
	credDefs map[string]*mockCredDef
	creds    map[string]interfaces.CredentialRecord
	revoked  map[string]bool

	block     uint64
	failWrite error
}

// NewMockLedgerClient creates a mock ledger serving the given networks.
// Each network gets a distinct deterministic signer address.
func NewMockLedgerClient(networks ...string) *MockLedgerClient {
	m := &MockLedgerClient{
		networks: make(map[string]common.Address),
		dids:     make(map[string]*mockDID),
		schemas:  make(map[string]*mockSchema),
		credDefs: make(map[string]*mockCredDef),
		creds:    make(map[string]interfaces.CredentialRecord),
		revoked:  make(map[string]bool),
	}
	for _, network := range networks {
		name := NormalizeNetwork(network)
		m.networks[name] = common.BytesToAddress(crypto.Keccak256([]byte("signer:" + name)))
	}
	return m
}

// FailWrites makes every following write fail with err. A nil err restores normal operation.
func (m *MockLedgerClient) FailWrites(err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.failWrite = err
}

// Block returns the number of writes confirmed so far.
func (m *MockLedgerClient) Block() uint64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.block
}

func (m *MockLedgerClient) checkNetwork(network string) error {
	if _, ok := m.networks[NormalizeNetwork(network)]; !ok {
		return fmt.Errorf("%w: %s", interfaces.ErrUnknownNetwork, network)
	}
	return nil
}

// write runs apply under the write lock and returns a receipt for it.
// Callers must not hold the mutex.
func (m *MockLedgerClient) write(network, method string, apply func() string, args ...interface{}) (*types.Receipt, error) {
	if err := m.checkNetwork(network); err != nil {
		return nil, err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.failWrite != nil {
		return nil, &interfaces.LedgerError{
			Kind:    interfaces.ErrLedgerWrite,
			Network: NormalizeNetwork(network),
			Method:  method,
			Err:     m.failWrite,
		}
	}

	m.block++
	encoded, _ := json.Marshal(args)
	txHash := crypto.Keccak256Hash([]byte(method), encoded, new(big.Int).SetUint64(m.block).Bytes())

	if reason := apply(); reason != "" {
		return &types.Receipt{
				Status:      types.ReceiptStatusFailed,
				TxHash:      txHash,
				BlockNumber: new(big.Int).SetUint64(m.block),
			}, &interfaces.LedgerError{
				Kind:         interfaces.ErrLedgerWrite,
				Network:      NormalizeNetwork(network),
				Method:       method,
				TxHash:       txHash,
				RevertReason: reason,
				Err:          interfaces.ErrResourceExists,
			}
	}

	return &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      txHash,
		BlockNumber: new(big.Int).SetUint64(m.block),
	}, nil
}

func (m *MockLedgerClient) RegisterDID(_ context.Context, network, did, didContext, metadata string) (*types.Receipt, error) {
	return m.write(network, MethodRegisterDID, func() string {
		if _, exists := m.dids[did]; exists {
			return "DID already exists"
		}
		m.dids[did] = &mockDID{document: didContext, metadata: metadata}
		return ""
	}, did, didContext, metadata)
}

func (m *MockLedgerClient) GetDID(_ context.Context, network, did string) (string, string, error) {
	if err := m.checkNetwork(network); err != nil {
		return "", "", err
	}
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if entry, ok := m.dids[did]; ok {
		return entry.document, entry.metadata, nil
	}
	return "", "", nil
}

func (m *MockLedgerClient) CreateDID(_ context.Context, network, did string, docHash [32]byte) (*types.Receipt, error) {
	return m.write(network, MethodCreateDID, func() string {
		if _, exists := m.dids[did]; exists {
			return "DID already exists"
		}
		m.dids[did] = &mockDID{docHash: docHash}
		return ""
	}, did, docHash)
}

func (m *MockLedgerClient) UpdateDID(_ context.Context, network, did string, docHash [32]byte) (*types.Receipt, error) {
	return m.write(network, MethodUpdateDID, func() string {
		entry, exists := m.dids[did]
		if !exists {
			entry = &mockDID{}
			m.dids[did] = entry
		}
		entry.docHash = docHash
		return ""
	}, did, docHash)
}

func (m *MockLedgerClient) DeactivateDID(_ context.Context, network, did string) (*types.Receipt, error) {
	return m.write(network, MethodDeactivateDID, func() string {
		if entry, exists := m.dids[did]; exists {
			entry.deactivated = true
		}
		return ""
	}, did)
}

// GetDIDDocument returns the stored document, or the hex of the anchored hash
// when only a hash was anchored.
func (m *MockLedgerClient) GetDIDDocument(_ context.Context, network, did string) (string, error) {
	if err := m.checkNetwork(network); err != nil {
		return "", err
	}
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	entry, ok := m.dids[did]
	if !ok {
		return "", nil
	}
	if entry.docHash != (common.Hash{}) {
		return entry.docHash.Hex(), nil
	}
	return entry.document, nil
}

// Deactivated reports whether did was deactivated.
func (m *MockLedgerClient) Deactivated(did string) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	entry, ok := m.dids[did]
	return ok && entry.deactivated
}

func (m *MockLedgerClient) ExecuteDIDOperation(ctx context.Context, network string, op interfaces.DIDOperation, did, document, metadata string) (*types.Receipt, error) {
	switch op {
	case interfaces.DIDCreate:
		return m.RegisterDID(ctx, network, did, document, metadata)
	case interfaces.DIDUpdate:
		return m.UpdateDID(ctx, network, did, crypto.Keccak256Hash([]byte(document)))
	case interfaces.DIDDeactivate:
		return m.DeactivateDID(ctx, network, did)
	default:
		return nil, fmt.Errorf("%w: %q", interfaces.ErrInvalidOperation, op)
	}
}

func (m *MockLedgerClient) RegisterSchema(_ context.Context, network, schemaID, details string) (*types.Receipt, error) {
	return m.write(network, MethodRegisterSchema, func() string {
		if _, exists := m.schemas[schemaID]; exists {
			return "Schema already exists"
		}
		m.schemas[schemaID] = &mockSchema{details: details}
		return ""
	}, schemaID, details)
}

func (m *MockLedgerClient) AddApprovedIssuer(_ context.Context, network, schemaID string, issuer common.Address) (*types.Receipt, error) {
	return m.write(network, MethodAddApprovedIssuer, func() string {
		schema, exists := m.schemas[schemaID]
		if !exists {
			return "Schema does not exist"
		}
		schema.issuers = append(schema.issuers, issuer)
		return ""
	}, schemaID, issuer)
}

func (m *MockLedgerClient) GetSchema(_ context.Context, network, schemaID string) (string, []common.Address, error) {
	if err := m.checkNetwork(network); err != nil {
		return "", nil, err
	}
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	schema, ok := m.schemas[schemaID]
	if !ok {
		return "", []common.Address{}, nil
	}
	issuers := make([]common.Address, len(schema.issuers))
	copy(issuers, schema.issuers)
	return schema.details, issuers, nil
}

func (m *MockLedgerClient) RegisterCredentialDefinition(_ context.Context, network, credDefID, schemaID string, issuer common.Address) (*types.Receipt, error) {
	return m.write(network, MethodRegisterCredentialDefinition, func() string {
		if _, exists := m.credDefs[credDefID]; exists {
			return "Credential definition already exists"
		}
		m.credDefs[credDefID] = &mockCredDef{details: schemaID, issuer: issuer}
		return ""
	}, credDefID, schemaID, issuer)
}

func (m *MockLedgerClient) GetCredentialDefinition(_ context.Context, network, credDefID string) (string, common.Address, error) {
	if err := m.checkNetwork(network); err != nil {
		return "", common.Address{}, err
	}
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	credDef, ok := m.credDefs[credDefID]
	if !ok {
		return "", common.Address{}, nil
	}
	return credDef.details, credDef.issuer, nil
}

func (m *MockLedgerClient) IssueCredential(_ context.Context, network string, credential interfaces.CredentialRecord) (*types.Receipt, error) {
	return m.write(network, MethodIssueCredential, func() string {
		if _, exists := m.creds[credential.ID]; exists {
			return "Credential already exists"
		}
		m.creds[credential.ID] = credential
		return ""
	}, credential)
}

func (m *MockLedgerClient) RevokeCredential(_ context.Context, network, credID string) (*types.Receipt, error) {
	return m.write(network, MethodRevokeCredential, func() string {
		m.revoked[credID] = true
		return ""
	}, credID)
}

func (m *MockLedgerClient) IsCredentialRevoked(_ context.Context, network, credID string) (bool, error) {
	if err := m.checkNetwork(network); err != nil {
		return false, err
	}
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.revoked[credID], nil
}

func (m *MockLedgerClient) SignerAddress(_ context.Context, network string) (common.Address, error) {
	if err := m.checkNetwork(network); err != nil {
		return common.Address{}, err
	}
	return m.networks[NormalizeNetwork(network)], nil
}

var _ interfaces.Ledger = (*MockLedgerClient)(nil)

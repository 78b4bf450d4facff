package ledger

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/mock"

	"github.com/ajna-inc/kanon-registry/interfaces"
)

// MockLedger mocks the interfaces.Ledger interface
type MockLedger struct {
	mock.Mock
}

func receiptArg(args mock.Arguments) *types.Receipt {
	if receipt, ok := args.Get(0).(*types.Receipt); ok {
		return receipt
	}
	return nil
}

// RegisterDID mocks the RegisterDID method
func (m *MockLedger) RegisterDID(ctx context.Context, network, did, didContext, metadata string) (*types.Receipt, error) {
	args := m.Called(ctx, network, did, didContext, metadata)
	return receiptArg(args), args.Error(1)
}

// GetDID mocks the GetDID method
func (m *MockLedger) GetDID(ctx context.Context, network, did string) (string, string, error) {
	args := m.Called(ctx, network, did)
	return args.String(0), args.String(1), args.Error(2)
}

// CreateDID mocks the CreateDID method
func (m *MockLedger) CreateDID(ctx context.Context, network, did string, docHash [32]byte) (*types.Receipt, error) {
	args := m.Called(ctx, network, did, docHash)
	return receiptArg(args), args.Error(1)
}

// UpdateDID mocks the UpdateDID method
func (m *MockLedger) UpdateDID(ctx context.Context, network, did string, docHash [32]byte) (*types.Receipt, error) {
	args := m.Called(ctx, network, did, docHash)
	return receiptArg(args), args.Error(1)
}

// DeactivateDID mocks the DeactivateDID method
func (m *MockLedger) DeactivateDID(ctx context.Context, network, did string) (*types.Receipt, error) {
	args := m.Called(ctx, network, did)
	return receiptArg(args), args.Error(1)
}

// GetDIDDocument mocks the GetDIDDocument method
func (m *MockLedger) GetDIDDocument(ctx context.Context, network, did string) (string, error) {
	args := m.Called(ctx, network, did)
	return args.String(0), args.Error(1)
}

// ExecuteDIDOperation mocks the ExecuteDIDOperation method
func (m *MockLedger) ExecuteDIDOperation(ctx context.Context, network string, op interfaces.DIDOperation, did, document, metadata string) (*types.Receipt, error) {
	args := m.Called(ctx, network, op, did, document, metadata)
	return receiptArg(args), args.Error(1)
}

// RegisterSchema mocks the RegisterSchema method
func (m *MockLedger) RegisterSchema(ctx context.Context, network, schemaID, details string) (*types.Receipt, error) {
	args := m.Called(ctx, network, schemaID, details)
	return receiptArg(args), args.Error(1)
}

// AddApprovedIssuer mocks the AddApprovedIssuer method
func (m *MockLedger) AddApprovedIssuer(ctx context.Context, network, schemaID string, issuer common.Address) (*types.Receipt, error) {
	args := m.Called(ctx, network, schemaID, issuer)
	return receiptArg(args), args.Error(1)
}

// GetSchema mocks the GetSchema method
func (m *MockLedger) GetSchema(ctx context.Context, network, schemaID string) (string, []common.Address, error) {
	args := m.Called(ctx, network, schemaID)
	issuers, _ := args.Get(1).([]common.Address)
	return args.String(0), issuers, args.Error(2)
}

// RegisterCredentialDefinition mocks the RegisterCredentialDefinition method
func (m *MockLedger) RegisterCredentialDefinition(ctx context.Context, network, credDefID, schemaID string, issuer common.Address) (*types.Receipt, error) {
	args := m.Called(ctx, network, credDefID, schemaID, issuer)
	return receiptArg(args), args.Error(1)
}

// GetCredentialDefinition mocks the GetCredentialDefinition method
func (m *MockLedger) GetCredentialDefinition(ctx context.Context, network, credDefID string) (string, common.Address, error) {
	args := m.Called(ctx, network, credDefID)
	issuer, _ := args.Get(1).(common.Address)
	return args.String(0), issuer, args.Error(2)
}

// IssueCredential mocks the IssueCredential method
func (m *MockLedger) IssueCredential(ctx context.Context, network string, credential interfaces.CredentialRecord) (*types.Receipt, error) {
	args := m.Called(ctx, network, credential)
	return receiptArg(args), args.Error(1)
}

// RevokeCredential mocks the RevokeCredential method
func (m *MockLedger) RevokeCredential(ctx context.Context, network, credID string) (*types.Receipt, error) {
	args := m.Called(ctx, network, credID)
	return receiptArg(args), args.Error(1)
}

// IsCredentialRevoked mocks the IsCredentialRevoked method
func (m *MockLedger) IsCredentialRevoked(ctx context.Context, network, credID string) (bool, error) {
	args := m.Called(ctx, network, credID)
	return args.Bool(0), args.Error(1)
}

// SignerAddress mocks the SignerAddress method
func (m *MockLedger) SignerAddress(ctx context.Context, network string) (common.Address, error) {
	args := m.Called(ctx, network)
	signer, _ := args.Get(0).(common.Address)
	return signer, args.Error(1)
}

var _ interfaces.Ledger = (*MockLedger)(nil)

package interfaces

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// DIDOperation selects the contract call used by ExecuteDIDOperation.
type DIDOperation string

const (
	DIDCreate     DIDOperation = "create"
	DIDUpdate     DIDOperation = "update"
	DIDDeactivate DIDOperation = "deactivate"
)

// Ledger exposes the registry contract on every configured network.
// Reads return after a single round trip. Writes return once the transaction
// is mined, and are serialized per network signer.
type Ledger interface {
	// DID records
	RegisterDID(ctx context.Context, network, did, didContext, metadata string) (*types.Receipt, error)
	GetDID(ctx context.Context, network, did string) (document string, metadata string, err error)
	CreateDID(ctx context.Context, network, did string, docHash [32]byte) (*types.Receipt, error)
	UpdateDID(ctx context.Context, network, did string, docHash [32]byte) (*types.Receipt, error)
	DeactivateDID(ctx context.Context, network, did string) (*types.Receipt, error)
	GetDIDDocument(ctx context.Context, network, did string) (string, error)
	ExecuteDIDOperation(ctx context.Context, network string, op DIDOperation, did, document, metadata string) (*types.Receipt, error)

	// Schemas and generic resources
	RegisterSchema(ctx context.Context, network, schemaID, details string) (*types.Receipt, error)
	AddApprovedIssuer(ctx context.Context, network, schemaID string, issuer common.Address) (*types.Receipt, error)
	GetSchema(ctx context.Context, network, schemaID string) (details string, approvedIssuers []common.Address, err error)

	// Credential definitions
	RegisterCredentialDefinition(ctx context.Context, network, credDefID, schemaID string, issuer common.Address) (*types.Receipt, error)
	GetCredentialDefinition(ctx context.Context, network, credDefID string) (details string, issuer common.Address, err error)

	// Credentials
	IssueCredential(ctx context.Context, network string, credential CredentialRecord) (*types.Receipt, error)
	RevokeCredential(ctx context.Context, network, credID string) (*types.Receipt, error)
	IsCredentialRevoked(ctx context.Context, network, credID string) (bool, error)

	// SignerAddress returns the account that signs writes on network.
	SignerAddress(ctx context.Context, network string) (common.Address, error)
}

// CredentialRecord holds the positional arguments of issueCredential.
type CredentialRecord struct {
	ID           string `json:"id"`
	CredDefID    string `json:"credDefId"`
	Issuer       string `json:"issuer"`
	Subject      string `json:"subject"`
	IssuanceDate string `json:"issuanceDate"`
	ExpiryDate   string `json:"expiryDate"`
	Metadata     string `json:"metadata"`
}

package dids

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ajna-inc/kanon-registry/interfaces"
)

// Registrar writes DIDs and DID-owned resources to the ledger.
// Ledger errors are returned to the caller unchanged in kind.
type Registrar struct {
	ledger interfaces.Ledger
	log    *slog.Logger
	now    func() time.Time
}

// NewRegistrar creates a Registrar writing through ledger.
func NewRegistrar(ledger interfaces.Ledger, log *slog.Logger) *Registrar {
	if log == nil {
		log = slog.Default()
	}
	return &Registrar{
		ledger: ledger,
		log:    log,
		now:    time.Now,
	}
}

// CreateResource stores resource at address with registerSchema.
func (r *Registrar) CreateResource(ctx context.Context, address string, resource interfaces.Resource) (*types.Receipt, error) {
	network, payload, err := r.prepareResource(address, &resource)
	if err != nil {
		return nil, err
	}

	receipt, err := r.ledger.RegisterSchema(ctx, network, address, payload)
	if err != nil {
		return nil, fmt.Errorf("could not create resource %s: %w", address, err)
	}

	r.log.Info("Resource created",
		slog.String("address", address),
		slog.String("resourceType", resource.ResourceType.String()),
		slog.String("txHash", receipt.TxHash.Hex()))
	return receipt, nil
}

// CreateCredentialDefinition stores a credential definition resource at
// address with registerCredentialDefinition, issued by the network signer.
func (r *Registrar) CreateCredentialDefinition(ctx context.Context, address string, resource interfaces.Resource) (*types.Receipt, error) {
	network, payload, err := r.prepareResource(address, &resource)
	if err != nil {
		return nil, err
	}

	signer, err := r.ledger.SignerAddress(ctx, network)
	if err != nil {
		return nil, err
	}

	receipt, err := r.ledger.RegisterCredentialDefinition(ctx, network, address, payload, signer)
	if err != nil {
		return nil, fmt.Errorf("could not create credential definition %s: %w", address, err)
	}

	r.log.Info("Credential definition created",
		slog.String("address", address),
		slog.String("issuer", signer.Hex()),
		slog.String("txHash", receipt.TxHash.Hex()))
	return receipt, nil
}

// prepareResource checks that resource belongs at address and encodes it.
func (r *Registrar) prepareResource(address string, resource *interfaces.Resource) (string, string, error) {
	did, resourceID, err := ParseResourceAddress(address)
	if err != nil {
		return "", "", err
	}

	if resource.ID == "" {
		resource.ID = resourceID
	}
	if resource.ID != resourceID {
		return "", "", fmt.Errorf("%w: resource id %q does not match address %s", interfaces.ErrInvalidIdentifier, resource.ID, address)
	}
	if resource.OwningDID == "" {
		resource.OwningDID = did
	}

	network, err := NetworkOf(did)
	if err != nil {
		return "", "", err
	}

	payload, err := json.Marshal(resource)
	if err != nil {
		return "", "", fmt.Errorf("could not encode resource %s: %w", address, err)
	}
	return network, string(payload), nil
}

// Create registers a new DID with its document and creation metadata.
func (r *Registrar) Create(ctx context.Context, doc interfaces.DidDocument) (*types.Receipt, error) {
	return r.execute(ctx, interfaces.DIDCreate, doc.ID, &doc, &interfaces.DidMetadata{Created: r.timestamp()})
}

// Update anchors the hash of a new document for an existing DID. The
// contract keeps no metadata for updates.
func (r *Registrar) Update(ctx context.Context, doc interfaces.DidDocument) (*types.Receipt, error) {
	return r.execute(ctx, interfaces.DIDUpdate, doc.ID, &doc, nil)
}

// Deactivate deactivates a DID.
func (r *Registrar) Deactivate(ctx context.Context, did string) (*types.Receipt, error) {
	return r.execute(ctx, interfaces.DIDDeactivate, did, nil, nil)
}

func (r *Registrar) execute(ctx context.Context, op interfaces.DIDOperation, did string, doc *interfaces.DidDocument, metadata *interfaces.DidMetadata) (*types.Receipt, error) {
	network, err := NetworkOf(did)
	if err != nil {
		return nil, err
	}

	var document []byte
	if doc != nil {
		if doc.Service == nil {
			doc.Service = []interfaces.DidService{}
		}
		if document, err = json.Marshal(doc); err != nil {
			return nil, fmt.Errorf("could not encode DID document: %w", err)
		}
	}

	var encodedMetadata []byte
	if metadata != nil {
		if encodedMetadata, err = json.Marshal(metadata); err != nil {
			return nil, fmt.Errorf("could not encode DID metadata: %w", err)
		}
	}

	receipt, err := r.ledger.ExecuteDIDOperation(ctx, network, op, did, string(document), string(encodedMetadata))
	if err != nil {
		return nil, fmt.Errorf("could not %s DID %s: %w", op, did, err)
	}

	r.log.Info("DID operation confirmed",
		slog.String("operation", string(op)),
		slog.String("did", did),
		slog.String("txHash", receipt.TxHash.Hex()))
	return receipt, nil
}

// IssueCredential records a credential on the network of its issuer DID.
func (r *Registrar) IssueCredential(ctx context.Context, credential interfaces.CredentialRecord) (*types.Receipt, error) {
	network, err := NetworkOf(credential.Issuer)
	if err != nil {
		return nil, err
	}
	if credential.ID == "" {
		return nil, fmt.Errorf("%w: empty credential id", interfaces.ErrInvalidIdentifier)
	}
	return r.ledger.IssueCredential(ctx, network, credential)
}

// RevokeCredential revokes a credential recorded on network.
func (r *Registrar) RevokeCredential(ctx context.Context, network, credID string) (*types.Receipt, error) {
	return r.ledger.RevokeCredential(ctx, network, credID)
}

// AddApprovedIssuer approves issuer for the schema stored at schemaID.
func (r *Registrar) AddApprovedIssuer(ctx context.Context, schemaID string, issuer common.Address) (*types.Receipt, error) {
	did, _, err := ParseResourceAddress(schemaID)
	if err != nil {
		return nil, err
	}
	network, err := NetworkOf(did)
	if err != nil {
		return nil, err
	}
	return r.ledger.AddApprovedIssuer(ctx, network, schemaID, issuer)
}

func (r *Registrar) timestamp() string {
	return r.now().UTC().Format(time.RFC3339)
}

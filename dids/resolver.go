package dids

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ajna-inc/kanon-registry/interfaces"
)

// ResolvedResource presents a resource as a field of its owner's document.
// Exactly one of Schema and CredentialDefinition is set for anoncreds resources.
type ResolvedResource struct {
	ID                   string                           `json:"id"`
	Schema               *interfaces.Schema               `json:"schema,omitempty"`
	CredentialDefinition *interfaces.CredentialDefinition `json:"credentialDefinition,omitempty"`
	Resource             *interfaces.Resource             `json:"resource"`
}

// ResourceResolution is the result of resolving a resource address.
type ResourceResolution struct {
	DidDocument ResolvedResource `json:"didDocument"`
}

// DIDResolution is the result of resolving a DID.
type DIDResolution struct {
	DidDocument         interfaces.DidDocument `json:"didDocument"`
	DidDocumentMetadata interfaces.DidMetadata `json:"didDocumentMetadata"`
}

// Resolver reads DIDs and DID-owned resources from the ledger.
type Resolver struct {
	ledger interfaces.Ledger
	log    *slog.Logger

	// resources caches decoded resources by address. Resources are immutable,
	// so entries never go stale.
	resources *lru.Cache[string, *interfaces.Resource]
}

// NewResolver creates a Resolver. A positive cacheSize enables caching of
// resolved resources.
func NewResolver(ledger interfaces.Ledger, cacheSize int, log *slog.Logger) (*Resolver, error) {
	if log == nil {
		log = slog.Default()
	}

	r := &Resolver{ledger: ledger, log: log}
	if cacheSize > 0 {
		cache, err := lru.New[string, *interfaces.Resource](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("could not create resource cache: %w", err)
		}
		r.resources = cache
	}
	return r, nil
}

// ResolveResource reads the resource stored at address with getSchema.
func (r *Resolver) ResolveResource(ctx context.Context, address string) (*ResourceResolution, error) {
	return r.resolve(ctx, address, "resource", func(network string) (string, error) {
		details, _, err := r.ledger.GetSchema(ctx, network, address)
		return details, err
	})
}

// ResolveCredentialDefinition reads the credential definition stored at
// address with getCredentialDefinition.
func (r *Resolver) ResolveCredentialDefinition(ctx context.Context, address string) (*ResourceResolution, error) {
	return r.resolve(ctx, address, "credentialDefinition", func(network string) (string, error) {
		details, _, err := r.ledger.GetCredentialDefinition(ctx, network, address)
		return details, err
	})
}

func (r *Resolver) resolve(ctx context.Context, address, kind string, read func(network string) (string, error)) (*ResourceResolution, error) {
	did, _, err := ParseResourceAddress(address)
	if err != nil {
		return nil, err
	}
	network, err := NetworkOf(did)
	if err != nil {
		return nil, err
	}

	cacheKey := kind + "|" + address
	if r.resources != nil {
		if resource, ok := r.resources.Get(cacheKey); ok {
			return wrapResource(address, resource)
		}
	}

	details, err := read(network)
	if err != nil {
		return nil, err
	}

	resource, err := decodeResource(address, details)
	if err != nil {
		return nil, err
	}

	resolution, err := wrapResource(address, resource)
	if err != nil {
		return nil, err
	}

	if r.resources != nil {
		r.resources.Add(cacheKey, resource)
	}
	return resolution, nil
}

func decodeResource(address, details string) (*interfaces.Resource, error) {
	if strings.TrimSpace(details) == "" {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrNotFound, address)
	}

	var resource interfaces.Resource
	if err := json.Unmarshal([]byte(details), &resource); err != nil {
		return nil, fmt.Errorf("%w: resource %s: %v", interfaces.ErrDecode, address, err)
	}
	return &resource, nil
}

func wrapResource(address string, resource *interfaces.Resource) (*ResourceResolution, error) {
	resolved := ResolvedResource{ID: address, Resource: resource}

	switch resource.ResourceType {
	case interfaces.SchemaResourceType:
		var schema interfaces.Schema
		if err := json.Unmarshal(resource.Data, &schema); err != nil {
			return nil, fmt.Errorf("%w: schema %s: %v", interfaces.ErrDecode, address, err)
		}
		resolved.Schema = &schema
	case interfaces.CredentialDefinitionResourceType:
		var credDef interfaces.CredentialDefinition
		if err := json.Unmarshal(resource.Data, &credDef); err != nil {
			return nil, fmt.Errorf("%w: credential definition %s: %v", interfaces.ErrDecode, address, err)
		}
		resolved.CredentialDefinition = &credDef
	}

	return &ResourceResolution{DidDocument: resolved}, nil
}

// GetDIDDocument reads a DID record with getDID. A DID that exists on the
// ledger always resolves: an empty or malformed stored document yields a
// document with only its ID set.
//
// The metadata is the one written at creation. Updates and deactivations
// only touch the anchor, so use AnchorMatches to check a document is current.
func (r *Resolver) GetDIDDocument(ctx context.Context, did string) (*DIDResolution, error) {
	network, err := NetworkOf(did)
	if err != nil {
		return nil, err
	}

	document, metadata, err := r.ledger.GetDID(ctx, network, did)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(document) == "" && strings.TrimSpace(metadata) == "" {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrNotFound, did)
	}

	resolution := &DIDResolution{
		DidDocument: interfaces.DidDocument{ID: did, Service: []interfaces.DidService{}},
	}

	if strings.TrimSpace(document) != "" {
		var doc interfaces.DidDocument
		if err := json.Unmarshal([]byte(document), &doc); err != nil {
			r.log.Warn("Stored DID document is malformed", slog.String("did", did), "err", err)
		} else {
			resolution.DidDocument.Context = doc.Context
			if doc.Service != nil {
				resolution.DidDocument.Service = doc.Service
			}
		}
	}

	if strings.TrimSpace(metadata) != "" {
		if err := json.Unmarshal([]byte(metadata), &resolution.DidDocumentMetadata); err != nil {
			r.log.Warn("Stored DID metadata is malformed", slog.String("did", did), "err", err)
			resolution.DidDocumentMetadata = interfaces.DidMetadata{}
		}
	}

	return resolution, nil
}

// DocumentAnchor returns the document anchor of a DID as written by
// createDID or updateDID. It is empty for DIDs that were never anchored.
func (r *Resolver) DocumentAnchor(ctx context.Context, did string) (string, error) {
	network, err := NetworkOf(did)
	if err != nil {
		return "", err
	}
	return r.ledger.GetDIDDocument(ctx, network, did)
}

// AnchorMatches reports whether doc hashes to the anchor stored for its DID.
func (r *Resolver) AnchorMatches(ctx context.Context, doc interfaces.DidDocument) (bool, error) {
	anchor, err := r.DocumentAnchor(ctx, doc.ID)
	if err != nil {
		return false, err
	}
	if anchor == "" {
		return false, nil
	}

	if doc.Service == nil {
		doc.Service = []interfaces.DidService{}
	}
	encoded, err := json.Marshal(doc)
	if err != nil {
		return false, fmt.Errorf("could not encode DID document: %w", err)
	}
	return strings.EqualFold(anchor, crypto.Keccak256Hash(encoded).Hex()), nil
}

// IsCredentialRevoked reads the revocation state of a credential on network.
func (r *Resolver) IsCredentialRevoked(ctx context.Context, network, credID string) (bool, error) {
	return r.ledger.IsCredentialRevoked(ctx, network, credID)
}

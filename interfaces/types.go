// Package interfaces defines the core interfaces and types for the Kanon registry.
// It provides the contract between the ledger, DID and anoncreds layers without implementation details.
package interfaces

import (
	"encoding/json"
	"fmt"
)

// DefaultNetwork is used when a DID does not name its network.
const DefaultNetwork = "mainnet"

// ResourceType classifies a payload stored under a DID.
type ResourceType string

const (
	SchemaResourceType               ResourceType = "anonCredsSchema"
	CredentialDefinitionResourceType ResourceType = "anonCredsCredentialDefinition"
)

// String returns the wire name of the resource type.
func (rt ResourceType) String() string {
	return string(rt)
}

// DidService is a single service entry of a DID document.
type DidService struct {
	ID              string   `json:"id"`
	Type            string   `json:"type"`
	ServiceEndpoint string   `json:"serviceEndpoint"`
	RecipientKeys   []string `json:"recipientKeys,omitempty"`
	RoutingKeys     []string `json:"routingKeys,omitempty"`
	Priority        int      `json:"priority,omitempty"`
}

// DidDocument is the subset of a DID document anchored on the ledger.
type DidDocument struct {
	ID      string       `json:"id"`
	Context string       `json:"context"`
	Service []DidService `json:"service"`
}

// DidMetadata is stored next to a DID document by registerDID.
type DidMetadata struct {
	Created     string `json:"created,omitempty"`
	Updated     string `json:"updated,omitempty"`
	Deactivated bool   `json:"deactivated,omitempty"`
}

// Resource is a named, versioned payload owned by a DID.
// Resources are immutable once written.
type Resource struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	ResourceType ResourceType    `json:"resourceType"`
	Version      string          `json:"version"`
	OwningDID    string          `json:"owningDid"`
	Data         json.RawMessage `json:"data"`
}

// ResourceAddress returns the global address of a resource owned by did.
func ResourceAddress(did, resourceID string) string {
	return fmt.Sprintf("%s/resources/%s", did, resourceID)
}

// Schema describes the attribute set of a credential.
type Schema struct {
	IssuerID  string   `json:"issuerId"`
	Name      string   `json:"name"`
	Version   string   `json:"version"`
	AttrNames []string `json:"attrNames"`
}

// CredentialDefinition binds an issuer to a schema.
type CredentialDefinition struct {
	IssuerID string          `json:"issuerId"`
	SchemaID string          `json:"schemaId"`
	Tag      string          `json:"tag"`
	Type     string          `json:"type,omitempty"`
	Value    json.RawMessage `json:"value,omitempty"`
}

// RevocationRegistryDefinition is accepted by the registry API but not supported by the ledger.
type RevocationRegistryDefinition struct {
	IssuerID  string          `json:"issuerId"`
	CredDefID string          `json:"credDefId"`
	Tag       string          `json:"tag"`
	Value     json.RawMessage `json:"value,omitempty"`
}

// RevocationStatusList is accepted by the registry API but not supported by the ledger.
type RevocationStatusList struct {
	IssuerID    string `json:"issuerId"`
	RevRegDefID string `json:"revRegDefId"`
	Timestamp   int64  `json:"timestamp,omitempty"`
}

// RegistrationState is the terminal state of a registration.
type RegistrationState string

const (
	StateFinished RegistrationState = "finished"
	StateFailed   RegistrationState = "failed"
)

// RegistrationResult is returned by every register operation.
// Identifier is set iff State is finished, Reason iff State is failed.
type RegistrationResult[T any] struct {
	State      RegistrationState `json:"state"`
	Artifact   T                 `json:"artifact"`
	Identifier string            `json:"identifier,omitempty"`
	Reason     string            `json:"reason,omitempty"`

	// Err keeps the classified cause for Go callers.
	Err error `json:"-"`
}

// Finished reports whether the registration reached the ledger.
func (r RegistrationResult[T]) Finished() bool {
	return r.State == StateFinished
}

// Resolution error codes.
const (
	ResolutionNotFound       = "notFound"
	ResolutionInvalid        = "invalid"
	ResolutionNotImplemented = "notImplemented"
)

type ResolutionMetadata struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// ResolutionResult is returned by every get operation. Artifact is nil iff
// ResolutionMetadata.Error is set.
type ResolutionResult[T any] struct {
	Artifact           *T                 `json:"artifact,omitempty"`
	Identifier         string             `json:"identifier"`
	ResolutionMetadata ResolutionMetadata `json:"resolutionMetadata"`

	Err error `json:"-"`
}

// Resolved reports whether an artifact was found.
func (r ResolutionResult[T]) Resolved() bool {
	return r.Artifact != nil
}

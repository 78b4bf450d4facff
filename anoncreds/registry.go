// Package anoncreds implements the anoncreds registry of the kanon DID method.
//
// Schemas and credential definitions are stored as DID-owned resources at
// <issuerId>/resources/<uuid>. Every operation reports failures in its
// result and never returns a Go error.
package anoncreds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/google/uuid"

	"github.com/ajna-inc/kanon-registry/dids"
	"github.com/ajna-inc/kanon-registry/interfaces"
)

// DefaultCredentialDefinitionType is stored when a credential definition names no type.
const DefaultCredentialDefinitionType = "CL"

var supportedIdentifier = regexp.MustCompile(`^did:kanon:[^/?#\s]+(/resources/[^/?#\s]+)?$`)

// Registry registers and resolves anoncreds objects on the kanon ledger.
type Registry struct {
	registrar *dids.Registrar
	resolver  *dids.Resolver
	log       *slog.Logger

	newID func() string
}

// NewRegistry creates a Registry.
func NewRegistry(registrar *dids.Registrar, resolver *dids.Resolver, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		registrar: registrar,
		resolver:  resolver,
		log:       log,
		newID:     uuid.NewString,
	}
}

// MethodName returns the DID method this registry serves.
func (r *Registry) MethodName() string {
	return dids.MethodName
}

// SupportedIdentifier matches the DIDs and resource addresses this registry resolves.
func (r *Registry) SupportedIdentifier() *regexp.Regexp {
	return supportedIdentifier
}

// RegisterSchema stores schema under a fresh resource address of its issuer.
// Registering the same schema twice yields two identifiers.
func (r *Registry) RegisterSchema(ctx context.Context, schema interfaces.Schema) interfaces.RegistrationResult[interfaces.Schema] {
	log := r.log.With(slog.String("issuerId", schema.IssuerID))

	if err := validateSchema(schema); err != nil {
		return failed(log, "schema", schema, err)
	}

	resource, address, err := r.newResource(schema.IssuerID, schema.Name+"-Schema", interfaces.SchemaResourceType, schema.Version, schema)
	if err != nil {
		return failed(log, "schema", schema, err)
	}

	if _, err := r.registrar.CreateResource(ctx, address, resource); err != nil {
		return failed(log, "schema", schema, err)
	}

	log.Info("Schema registered", slog.String("schemaId", address))
	return interfaces.RegistrationResult[interfaces.Schema]{
		State:      interfaces.StateFinished,
		Artifact:   schema,
		Identifier: address,
	}
}

// GetSchema resolves the schema stored at schemaID.
func (r *Registry) GetSchema(ctx context.Context, schemaID string) interfaces.ResolutionResult[interfaces.Schema] {
	resolution, err := r.resolver.ResolveResource(ctx, schemaID)
	if err == nil && resolution.DidDocument.Schema == nil {
		err = fmt.Errorf("%w: resource %s is not a schema", interfaces.ErrDecode, schemaID)
	}
	if err != nil {
		return unresolved[interfaces.Schema](r.log, "schema", schemaID, err)
	}

	return interfaces.ResolutionResult[interfaces.Schema]{
		Artifact:   resolution.DidDocument.Schema,
		Identifier: schemaID,
	}
}

// RegisterCredentialDefinition stores credDef under a fresh resource address
// of its issuer, issued by the ledger signer of the issuer's network.
func (r *Registry) RegisterCredentialDefinition(ctx context.Context, credDef interfaces.CredentialDefinition) interfaces.RegistrationResult[interfaces.CredentialDefinition] {
	log := r.log.With(slog.String("issuerId", credDef.IssuerID), slog.String("schemaId", credDef.SchemaID))

	if credDef.Type == "" {
		credDef.Type = DefaultCredentialDefinitionType
	}
	if err := validateCredentialDefinition(credDef); err != nil {
		return failed(log, "credential definition", credDef, err)
	}

	resource, address, err := r.newResource(credDef.IssuerID, credDef.Tag+"-CredentialDefinition",
		interfaces.CredentialDefinitionResourceType, r.newID(), credDef)
	if err != nil {
		return failed(log, "credential definition", credDef, err)
	}

	if _, err := r.registrar.CreateCredentialDefinition(ctx, address, resource); err != nil {
		return failed(log, "credential definition", credDef, err)
	}

	log.Info("Credential definition registered", slog.String("credentialDefinitionId", address))
	return interfaces.RegistrationResult[interfaces.CredentialDefinition]{
		State:      interfaces.StateFinished,
		Artifact:   credDef,
		Identifier: address,
	}
}

// GetCredentialDefinition reads the credential definition stored at credDefID.
// An unknown identifier resolves to a notFound result.
func (r *Registry) GetCredentialDefinition(ctx context.Context, credDefID string) interfaces.ResolutionResult[interfaces.CredentialDefinition] {
	resolution, err := r.resolver.ResolveCredentialDefinition(ctx, credDefID)
	if err == nil && resolution.DidDocument.CredentialDefinition == nil {
		err = fmt.Errorf("%w: resource %s is not a credential definition", interfaces.ErrDecode, credDefID)
	}
	if err != nil {
		return unresolved[interfaces.CredentialDefinition](r.log, "credential definition", credDefID, err)
	}

	return interfaces.ResolutionResult[interfaces.CredentialDefinition]{
		Artifact:   resolution.DidDocument.CredentialDefinition,
		Identifier: credDefID,
	}
}

// RegisterRevocationRegistryDefinition is not supported by the kanon ledger.
func (r *Registry) RegisterRevocationRegistryDefinition(_ context.Context, def interfaces.RevocationRegistryDefinition) interfaces.RegistrationResult[interfaces.RevocationRegistryDefinition] {
	return notImplementedRegistration(def, "revocation registry definitions")
}

// GetRevocationRegistryDefinition is not supported by the kanon ledger.
func (r *Registry) GetRevocationRegistryDefinition(_ context.Context, id string) interfaces.ResolutionResult[interfaces.RevocationRegistryDefinition] {
	return notImplementedResolution[interfaces.RevocationRegistryDefinition](id, "revocation registry definitions")
}

// RegisterRevocationStatusList is not supported by the kanon ledger.
func (r *Registry) RegisterRevocationStatusList(_ context.Context, list interfaces.RevocationStatusList) interfaces.RegistrationResult[interfaces.RevocationStatusList] {
	return notImplementedRegistration(list, "revocation status lists")
}

// GetRevocationStatusList is not supported by the kanon ledger.
func (r *Registry) GetRevocationStatusList(_ context.Context, revRegDefID string, _ int64) interfaces.ResolutionResult[interfaces.RevocationStatusList] {
	return notImplementedResolution[interfaces.RevocationStatusList](revRegDefID, "revocation status lists")
}

func (r *Registry) newResource(issuerID, name string, resourceType interfaces.ResourceType, version string, data any) (interfaces.Resource, string, error) {
	id := r.newID()
	address, err := dids.ResourceAddress(issuerID, id)
	if err != nil {
		return interfaces.Resource{}, "", err
	}

	encoded, err := json.Marshal(data)
	if err != nil {
		return interfaces.Resource{}, "", fmt.Errorf("could not encode %s: %w", resourceType, err)
	}

	return interfaces.Resource{
		ID:           id,
		Name:         name,
		ResourceType: resourceType,
		Version:      version,
		OwningDID:    issuerID,
		Data:         encoded,
	}, address, nil
}

func validateIssuer(issuerID string) error {
	did, err := dids.ParseDID(issuerID)
	if err != nil {
		return err
	}
	if did.Method != dids.MethodName {
		return fmt.Errorf("%w: issuer %s is not a %s DID", interfaces.ErrInvalidIdentifier, issuerID, dids.MethodName)
	}
	return nil
}

func validateSchema(schema interfaces.Schema) error {
	if err := validateIssuer(schema.IssuerID); err != nil {
		return err
	}
	if schema.Name == "" || schema.Version == "" {
		return fmt.Errorf("%w: schema name and version are required", errInvalidArtifact)
	}
	if len(schema.AttrNames) == 0 {
		return fmt.Errorf("%w: schema has no attributes", errInvalidArtifact)
	}
	return nil
}

func validateCredentialDefinition(credDef interfaces.CredentialDefinition) error {
	if err := validateIssuer(credDef.IssuerID); err != nil {
		return err
	}
	if credDef.SchemaID == "" {
		return fmt.Errorf("%w: credential definition has no schema", errInvalidArtifact)
	}
	if credDef.Tag == "" {
		return fmt.Errorf("%w: credential definition has no tag", errInvalidArtifact)
	}
	return nil
}

var errInvalidArtifact = errors.New("invalid artifact")

func failed[T any](log *slog.Logger, kind string, artifact T, err error) interfaces.RegistrationResult[T] {
	reason := FailureReason(err)
	log.Warn("Registration failed", slog.String("kind", kind), slog.String("reason", reason), "err", err)
	return interfaces.RegistrationResult[T]{
		State:    interfaces.StateFailed,
		Artifact: artifact,
		Reason:   reason,
		Err:      err,
	}
}

func unresolved[T any](log *slog.Logger, kind, id string, err error) interfaces.ResolutionResult[T] {
	code := interfaces.ResolutionNotFound
	if errors.Is(err, interfaces.ErrDecode) {
		code = interfaces.ResolutionInvalid
	}

	if errors.Is(err, interfaces.ErrNotFound) {
		log.Debug("Artifact not found", slog.String("kind", kind), slog.String("id", id))
	} else {
		log.Warn("Resolution failed", slog.String("kind", kind), slog.String("id", id), "err", err)
	}

	return interfaces.ResolutionResult[T]{
		Identifier: id,
		ResolutionMetadata: interfaces.ResolutionMetadata{
			Error:   code,
			Message: fmt.Sprintf("unable to resolve %s: %s", kind, describe(err)),
		},
		Err: err,
	}
}

func notImplementedRegistration[T any](artifact T, what string) interfaces.RegistrationResult[T] {
	err := fmt.Errorf("%w: %s are not supported by the kanon ledger", interfaces.ErrNotImplemented, what)
	return interfaces.RegistrationResult[T]{
		State:    interfaces.StateFailed,
		Artifact: artifact,
		Reason:   FailureReason(err),
		Err:      err,
	}
}

func notImplementedResolution[T any](id, what string) interfaces.ResolutionResult[T] {
	err := fmt.Errorf("%w: %s are not supported by the kanon ledger", interfaces.ErrNotImplemented, what)
	return interfaces.ResolutionResult[T]{
		Identifier: id,
		ResolutionMetadata: interfaces.ResolutionMetadata{
			Error:   interfaces.ResolutionNotImplemented,
			Message: describe(err),
		},
		Err: err,
	}
}

package dids

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajna-inc/kanon-registry/interfaces"
	"github.com/ajna-inc/kanon-registry/ledger"
)

func TestResolver_ResolveSchemaResource(t *testing.T) {
	ctx := context.Background()
	mockLedger := ledger.NewMockLedgerClient("mainnet")
	registrar := NewRegistrar(mockLedger, testLogger)
	resolver, err := NewResolver(mockLedger, 0, testLogger)
	require.NoError(t, err)

	address := "did:kanon:mainnet:abc/resources/s-1"
	_, err = registrar.CreateResource(ctx, address, interfaces.Resource{
		Name:         "schema-Schema",
		ResourceType: interfaces.SchemaResourceType,
		Version:      "1.0",
		Data:         json.RawMessage(`{"issuerId":"did:kanon:mainnet:abc","name":"schema","version":"1.0","attrNames":["name"]}`),
	})
	require.NoError(t, err)

	resolution, err := resolver.ResolveResource(ctx, address)
	require.NoError(t, err)
	assert.Equal(t, address, resolution.DidDocument.ID)
	require.NotNil(t, resolution.DidDocument.Schema)
	assert.Nil(t, resolution.DidDocument.CredentialDefinition)
	assert.Equal(t, interfaces.Schema{
		IssuerID:  "did:kanon:mainnet:abc",
		Name:      "schema",
		Version:   "1.0",
		AttrNames: []string{"name"},
	}, *resolution.DidDocument.Schema)
	assert.Equal(t, "s-1", resolution.DidDocument.Resource.ID)
}

func TestResolver_ResourceErrors(t *testing.T) {
	ctx := context.Background()

	mockLedger := &ledger.MockLedger{}
	mockLedger.On("GetSchema", ctx, "mainnet", "did:kanon:mainnet:abc/resources/missing").Return("", []common.Address{}, nil)
	mockLedger.On("GetSchema", ctx, "mainnet", "did:kanon:mainnet:abc/resources/garbage").Return("{not json", []common.Address{}, nil)
	mockLedger.On("GetSchema", ctx, "mainnet", "did:kanon:mainnet:abc/resources/baddata").
		Return(`{"id":"baddata","resourceType":"anonCredsSchema","data":"oops"}`, []common.Address{}, nil)

	resolver, err := NewResolver(mockLedger, 8, testLogger)
	require.NoError(t, err)

	_, err = resolver.ResolveResource(ctx, "did:kanon:mainnet:abc/resources/missing")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	_, err = resolver.ResolveResource(ctx, "did:kanon:mainnet:abc/resources/garbage")
	assert.ErrorIs(t, err, interfaces.ErrDecode)

	_, err = resolver.ResolveResource(ctx, "did:kanon:mainnet:abc/resources/baddata")
	assert.ErrorIs(t, err, interfaces.ErrDecode)

	_, err = resolver.ResolveResource(ctx, "did:kanon:mainnet:abc")
	assert.ErrorIs(t, err, interfaces.ErrInvalidIdentifier)

	mockLedger.AssertExpectations(t)
}

func TestResolver_CachesResolvedResources(t *testing.T) {
	ctx := context.Background()
	address := "did:kanon:mainnet:abc/resources/cd-1"
	stored := `{"id":"cd-1","resourceType":"anonCredsCredentialDefinition","data":{"issuerId":"did:kanon:mainnet:abc","schemaId":"did:kanon:mainnet:abc/resources/s-1","tag":"default","type":"CL"}}`

	mockLedger := &ledger.MockLedger{}
	mockLedger.On("GetCredentialDefinition", ctx, "mainnet", address).Return(stored, common.HexToAddress("0x01"), nil).Once()

	resolver, err := NewResolver(mockLedger, 8, testLogger)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		resolution, err := resolver.ResolveCredentialDefinition(ctx, address)
		require.NoError(t, err)
		require.NotNil(t, resolution.DidDocument.CredentialDefinition)
		assert.Equal(t, "default", resolution.DidDocument.CredentialDefinition.Tag)
		assert.Equal(t, "CL", resolution.DidDocument.CredentialDefinition.Type)
	}

	mockLedger.AssertNumberOfCalls(t, "GetCredentialDefinition", 1)
}

func TestResolver_DoesNotCacheFailures(t *testing.T) {
	ctx := context.Background()
	mockLedger := ledger.NewMockLedgerClient("mainnet")
	resolver, err := NewResolver(mockLedger, 8, testLogger)
	require.NoError(t, err)

	address := "did:kanon:mainnet:abc/resources/late"
	_, err = resolver.ResolveResource(ctx, address)
	require.ErrorIs(t, err, interfaces.ErrNotFound)

	_, err = NewRegistrar(mockLedger, testLogger).CreateResource(ctx, address, interfaces.Resource{ResourceType: "custom"})
	require.NoError(t, err)

	resolution, err := resolver.ResolveResource(ctx, address)
	require.NoError(t, err)
	assert.Nil(t, resolution.DidDocument.Schema)
	assert.Equal(t, interfaces.ResourceType("custom"), resolution.DidDocument.Resource.ResourceType)
}

func TestResolver_GetDIDDocument(t *testing.T) {
	ctx := context.Background()

	mockLedger := &ledger.MockLedger{}
	mockLedger.On("GetDID", ctx, "mainnet", "did:kanon:mainnet:full").
		Return(`{"id":"did:kanon:mainnet:full","context":"https://www.w3.org/ns/did/v1","service":[{"id":"#didcomm","type":"did-communication","serviceEndpoint":"https://agent.example"}]}`, `{"created":"2024-05-01T12:00:00Z"}`, nil)
	mockLedger.On("GetDID", ctx, "mainnet", "did:kanon:mainnet:bare").Return("", `{"created":"2024-05-01T12:00:00Z"}`, nil)
	mockLedger.On("GetDID", ctx, "mainnet", "did:kanon:mainnet:broken").Return("{oops", "", nil)
	mockLedger.On("GetDID", ctx, "mainnet", "did:kanon:mainnet:absent").Return("", "", nil)

	resolver, err := NewResolver(mockLedger, 0, testLogger)
	require.NoError(t, err)

	full, err := resolver.GetDIDDocument(ctx, "did:kanon:mainnet:full")
	require.NoError(t, err)
	assert.Equal(t, "https://www.w3.org/ns/did/v1", full.DidDocument.Context)
	require.Len(t, full.DidDocument.Service, 1)
	assert.Equal(t, "https://agent.example", full.DidDocument.Service[0].ServiceEndpoint)
	assert.Equal(t, "2024-05-01T12:00:00Z", full.DidDocumentMetadata.Created)

	for _, did := range []string{"did:kanon:mainnet:bare", "did:kanon:mainnet:broken"} {
		resolution, err := resolver.GetDIDDocument(ctx, did)
		require.NoError(t, err, did)
		assert.Equal(t, interfaces.DidDocument{ID: did, Service: []interfaces.DidService{}}, resolution.DidDocument)
	}

	_, err = resolver.GetDIDDocument(ctx, "did:kanon:mainnet:absent")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestResolver_AnchorMatches(t *testing.T) {
	ctx := context.Background()
	mockLedger := ledger.NewMockLedgerClient("mainnet")
	registrar := NewRegistrar(mockLedger, testLogger)
	resolver, err := NewResolver(mockLedger, 0, testLogger)
	require.NoError(t, err)

	doc := interfaces.DidDocument{ID: "did:kanon:mainnet:abc", Context: "https://www.w3.org/ns/did/v1"}
	_, err = registrar.Create(ctx, doc)
	require.NoError(t, err)

	_, err = registrar.Update(ctx, doc)
	require.NoError(t, err)

	ok, err := resolver.AnchorMatches(ctx, doc)
	require.NoError(t, err)
	assert.True(t, ok)

	doc.Context = "changed"
	ok, err = resolver.AnchorMatches(ctx, doc)
	require.NoError(t, err)
	assert.False(t, ok)
}

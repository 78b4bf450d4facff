package ledger

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ajna-inc/kanon-registry/interfaces"
)

// Service implements interfaces.Ledger over every network of a Pool.
type Service struct {
	pool     *Pool
	cfg      ClientConfig
	observer Observer
	log      *slog.Logger

	mu      sync.Mutex
	clients map[*Connection]*Client
}

// NewService creates a Service. observer may be nil.
func NewService(pool *Pool, cfg ClientConfig, observer Observer, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		pool:     pool,
		cfg:      cfg,
		observer: observer,
		log:      log,
		clients:  make(map[*Connection]*Client),
	}
}

// ClientFor returns the contract client of network.
func (s *Service) ClientFor(ctx context.Context, network string) (*Client, error) {
	conn, err := s.pool.ConnectionFor(ctx, network)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if client, ok := s.clients[conn]; ok {
		return client, nil
	}
	client := NewClient(conn, s.cfg, s.observer, s.log)
	s.clients[conn] = client
	return client, nil
}

func (s *Service) RegisterDID(ctx context.Context, network, did, didContext, metadata string) (*types.Receipt, error) {
	client, err := s.ClientFor(ctx, network)
	if err != nil {
		return nil, err
	}
	return client.RegisterDID(ctx, did, didContext, metadata)
}

func (s *Service) GetDID(ctx context.Context, network, did string) (string, string, error) {
	client, err := s.ClientFor(ctx, network)
	if err != nil {
		return "", "", err
	}
	return client.GetDID(ctx, did)
}

func (s *Service) CreateDID(ctx context.Context, network, did string, docHash [32]byte) (*types.Receipt, error) {
	client, err := s.ClientFor(ctx, network)
	if err != nil {
		return nil, err
	}
	return client.CreateDID(ctx, did, docHash)
}

func (s *Service) UpdateDID(ctx context.Context, network, did string, docHash [32]byte) (*types.Receipt, error) {
	client, err := s.ClientFor(ctx, network)
	if err != nil {
		return nil, err
	}
	return client.UpdateDID(ctx, did, docHash)
}

func (s *Service) DeactivateDID(ctx context.Context, network, did string) (*types.Receipt, error) {
	client, err := s.ClientFor(ctx, network)
	if err != nil {
		return nil, err
	}
	return client.DeactivateDID(ctx, did)
}

func (s *Service) GetDIDDocument(ctx context.Context, network, did string) (string, error) {
	client, err := s.ClientFor(ctx, network)
	if err != nil {
		return "", err
	}
	return client.GetDIDDocument(ctx, did)
}

func (s *Service) ExecuteDIDOperation(ctx context.Context, network string, op interfaces.DIDOperation, did, document, metadata string) (*types.Receipt, error) {
	client, err := s.ClientFor(ctx, network)
	if err != nil {
		return nil, err
	}
	return client.ExecuteDIDOperation(ctx, op, did, document, metadata)
}

func (s *Service) RegisterSchema(ctx context.Context, network, schemaID, details string) (*types.Receipt, error) {
	client, err := s.ClientFor(ctx, network)
	if err != nil {
		return nil, err
	}
	return client.RegisterSchema(ctx, schemaID, details)
}

func (s *Service) AddApprovedIssuer(ctx context.Context, network, schemaID string, issuer common.Address) (*types.Receipt, error) {
	client, err := s.ClientFor(ctx, network)
	if err != nil {
		return nil, err
	}
	return client.AddApprovedIssuer(ctx, schemaID, issuer)
}

func (s *Service) GetSchema(ctx context.Context, network, schemaID string) (string, []common.Address, error) {
	client, err := s.ClientFor(ctx, network)
	if err != nil {
		return "", nil, err
	}
	return client.GetSchema(ctx, schemaID)
}

func (s *Service) RegisterCredentialDefinition(ctx context.Context, network, credDefID, schemaID string, issuer common.Address) (*types.Receipt, error) {
	client, err := s.ClientFor(ctx, network)
	if err != nil {
		return nil, err
	}
	return client.RegisterCredentialDefinition(ctx, credDefID, schemaID, issuer)
}

func (s *Service) GetCredentialDefinition(ctx context.Context, network, credDefID string) (string, common.Address, error) {
	client, err := s.ClientFor(ctx, network)
	if err != nil {
		return "", common.Address{}, err
	}
	return client.GetCredentialDefinition(ctx, credDefID)
}

func (s *Service) IssueCredential(ctx context.Context, network string, credential interfaces.CredentialRecord) (*types.Receipt, error) {
	client, err := s.ClientFor(ctx, network)
	if err != nil {
		return nil, err
	}
	return client.IssueCredential(ctx, credential)
}

func (s *Service) RevokeCredential(ctx context.Context, network, credID string) (*types.Receipt, error) {
	client, err := s.ClientFor(ctx, network)
	if err != nil {
		return nil, err
	}
	return client.RevokeCredential(ctx, credID)
}

func (s *Service) IsCredentialRevoked(ctx context.Context, network, credID string) (bool, error) {
	client, err := s.ClientFor(ctx, network)
	if err != nil {
		return false, err
	}
	return client.IsCredentialRevoked(ctx, credID)
}

// SignerAddress is derived from the configured key and does not dial the network.
func (s *Service) SignerAddress(_ context.Context, network string) (common.Address, error) {
	return s.pool.SignerAddress(network)
}

var _ interfaces.Ledger = (*Service)(nil)

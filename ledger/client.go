// Package ledger binds the Kanon registry contract: it manages one signing
// connection per network and executes typed view calls and confirmed
// transactions against the fixed contract ABI.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/ajna-inc/kanon-registry/interfaces"
)

// ClientConfig controls how contract calls are bounded.
type ClientConfig struct {
	// ContractAddress defaults to DefaultContractAddress.
	ContractAddress common.Address

	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	ConfirmationTimeout time.Duration

	// GasLimit skips gas estimation when non-zero.
	GasLimit uint64
}

// DefaultClientConfig returns the deadlines used when none are configured.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ContractAddress:     DefaultContractAddress,
		ReadTimeout:         30 * time.Second,
		WriteTimeout:        30 * time.Second,
		ConfirmationTimeout: 2 * time.Minute,
	}
}

// Observer is notified of every completed contract call.
type Observer interface {
	ObserveLedgerCall(network, method string, write bool, err error, duration time.Duration)
}

// Client executes registry contract calls over one Connection.
type Client struct {
	conn     *Connection
	contract *bind.BoundContract
	cfg      ClientConfig
	observer Observer
	log      *slog.Logger
}

// NewClient binds conn to the registry contract.
func NewClient(conn *Connection, cfg ClientConfig, observer Observer, log *slog.Logger) *Client {
	if cfg.ContractAddress == (common.Address{}) {
		cfg.ContractAddress = DefaultContractAddress
	}
	if log == nil {
		log = slog.Default()
	}
	backend := conn.Backend()
	return &Client{
		conn:     conn,
		contract: bind.NewBoundContract(cfg.ContractAddress, RegistryABI, backend, backend, backend),
		cfg:      cfg,
		observer: observer,
		log:      log.With(slog.String("network", conn.Network())),
	}
}

// Connection returns the connection the client writes through.
func (c *Client) Connection() *Connection {
	return c.conn
}

// RegisterDID stores a DID with its document and metadata.
func (c *Client) RegisterDID(ctx context.Context, did, didContext, metadata string) (*types.Receipt, error) {
	return c.transact(ctx, MethodRegisterDID, did, didContext, metadata)
}

// GetDID returns the stored document and metadata of a DID.
func (c *Client) GetDID(ctx context.Context, did string) (string, string, error) {
	out, err := c.call(ctx, MethodGetDID, did)
	if err != nil {
		return "", "", err
	}
	document, err := outputAt[string](out, 0)
	if err != nil {
		return "", "", c.readError(MethodGetDID, err)
	}
	metadata, err := outputAt[string](out, 1)
	if err != nil {
		return "", "", c.readError(MethodGetDID, err)
	}
	return document, metadata, nil
}

// RegisterSchema stores details under schemaID.
func (c *Client) RegisterSchema(ctx context.Context, schemaID, details string) (*types.Receipt, error) {
	return c.transact(ctx, MethodRegisterSchema, schemaID, details)
}

// AddApprovedIssuer allows issuer to issue against a schema.
func (c *Client) AddApprovedIssuer(ctx context.Context, schemaID string, issuer common.Address) (*types.Receipt, error) {
	return c.transact(ctx, MethodAddApprovedIssuer, schemaID, issuer)
}

// GetSchema returns the stored details of a schema and its approved issuers.
func (c *Client) GetSchema(ctx context.Context, schemaID string) (string, []common.Address, error) {
	out, err := c.call(ctx, MethodGetSchema, schemaID)
	if err != nil {
		return "", nil, err
	}
	details, err := outputAt[string](out, 0)
	if err != nil {
		return "", nil, c.readError(MethodGetSchema, err)
	}
	issuers, err := outputAt[[]common.Address](out, 1)
	if err != nil {
		return "", nil, c.readError(MethodGetSchema, err)
	}
	return details, issuers, nil
}

// RegisterCredentialDefinition stores a credential definition issued by issuer.
func (c *Client) RegisterCredentialDefinition(ctx context.Context, credDefID, schemaID string, issuer common.Address) (*types.Receipt, error) {
	return c.transact(ctx, MethodRegisterCredentialDefinition, credDefID, schemaID, issuer)
}

// GetCredentialDefinition returns the stored credential definition and its issuer.
func (c *Client) GetCredentialDefinition(ctx context.Context, credDefID string) (string, common.Address, error) {
	out, err := c.call(ctx, MethodGetCredentialDefinition, credDefID)
	if err != nil {
		return "", common.Address{}, err
	}
	details, err := outputAt[string](out, 0)
	if err != nil {
		return "", common.Address{}, c.readError(MethodGetCredentialDefinition, err)
	}
	issuer, err := outputAt[common.Address](out, 1)
	if err != nil {
		return "", common.Address{}, c.readError(MethodGetCredentialDefinition, err)
	}
	return details, issuer, nil
}

// IssueCredential records an issued credential.
func (c *Client) IssueCredential(ctx context.Context, cred interfaces.CredentialRecord) (*types.Receipt, error) {
	return c.transact(ctx, MethodIssueCredential,
		cred.ID, cred.CredDefID, cred.Issuer, cred.Subject, cred.IssuanceDate, cred.ExpiryDate, cred.Metadata)
}

// RevokeCredential marks a credential as revoked.
func (c *Client) RevokeCredential(ctx context.Context, credID string) (*types.Receipt, error) {
	return c.transact(ctx, MethodRevokeCredential, credID)
}

// IsCredentialRevoked reports the revocation state of a credential.
func (c *Client) IsCredentialRevoked(ctx context.Context, credID string) (bool, error) {
	out, err := c.call(ctx, MethodIsCredentialRevoked, credID)
	if err != nil {
		return false, err
	}
	revoked, err := outputAt[bool](out, 0)
	if err != nil {
		return false, c.readError(MethodIsCredentialRevoked, err)
	}
	return revoked, nil
}

// CreateDID anchors the hash of a DID document.
func (c *Client) CreateDID(ctx context.Context, did string, docHash [32]byte) (*types.Receipt, error) {
	return c.transact(ctx, MethodCreateDID, did, docHash)
}

// UpdateDID replaces the anchored hash of a DID document.
func (c *Client) UpdateDID(ctx context.Context, did string, docHash [32]byte) (*types.Receipt, error) {
	return c.transact(ctx, MethodUpdateDID, did, docHash)
}

// DeactivateDID deactivates a DID.
func (c *Client) DeactivateDID(ctx context.Context, did string) (*types.Receipt, error) {
	return c.transact(ctx, MethodDeactivateDID, did)
}

// GetDIDDocument returns the anchored document of a DID.
func (c *Client) GetDIDDocument(ctx context.Context, did string) (string, error) {
	out, err := c.call(ctx, MethodGetDIDDocument, did)
	if err != nil {
		return "", err
	}
	document, err := outputAt[string](out, 0)
	if err != nil {
		return "", c.readError(MethodGetDIDDocument, err)
	}
	return document, nil
}

// ExecuteDIDOperation maps a DID lifecycle operation to its contract write.
// Updates anchor the keccak256 hash of the new document.
func (c *Client) ExecuteDIDOperation(ctx context.Context, op interfaces.DIDOperation, did, document, metadata string) (*types.Receipt, error) {
	switch op {
	case interfaces.DIDCreate:
		c.log.Debug("Creating DID", slog.String("did", did))
		return c.RegisterDID(ctx, did, document, metadata)
	case interfaces.DIDUpdate:
		c.log.Debug("Updating DID", slog.String("did", did))
		return c.UpdateDID(ctx, did, crypto.Keccak256Hash([]byte(document)))
	case interfaces.DIDDeactivate:
		c.log.Debug("Deactivating DID", slog.String("did", did))
		return c.DeactivateDID(ctx, did)
	default:
		return nil, fmt.Errorf("%w: %q", interfaces.ErrInvalidOperation, op)
	}
}

// call performs a view call in a single round trip.
func (c *Client) call(ctx context.Context, method string, params ...interface{}) ([]interface{}, error) {
	start := time.Now()
	ctx, cancel := withTimeout(ctx, c.cfg.ReadTimeout)
	defer cancel()

	var out []interface{}
	err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, params...)
	if err != nil {
		err = c.readError(method, err)
	}
	c.observe(method, false, err, start)
	return out, err
}

// transact submits a signed transaction and waits until it is mined.
// Only one transaction per signer is in flight at any time.
func (c *Client) transact(ctx context.Context, method string, params ...interface{}) (*types.Receipt, error) {
	start := time.Now()
	receipt, err := c.submitAndWait(ctx, method, params...)
	c.observe(method, true, err, start)
	return receipt, err
}

func (c *Client) submitAndWait(ctx context.Context, method string, params ...interface{}) (*types.Receipt, error) {
	if err := c.conn.acquireWrite(ctx); err != nil {
		return nil, c.writeError(method, common.Hash{}, "", err)
	}
	defer c.conn.releaseWrite()

	submitCtx, cancelSubmit := withTimeout(ctx, c.cfg.WriteTimeout)
	opts := c.conn.transactOpts(submitCtx, c.cfg.GasLimit)
	tx, err := c.contract.Transact(opts, method, params...)
	cancelSubmit()
	if err != nil {
		c.log.Warn("Transaction submission failed", slog.String("method", method), "err", err)
		return nil, c.writeError(method, common.Hash{}, "", err)
	}

	c.log.Debug("Transaction submitted",
		slog.String("method", method),
		slog.String("txHash", tx.Hash().Hex()),
		slog.Uint64("nonce", tx.Nonce()))

	waitCtx, cancelWait := withTimeout(ctx, c.cfg.ConfirmationTimeout)
	defer cancelWait()

	receipt, err := bind.WaitMined(waitCtx, c.conn.Backend(), tx)
	if err != nil {
		c.log.Warn("Transaction confirmation failed",
			slog.String("method", method),
			slog.String("txHash", tx.Hash().Hex()),
			"err", err)
		return nil, c.writeError(method, tx.Hash(), "", err)
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		reason := c.revertReason(ctx, opts.From, tx, receipt)
		c.log.Warn("Transaction reverted",
			slog.String("method", method),
			slog.String("txHash", tx.Hash().Hex()),
			slog.String("reason", reason))
		return receipt, c.writeError(method, tx.Hash(), reason, nil)
	}

	c.log.Debug("Transaction confirmed",
		slog.String("method", method),
		slog.String("txHash", tx.Hash().Hex()),
		slog.Uint64("block", receipt.BlockNumber.Uint64()))

	return receipt, nil
}

// revertReason replays a reverted transaction at its block to recover the reason.
func (c *Client) revertReason(ctx context.Context, from common.Address, tx *types.Transaction, receipt *types.Receipt) string {
	ctx, cancel := withTimeout(ctx, c.cfg.ReadTimeout)
	defer cancel()

	msg := ethereum.CallMsg{
		From:  from,
		To:    tx.To(),
		Gas:   tx.Gas(),
		Value: tx.Value(),
		Data:  tx.Data(),
	}
	_, err := c.conn.Backend().CallContract(ctx, msg, receipt.BlockNumber)
	if err == nil {
		return ""
	}
	return decodeRevert(err)
}

func decodeRevert(err error) string {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if encoded, ok := dataErr.ErrorData().(string); ok {
			if data, decodeErr := hexutil.Decode(encoded); decodeErr == nil {
				if reason, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
					return reason
				}
			}
		}
	}
	return strings.TrimPrefix(err.Error(), "execution reverted: ")
}

func (c *Client) readError(method string, err error) error {
	var ledgerErr *interfaces.LedgerError
	if errors.As(err, &ledgerErr) {
		return err
	}
	return &interfaces.LedgerError{
		Kind:    interfaces.ErrLedgerRead,
		Network: c.conn.Network(),
		Method:  method,
		Err:     err,
	}
}

func (c *Client) writeError(method string, txHash common.Hash, reason string, err error) error {
	if err == nil && isDuplicateReason(reason) {
		err = interfaces.ErrResourceExists
	}
	return &interfaces.LedgerError{
		Kind:         interfaces.ErrLedgerWrite,
		Network:      c.conn.Network(),
		Method:       method,
		TxHash:       txHash,
		RevertReason: reason,
		Err:          err,
	}
}

func isDuplicateReason(reason string) bool {
	reason = strings.ToLower(reason)
	return strings.Contains(reason, "already exists") || strings.Contains(reason, "already registered")
}

func (c *Client) observe(method string, write bool, err error, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveLedgerCall(c.conn.Network(), method, write, err, time.Since(start))
	}
}

func outputAt[T any](out []interface{}, index int) (T, error) {
	var zero T
	if index >= len(out) {
		return zero, fmt.Errorf("%w: missing output %d", interfaces.ErrDecode, index)
	}
	value, ok := out[index].(T)
	if !ok {
		return zero, fmt.Errorf("%w: output %d has type %T", interfaces.ErrDecode, index, out[index])
	}
	return value, nil
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

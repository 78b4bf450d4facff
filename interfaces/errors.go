package interfaces

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrUnknownNetwork is returned when a network name has no configuration.
	ErrUnknownNetwork = errors.New("unknown network")

	// ErrLedgerRead is the kind of every failed view call.
	ErrLedgerRead = errors.New("ledger read failed")

	// ErrLedgerWrite is the kind of every failed or reverted transaction.
	ErrLedgerWrite = errors.New("ledger write failed")

	// ErrInvalidOperation is returned for DID operations other than create, update and deactivate.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrNotImplemented is returned by registry operations the ledger does not support.
	ErrNotImplemented = errors.New("not implemented")

	// ErrDecode is returned when a payload stored on the ledger cannot be decoded.
	ErrDecode = errors.New("malformed ledger payload")

	// ErrNotFound is returned when the ledger holds nothing under an identifier.
	ErrNotFound = errors.New("not found")

	// ErrInvalidIdentifier is returned for malformed DIDs and resource addresses.
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrResourceExists is returned when the ledger rejects an already used resource address.
	ErrResourceExists = errors.New("resource already exists")

	// ErrPoolClosed is returned by a connection pool after Close.
	ErrPoolClosed = errors.New("connection pool closed")

	// ErrNetworkUnavailable is the kind of a failed connection to a network's RPC endpoint.
	ErrNetworkUnavailable = errors.New("network unavailable")
)

// LedgerError describes a failed contract call or connection. It matches both
// its Kind (ErrLedgerRead, ErrLedgerWrite or ErrNetworkUnavailable) and the
// underlying cause with errors.Is.
type LedgerError struct {
	Kind    error
	Network string
	Method  string

	// TxHash is zero when the transaction was never submitted.
	TxHash       common.Hash
	RevertReason string

	Err error
}

func (e *LedgerError) Error() string {
	msg := fmt.Sprintf("%s: %s on %s", e.Kind, e.Method, e.Network)
	if e.TxHash != (common.Hash{}) {
		msg += fmt.Sprintf(" (tx %s)", e.TxHash.Hex())
	}
	if e.RevertReason != "" {
		msg += ": reverted: " + e.RevertReason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LedgerError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Submitted reports whether the failure happened after the transaction was sent.
func (e *LedgerError) Submitted() bool {
	return e.TxHash != (common.Hash{})
}

package anoncreds

import (
	"context"
	"errors"
	"fmt"

	"github.com/ajna-inc/kanon-registry/interfaces"
)

// Failure kinds prefixed to registration reasons.
const (
	reasonInvalid        = "invalid"
	reasonUnknownNetwork = "unknownNetwork"
	reasonResourceExists = "resourceExists"
	reasonNotImplemented = "notImplemented"
	reasonTimeout        = "timeout"
	reasonLedgerRead     = "ledgerReadError"
	reasonLedgerWrite    = "ledgerWriteError"
	reasonUnavailable    = "networkUnavailable"
	reasonUnknown        = "unknownError"
)

// internalErrorMessage replaces the text of errors that are not classified.
const internalErrorMessage = "internal error"

// FailureReason renders err as "<kind>: <message>" without leaking RPC responses.
// It is the reason format of every failed registration.
func FailureReason(err error) string {
	return fmt.Sprintf("%s: %s", failureKind(err), describe(err))
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, interfaces.ErrInvalidIdentifier), errors.Is(err, errInvalidArtifact):
		return reasonInvalid
	case errors.Is(err, interfaces.ErrUnknownNetwork):
		return reasonUnknownNetwork
	case errors.Is(err, interfaces.ErrResourceExists):
		return reasonResourceExists
	case errors.Is(err, interfaces.ErrNotImplemented):
		return reasonNotImplemented
	case errors.Is(err, interfaces.ErrNetworkUnavailable):
		return reasonUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return reasonTimeout
	case errors.Is(err, interfaces.ErrLedgerWrite):
		return reasonLedgerWrite
	case errors.Is(err, interfaces.ErrLedgerRead):
		return reasonLedgerRead
	default:
		return reasonUnknown
	}
}

// describe returns a message safe to hand to callers. Ledger and connection
// failures are summarized from their structured fields and never include the
// cause text. Only errors built around the registry's own sentinels keep theirs.
func describe(err error) string {
	var ledgerErr *interfaces.LedgerError
	if errors.As(err, &ledgerErr) {
		msg := fmt.Sprintf("%s on network %s failed", ledgerErr.Method, ledgerErr.Network)
		if ledgerErr.Submitted() {
			msg += " in transaction " + ledgerErr.TxHash.Hex()
		}
		if ledgerErr.RevertReason != "" {
			msg += ": " + ledgerErr.RevertReason
		} else if errors.Is(ledgerErr, context.DeadlineExceeded) {
			msg += ": deadline exceeded"
		}
		return msg
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline exceeded"
	case errors.Is(err, context.Canceled):
		return "operation canceled"
	case isDescribable(err):
		return err.Error()
	}
	return internalErrorMessage
}

func isDescribable(err error) bool {
	for _, known := range []error{
		interfaces.ErrInvalidIdentifier,
		errInvalidArtifact,
		interfaces.ErrUnknownNetwork,
		interfaces.ErrResourceExists,
		interfaces.ErrNotImplemented,
		interfaces.ErrNotFound,
		interfaces.ErrDecode,
		interfaces.ErrInvalidOperation,
		interfaces.ErrPoolClosed,
	} {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}

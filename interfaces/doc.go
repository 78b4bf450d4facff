// Package interfaces defines the types shared by the ledger, DID and
// anoncreds packages of the Kanon registry.
//
// # Ledger
//
// Ledger is the network-qualified view of the fixed registry contract. Every
// method names the network it targets; an unconfigured name fails with
// ErrUnknownNetwork before any RPC is made. Failed contract calls are
// reported as *LedgerError whose Kind is ErrLedgerRead or ErrLedgerWrite.
//
// # Resources
//
// A Resource is a payload owned by a DID and addressed as
//
//	<did>/resources/<resource id>
//
// Schemas and credential definitions are stored as resources. Resources are
// immutable; only DID documents can be updated or deactivated.
//
// # Results
//
// Registry operations never return Go errors. RegistrationResult and
// ResolutionResult carry a stable state or error code plus the classified
// cause in their Err field.
package interfaces

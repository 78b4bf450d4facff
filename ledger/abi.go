package ledger

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// DefaultContractAddress is the registry contract every network is bound to
// unless the configuration overrides it.
var DefaultContractAddress = common.HexToAddress("0xdFd5668c807F831e2891F8C190Fb712B2Db27eA3")

// Registry contract methods.
const (
	MethodRegisterDID                  = "registerDID"
	MethodGetDID                       = "getDID"
	MethodRegisterSchema               = "registerSchema"
	MethodAddApprovedIssuer            = "addApprovedIssuer"
	MethodGetSchema                    = "getSchema"
	MethodRegisterCredentialDefinition = "registerCredentialDefinition"
	MethodGetCredentialDefinition      = "getCredentialDefinition"
	MethodIssueCredential              = "issueCredential"
	MethodRevokeCredential             = "revokeCredential"
	MethodIsCredentialRevoked          = "isCredentialRevoked"
	MethodCreateDID                    = "createDID"
	MethodUpdateDID                    = "updateDID"
	MethodDeactivateDID                = "deactivateDID"
	MethodGetDIDDocument               = "getDIDDocument"
)

// RegistryABIJSON is the wire interface of the registry contract.
const RegistryABIJSON = `[
	{"type":"function","name":"registerDID","stateMutability":"nonpayable","inputs":[{"name":"_did","type":"string","internalType":"string"},{"name":"_context","type":"string","internalType":"string"},{"name":"_metadata","type":"string","internalType":"string"}],"outputs":[]},
	{"type":"function","name":"getDID","stateMutability":"view","inputs":[{"name":"_did","type":"string","internalType":"string"}],"outputs":[{"name":"","type":"string","internalType":"string"},{"name":"","type":"string","internalType":"string"}]},
	{"type":"function","name":"registerSchema","stateMutability":"nonpayable","inputs":[{"name":"_schemaId","type":"string","internalType":"string"},{"name":"_details","type":"string","internalType":"string"}],"outputs":[]},
	{"type":"function","name":"addApprovedIssuer","stateMutability":"nonpayable","inputs":[{"name":"_schemaId","type":"string","internalType":"string"},{"name":"_issuer","type":"address","internalType":"address"}],"outputs":[]},
	{"type":"function","name":"getSchema","stateMutability":"view","inputs":[{"name":"_schemaId","type":"string","internalType":"string"}],"outputs":[{"name":"","type":"string","internalType":"string"},{"name":"","type":"address[]","internalType":"address[]"}]},
	{"type":"function","name":"registerCredentialDefinition","stateMutability":"nonpayable","inputs":[{"name":"_credDefId","type":"string","internalType":"string"},{"name":"_schemaId","type":"string","internalType":"string"},{"name":"_issuer","type":"address","internalType":"address"}],"outputs":[]},
	{"type":"function","name":"getCredentialDefinition","stateMutability":"view","inputs":[{"name":"_credDefId","type":"string","internalType":"string"}],"outputs":[{"name":"","type":"string","internalType":"string"},{"name":"","type":"address","internalType":"address"}]},
	{"type":"function","name":"issueCredential","stateMutability":"nonpayable","inputs":[{"name":"_credId","type":"string","internalType":"string"},{"name":"_credDefId","type":"string","internalType":"string"},{"name":"_issuer","type":"string","internalType":"string"},{"name":"_subject","type":"string","internalType":"string"},{"name":"_issuanceDate","type":"string","internalType":"string"},{"name":"_expiryDate","type":"string","internalType":"string"},{"name":"_metadata","type":"string","internalType":"string"}],"outputs":[]},
	{"type":"function","name":"revokeCredential","stateMutability":"nonpayable","inputs":[{"name":"_credId","type":"string","internalType":"string"}],"outputs":[]},
	{"type":"function","name":"isCredentialRevoked","stateMutability":"view","inputs":[{"name":"_credId","type":"string","internalType":"string"}],"outputs":[{"name":"","type":"bool","internalType":"bool"}]},
	{"type":"function","name":"createDID","stateMutability":"nonpayable","inputs":[{"name":"_did","type":"string","internalType":"string"},{"name":"_didDoc","type":"bytes32","internalType":"bytes32"}],"outputs":[]},
	{"type":"function","name":"updateDID","stateMutability":"nonpayable","inputs":[{"name":"_did","type":"string","internalType":"string"},{"name":"_didDoc","type":"bytes32","internalType":"bytes32"}],"outputs":[]},
	{"type":"function","name":"deactivateDID","stateMutability":"nonpayable","inputs":[{"name":"_did","type":"string","internalType":"string"}],"outputs":[]},
	{"type":"function","name":"getDIDDocument","stateMutability":"view","inputs":[{"name":"_did","type":"string","internalType":"string"}],"outputs":[{"name":"","type":"string","internalType":"string"}]}
]`

// RegistryABI is the parsed form of RegistryABIJSON.
var RegistryABI = mustParseABI(RegistryABIJSON)

func mustParseABI(definition string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic("invalid registry ABI: " + err.Error())
	}
	return parsed
}

// Package main (cmd/registry_client) is a command line client for the Kanon ledger.
//
// The client builds the same registry stack as the server from a configuration
// file and talks to the ledger directly, without going through the HTTP API.
// It is meant for operators bootstrapping issuers and for debugging.
//
// Commands:
//
//	schema register|get|approve-issuer
//	cred-def register|get
//	did create|update|deactivate|get|verify
//	credential issue|revoke|status
//
// Results are printed as JSON. A failed registration or an unresolved
// artifact exits with status 1 after printing the tagged result.
//
// Example:
//
//	registry-client --config=./registry.yaml schema register \
//	    --issuer=did:kanon:mainnet:abc --name=passport --attr=name --attr=birthdate
package main

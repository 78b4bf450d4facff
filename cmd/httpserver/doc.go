// Package main (cmd/httpserver) runs the Kanon registry API server.
//
// The server loads a YAML configuration naming the ledger networks, their RPC
// endpoints and signing key references, builds the connection pool and
// registry, and serves the HTTP API described in package httpserver.
// Networks are dialed on first use, so a misconfigured endpoint only fails the
// requests that need it.
//
// Signing keys may be given inline or as env:, file:, vault:// and awssm://
// references, which are resolved once at startup.
//
// The server implements graceful shutdown on receiving termination signals (SIGINT/SIGTERM)
// and supports health checks, metrics collection, and optional profiling endpoints.
//
// Example usage:
//
//	registry-server --config=./registry.yaml \
//	    --listen-addr=0.0.0.0:8080 \
//	    --metrics-addr=0.0.0.0:8090 \
//	    --log-json
package main

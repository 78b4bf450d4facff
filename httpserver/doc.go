/*
Package httpserver implements the HTTP API of the Kanon registry.

It exposes the anoncreds registry and the DID registrar and resolver to
agents that do not link the Go packages directly. Every registration returns
the registry's tagged result: 200 when the artifact is finished on the ledger
and 422 when it failed, with a sanitized reason. Resolutions return 200 or 404
with the resolution metadata. Operations the ledger does not support answer 501.

# API Endpoints

  - POST /api/v1/schemas - Register a schema
  - GET /api/v1/schemas/{schemaId} - Resolve a schema
  - POST /api/v1/credential-definitions - Register a credential definition
  - GET /api/v1/credential-definitions/{credDefId} - Resolve a credential definition
  - POST /api/v1/revocation-registry-definitions - Not implemented
  - GET /api/v1/revocation-registry-definitions/{id} - Not implemented
  - POST /api/v1/revocation-status-lists - Not implemented
  - GET /api/v1/revocation-status-lists/{revRegDefId}?timestamp= - Not implemented
  - POST /api/v1/dids - Create a DID from its document
  - GET /api/v1/dids/{did} - Resolve a DID document
  - PUT /api/v1/dids/{did} - Anchor an updated DID document
  - DELETE /api/v1/dids/{did} - Deactivate a DID
  - GET /livez - Liveness check
  - GET /readyz - Readiness check
  - GET /drain - Gracefully mark server as not ready
  - GET /undrain - Mark server as ready

Schema and credential definition identifiers are resource addresses of the
form <did>/resources/<id> and are passed unescaped as the rest of the path.

DID writes answer with the transaction hash and block of the confirmed
transaction. Their failures map to 400 for malformed input, 404 for unknown
DIDs and networks, 409 for existing DIDs, 502 for ledger failures and 504
when the ledger did not answer in time.

# Example Usage

	metricsSrv, err := metrics.New(common.MetricsNamespace, ":9090")
	if err != nil {
		return err
	}

	handler := httpserver.NewHandler(registry, registrar, resolver, metricsSrv, logger)
	server, err := httpserver.New(&httpserver.HTTPServerConfig{
		ListenAddr:               ":8080",
		MetricsAddr:              ":9090",
		Metrics:                  metricsSrv,
		Log:                      logger,
		DrainDuration:            30 * time.Second,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             5 * time.Minute,
	}, handler)
	if err != nil {
		return err
	}

	server.RunInBackground()
	defer server.Shutdown()
*/
package httpserver

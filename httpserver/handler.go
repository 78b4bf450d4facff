package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/go-chi/chi/v5"

	"github.com/ajna-inc/kanon-registry/anoncreds"
	"github.com/ajna-inc/kanon-registry/dids"
	"github.com/ajna-inc/kanon-registry/interfaces"
)

const (
	// maxBodySize is the maximum allowed request body size (1MB).
	maxBodySize = 1024 * 1024

	artifactSchema               = "schema"
	artifactCredentialDefinition = "credentialDefinition"
	artifactRevocationRegistry   = "revocationRegistryDefinition"
	artifactRevocationStatusList = "revocationStatusList"
	artifactDID                  = "did"
)

// Observer records the outcome of registry requests.
type Observer interface {
	ObserveRegistration(artifact string, state interfaces.RegistrationState)
	ObserveResolution(artifact, code string)
}

type nopObserver struct{}

func (nopObserver) ObserveRegistration(string, interfaces.RegistrationState) {}
func (nopObserver) ObserveResolution(string, string) {}

// RequestError provides structured error information for HTTP responses.
type RequestError struct {
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	return e.Err.Error()
}

// DIDOperationResponse is returned by DID writes.
type DIDOperationResponse struct {
	DID             string `json:"did"`
	TransactionHash string `json:"transactionHash"`
	BlockNumber     uint64 `json:"blockNumber"`
}

// ErrorResponse is the body of every failed DID request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Handler serves the anoncreds and DID API over the registry components.
type Handler struct {
	registry  *anoncreds.Registry
	registrar *dids.Registrar
	resolver  *dids.Resolver
	observer  Observer
	log       *slog.Logger
}

// NewHandler creates a Handler. observer may be nil.
func NewHandler(registry *anoncreds.Registry, registrar *dids.Registrar, resolver *dids.Resolver, observer Observer, log *slog.Logger) *Handler {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Handler{
		registry:  registry,
		registrar: registrar,
		resolver:  resolver,
		observer:  observer,
		log:       log,
	}
}

// HandleRegisterSchema processes POST /api/v1/schemas with a Schema body.
func (h *Handler) HandleRegisterSchema(w http.ResponseWriter, r *http.Request) {
	var schema interfaces.Schema
	if err := decodeBody(w, r, &schema); err != nil {
		h.writeRequestError(w, err)
		return
	}

	result := h.registry.RegisterSchema(r.Context(), schema)
	h.observer.ObserveRegistration(artifactSchema, result.State)
	writeJSON(w, registrationStatus(result.State, result.Err), result)
}

// HandleGetSchema processes GET /api/v1/schemas/{schemaId}. The schema id
// contains slashes and is taken from the rest of the path.
func (h *Handler) HandleGetSchema(w http.ResponseWriter, r *http.Request) {
	id, err := wildcardParam(r)
	if err != nil {
		h.writeRequestError(w, err)
		return
	}

	result := h.registry.GetSchema(r.Context(), id)
	h.observer.ObserveResolution(artifactSchema, result.ResolutionMetadata.Error)
	writeJSON(w, resolutionStatus(result.ResolutionMetadata.Error), result)
}

// HandleRegisterCredentialDefinition processes POST /api/v1/credential-definitions.
func (h *Handler) HandleRegisterCredentialDefinition(w http.ResponseWriter, r *http.Request) {
	var credDef interfaces.CredentialDefinition
	if err := decodeBody(w, r, &credDef); err != nil {
		h.writeRequestError(w, err)
		return
	}

	result := h.registry.RegisterCredentialDefinition(r.Context(), credDef)
	h.observer.ObserveRegistration(artifactCredentialDefinition, result.State)
	writeJSON(w, registrationStatus(result.State, result.Err), result)
}

// HandleGetCredentialDefinition processes GET /api/v1/credential-definitions/{credDefId}.
func (h *Handler) HandleGetCredentialDefinition(w http.ResponseWriter, r *http.Request) {
	id, err := wildcardParam(r)
	if err != nil {
		h.writeRequestError(w, err)
		return
	}

	result := h.registry.GetCredentialDefinition(r.Context(), id)
	h.observer.ObserveResolution(artifactCredentialDefinition, result.ResolutionMetadata.Error)
	writeJSON(w, resolutionStatus(result.ResolutionMetadata.Error), result)
}

func (h *Handler) HandleRegisterRevocationRegistryDefinition(w http.ResponseWriter, r *http.Request) {
	var def interfaces.RevocationRegistryDefinition
	if err := decodeBody(w, r, &def); err != nil {
		h.writeRequestError(w, err)
		return
	}

	result := h.registry.RegisterRevocationRegistryDefinition(r.Context(), def)
	h.observer.ObserveRegistration(artifactRevocationRegistry, result.State)
	writeJSON(w, registrationStatus(result.State, result.Err), result)
}

func (h *Handler) HandleGetRevocationRegistryDefinition(w http.ResponseWriter, r *http.Request) {
	id, err := wildcardParam(r)
	if err != nil {
		h.writeRequestError(w, err)
		return
	}

	result := h.registry.GetRevocationRegistryDefinition(r.Context(), id)
	h.observer.ObserveResolution(artifactRevocationRegistry, result.ResolutionMetadata.Error)
	writeJSON(w, resolutionStatus(result.ResolutionMetadata.Error), result)
}

func (h *Handler) HandleRegisterRevocationStatusList(w http.ResponseWriter, r *http.Request) {
	var list interfaces.RevocationStatusList
	if err := decodeBody(w, r, &list); err != nil {
		h.writeRequestError(w, err)
		return
	}

	result := h.registry.RegisterRevocationStatusList(r.Context(), list)
	h.observer.ObserveRegistration(artifactRevocationStatusList, result.State)
	writeJSON(w, registrationStatus(result.State, result.Err), result)
}

// HandleGetRevocationStatusList processes GET /api/v1/revocation-status-lists/{revRegDefId}?timestamp=.
func (h *Handler) HandleGetRevocationStatusList(w http.ResponseWriter, r *http.Request) {
	id, err := wildcardParam(r)
	if err != nil {
		h.writeRequestError(w, err)
		return
	}

	var timestamp int64
	if raw := r.URL.Query().Get("timestamp"); raw != "" {
		timestamp, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.writeRequestError(w, &RequestError{StatusCode: http.StatusBadRequest, Err: fmt.Errorf("invalid timestamp %q", raw)})
			return
		}
	}

	result := h.registry.GetRevocationStatusList(r.Context(), id, timestamp)
	h.observer.ObserveResolution(artifactRevocationStatusList, result.ResolutionMetadata.Error)
	writeJSON(w, resolutionStatus(result.ResolutionMetadata.Error), result)
}

// HandleCreateDID processes POST /api/v1/dids with a DID document body.
func (h *Handler) HandleCreateDID(w http.ResponseWriter, r *http.Request) {
	var doc interfaces.DidDocument
	if err := decodeBody(w, r, &doc); err != nil {
		h.writeRequestError(w, err)
		return
	}

	receipt, err := h.registrar.Create(r.Context(), doc)
	h.writeDIDOperation(w, doc.ID, receipt, err)
}

// HandleGetDID processes GET /api/v1/dids/{did}.
func (h *Handler) HandleGetDID(w http.ResponseWriter, r *http.Request) {
	did, err := didParam(r)
	if err != nil {
		h.writeRequestError(w, err)
		return
	}

	resolution, err := h.resolver.GetDIDDocument(r.Context(), did)
	if err != nil {
		h.observer.ObserveResolution(artifactDID, interfaces.ResolutionNotFound)
		status := didErrorStatus(err)
		if status >= http.StatusInternalServerError {
			h.log.Error("Failed to resolve DID", "did", did, "err", err)
		}
		writeJSON(w, status, ErrorResponse{Error: anoncreds.FailureReason(err)})
		return
	}

	h.observer.ObserveResolution(artifactDID, "")
	writeJSON(w, http.StatusOK, resolution)
}

// HandleUpdateDID processes PUT /api/v1/dids/{did}. The document id defaults
// to the DID in the path and must match it when set.
func (h *Handler) HandleUpdateDID(w http.ResponseWriter, r *http.Request) {
	did, err := didParam(r)
	if err != nil {
		h.writeRequestError(w, err)
		return
	}

	var doc interfaces.DidDocument
	if err := decodeBody(w, r, &doc); err != nil {
		h.writeRequestError(w, err)
		return
	}
	if doc.ID == "" {
		doc.ID = did
	}
	if doc.ID != did {
		h.writeRequestError(w, &RequestError{
			StatusCode: http.StatusBadRequest,
			Err:        fmt.Errorf("document id %q does not match %q", doc.ID, did),
		})
		return
	}

	receipt, err := h.registrar.Update(r.Context(), doc)
	h.writeDIDOperation(w, did, receipt, err)
}

// HandleDeactivateDID processes DELETE /api/v1/dids/{did}.
func (h *Handler) HandleDeactivateDID(w http.ResponseWriter, r *http.Request) {
	did, err := didParam(r)
	if err != nil {
		h.writeRequestError(w, err)
		return
	}

	receipt, err := h.registrar.Deactivate(r.Context(), did)
	h.writeDIDOperation(w, did, receipt, err)
}

func (h *Handler) writeDIDOperation(w http.ResponseWriter, did string, receipt *types.Receipt, err error) {
	if err != nil {
		h.observer.ObserveRegistration(artifactDID, interfaces.StateFailed)
		status := didErrorStatus(err)
		if status >= http.StatusInternalServerError {
			h.log.Error("DID operation failed", "did", did, "err", err)
		}
		writeJSON(w, status, ErrorResponse{Error: anoncreds.FailureReason(err)})
		return
	}

	h.observer.ObserveRegistration(artifactDID, interfaces.StateFinished)
	writeJSON(w, http.StatusOK, DIDOperationResponse{
		DID:             did,
		TransactionHash: receipt.TxHash.Hex(),
		BlockNumber:     receipt.BlockNumber.Uint64(),
	})
}

func (h *Handler) writeRequestError(w http.ResponseWriter, err error) {
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		reqErr = &RequestError{StatusCode: http.StatusInternalServerError, Err: err}
	}
	h.log.Debug("Rejected request", "status", reqErr.StatusCode, "err", reqErr.Err)
	http.Error(w, reqErr.Error(), reqErr.StatusCode)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return &RequestError{StatusCode: http.StatusRequestEntityTooLarge, Err: errors.New("request body too large")}
		}
		return &RequestError{StatusCode: http.StatusBadRequest, Err: fmt.Errorf("invalid request body: %w", err)}
	}
	return nil
}

func wildcardParam(r *http.Request) (string, error) {
	id, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil || id == "" {
		return "", &RequestError{StatusCode: http.StatusBadRequest, Err: errors.New("missing identifier in URL")}
	}
	return id, nil
}

func didParam(r *http.Request) (string, error) {
	did, err := url.PathUnescape(chi.URLParam(r, "did"))
	if err != nil || did == "" {
		return "", &RequestError{StatusCode: http.StatusBadRequest, Err: errors.New("missing DID in URL")}
	}
	return did, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func registrationStatus(state interfaces.RegistrationState, err error) int {
	switch {
	case state == interfaces.StateFinished:
		return http.StatusOK
	case errors.Is(err, interfaces.ErrNotImplemented):
		return http.StatusNotImplemented
	default:
		return http.StatusUnprocessableEntity
	}
}

func resolutionStatus(code string) int {
	switch code {
	case "":
		return http.StatusOK
	case interfaces.ResolutionNotImplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusNotFound
	}
}

func didErrorStatus(err error) int {
	switch {
	case errors.Is(err, interfaces.ErrInvalidIdentifier), errors.Is(err, interfaces.ErrInvalidOperation):
		return http.StatusBadRequest
	case errors.Is(err, interfaces.ErrNotFound), errors.Is(err, interfaces.ErrUnknownNetwork):
		return http.StatusNotFound
	case errors.Is(err, interfaces.ErrResourceExists):
		return http.StatusConflict
	case errors.Is(err, interfaces.ErrNetworkUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, interfaces.ErrLedgerWrite), errors.Is(err, interfaces.ErrLedgerRead):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

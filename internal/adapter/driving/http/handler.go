// Package httphandler is the HTTP driving adapter that serves the REST API.
package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/cloudmesh/cloudmesh/internal/application"
	"github.com/cloudmesh/cloudmesh/internal/crypto"
	"github.com/cloudmesh/cloudmesh/internal/domain/model"
	"github.com/cloudmesh/cloudmesh/internal/domain/port/driven"
)

// userIDHeader carries the authenticated user's id, injected by the
// gateway in front of this service. Requests without it are rejected.
const userIDHeader = "X-User-ID"

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	credentials *application.CredentialService
	users       driven.UserStore
	logger      *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	credentials *application.CredentialService,
	users driven.UserStore,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		credentials: credentials,
		users:       users,
		logger:      logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/users", h.CreateUser)
	mux.HandleFunc("POST /api/v1/credentials", h.CreateCredential)
	mux.HandleFunc("GET /api/v1/credentials", h.ListCredentials)
	mux.HandleFunc("GET /api/v1/credentials/{id}", h.GetCredential)
	mux.HandleFunc("POST /api/v1/credentials/{id}/validate", h.ValidateCredential)
	mux.HandleFunc("DELETE /api/v1/credentials/{id}", h.DeleteCredential)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// CreateUser registers a new user.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	user := model.User{
		ID:        uuid.New(),
		Email:     req.Email,
		Name:      req.Name,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.users.Create(r.Context(), user); err != nil {
		h.logger.Error("failed to create user", "error", err)
		writeError(w, http.StatusConflict, "could not create user")
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// CreateCredential registers a new cloud credential for the caller.
func (h *Handler) CreateCredential(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	var req CreateCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	provider, err := model.ParseProvider(req.Provider)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	dto, err := h.credentials.CreateCredential(r.Context(), application.CreateCredentialInput{
		OwnerID:      ownerID,
		Provider:     provider,
		FriendlyName: req.FriendlyName,
		Config:       req.Config,
		ValidateNow:  req.ValidateNow,
	})
	if err != nil {
		h.writeServiceError(w, err, "failed to create credential")
		return
	}

	writeJSON(w, http.StatusCreated, toCredentialResponse(*dto))
}

// ListCredentials returns the caller's credentials, optionally filtered
// by the provider query parameter.
func (h *Handler) ListCredentials(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	var (
		dtos []application.CredentialDTO
		err  error
	)
	if providerParam := r.URL.Query().Get("provider"); providerParam != "" {
		provider, perr := model.ParseProvider(providerParam)
		if perr != nil {
			writeError(w, http.StatusBadRequest, perr.Error())
			return
		}
		dtos, err = h.credentials.ListCredentialsByProvider(r.Context(), ownerID, provider)
	} else {
		dtos, err = h.credentials.ListCredentials(r.Context(), ownerID)
	}
	if err != nil {
		h.writeServiceError(w, err, "failed to list credentials")
		return
	}

	resp := make([]CredentialResponse, 0, len(dtos))
	for _, dto := range dtos {
		resp = append(resp, toCredentialResponse(dto))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetCredential returns one of the caller's credentials.
func (h *Handler) GetCredential(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	dto, err := h.credentials.GetCredential(r.Context(), id, ownerID)
	if err != nil {
		h.writeServiceError(w, err, "failed to get credential")
		return
	}
	writeJSON(w, http.StatusOK, toCredentialResponse(*dto))
}

// ValidateCredential runs a live validation probe for the credential
// and returns the outcome alongside the updated credential state.
func (h *Handler) ValidateCredential(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	result, err := h.credentials.ValidateCredential(r.Context(), id, ownerID)
	if err != nil {
		h.writeServiceError(w, err, "failed to validate credential")
		return
	}

	dto, err := h.credentials.GetCredential(r.Context(), id, ownerID)
	if err != nil {
		h.writeServiceError(w, err, "failed to reload credential")
		return
	}

	writeJSON(w, http.StatusOK, ValidationResponse{
		Valid:      result.Valid,
		Message:    result.Message,
		Details:    result.Details,
		Credential: toCredentialResponse(*dto),
	})
}

// DeleteCredential wipes and removes one of the caller's credentials.
func (h *Handler) DeleteCredential(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.credentials.DeleteCredential(r.Context(), id, ownerID); err != nil {
		h.writeServiceError(w, err, "failed to delete credential")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Health reports service liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// callerID extracts the authenticated user id from the request headers.
func (h *Handler) callerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.Header.Get(userIDHeader)
	if raw == "" {
		writeError(w, http.StatusUnauthorized, "missing "+userIDHeader+" header")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid "+userIDHeader+" header")
		return uuid.Nil, false
	}
	return id, true
}

// pathID parses the {id} path segment.
func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid credential id")
		return uuid.Nil, false
	}
	return id, true
}

// writeServiceError maps application errors onto HTTP status codes.
// Not-found and not-owned are indistinguishable to the caller.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, logMsg string) {
	var formatErr *application.FormatError
	switch {
	case errors.As(err, &formatErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   formatErr.Message,
			Details: formatErr.Details,
		})
	case errors.Is(err, driven.ErrCredentialNotFound):
		writeError(w, http.StatusNotFound, "credential not found")
	case errors.Is(err, driven.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user not found")
	default:
		var encErr *crypto.EncryptionError
		if errors.As(err, &encErr) {
			h.logger.Error(logMsg, "error", encErr.Op)
		} else {
			h.logger.Error(logMsg, "error", err)
		}
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

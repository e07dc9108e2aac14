package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/cloudmesh/cloudmesh/internal/application"
	"github.com/cloudmesh/cloudmesh/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// CreateUserRequest is the JSON body for the create user endpoint.
type CreateUserRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// UserResponse is the JSON representation of a user.
type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

// CreateCredentialRequest is the JSON body for the create credential
// endpoint. Config carries provider-specific fields in clear; they are
// encrypted before storage and never echoed back.
type CreateCredentialRequest struct {
	Provider     string            `json:"provider"`
	FriendlyName string            `json:"friendly_name"`
	Config       map[string]string `json:"config"`
	ValidateNow  bool              `json:"validate_now"`
}

// CredentialResponse is the JSON representation of a credential. It
// never includes config values.
type CredentialResponse struct {
	ID              string `json:"id"`
	Provider        string `json:"provider"`
	FriendlyName    string `json:"friendly_name"`
	Status          string `json:"status"`
	Region          string `json:"region,omitempty"`
	LastValidatedAt string `json:"last_validated_at,omitempty"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

// ValidationResponse is the JSON representation of a validation outcome.
type ValidationResponse struct {
	Valid      bool               `json:"valid"`
	Message    string             `json:"message"`
	Details    string             `json:"details,omitempty"`
	Credential CredentialResponse `json:"credential"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// toUserResponse converts a domain User to its JSON representation.
func toUserResponse(user model.User) UserResponse {
	return UserResponse{
		ID:        user.ID.String(),
		Email:     user.Email,
		Name:      user.Name,
		CreatedAt: user.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// toCredentialResponse converts a credential DTO to its JSON representation.
func toCredentialResponse(dto application.CredentialDTO) CredentialResponse {
	resp := CredentialResponse{
		ID:           dto.ID.String(),
		Provider:     string(dto.Provider),
		FriendlyName: dto.FriendlyName,
		Status:       string(dto.Status),
		Region:       dto.Region,
		CreatedAt:    dto.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    dto.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if dto.LastValidatedAt != nil {
		resp.LastValidatedAt = dto.LastValidatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

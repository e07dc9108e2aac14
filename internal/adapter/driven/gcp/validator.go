// Package gcp validates GCP service account credentials by parsing the
// service account key offline and listing buckets in the project for
// the live probe.
package gcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storagev1 "google.golang.org/api/storage/v1"

	"github.com/cloudmesh/cloudmesh/internal/domain/model"
	"github.com/cloudmesh/cloudmesh/internal/domain/port/driven"
)

var _ driven.Validator = (*Validator)(nil)

// Project ids are 6 to 30 characters, lowercase letters, digits and
// hyphens, starting with a letter and not ending with a hyphen.
var projectIDPattern = regexp.MustCompile(`^[a-z][a-z0-9-]{4,28}[a-z0-9]$`)

// Validator checks GCP service account credentials.
type Validator struct {
	logger *slog.Logger
}

// NewValidator creates a GCP validator.
func NewValidator(logger *slog.Logger) *Validator {
	return &Validator{logger: logger.With(slog.String("validator", "gcp"))}
}

// Provider implements driven.Validator.
func (v *Validator) Provider() model.CloudProvider {
	return model.ProviderGCP
}

// ValidateFormat checks the project id and parses the service account
// key JSON. Parsing happens locally; no network calls.
func (v *Validator) ValidateFormat(config map[string]string) model.ValidationResult {
	projectID := config["projectId"]
	if projectID == "" {
		return model.FailureResult("Missing required field", "projectId is required")
	}
	if !projectIDPattern.MatchString(projectID) {
		return model.FailureResult("Invalid project id format",
			fmt.Sprintf("%q is not a valid GCP project id", projectID))
	}

	keyJSON := config["serviceAccountJson"]
	if keyJSON == "" {
		return model.FailureResult("Missing required field", "serviceAccountJson is required")
	}
	if !strings.HasPrefix(strings.TrimSpace(keyJSON), "{") {
		return model.FailureResult("Invalid service account key",
			"serviceAccountJson must be the JSON key file content, not a path or id")
	}

	jwtConfig, err := google.JWTConfigFromJSON([]byte(keyJSON))
	if err != nil {
		return model.FailureResult("Invalid service account key", err.Error())
	}
	if jwtConfig.Email == "" {
		return model.FailureResult("Invalid service account key",
			"the key file has no client_email")
	}

	return model.SuccessResult("Format valid", "")
}

// Validate authenticates with the service account key and lists one
// bucket in the project.
func (v *Validator) Validate(ctx context.Context, config map[string]string) model.ValidationResult {
	if res := v.ValidateFormat(config); !res.Valid {
		return res
	}

	projectID := config["projectId"]

	svc, err := storagev1.NewService(ctx,
		option.WithCredentialsJSON([]byte(config["serviceAccountJson"])),
		option.WithScopes(storagev1.DevstorageReadOnlyScope),
	)
	if err != nil {
		return model.FailureResult("GCP client setup failed", err.Error())
	}

	if _, err := svc.Buckets.List(projectID).MaxResults(1).Context(ctx).Do(); err != nil {
		v.logger.Debug("bucket probe failed", slog.String("project_id", projectID), slog.Any("error", err))
		return classifyError(err, projectID)
	}

	return model.SuccessResult("GCP credentials validated",
		fmt.Sprintf("service account authenticated for project %s", projectID))
}

// classifyError maps a storage probe failure onto a result the owner
// can act on.
func classifyError(err error, projectID string) model.ValidationResult {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 401:
			return model.FailureResult("Authentication failed",
				"the service account key was rejected; it may be revoked or deleted")
		case 403:
			return model.FailureResult("Insufficient permissions",
				"the service account authenticated but lacks storage access on the project")
		case 404:
			return model.FailureResult("Project not found",
				fmt.Sprintf("project %s does not exist or is not visible to this service account", projectID))
		}
		return model.FailureResult("GCP validation failed", apiErr.Message)
	}

	msg := err.Error()
	if strings.Contains(msg, "invalid_grant") {
		return model.FailureResult("Authentication failed",
			"token exchange was refused; the key may be revoked or the clock skewed")
	}
	return model.FailureResult("GCP validation failed", msg)
}

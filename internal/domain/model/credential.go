package model

import (
	"time"

	"github.com/google/uuid"
)

// CloudCredential holds one user's connection secrets for a cloud provider.
// Config maps field names to values; values listed in SensitiveFields for
// the credential's provider are stored encrypted, everything else in clear.
type CloudCredential struct {
	ID              uuid.UUID
	OwnerID         uuid.UUID
	Provider        CloudProvider
	FriendlyName    string
	Status          CredentialStatus
	Config          map[string]string
	LastValidatedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// sensitiveFields is the fixed per-provider set of config keys that must be
// encrypted at rest. AWS externalId is encrypted even though it is arguably
// not secret; the roleArn is public information.
var sensitiveFields = map[CloudProvider][]string{
	ProviderAWS:          {"externalId"},
	ProviderAzure:        {"clientSecret"},
	ProviderGCP:          {"serviceAccountJson"},
	ProviderDigitalOcean: {"apiToken"},
}

// SensitiveFields returns the config keys that must be encrypted at rest for
// the given provider.
func SensitiveFields(p CloudProvider) []string {
	return sensitiveFields[p]
}

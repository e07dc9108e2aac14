package model

import (
	"fmt"
	"strings"
)

// CloudProvider identifies a supported cloud platform.
type CloudProvider string

const (
	ProviderAWS          CloudProvider = "AWS"
	ProviderAzure        CloudProvider = "AZURE"
	ProviderGCP          CloudProvider = "GCP"
	ProviderDigitalOcean CloudProvider = "DIGITALOCEAN"
)

// AllProviders lists every supported provider. The composition root uses it
// to verify that each provider has a registered validator at startup.
var AllProviders = []CloudProvider{
	ProviderAWS,
	ProviderAzure,
	ProviderGCP,
	ProviderDigitalOcean,
}

// ParseProvider converts a case-insensitive provider name into a
// CloudProvider, or returns an error for unknown names.
func ParseProvider(s string) (CloudProvider, error) {
	switch CloudProvider(strings.ToUpper(strings.TrimSpace(s))) {
	case ProviderAWS:
		return ProviderAWS, nil
	case ProviderAzure:
		return ProviderAzure, nil
	case ProviderGCP:
		return ProviderGCP, nil
	case ProviderDigitalOcean:
		return ProviderDigitalOcean, nil
	default:
		return "", fmt.Errorf("unknown cloud provider %q", s)
	}
}

// CredentialStatus represents the lifecycle state of a cloud credential.
type CredentialStatus string

const (
	// StatusPending is the initial state after creation, before the first
	// live validation has run.
	StatusPending CredentialStatus = "PENDING"
	// StatusActive means the most recent validation succeeded.
	StatusActive CredentialStatus = "ACTIVE"
	// StatusInvalid means the most recent validation failed or the
	// credential was explicitly marked invalid.
	StatusInvalid CredentialStatus = "INVALID"
	// StatusExpired is reserved for time-based expiry. Nothing currently
	// transitions into it; the member exists for API compatibility.
	StatusExpired CredentialStatus = "EXPIRED"
)

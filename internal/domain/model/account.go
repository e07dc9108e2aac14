package model

import "github.com/google/uuid"

// ConnectedAWSAccount is the value object the AWS SDK wrappers consume.
// The role is assumed with the external ID from the cloudmesh platform
// identity; the region defaults to us-east-1 when the credential omits it.
type ConnectedAWSAccount struct {
	CredentialID uuid.UUID
	RoleArn      string
	ExternalID   string
	Region       string
}

// ConnectedAzureAccount carries the service-principal identity and
// subscription scope for the Azure SDK wrappers.
type ConnectedAzureAccount struct {
	SubscriptionID string
	TenantID       string
	ClientID       string
	ClientSecret   string
	Region         string
	FriendlyName   string
}

// ConnectedGCPAccount carries the project scope and service-account key for
// the GCP SDK wrappers. Zone defaults to "<region>-a".
type ConnectedGCPAccount struct {
	ProjectID          string
	Region             string
	Zone               string
	ServiceAccountJSON string
}

// ConnectedDigitalOceanAccount carries the bearer token for the
// DigitalOcean API client.
type ConnectedDigitalOceanAccount struct {
	CredentialID uuid.UUID
	APIToken     string
}

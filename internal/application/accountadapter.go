package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/cloudmesh/cloudmesh/internal/domain/model"
)

// CredentialAdapter converts stored credentials into the typed account
// structs provider integrations consume. Config is decrypted on the
// way out, so the resulting structs carry live secrets and must never
// be serialized or logged.
type CredentialAdapter struct {
	service *CredentialService
}

// NewCredentialAdapter creates a CredentialAdapter.
func NewCredentialAdapter(service *CredentialService) *CredentialAdapter {
	return &CredentialAdapter{service: service}
}

// ValidateCredentialProvider checks that the credential exists, belongs
// to the owner and is for the expected provider.
func (a *CredentialAdapter) ValidateCredentialProvider(ctx context.Context, id, ownerID uuid.UUID, want model.CloudProvider) error {
	cred, err := a.service.creds.GetByIDAndOwner(ctx, id, ownerID)
	if err != nil {
		return err
	}
	if cred.Provider != want {
		return fmt.Errorf("credential %s is for %s, not %s", id, cred.Provider, want)
	}
	return nil
}

// ToAWSAccount builds a ConnectedAWSAccount from the credential.
// Region defaults to us-east-1 when unset.
func (a *CredentialAdapter) ToAWSAccount(ctx context.Context, id, ownerID uuid.UUID) (*model.ConnectedAWSAccount, error) {
	if err := a.ValidateCredentialProvider(ctx, id, ownerID, model.ProviderAWS); err != nil {
		return nil, err
	}
	config, err := a.service.GetDecryptedConfig(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	roleArn, err := requireField(config, "roleArn")
	if err != nil {
		return nil, err
	}
	externalID, err := requireField(config, "externalId")
	if err != nil {
		return nil, err
	}

	region := config["region"]
	if region == "" {
		region = "us-east-1"
	}

	return &model.ConnectedAWSAccount{
		CredentialID: id,
		RoleArn:      roleArn,
		ExternalID:   externalID,
		Region:       region,
	}, nil
}

// ToAzureAccount builds a ConnectedAzureAccount from the credential.
// Region defaults to eastus.
func (a *CredentialAdapter) ToAzureAccount(ctx context.Context, id, ownerID uuid.UUID) (*model.ConnectedAzureAccount, error) {
	if err := a.ValidateCredentialProvider(ctx, id, ownerID, model.ProviderAzure); err != nil {
		return nil, err
	}
	cred, err := a.service.creds.GetByIDAndOwner(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	config, err := a.service.GetDecryptedConfig(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	subscriptionID, err := requireField(config, "subscriptionId")
	if err != nil {
		return nil, err
	}
	tenantID, err := requireField(config, "tenantId")
	if err != nil {
		return nil, err
	}
	clientID, err := requireField(config, "clientId")
	if err != nil {
		return nil, err
	}
	clientSecret, err := requireField(config, "clientSecret")
	if err != nil {
		return nil, err
	}

	region := config["region"]
	if region == "" {
		region = "eastus"
	}
	friendlyName := cred.FriendlyName
	if friendlyName == "" {
		friendlyName = "Azure Account"
	}

	return &model.ConnectedAzureAccount{
		SubscriptionID: subscriptionID,
		TenantID:       tenantID,
		ClientID:       clientID,
		ClientSecret:   clientSecret,
		Region:         region,
		FriendlyName:   friendlyName,
	}, nil
}

// ToGCPAccount builds a ConnectedGCPAccount from the credential.
// Region defaults to us-central1 and the zone to the region's "-a"
// zone.
func (a *CredentialAdapter) ToGCPAccount(ctx context.Context, id, ownerID uuid.UUID) (*model.ConnectedGCPAccount, error) {
	if err := a.ValidateCredentialProvider(ctx, id, ownerID, model.ProviderGCP); err != nil {
		return nil, err
	}
	config, err := a.service.GetDecryptedConfig(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	projectID, err := requireField(config, "projectId")
	if err != nil {
		return nil, err
	}
	keyJSON, err := requireField(config, "serviceAccountJson")
	if err != nil {
		return nil, err
	}

	region := config["region"]
	if region == "" {
		region = "us-central1"
	}
	zone := config["zone"]
	if zone == "" {
		zone = region + "-a"
	}

	return &model.ConnectedGCPAccount{
		ProjectID:          projectID,
		Region:             region,
		Zone:               zone,
		ServiceAccountJSON: keyJSON,
	}, nil
}

// ToDigitalOceanAccount builds a ConnectedDigitalOceanAccount from the
// credential.
func (a *CredentialAdapter) ToDigitalOceanAccount(ctx context.Context, id, ownerID uuid.UUID) (*model.ConnectedDigitalOceanAccount, error) {
	if err := a.ValidateCredentialProvider(ctx, id, ownerID, model.ProviderDigitalOcean); err != nil {
		return nil, err
	}
	config, err := a.service.GetDecryptedConfig(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	apiToken, err := requireField(config, "apiToken")
	if err != nil {
		return nil, err
	}

	return &model.ConnectedDigitalOceanAccount{
		CredentialID: id,
		APIToken:     apiToken,
	}, nil
}

func requireField(config map[string]string, field string) (string, error) {
	value := config[field]
	if value == "" {
		return "", fmt.Errorf("credential config is missing %s", field)
	}
	return value, nil
}

// Package azure validates Azure service principal credentials by
// acquiring a token for the principal and listing resource groups in
// the target subscription.
package azure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"github.com/google/uuid"

	"github.com/cloudmesh/cloudmesh/internal/domain/model"
	"github.com/cloudmesh/cloudmesh/internal/domain/port/driven"
)

var _ driven.Validator = (*Validator)(nil)

// Validator checks Azure service principal credentials. The principal
// needs at least Reader on the subscription for the live probe to pass.
type Validator struct {
	logger *slog.Logger
}

// NewValidator creates an Azure validator.
func NewValidator(logger *slog.Logger) *Validator {
	return &Validator{logger: logger.With(slog.String("validator", "azure"))}
}

// Provider implements driven.Validator.
func (v *Validator) Provider() model.CloudProvider {
	return model.ProviderAzure
}

// ValidateFormat checks that the three identifiers are well-formed
// UUIDs and the client secret is present. No network calls.
func (v *Validator) ValidateFormat(config map[string]string) model.ValidationResult {
	for _, field := range []string{"tenantId", "subscriptionId", "clientId"} {
		value := config[field]
		if value == "" {
			return model.FailureResult("Missing required field", field+" is required")
		}
		if _, err := uuid.Parse(value); err != nil {
			return model.FailureResult("Invalid identifier format",
				fmt.Sprintf("%s must be a UUID", field))
		}
	}

	if strings.TrimSpace(config["clientSecret"]) == "" {
		return model.FailureResult("Missing required field", "clientSecret is required")
	}

	return model.SuccessResult("Format valid", "")
}

// Validate authenticates the service principal against Entra ID and
// lists one resource group in the subscription.
func (v *Validator) Validate(ctx context.Context, config map[string]string) model.ValidationResult {
	if res := v.ValidateFormat(config); !res.Valid {
		return res
	}

	tenantID := config["tenantId"]
	subscriptionID := config["subscriptionId"]

	cred, err := azidentity.NewClientSecretCredential(tenantID, config["clientId"], config["clientSecret"], nil)
	if err != nil {
		return model.FailureResult("Invalid service principal configuration", err.Error())
	}

	client, err := armresources.NewResourceGroupsClient(subscriptionID, cred, nil)
	if err != nil {
		return model.FailureResult("Azure client setup failed", err.Error())
	}

	pager := client.NewListPager(&armresources.ResourceGroupsClientListOptions{
		Top: to.Ptr[int32](1),
	})
	if _, err := pager.NextPage(ctx); err != nil {
		v.logger.Debug("resource group probe failed",
			slog.String("subscription_id", subscriptionID), slog.Any("error", err))
		return classifyError(err)
	}

	return model.SuccessResult("Azure credentials validated",
		fmt.Sprintf("service principal authenticated for subscription %s", subscriptionID))
}

// classifyError maps an authentication or ARM failure onto a result the
// owner can act on. HTTP status is checked before AADSTS string codes
// since a ResponseError carries both.
func classifyError(err error) model.ValidationResult {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case 403:
			return model.FailureResult("Insufficient permissions",
				"the service principal authenticated but lacks Reader on the subscription")
		case 404:
			return model.FailureResult("Subscription not found",
				"the subscription does not exist or is not visible to this principal")
		}
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "AADSTS7000215"):
		return model.FailureResult("Invalid client secret",
			"the client secret is wrong or has expired")
	case strings.Contains(msg, "AADSTS700016"):
		return model.FailureResult("Application not found",
			"no application with this clientId exists in the tenant")
	case strings.Contains(msg, "AADSTS50034"):
		return model.FailureResult("Tenant not found",
			"the tenantId does not match any Entra ID tenant")
	}

	return model.FailureResult("Azure validation failed", msg)
}

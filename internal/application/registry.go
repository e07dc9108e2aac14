package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudmesh/cloudmesh/internal/domain/model"
	"github.com/cloudmesh/cloudmesh/internal/domain/port/driven"
)

// ValidatorRegistry dispatches validation requests to the validator
// registered for a provider. The registry is populated once at startup
// and read-only afterwards, so lookups need no locking.
type ValidatorRegistry struct {
	validators map[model.CloudProvider]driven.Validator
	logger     *slog.Logger
}

// NewValidatorRegistry builds a registry from the given validators.
// A later validator for the same provider replaces an earlier one.
func NewValidatorRegistry(logger *slog.Logger, validators ...driven.Validator) *ValidatorRegistry {
	byProvider := make(map[model.CloudProvider]driven.Validator, len(validators))
	for _, v := range validators {
		byProvider[v.Provider()] = v
		logger.Info("registered credential validator", slog.String("provider", string(v.Provider())))
	}
	return &ValidatorRegistry{validators: byProvider, logger: logger}
}

// HasValidator reports whether a validator is registered for provider.
func (r *ValidatorRegistry) HasValidator(provider model.CloudProvider) bool {
	_, ok := r.validators[provider]
	return ok
}

// Providers returns the providers with a registered validator.
func (r *ValidatorRegistry) Providers() []model.CloudProvider {
	providers := make([]model.CloudProvider, 0, len(r.validators))
	for p := range r.validators {
		providers = append(providers, p)
	}
	return providers
}

// ValidateFormat runs the offline format check for provider.
func (r *ValidatorRegistry) ValidateFormat(provider model.CloudProvider, config map[string]string) model.ValidationResult {
	v, ok := r.validators[provider]
	if !ok {
		return model.FailureResult("Validator not found",
			fmt.Sprintf("no validator registered for provider %s", provider))
	}
	return r.safeCall(provider, func() model.ValidationResult {
		return v.ValidateFormat(config)
	})
}

// Validate runs the live probe for provider.
func (r *ValidatorRegistry) Validate(ctx context.Context, provider model.CloudProvider, config map[string]string) model.ValidationResult {
	v, ok := r.validators[provider]
	if !ok {
		return model.FailureResult("Validator not found",
			fmt.Sprintf("no validator registered for provider %s", provider))
	}
	return r.safeCall(provider, func() model.ValidationResult {
		return v.Validate(ctx, config)
	})
}

// safeCall converts a validator panic into a failure result so one
// misbehaving provider SDK cannot take the process down.
func (r *ValidatorRegistry) safeCall(provider model.CloudProvider, fn func() model.ValidationResult) (result model.ValidationResult) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("validator panicked",
				slog.String("provider", string(provider)), slog.Any("panic", rec))
			result = model.FailureResult("Validation error",
				"the validator failed unexpectedly; see server logs")
		}
	}()
	return fn()
}

package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cloudmesh/cloudmesh/internal/crypto"
	"github.com/cloudmesh/cloudmesh/internal/domain/model"
	"github.com/cloudmesh/cloudmesh/internal/domain/port/driven"
)

// FormatError reports a rejected credential configuration. It carries
// the classification and detail from the offline format check.
type FormatError struct {
	Message string
	Details string
}

func (e *FormatError) Error() string {
	if e.Details == "" {
		return e.Message
	}
	return e.Message + ": " + e.Details
}

// CreateCredentialInput is the request to register a new credential.
type CreateCredentialInput struct {
	OwnerID      uuid.UUID
	Provider     model.CloudProvider
	FriendlyName string
	Config       map[string]string

	// ValidateNow runs a live validation immediately after creation.
	// A failed probe does not abort the create; the credential is left
	// INVALID for the owner to fix.
	ValidateNow bool
}

// CredentialDTO is the owner-facing view of a credential. It never
// carries config values, encrypted or not; only the non-secret region
// is surfaced for display.
type CredentialDTO struct {
	ID              uuid.UUID              `json:"id"`
	Provider        model.CloudProvider    `json:"provider"`
	FriendlyName    string                 `json:"friendlyName"`
	Status          model.CredentialStatus `json:"status"`
	Region          string                 `json:"region,omitempty"`
	LastValidatedAt *time.Time             `json:"lastValidatedAt,omitempty"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}

// CredentialService owns the credential lifecycle: creation with
// encryption of sensitive fields, validation driven status changes and
// secure deletion.
type CredentialService struct {
	creds    driven.CredentialStore
	users    driven.UserStore
	engine   *crypto.Engine
	registry *ValidatorRegistry
	logger   *slog.Logger
}

// NewCredentialService creates a CredentialService.
func NewCredentialService(
	creds driven.CredentialStore,
	users driven.UserStore,
	engine *crypto.Engine,
	registry *ValidatorRegistry,
	logger *slog.Logger,
) *CredentialService {
	return &CredentialService{
		creds:    creds,
		users:    users,
		engine:   engine,
		registry: registry,
		logger:   logger,
	}
}

// CreateCredential registers a new credential for the owner. Sensitive
// config fields are encrypted before anything touches the store; the
// credential starts in PENDING.
func (s *CredentialService) CreateCredential(ctx context.Context, in CreateCredentialInput) (*CredentialDTO, error) {
	if _, err := s.users.GetByID(ctx, in.OwnerID); err != nil {
		return nil, fmt.Errorf("resolve owner %s: %w", in.OwnerID, err)
	}

	if res := s.registry.ValidateFormat(in.Provider, in.Config); !res.Valid {
		return nil, &FormatError{Message: res.Message, Details: res.Details}
	}

	config, err := s.encryptSensitiveFields(in.Provider, in.Config)
	if err != nil {
		return nil, fmt.Errorf("encrypt credential config: %w", err)
	}

	now := time.Now().UTC()
	cred := model.CloudCredential{
		ID:           uuid.New(),
		OwnerID:      in.OwnerID,
		Provider:     in.Provider,
		FriendlyName: in.FriendlyName,
		Status:       model.StatusPending,
		Config:       config,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.creds.Create(ctx, cred); err != nil {
		return nil, fmt.Errorf("store credential: %w", err)
	}

	s.logger.Info("credential created",
		slog.String("credential_id", cred.ID.String()),
		slog.String("provider", string(cred.Provider)))

	if in.ValidateNow {
		if _, err := s.ValidateCredential(ctx, cred.ID, in.OwnerID); err != nil {
			s.logger.Warn("initial validation failed to complete",
				slog.String("credential_id", cred.ID.String()), slog.Any("error", err))
		}
	}

	stored, err := s.creds.GetByIDAndOwner(ctx, cred.ID, in.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("reload credential %s: %w", cred.ID, err)
	}
	dto := s.toDTO(stored)
	return &dto, nil
}

// GetCredential returns the owner's view of one credential.
func (s *CredentialService) GetCredential(ctx context.Context, id, ownerID uuid.UUID) (*CredentialDTO, error) {
	cred, err := s.creds.GetByIDAndOwner(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	dto := s.toDTO(cred)
	return &dto, nil
}

// ListCredentials returns all of the owner's credentials.
func (s *CredentialService) ListCredentials(ctx context.Context, ownerID uuid.UUID) ([]CredentialDTO, error) {
	creds, err := s.creds.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.toDTOs(creds), nil
}

// ListCredentialsByProvider returns the owner's credentials for one provider.
func (s *CredentialService) ListCredentialsByProvider(ctx context.Context, ownerID uuid.UUID, provider model.CloudProvider) ([]CredentialDTO, error) {
	creds, err := s.creds.ListByOwnerAndProvider(ctx, ownerID, provider)
	if err != nil {
		return nil, err
	}
	return s.toDTOs(creds), nil
}

// GetDecryptedConfig returns the credential's full config with
// sensitive fields decrypted. For internal use by adapters that hand
// credentials to provider SDKs; never exposed over HTTP.
func (s *CredentialService) GetDecryptedConfig(ctx context.Context, id, ownerID uuid.UUID) (map[string]string, error) {
	cred, err := s.creds.GetByIDAndOwner(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	return s.decryptSensitiveFields(cred.Provider, cred.Config)
}

// ValidateCredential runs the live probe for the credential and moves
// it to ACTIVE or INVALID based on the outcome. The validation result
// is returned even when persisting the status change fails; the error
// reports the persistence problem.
func (s *CredentialService) ValidateCredential(ctx context.Context, id, ownerID uuid.UUID) (model.ValidationResult, error) {
	cred, err := s.creds.GetByIDAndOwner(ctx, id, ownerID)
	if err != nil {
		return model.ValidationResult{}, err
	}

	config, err := s.decryptSensitiveFields(cred.Provider, cred.Config)
	if err != nil {
		return model.ValidationResult{}, fmt.Errorf("decrypt credential %s: %w", id, err)
	}

	result := s.registry.Validate(ctx, cred.Provider, config)

	now := time.Now().UTC()
	if result.Valid {
		cred.Status = model.StatusActive
		cred.LastValidatedAt = &now
	} else {
		// LastValidatedAt keeps the timestamp of the last success.
		cred.Status = model.StatusInvalid
	}
	cred.UpdatedAt = now

	if err := s.creds.Update(ctx, *cred); err != nil {
		s.logger.Error("failed to persist validation outcome",
			slog.String("credential_id", id.String()), slog.Any("error", err))
		return result, fmt.Errorf("persist validation outcome for %s: %w", id, err)
	}

	s.logger.Info("credential validated",
		slog.String("credential_id", id.String()),
		slog.String("provider", string(cred.Provider)),
		slog.Bool("valid", result.Valid),
		slog.String("message", result.Message))

	return result, nil
}

// MarkAsValidated moves the credential straight to ACTIVE without a
// probe. Used when an adapter has just exercised the credential
// successfully for real work.
func (s *CredentialService) MarkAsValidated(ctx context.Context, id, ownerID uuid.UUID) error {
	cred, err := s.creds.GetByIDAndOwner(ctx, id, ownerID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	cred.Status = model.StatusActive
	cred.LastValidatedAt = &now
	cred.UpdatedAt = now
	return s.creds.Update(ctx, *cred)
}

// MarkAsInvalid moves the credential to INVALID regardless of owner.
// Used by background jobs reacting to provider-side auth failures. A
// credential that no longer exists is not an error.
func (s *CredentialService) MarkAsInvalid(ctx context.Context, id uuid.UUID) error {
	cred, err := s.creds.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, driven.ErrCredentialNotFound) {
			return nil
		}
		return err
	}

	cred.Status = model.StatusInvalid
	cred.UpdatedAt = time.Now().UTC()
	return s.creds.Update(ctx, *cred)
}

// DeleteCredential overwrites the stored config before removing the
// row, so the secrets are gone even if the delete is later rolled back
// or the row lingers in a backup of the WAL.
func (s *CredentialService) DeleteCredential(ctx context.Context, id, ownerID uuid.UUID) error {
	cred, err := s.creds.GetByIDAndOwner(ctx, id, ownerID)
	if err != nil {
		return err
	}

	cred.Config = map[string]string{"wiped": "true"}
	cred.Status = model.StatusInvalid
	cred.UpdatedAt = time.Now().UTC()
	if err := s.creds.Update(ctx, *cred); err != nil {
		return fmt.Errorf("wipe credential %s before delete: %w", id, err)
	}

	if err := s.creds.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete credential %s: %w", id, err)
	}

	s.logger.Info("credential deleted",
		slog.String("credential_id", id.String()),
		slog.String("provider", string(cred.Provider)))
	return nil
}

// IsOwner reports whether ownerID owns the credential.
func (s *CredentialService) IsOwner(ctx context.Context, id, ownerID uuid.UUID) (bool, error) {
	return s.creds.ExistsByIDAndOwner(ctx, id, ownerID)
}

// encryptSensitiveFields returns a copy of config with the provider's
// sensitive fields encrypted. The input map is not modified.
func (s *CredentialService) encryptSensitiveFields(provider model.CloudProvider, config map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(config))
	for k, v := range config {
		out[k] = v
	}
	for _, field := range model.SensitiveFields(provider) {
		value, ok := out[field]
		if !ok {
			continue
		}
		encrypted, err := s.engine.Encrypt(value)
		if err != nil {
			return nil, fmt.Errorf("encrypt field %s: %w", field, err)
		}
		out[field] = encrypted
	}
	return out, nil
}

// decryptSensitiveFields is the inverse of encryptSensitiveFields.
func (s *CredentialService) decryptSensitiveFields(provider model.CloudProvider, config map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(config))
	for k, v := range config {
		out[k] = v
	}
	for _, field := range model.SensitiveFields(provider) {
		value, ok := out[field]
		if !ok {
			continue
		}
		plaintext, err := s.engine.Decrypt(value)
		if err != nil {
			return nil, fmt.Errorf("decrypt field %s: %w", field, err)
		}
		out[field] = plaintext
	}
	return out, nil
}

func (s *CredentialService) toDTO(cred *model.CloudCredential) CredentialDTO {
	return CredentialDTO{
		ID:              cred.ID,
		Provider:        cred.Provider,
		FriendlyName:    cred.FriendlyName,
		Status:          cred.Status,
		Region:          cred.Config["region"],
		LastValidatedAt: cred.LastValidatedAt,
		CreatedAt:       cred.CreatedAt,
		UpdatedAt:       cred.UpdatedAt,
	}
}

func (s *CredentialService) toDTOs(creds []model.CloudCredential) []CredentialDTO {
	dtos := make([]CredentialDTO, 0, len(creds))
	for i := range creds {
		dtos = append(dtos, s.toDTO(&creds[i]))
	}
	return dtos
}

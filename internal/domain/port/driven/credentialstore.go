package driven

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/cloudmesh/cloudmesh/internal/domain/model"
)

// ErrCredentialNotFound is returned when a credential does not exist or does
// not belong to the requesting owner. The two cases are deliberately not
// distinguished so callers cannot probe for the existence of other users'
// credentials.
var ErrCredentialNotFound = errors.New("credential not found")

// CredentialStore defines the driven port for cloud credential persistence.
// The adapter persists config values exactly as given; encryption of
// sensitive fields happens in the application layer before values reach
// this interface.
type CredentialStore interface {
	// Create persists a new credential.
	Create(ctx context.Context, cred model.CloudCredential) error

	// GetByIDAndOwner returns the credential with the given id if it is
	// owned by ownerID. Returns ErrCredentialNotFound otherwise.
	GetByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID) (*model.CloudCredential, error)

	// GetByID returns the credential regardless of owner. Reserved for
	// administrative paths such as the re-validation sweep.
	// Returns ErrCredentialNotFound if absent.
	GetByID(ctx context.Context, id uuid.UUID) (*model.CloudCredential, error)

	// ListByOwner returns all credentials owned by ownerID.
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.CloudCredential, error)

	// ListByOwnerAndProvider returns ownerID's credentials for one provider.
	ListByOwnerAndProvider(ctx context.Context, ownerID uuid.UUID, provider model.CloudProvider) ([]model.CloudCredential, error)

	// ListAll returns every stored credential. Used by the re-validation
	// sweep; never exposed through the API surface.
	ListAll(ctx context.Context) ([]model.CloudCredential, error)

	// Update replaces the stored row for cred.ID with cred's current state.
	// Returns ErrCredentialNotFound if the row no longer exists.
	Update(ctx context.Context, cred model.CloudCredential) error

	// Delete removes the credential row. Returns ErrCredentialNotFound if
	// the row does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// ExistsByIDAndOwner reports whether a credential with the given id
	// exists and is owned by ownerID.
	ExistsByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID) (bool, error)
}

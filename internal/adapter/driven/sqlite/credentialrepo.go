package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cloudmesh/cloudmesh/internal/domain/model"
	"github.com/cloudmesh/cloudmesh/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port.
// Config maps are persisted as JSON text; values arrive already encrypted
// from the application layer.
type CredentialRepo struct {
	db *DB
}

// NewCredentialRepo creates a new CredentialRepo.
func NewCredentialRepo(db *DB) *CredentialRepo {
	return &CredentialRepo{db: db}
}

const credentialColumns = `credential_id, user_id, provider, friendly_name, status, config, last_validated_at, created_at, updated_at`

// Create persists a new credential.
func (r *CredentialRepo) Create(ctx context.Context, cred model.CloudCredential) error {
	configJSON, err := json.Marshal(cred.Config)
	if err != nil {
		return fmt.Errorf("marshal config for credential %s: %w", cred.ID, err)
	}

	const query = `INSERT INTO cloud_credentials (` + credentialColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.Writer.ExecContext(ctx, query,
		cred.ID.String(),
		cred.OwnerID.String(),
		string(cred.Provider),
		cred.FriendlyName,
		string(cred.Status),
		string(configJSON),
		nullableTime(cred.LastValidatedAt),
		formatTime(cred.CreatedAt),
		formatTime(cred.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("create credential %s: %w", cred.ID, err)
	}
	return nil
}

// GetByIDAndOwner returns the credential if it exists and belongs to ownerID.
func (r *CredentialRepo) GetByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID) (*model.CloudCredential, error) {
	const query = `SELECT ` + credentialColumns + ` FROM cloud_credentials WHERE credential_id = ? AND user_id = ?`
	return r.getOne(ctx, query, id.String(), ownerID.String())
}

// GetByID returns the credential regardless of owner.
func (r *CredentialRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.CloudCredential, error) {
	const query = `SELECT ` + credentialColumns + ` FROM cloud_credentials WHERE credential_id = ?`
	return r.getOne(ctx, query, id.String())
}

// ListByOwner returns all credentials owned by ownerID.
func (r *CredentialRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.CloudCredential, error) {
	const query = `SELECT ` + credentialColumns + ` FROM cloud_credentials WHERE user_id = ? ORDER BY created_at`
	return r.list(ctx, query, ownerID.String())
}

// ListByOwnerAndProvider returns ownerID's credentials for one provider.
func (r *CredentialRepo) ListByOwnerAndProvider(ctx context.Context, ownerID uuid.UUID, provider model.CloudProvider) ([]model.CloudCredential, error) {
	const query = `SELECT ` + credentialColumns + ` FROM cloud_credentials WHERE user_id = ? AND provider = ? ORDER BY created_at`
	return r.list(ctx, query, ownerID.String(), string(provider))
}

// ListAll returns every stored credential.
func (r *CredentialRepo) ListAll(ctx context.Context) ([]model.CloudCredential, error) {
	const query = `SELECT ` + credentialColumns + ` FROM cloud_credentials ORDER BY created_at`
	return r.list(ctx, query)
}

// Update replaces the stored row for cred.ID with cred's current state.
func (r *CredentialRepo) Update(ctx context.Context, cred model.CloudCredential) error {
	configJSON, err := json.Marshal(cred.Config)
	if err != nil {
		return fmt.Errorf("marshal config for credential %s: %w", cred.ID, err)
	}

	const query = `UPDATE cloud_credentials
		SET friendly_name = ?, status = ?, config = ?, last_validated_at = ?, updated_at = ?
		WHERE credential_id = ?`
	res, err := r.db.Writer.ExecContext(ctx, query,
		cred.FriendlyName,
		string(cred.Status),
		string(configJSON),
		nullableTime(cred.LastValidatedAt),
		formatTime(cred.UpdatedAt),
		cred.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("update credential %s: %w", cred.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update credential %s: rows affected: %w", cred.ID, err)
	}
	if n == 0 {
		return driven.ErrCredentialNotFound
	}
	return nil
}

// Delete removes the credential row.
func (r *CredentialRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM cloud_credentials WHERE credential_id = ?`
	res, err := r.db.Writer.ExecContext(ctx, query, id.String())
	if err != nil {
		return fmt.Errorf("delete credential %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete credential %s: rows affected: %w", id, err)
	}
	if n == 0 {
		return driven.ErrCredentialNotFound
	}
	return nil
}

// ExistsByIDAndOwner reports whether the credential exists and is owned by
// ownerID.
func (r *CredentialRepo) ExistsByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID) (bool, error) {
	const query = `SELECT 1 FROM cloud_credentials WHERE credential_id = ? AND user_id = ?`
	var one int
	err := r.db.Reader.QueryRowContext(ctx, query, id.String(), ownerID.String()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check credential ownership %s: %w", id, err)
	}
	return true, nil
}

func (r *CredentialRepo) getOne(ctx context.Context, query string, args ...any) (*model.CloudCredential, error) {
	row := r.db.Reader.QueryRowContext(ctx, query, args...)

	cred, err := scanCredential(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, driven.ErrCredentialNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return cred, nil
}

func (r *CredentialRepo) list(ctx context.Context, query string, args ...any) ([]model.CloudCredential, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var creds []model.CloudCredential
	for rows.Next() {
		cred, err := scanCredential(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		creds = append(creds, *cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}

	return creds, nil
}

// scanCredential maps one row onto a model.CloudCredential. The scan
// argument abstracts over sql.Row and sql.Rows.
func scanCredential(scan func(dest ...any) error) (*model.CloudCredential, error) {
	var (
		idStr, ownerStr, provider, friendlyName, status, configJSON string
		lastValidated                                               sql.NullString
		createdAt, updatedAt                                        string
	)

	if err := scan(&idStr, &ownerStr, &provider, &friendlyName, &status, &configJSON, &lastValidated, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse credential_id %q: %w", idStr, err)
	}
	ownerID, err := uuid.Parse(ownerStr)
	if err != nil {
		return nil, fmt.Errorf("parse user_id %q: %w", ownerStr, err)
	}

	config := map[string]string{}
	if err := json.Unmarshal([]byte(configJSON), &config); err != nil {
		return nil, fmt.Errorf("unmarshal config for credential %s: %w", idStr, err)
	}

	cred := &model.CloudCredential{
		ID:           id,
		OwnerID:      ownerID,
		Provider:     model.CloudProvider(provider),
		FriendlyName: friendlyName,
		Status:       model.CredentialStatus(status),
		Config:       config,
	}

	if lastValidated.Valid {
		t, err := parseTime(lastValidated.String)
		if err != nil {
			return nil, fmt.Errorf("parse last_validated_at for credential %s: %w", idStr, err)
		}
		cred.LastValidatedAt = &t
	}
	if cred.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at for credential %s: %w", idStr, err)
	}
	if cred.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at for credential %s: %w", idStr, err)
	}

	return cred, nil
}

// nullableTime renders an optional timestamp as a driver value.
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

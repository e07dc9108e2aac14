package application

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudmesh/cloudmesh/internal/crypto"
	"github.com/cloudmesh/cloudmesh/internal/domain/model"
	"github.com/cloudmesh/cloudmesh/internal/domain/port/driven"
)

// fakeCredStore is an in-memory CredentialStore. It records the config
// state seen on Update so tests can assert on the wipe-before-delete
// sequence. Guarded by a mutex since the sweep worker pool hits it
// concurrently.
type fakeCredStore struct {
	mu             sync.Mutex
	creds          map[uuid.UUID]model.CloudCredential
	updatedConfigs []map[string]string
	failUpdate     bool
}

func newFakeCredStore() *fakeCredStore {
	return &fakeCredStore{creds: map[uuid.UUID]model.CloudCredential{}}
}

func (f *fakeCredStore) Create(_ context.Context, cred model.CloudCredential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creds[cred.ID] = cred
	return nil
}

func (f *fakeCredStore) GetByIDAndOwner(_ context.Context, id, ownerID uuid.UUID) (*model.CloudCredential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cred, ok := f.creds[id]
	if !ok || cred.OwnerID != ownerID {
		return nil, driven.ErrCredentialNotFound
	}
	out := cred
	return &out, nil
}

func (f *fakeCredStore) GetByID(_ context.Context, id uuid.UUID) (*model.CloudCredential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cred, ok := f.creds[id]
	if !ok {
		return nil, driven.ErrCredentialNotFound
	}
	out := cred
	return &out, nil
}

func (f *fakeCredStore) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]model.CloudCredential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.CloudCredential
	for _, c := range f.creds {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCredStore) ListByOwnerAndProvider(_ context.Context, ownerID uuid.UUID, provider model.CloudProvider) ([]model.CloudCredential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.CloudCredential
	for _, c := range f.creds {
		if c.OwnerID == ownerID && c.Provider == provider {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCredStore) ListAll(_ context.Context) ([]model.CloudCredential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.CloudCredential
	for _, c := range f.creds {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeCredStore) Update(_ context.Context, cred model.CloudCredential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate {
		return assert.AnError
	}
	if _, ok := f.creds[cred.ID]; !ok {
		return driven.ErrCredentialNotFound
	}
	configCopy := make(map[string]string, len(cred.Config))
	for k, v := range cred.Config {
		configCopy[k] = v
	}
	f.updatedConfigs = append(f.updatedConfigs, configCopy)
	f.creds[cred.ID] = cred
	return nil
}

func (f *fakeCredStore) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.creds[id]; !ok {
		return driven.ErrCredentialNotFound
	}
	delete(f.creds, id)
	return nil
}

func (f *fakeCredStore) ExistsByIDAndOwner(_ context.Context, id, ownerID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cred, ok := f.creds[id]
	return ok && cred.OwnerID == ownerID, nil
}

// get returns a copy of the stored credential for assertions.
func (f *fakeCredStore) get(id uuid.UUID) model.CloudCredential {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creds[id]
}

type fakeUserStore struct {
	users map[uuid.UUID]model.User
}

func newFakeUserStore(ids ...uuid.UUID) *fakeUserStore {
	f := &fakeUserStore{users: map[uuid.UUID]model.User{}}
	for _, id := range ids {
		f.users[id] = model.User{ID: id, Email: id.String() + "@example.com", CreatedAt: time.Now().UTC()}
	}
	return f
}

func (f *fakeUserStore) Create(_ context.Context, user model.User) error {
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserStore) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, driven.ErrUserNotFound
	}
	return &user, nil
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			user := u
			return &user, nil
		}
	}
	return nil, driven.ErrUserNotFound
}

// tripwireValidator fails the test if the live probe runs; the format
// check passes unless failFormat is set.
type tripwireValidator struct {
	t          *testing.T
	provider   model.CloudProvider
	failFormat bool
}

func (v *tripwireValidator) Provider() model.CloudProvider { return v.provider }

func (v *tripwireValidator) ValidateFormat(map[string]string) model.ValidationResult {
	if v.failFormat {
		return model.FailureResult("Missing required field", "apiToken is required")
	}
	return model.SuccessResult("Format valid", "")
}

func (v *tripwireValidator) Validate(context.Context, map[string]string) model.ValidationResult {
	v.t.Fatal("live validation must not run")
	return model.ValidationResult{}
}

func testEngine(t *testing.T) *crypto.Engine {
	t.Helper()
	encoded, err := crypto.GenerateKey()
	require.NoError(t, err)
	key, err := crypto.ParseKey(encoded)
	require.NoError(t, err)
	engine, err := crypto.NewEngine(key)
	require.NoError(t, err)
	return engine
}

type serviceFixture struct {
	svc    *CredentialService
	creds  *fakeCredStore
	users  *fakeUserStore
	owner  uuid.UUID
	engine *crypto.Engine
}

func newFixture(t *testing.T, validators ...driven.Validator) *serviceFixture {
	t.Helper()
	owner := uuid.New()
	creds := newFakeCredStore()
	users := newFakeUserStore(owner)
	engine := testEngine(t)
	registry := NewValidatorRegistry(slog.Default(), validators...)
	svc := NewCredentialService(creds, users, engine, registry, slog.Default())
	return &serviceFixture{svc: svc, creds: creds, users: users, owner: owner, engine: engine}
}

func TestCreateCredential_EncryptsSensitiveFields(t *testing.T) {
	fx := newFixture(t, &tripwireValidator{t: t, provider: model.ProviderDigitalOcean})

	dto, err := fx.svc.CreateCredential(context.Background(), CreateCredentialInput{
		OwnerID:      fx.owner,
		Provider:     model.ProviderDigitalOcean,
		FriendlyName: "prod droplets",
		Config:       map[string]string{"apiToken": "dop_v1_secret_token_value", "region": "nyc3"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, dto.Status)
	assert.Equal(t, "nyc3", dto.Region)
	assert.Nil(t, dto.LastValidatedAt)

	stored := fx.creds.creds[dto.ID]
	assert.NotEqual(t, "dop_v1_secret_token_value", stored.Config["apiToken"])
	assert.True(t, fx.engine.IsEncrypted(stored.Config["apiToken"]))
	// Non-sensitive fields stay in clear.
	assert.Equal(t, "nyc3", stored.Config["region"])

	// The decrypted view restores the plaintext.
	config, err := fx.svc.GetDecryptedConfig(context.Background(), dto.ID, fx.owner)
	require.NoError(t, err)
	assert.Equal(t, "dop_v1_secret_token_value", config["apiToken"])
}

func TestCreateCredential_FormatFailureSkipsEverything(t *testing.T) {
	fx := newFixture(t, &tripwireValidator{t: t, provider: model.ProviderDigitalOcean, failFormat: true})

	_, err := fx.svc.CreateCredential(context.Background(), CreateCredentialInput{
		OwnerID:  fx.owner,
		Provider: model.ProviderDigitalOcean,
		Config:   map[string]string{},
	})

	var formatErr *FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Equal(t, "Missing required field", formatErr.Message)
	assert.Empty(t, fx.creds.creds)
}

func TestCreateCredential_UnknownOwner(t *testing.T) {
	fx := newFixture(t, &tripwireValidator{t: t, provider: model.ProviderDigitalOcean})

	_, err := fx.svc.CreateCredential(context.Background(), CreateCredentialInput{
		OwnerID:  uuid.New(),
		Provider: model.ProviderDigitalOcean,
		Config:   map[string]string{"apiToken": "x"},
	})
	assert.ErrorIs(t, err, driven.ErrUserNotFound)
}

func TestCreateCredential_ValidateNowFailureDoesNotAbort(t *testing.T) {
	fx := newFixture(t, &stubValidator{
		provider:     model.ProviderGCP,
		formatResult: model.SuccessResult("Format valid", ""),
		liveResult:   model.FailureResult("Authentication failed", "key revoked"),
	})

	dto, err := fx.svc.CreateCredential(context.Background(), CreateCredentialInput{
		OwnerID:     fx.owner,
		Provider:    model.ProviderGCP,
		Config:      map[string]string{"projectId": "demo", "serviceAccountJson": "{}"},
		ValidateNow: true,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusInvalid, dto.Status)
	assert.Nil(t, dto.LastValidatedAt)
}

func TestValidateCredential_SuccessActivates(t *testing.T) {
	fx := newFixture(t, &stubValidator{
		provider:     model.ProviderAWS,
		formatResult: model.SuccessResult("Format valid", ""),
		liveResult:   model.SuccessResult("AWS credentials validated", ""),
	})

	dto, err := fx.svc.CreateCredential(context.Background(), CreateCredentialInput{
		OwnerID:  fx.owner,
		Provider: model.ProviderAWS,
		Config:   map[string]string{"roleArn": "arn:aws:iam::1:role/x", "externalId": "e"},
	})
	require.NoError(t, err)

	res, err := fx.svc.ValidateCredential(context.Background(), dto.ID, fx.owner)
	require.NoError(t, err)
	assert.True(t, res.Valid)

	stored := fx.creds.creds[dto.ID]
	assert.Equal(t, model.StatusActive, stored.Status)
	require.NotNil(t, stored.LastValidatedAt)
}

func TestValidateCredential_FailureInvalidatesAndKeepsTimestamp(t *testing.T) {
	validator := &stubValidator{
		provider:     model.ProviderAWS,
		formatResult: model.SuccessResult("Format valid", ""),
		liveResult:   model.SuccessResult("AWS credentials validated", ""),
	}
	fx := newFixture(t, validator)

	dto, err := fx.svc.CreateCredential(context.Background(), CreateCredentialInput{
		OwnerID:  fx.owner,
		Provider: model.ProviderAWS,
		Config:   map[string]string{"roleArn": "arn:aws:iam::1:role/x", "externalId": "e"},
	})
	require.NoError(t, err)

	// First validation succeeds and stamps LastValidatedAt.
	_, err = fx.svc.ValidateCredential(context.Background(), dto.ID, fx.owner)
	require.NoError(t, err)
	firstStamp := fx.creds.creds[dto.ID].LastValidatedAt
	require.NotNil(t, firstStamp)

	// Second validation fails: status flips to INVALID but the last
	// successful validation timestamp is preserved.
	validator.liveResult = model.FailureResult("Role assumption denied", "")
	res, err := fx.svc.ValidateCredential(context.Background(), dto.ID, fx.owner)
	require.NoError(t, err)
	assert.False(t, res.Valid)

	stored := fx.creds.creds[dto.ID]
	assert.Equal(t, model.StatusInvalid, stored.Status)
	require.NotNil(t, stored.LastValidatedAt)
	assert.True(t, stored.LastValidatedAt.Equal(*firstStamp))
}

func TestValidateCredential_DecryptsBeforeProbe(t *testing.T) {
	var seenConfig map[string]string
	fx := newFixture(t)
	fx.svc.registry = NewValidatorRegistry(slog.Default(), &captureValidator{
		provider: model.ProviderAzure,
		onValidate: func(config map[string]string) {
			seenConfig = config
		},
	})

	dto, err := fx.svc.CreateCredential(context.Background(), CreateCredentialInput{
		OwnerID:  fx.owner,
		Provider: model.ProviderAzure,
		Config: map[string]string{
			"tenantId":     "t",
			"clientSecret": "super-secret-value",
		},
	})
	require.NoError(t, err)

	_, err = fx.svc.ValidateCredential(context.Background(), dto.ID, fx.owner)
	require.NoError(t, err)
	require.NotNil(t, seenConfig)
	assert.Equal(t, "super-secret-value", seenConfig["clientSecret"])
}

func TestValidateCredential_PersistFailureStillReturnsResult(t *testing.T) {
	fx := newFixture(t, &stubValidator{
		provider:     model.ProviderAWS,
		formatResult: model.SuccessResult("Format valid", ""),
		liveResult:   model.SuccessResult("AWS credentials validated", ""),
	})

	dto, err := fx.svc.CreateCredential(context.Background(), CreateCredentialInput{
		OwnerID:  fx.owner,
		Provider: model.ProviderAWS,
		Config:   map[string]string{"roleArn": "arn:aws:iam::1:role/x", "externalId": "e"},
	})
	require.NoError(t, err)

	fx.creds.failUpdate = true
	res, err := fx.svc.ValidateCredential(context.Background(), dto.ID, fx.owner)
	assert.Error(t, err)
	assert.True(t, res.Valid)
}

func TestOwnershipIsolation(t *testing.T) {
	fx := newFixture(t, &tripwireValidator{t: t, provider: model.ProviderDigitalOcean})
	stranger := uuid.New()
	fx.users.users[stranger] = model.User{ID: stranger}

	dto, err := fx.svc.CreateCredential(context.Background(), CreateCredentialInput{
		OwnerID:  fx.owner,
		Provider: model.ProviderDigitalOcean,
		Config:   map[string]string{"apiToken": "tok"},
	})
	require.NoError(t, err)

	// A non-owner cannot observe, decrypt, validate or delete it.
	_, err = fx.svc.GetCredential(context.Background(), dto.ID, stranger)
	assert.ErrorIs(t, err, driven.ErrCredentialNotFound)

	_, err = fx.svc.GetDecryptedConfig(context.Background(), dto.ID, stranger)
	assert.ErrorIs(t, err, driven.ErrCredentialNotFound)

	err = fx.svc.DeleteCredential(context.Background(), dto.ID, stranger)
	assert.ErrorIs(t, err, driven.ErrCredentialNotFound)

	ok, err := fx.svc.IsOwner(context.Background(), dto.ID, stranger)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = fx.svc.IsOwner(context.Background(), dto.ID, fx.owner)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDeleteCredential_WipesBeforeDelete(t *testing.T) {
	fx := newFixture(t, &tripwireValidator{t: t, provider: model.ProviderDigitalOcean})

	dto, err := fx.svc.CreateCredential(context.Background(), CreateCredentialInput{
		OwnerID:  fx.owner,
		Provider: model.ProviderDigitalOcean,
		Config:   map[string]string{"apiToken": "dop_v1_secret_token_value"},
	})
	require.NoError(t, err)

	require.NoError(t, fx.svc.DeleteCredential(context.Background(), dto.ID, fx.owner))

	// The last Update before the Delete replaced the config with the
	// wipe sentinel; no ciphertext survived in that write.
	require.NotEmpty(t, fx.creds.updatedConfigs)
	last := fx.creds.updatedConfigs[len(fx.creds.updatedConfigs)-1]
	assert.Equal(t, map[string]string{"wiped": "true"}, last)
	assert.Empty(t, fx.creds.creds)
}

func TestDeleteCredential_WipeFailureAborts(t *testing.T) {
	fx := newFixture(t, &tripwireValidator{t: t, provider: model.ProviderDigitalOcean})

	dto, err := fx.svc.CreateCredential(context.Background(), CreateCredentialInput{
		OwnerID:  fx.owner,
		Provider: model.ProviderDigitalOcean,
		Config:   map[string]string{"apiToken": "tok"},
	})
	require.NoError(t, err)

	fx.creds.failUpdate = true
	err = fx.svc.DeleteCredential(context.Background(), dto.ID, fx.owner)
	assert.Error(t, err)
	// The row is still there; the delete never ran.
	assert.Len(t, fx.creds.creds, 1)
}

func TestMarkAsInvalid(t *testing.T) {
	fx := newFixture(t, &tripwireValidator{t: t, provider: model.ProviderDigitalOcean})

	dto, err := fx.svc.CreateCredential(context.Background(), CreateCredentialInput{
		OwnerID:  fx.owner,
		Provider: model.ProviderDigitalOcean,
		Config:   map[string]string{"apiToken": "tok"},
	})
	require.NoError(t, err)

	require.NoError(t, fx.svc.MarkAsInvalid(context.Background(), dto.ID))
	assert.Equal(t, model.StatusInvalid, fx.creds.creds[dto.ID].Status)

	// A credential that no longer exists is not an error.
	assert.NoError(t, fx.svc.MarkAsInvalid(context.Background(), uuid.New()))
}

func TestMarkAsValidated(t *testing.T) {
	fx := newFixture(t, &tripwireValidator{t: t, provider: model.ProviderDigitalOcean})

	dto, err := fx.svc.CreateCredential(context.Background(), CreateCredentialInput{
		OwnerID:  fx.owner,
		Provider: model.ProviderDigitalOcean,
		Config:   map[string]string{"apiToken": "tok"},
	})
	require.NoError(t, err)

	require.NoError(t, fx.svc.MarkAsValidated(context.Background(), dto.ID, fx.owner))
	stored := fx.creds.creds[dto.ID]
	assert.Equal(t, model.StatusActive, stored.Status)
	assert.NotNil(t, stored.LastValidatedAt)
}

func TestListCredentials(t *testing.T) {
	fx := newFixture(t,
		&tripwireValidator{t: t, provider: model.ProviderDigitalOcean},
		&tripwireValidator{t: t, provider: model.ProviderAWS},
	)

	_, err := fx.svc.CreateCredential(context.Background(), CreateCredentialInput{
		OwnerID: fx.owner, Provider: model.ProviderDigitalOcean,
		Config: map[string]string{"apiToken": "a"},
	})
	require.NoError(t, err)
	_, err = fx.svc.CreateCredential(context.Background(), CreateCredentialInput{
		OwnerID: fx.owner, Provider: model.ProviderAWS,
		Config: map[string]string{"roleArn": "arn", "externalId": "e"},
	})
	require.NoError(t, err)

	all, err := fx.svc.ListCredentials(context.Background(), fx.owner)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	aws, err := fx.svc.ListCredentialsByProvider(context.Background(), fx.owner, model.ProviderAWS)
	require.NoError(t, err)
	require.Len(t, aws, 1)
	assert.Equal(t, model.ProviderAWS, aws[0].Provider)
}

// captureValidator records the config handed to the live probe.
type captureValidator struct {
	provider   model.CloudProvider
	onValidate func(map[string]string)
}

func (v *captureValidator) Provider() model.CloudProvider { return v.provider }

func (v *captureValidator) ValidateFormat(map[string]string) model.ValidationResult {
	return model.SuccessResult("Format valid", "")
}

func (v *captureValidator) Validate(_ context.Context, config map[string]string) model.ValidationResult {
	if v.onValidate != nil {
		v.onValidate(config)
	}
	return model.SuccessResult("validated", "")
}

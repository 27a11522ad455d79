package service_test

import (
	"context"
	"testing"

	"github.com/kiranshivaraju/vince/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture is an application with one key, both created through the Manager.
type fixture struct {
	store     *countingStore
	manager   *service.Manager
	validator *service.Validator
	appID     string
	secret    string
	key       string
	keyID     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := &countingStore{Store: newStore(t)}
	m := service.NewManager(s)

	app, err := m.CreateApplication(ctx, service.CreateApplicationInput{Name: "Demo App", PrefixLabel: "demo"})
	require.NoError(t, err)
	issued, err := m.CreateAPIKey(ctx, app.ID, strPtr(`{"user":"alice"}`))
	require.NoError(t, err)

	return &fixture{
		store:     s,
		manager:   m,
		validator: service.NewValidator(s),
		appID:     app.ID.String(),
		secret:    app.ClientSecret,
		key:       issued.Plaintext,
		keyID:     issued.Key.ID.String(),
	}
}

func TestValidate_Success(t *testing.T) {
	f := newFixture(t)

	res, err := f.validator.Validate(context.Background(), f.key, f.secret)
	require.NoError(t, err)
	require.NotNil(t, res.Metadata)
	assert.Equal(t, `{"user":"alice"}`, *res.Metadata)
	assert.Equal(t, "Demo App", res.ApplicationName)
	assert.Equal(t, f.keyID, res.KeyID.String())
}

func TestValidate_WrongClientSecret(t *testing.T) {
	f := newFixture(t)

	_, err := f.validator.Validate(context.Background(), f.key, "cs-9999")
	assert.ErrorIs(t, err, service.ErrClientSecretMismatch)
	assert.ErrorIs(t, err, service.ErrInvalidCredential)
	assert.Contains(t, err.Error(), "invalid client secret")
}

func TestValidate_MalformedKeySkipsStore(t *testing.T) {
	f := newFixture(t)
	before := f.store.Lookups()

	_, err := f.validator.Validate(context.Background(), "not-a-real-key", f.secret)
	assert.ErrorIs(t, err, service.ErrMalformedKey)
	assert.ErrorIs(t, err, service.ErrInvalidCredential)
	assert.Equal(t, before, f.store.Lookups())
}

func TestValidate_UnknownKey(t *testing.T) {
	f := newFixture(t)

	_, err := f.validator.Validate(context.Background(), "sk-proj-aaaaaaaa-demo-ZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZ", f.secret)
	assert.ErrorIs(t, err, service.ErrUnknownKey)
	assert.Equal(t, 1, f.store.Lookups())
}

func TestValidate_RevokedKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.validator.Validate(ctx, f.key, f.secret)
	require.NoError(t, err)

	_, err = f.manager.RevokeAPIKey(ctx, res.KeyID)
	require.NoError(t, err)

	_, err = f.validator.Validate(ctx, f.key, f.secret)
	assert.ErrorIs(t, err, service.ErrUnknownKey)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestValidate_MissingInput(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		key    string
		secret string
		msg    string
	}{
		{"missing key", "", f.secret, "API key is required"},
		{"missing secret", f.key, "", "Client secret is required"},
		{"both missing", "", "", "API key is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.validator.Validate(context.Background(), tt.key, tt.secret)
			require.ErrorIs(t, err, service.ErrValidation)
			assert.NotErrorIs(t, err, service.ErrInvalidCredential)
			assert.Equal(t, tt.msg, err.Error())
		})
	}
	assert.Equal(t, 0, f.store.Lookups())
}

func TestValidate_AfterClientSecretRotation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.validator.Validate(ctx, f.key, f.secret)
	require.NoError(t, err)

	app, err := f.manager.GetAPIKey(ctx, res.KeyID)
	require.NoError(t, err)
	rotated, err := f.manager.RotateClientSecret(ctx, app.ApplicationID)
	require.NoError(t, err)
	assert.NotEqual(t, f.secret, rotated.ClientSecret)

	_, err = f.validator.Validate(ctx, f.key, f.secret)
	assert.ErrorIs(t, err, service.ErrClientSecretMismatch)

	_, err = f.validator.Validate(ctx, f.key, rotated.ClientSecret)
	assert.NoError(t, err)
}

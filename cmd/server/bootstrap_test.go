package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/medlemine/ashport/internal/app"
	"github.com/medlemine/ashport/internal/storage"
)

func validTestConfig() *app.Config {
	return &app.Config{
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{Secret: "test-secret"},
		},
		Sealing: app.SealingConfig{
			EncryptionKey: "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
		},
	}
}

func TestEnsureSecretsPresent(t *testing.T) {
	require.NoError(t, ensureSecretsPresent(validTestConfig()))
}

func TestEnsureSecretsPresentMissingJWTSecret(t *testing.T) {
	cfg := validTestConfig()
	cfg.Auth.JWT.Secret = "   "
	require.Error(t, ensureSecretsPresent(cfg))
}

func TestEnsureSecretsPresentBadSealingKeyLength(t *testing.T) {
	cfg := validTestConfig()
	cfg.Sealing.EncryptionKey = "too-short"
	require.Error(t, ensureSecretsPresent(cfg))

	cfg.Sealing.EncryptionKey = "this-raw-string-is-24-by"
	require.NoError(t, ensureSecretsPresent(cfg))
}

func TestInitialiseImageStoreFallsBackToMemory(t *testing.T) {
	cfg := validTestConfig()

	store, err := initialiseImageStore(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	require.IsType(t, &storage.MemoryImageStore{}, store)
}

package crypto

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-admin-pass")
	require.NoError(t, err)
	require.NotEqual(t, "s3cret-admin-pass", hash)

	require.True(t, VerifyPassword(hash, "s3cret-admin-pass"))
	require.False(t, VerifyPassword(hash, "wrong"))
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := sha256.Sum256([]byte("process-wide secret"))
	plaintext := []byte(`{"full_name":"Jane Doe","address":"1 Main St","phone_number":"+15551234567"}`)

	sealed, err := Encrypt(plaintext, key[:])
	require.NoError(t, err)
	require.NotEqual(t, string(plaintext), sealed)

	opened, err := Decrypt(sealed, key[:])
	require.NoError(t, err)
	require.Equal(t, plaintext, opened)
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	key := sha256.Sum256([]byte("process-wide secret"))

	sealed, err := Encrypt([]byte("payload"), key[:])
	require.NoError(t, err)

	otherKey := sha256.Sum256([]byte("different secret"))
	_, err = Decrypt(sealed, otherKey[:])
	require.Error(t, err)
}

func TestDecryptRejectsShortCiphertext(t *testing.T) {
	key := sha256.Sum256([]byte("process-wide secret"))
	_, err := Decrypt("AAAA", key[:])
	require.Error(t, err)
}

func TestGenerateTokenLength(t *testing.T) {
	token, err := GenerateToken(32)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	other, err := GenerateToken(32)
	require.NoError(t, err)
	require.NotEqual(t, token, other)
}

package storage

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreUploadAndDestroy(t *testing.T) {
	store := NewMemoryImageStore()

	res, err := store.Upload(context.Background(), []byte("png-bytes"), "verifications", "front.png")
	require.NoError(t, err)
	require.Equal(t, "verifications/front.png", res.PublicID)
	require.Equal(t, "memory://verifications/front.png", res.URL)
	require.True(t, store.Has(res.PublicID))

	require.NoError(t, store.Destroy(context.Background(), res.PublicID))
	require.False(t, store.Has(res.PublicID))
}

func TestMemoryStoreRejectsOversizedUpload(t *testing.T) {
	store := NewMemoryImageStore()

	_, err := store.Upload(context.Background(), bytes.Repeat([]byte{1}, MaxImageBytes+1), "", "big.png")
	require.ErrorIs(t, err, ErrImageTooLarge)
}

func TestMemoryStoreDestroyMissing(t *testing.T) {
	store := NewMemoryImageStore()
	require.Error(t, store.Destroy(context.Background(), "absent"))
}

func TestObjectKeyJoining(t *testing.T) {
	require.Equal(t, "verifications/a.png", objectKey("verifications/", "/a.png"))
	require.Equal(t, "a.png", objectKey("", "a.png"))
}

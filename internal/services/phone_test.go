package services

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlugSuffixZeroPads(t *testing.T) {
	require.Equal(t, "00000", slugSuffix(0))
	require.Equal(t, "00042", slugSuffix(42))
	require.Equal(t, "99999", slugSuffix(maxSlugSuffix))
}

func TestExtractOriginalPhoneNumber(t *testing.T) {
	// The ambiguity is inherent: any number long enough to end in five
	// digits loses them, slugged or not.
	require.Equal(t, "+15551234567", ExtractOriginalPhoneNumber("+1555123456700000"))
	require.Equal(t, "+1555123", ExtractOriginalPhoneNumber("+155512345678"))
	require.Equal(t, "+155", ExtractOriginalPhoneNumber("+15512345"))
	require.Equal(t, "+1", ExtractOriginalPhoneNumber("+1"))
	require.Equal(t, "short", ExtractOriginalPhoneNumber("short"))
}

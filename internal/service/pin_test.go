package service

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGeneratePIN(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		pin, err := GeneratePIN()
		require.NoError(t, err)
		require.True(t, ValidPIN(pin), "pin %q", pin)
		seen[pin] = struct{}{}
	}
	require.Greater(t, len(seen), 150)
}

func TestValidPIN(t *testing.T) {
	require.True(t, ValidPIN("000000"))
	require.True(t, ValidPIN("123456"))
	require.False(t, ValidPIN("12345"))
	require.False(t, ValidPIN("1234567"))
	require.False(t, ValidPIN("12a456"))
	require.False(t, ValidPIN("１２３４５６"))
	require.False(t, ValidPIN(""))
}

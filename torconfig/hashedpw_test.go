package torconfig

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPasswordFormat(t *testing.T) {
	hashed, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hashed, "16:"), "tor's HashedControlPassword format always starts with the S2K spec id")

	hex := strings.TrimPrefix(hashed, "16:")
	// salt (8 bytes) + count byte (1) + iterated SHA1 digest (20 bytes) = 29 bytes = 58 hex chars.
	assert.Len(t, hex, 58)
}

func TestHashPasswordIsSaltedAndNondeterministic(t *testing.T) {
	a, err := HashPassword("hunter2")
	require.NoError(t, err)
	b, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "each call draws a fresh random salt")
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	_, err := HashPassword("")
	require.Error(t, err)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrInvalidValue, ce.Kind)
}

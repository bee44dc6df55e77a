package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBcryptHasherRoundTrip(t *testing.T) {
	hasher := NewBcryptHasher(4)

	hash, err := hasher.Hash("super-secret")
	require.NoError(t, err)
	assert.NotEqual(t, "super-secret", hash)

	assert.NoError(t, hasher.Compare(hash, "super-secret"))
	assert.Error(t, hasher.Compare(hash, "wrong-password"))
}

func TestBcryptHasherSaltsPerRecord(t *testing.T) {
	hasher := NewBcryptHasher(4)

	first, err := hasher.Hash("super-secret")
	require.NoError(t, err)
	second, err := hasher.Hash("super-secret")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)

	// Both salted hashes still verify.
	assert.NoError(t, hasher.Compare(first, "super-secret"))
	assert.NoError(t, hasher.Compare(second, "super-secret"))
}

func TestBcryptHasherOutOfRangeCostFallsBack(t *testing.T) {
	hasher := NewBcryptHasher(99)

	hash, err := hasher.Hash("super-secret")
	require.NoError(t, err)
	assert.NoError(t, hasher.Compare(hash, "super-secret"))
}

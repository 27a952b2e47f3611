package server

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("Secret123")
	require.NoError(t, err)
	assert.NotEqual(t, "Secret123", hash)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, DefaultPasswordCost, cost)

	assert.NoError(t, ComparePasswordAndHash("Secret123", hash))
}

func TestHashPasswordEmpty(t *testing.T) {
	_, err := HashPassword("")
	assert.True(t, errors.Is(err, ErrNoEmptyString))
}

func TestComparePasswordMismatch(t *testing.T) {
	hash, err := NewHasher(bcrypt.MinCost)("Secret123")
	require.NoError(t, err)

	err = ComparePasswordAndHash("secret123", hash)
	assert.True(t, errors.Is(err, ErrMismatchedHashAndPassword))
}

func TestNewHasherCost(t *testing.T) {
	hash, err := NewHasher(bcrypt.MinCost)("Secret123")
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)

	hash, err = NewHasher(99)("Secret123")
	require.NoError(t, err)
	cost, err = bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, DefaultPasswordCost, cost)
}

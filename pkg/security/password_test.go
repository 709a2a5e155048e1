package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	assert.NoError(t, h.Compare(hash, "correct horse"))

	err = h.Compare(hash, "wrong horse")
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))

	err = h.Compare("not-a-hash", "correct horse")
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}

func TestBcryptHasher_ShortPassword(t *testing.T) {
	_, err := NewBcryptHasher(bcrypt.MinCost).Hash("short")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
}

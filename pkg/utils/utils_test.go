package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCode(t *testing.T) {
	for _, ok := range []string{"00000", "12345", "99999"} {
		assert.NoError(t, ValidateCode(ok), ok)
	}
	for _, bad := range []string{"", "1234", "123456", "1234a", " 1234", "١٢٣٤٥"} {
		assert.Error(t, ValidateCode(bad), bad)
	}
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName("Ann"))
	assert.Error(t, ValidateName("   "))

	long := make([]byte, 65)
	for i := range long {
		long[i] = 'a'
	}
	assert.Error(t, ValidateName(string(long)))
}

func TestHashAndVerifyPasscode(t *testing.T) {
	h1, err := HashPasscode("p")
	require.NoError(t, err)
	h2, err := HashPasscode("p")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2, "salts must differ")

	ok, err := VerifyPasscode("p", h1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPasscode("P", h1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyPasscode_BadHash(t *testing.T) {
	_, err := VerifyPasscode("p", "plain")
	assert.ErrorIs(t, err, ErrInvalidHash)

	_, err = VerifyPasscode("p", "$argon2id$v=19$m=x$salt$hash")
	assert.ErrorIs(t, err, ErrInvalidHash)
}

package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	secrets := []string{
		"",
		"api-key-123",
		"7fA0!?/long secret with spaces and symbols £€",
	}

	for _, secret := range secrets {
		encrypted, err := EncryptString(secret)
		require.NoError(t, err)
		assert.NotEqual(t, secret, encrypted)

		decrypted, err := DecryptString(encrypted)
		require.NoError(t, err)
		assert.Equal(t, secret, decrypted)
	}
}

func TestEncryptProducesFreshCiphertext(t *testing.T) {
	first, err := EncryptString("same-secret")
	require.NoError(t, err)

	second, err := EncryptString("same-secret")
	require.NoError(t, err)

	// Random salt and nonce per call.
	assert.NotEqual(t, first, second)
}

func TestDecryptRejectsGarbage(t *testing.T) {
	_, err := DecryptString("not-base64!!!")
	assert.Error(t, err)

	_, err = DecryptString("c2hvcnQ=")
	assert.Error(t, err)
}

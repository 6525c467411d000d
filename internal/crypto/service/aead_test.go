package service

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/channelvault/internal/crypto/domain"
)

func randomKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, cryptoDomain.KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestAEADManager_CreateCipher(t *testing.T) {
	manager := NewAEADManager()

	tests := []struct {
		name    string
		key     []byte
		alg     cryptoDomain.Algorithm
		wantErr error
	}{
		{"aes-gcm", randomKey(t), cryptoDomain.AESGCM, nil},
		{"chacha20-poly1305", randomKey(t), cryptoDomain.ChaCha20, nil},
		{"short key", make([]byte, 16), cryptoDomain.AESGCM, cryptoDomain.ErrInvalidKeySize},
		{"unknown algorithm", randomKey(t), cryptoDomain.Algorithm("rot13"), cryptoDomain.ErrUnsupportedAlgorithm},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cipher, err := manager.CreateCipher(tt.key, tt.alg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, cipher)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, cipher)
		})
	}
}

func TestAEADCipher_RoundTrip(t *testing.T) {
	for _, alg := range []cryptoDomain.Algorithm{cryptoDomain.AESGCM, cryptoDomain.ChaCha20} {
		t.Run(string(alg), func(t *testing.T) {
			cipher, err := NewAEADManager().CreateCipher(randomKey(t), alg)
			require.NoError(t, err)

			plaintext := []byte(`{"access_token":"at"}`)
			aad := []byte("connection-1")

			ciphertext, nonce, err := cipher.Encrypt(plaintext, aad)
			require.NoError(t, err)
			assert.Len(t, nonce, cryptoDomain.NonceSize)
			assert.NotEqual(t, plaintext, ciphertext)

			decrypted, err := cipher.Decrypt(ciphertext, nonce, aad)
			require.NoError(t, err)
			assert.Equal(t, plaintext, decrypted)

			_, err = cipher.Decrypt(ciphertext, nonce, []byte("connection-2"))
			assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)

			_, err = cipher.Decrypt(ciphertext, nonce[:8], aad)
			assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
		})
	}
}

func TestAEADCipher_FreshNonces(t *testing.T) {
	cipher, err := NewAESGCM(randomKey(t))
	require.NoError(t, err)

	_, n1, err := cipher.Encrypt([]byte("x"), nil)
	require.NoError(t, err)
	_, n2, err := cipher.Encrypt([]byte("x"), nil)
	require.NoError(t, err)

	assert.NotEqual(t, n1, n2)
}

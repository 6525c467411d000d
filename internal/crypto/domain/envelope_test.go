package domain

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validBlob() *EnvelopeBlob {
	return &EnvelopeBlob{
		WrappedIV:         bytes.Repeat([]byte{1}, NonceSize),
		WrappedCiphertext: bytes.Repeat([]byte{2}, 48),
		IV:                bytes.Repeat([]byte{3}, NonceSize),
		Ciphertext:        bytes.Repeat([]byte{4}, 64),
		Fingerprint:       bytes.Repeat([]byte{5}, FingerprintSize),
	}
}

func TestEnvelopeBlob_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(b *EnvelopeBlob)
		valid  bool
	}{
		{"valid", func(b *EnvelopeBlob) {}, true},
		{"short wrapped iv", func(b *EnvelopeBlob) { b.WrappedIV = b.WrappedIV[:8] }, false},
		{"missing iv", func(b *EnvelopeBlob) { b.IV = nil }, false},
		{"empty wrapped ciphertext", func(b *EnvelopeBlob) { b.WrappedCiphertext = nil }, false},
		{"empty ciphertext", func(b *EnvelopeBlob) { b.Ciphertext = []byte{} }, false},
		{"truncated fingerprint", func(b *EnvelopeBlob) { b.Fingerprint = b.Fingerprint[:16] }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob := validBlob()
			tt.mutate(blob)
			err := blob.Validate()
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidEnvelope)
			assert.ErrorIs(t, err, ErrDecryptionFailed)
		})
	}

	t.Run("nil blob", func(t *testing.T) {
		var blob *EnvelopeBlob
		assert.ErrorIs(t, blob.Validate(), ErrDecryptionFailed)
	})
}

func TestEnvelopeBlob_Equal(t *testing.T) {
	a, b := validBlob(), validBlob()
	assert.True(t, a.Equal(b))

	b.Ciphertext[10] ^= 0xff
	assert.False(t, a.Equal(b))
	assert.False(t, a.Equal(nil))
}

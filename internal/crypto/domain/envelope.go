package domain

import (
	"bytes"
	"fmt"
)

// EnvelopeBlob is one encrypted token payload. WrappedCiphertext is the DEK sealed under
// the derived cipher key with WrappedIV; Ciphertext is the canonical payload sealed
// under the DEK with IV; Fingerprint is HMAC-SHA256(integrityKey, plaintext).
//
// The five fields are stored, loaded and validated together.
type EnvelopeBlob struct {
	WrappedIV         []byte
	WrappedCiphertext []byte
	IV                []byte
	Ciphertext        []byte
	Fingerprint       []byte
}

// Validate checks field presence and sizes without touching any key.
func (b *EnvelopeBlob) Validate() error {
	if b == nil {
		return fmt.Errorf("%w: blob is nil", ErrInvalidEnvelope)
	}
	if len(b.WrappedIV) != NonceSize || len(b.IV) != NonceSize {
		return fmt.Errorf("%w: nonce must be %d bytes", ErrInvalidEnvelope, NonceSize)
	}
	if len(b.WrappedCiphertext) == 0 || len(b.Ciphertext) == 0 {
		return fmt.Errorf("%w: ciphertext is empty", ErrInvalidEnvelope)
	}
	if len(b.Fingerprint) != FingerprintSize {
		return fmt.Errorf("%w: fingerprint must be %d bytes", ErrInvalidEnvelope, FingerprintSize)
	}
	return nil
}

// Equal reports whether both blobs carry byte-identical fields.
func (b *EnvelopeBlob) Equal(other *EnvelopeBlob) bool {
	if b == nil || other == nil {
		return b == other
	}
	return bytes.Equal(b.WrappedIV, other.WrappedIV) &&
		bytes.Equal(b.WrappedCiphertext, other.WrappedCiphertext) &&
		bytes.Equal(b.IV, other.IV) &&
		bytes.Equal(b.Ciphertext, other.Ciphertext) &&
		bytes.Equal(b.Fingerprint, other.Fingerprint)
}

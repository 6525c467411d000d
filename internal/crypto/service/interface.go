// Package service implements the vault's cryptographic primitives: AEAD ciphers, HKDF
// key derivation from the RootSecret and the two-layer envelope cipher for OAuth
// token payloads. Everything here is stateless and safe for concurrent use.
package service

import (
	"context"

	cryptoDomain "github.com/allisson/channelvault/internal/crypto/domain"
)

// AEAD seals and opens data with a fresh random nonce per call.
type AEAD interface {
	// Encrypt returns the sealed data and the nonce used.
	Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error)

	// Decrypt authenticates and opens ciphertext. Any failure is ErrDecryptionFailed.
	Decrypt(ciphertext, nonce, aad []byte) ([]byte, error)
}

// AEADManager builds an AEAD for a 32-byte key and algorithm.
type AEADManager interface {
	CreateCipher(key []byte, alg cryptoDomain.Algorithm) (AEAD, error)
}

// KeyDeriver expands the RootSecret into a DerivedKeyPair. Derivation is
// deterministic, so callers re-derive per operation and Close the pair afterwards.
type KeyDeriver interface {
	Derive() (*cryptoDomain.DerivedKeyPair, error)
}

// EnvelopeCipher seals token payloads into EnvelopeBlobs and opens them again.
type EnvelopeCipher interface {
	// Encrypt validates payload, then seals it under a freshly generated DEK.
	Encrypt(payload *cryptoDomain.TokenPayload) (*cryptoDomain.EnvelopeBlob, error)

	// Decrypt unwraps the DEK, opens the payload and checks its fingerprint.
	Decrypt(blob *cryptoDomain.EnvelopeBlob) (*cryptoDomain.TokenPayload, error)

	// Fingerprint computes the integrity fingerprint of payload without encrypting it.
	Fingerprint(payload *cryptoDomain.TokenPayload) ([]byte, error)
}

// KMSService opens keepers for KMS-wrapped root secrets.
type KMSService interface {
	OpenKeeper(ctx context.Context, keyURI string) (cryptoDomain.KMSKeeper, error)
}

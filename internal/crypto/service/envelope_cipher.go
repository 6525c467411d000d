package service

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"

	cryptoDomain "github.com/allisson/channelvault/internal/crypto/domain"
)

// EnvelopeCipherService implements EnvelopeCipher. The derived cipher key only ever
// seals 32-byte DEKs; payloads are sealed under their own DEK.
type EnvelopeCipherService struct {
	deriver     KeyDeriver
	aeadManager AEADManager
	alg         cryptoDomain.Algorithm
}

// NewEnvelopeCipher creates an envelope cipher using alg for both layers.
func NewEnvelopeCipher(
	deriver KeyDeriver,
	aeadManager AEADManager,
	alg cryptoDomain.Algorithm,
) *EnvelopeCipherService {
	return &EnvelopeCipherService{
		deriver:     deriver,
		aeadManager: aeadManager,
		alg:         alg,
	}
}

// Encrypt seals payload into a new EnvelopeBlob under a freshly generated DEK.
func (e *EnvelopeCipherService) Encrypt(
	payload *cryptoDomain.TokenPayload,
) (*cryptoDomain.EnvelopeBlob, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	keys, err := e.deriver.Derive()
	if err != nil {
		return nil, err
	}
	defer keys.Close()

	dek := make([]byte, cryptoDomain.KeySize)
	if _, err := rand.Read(dek); err != nil {
		return nil, fmt.Errorf("failed to generate dek: %w", err)
	}
	defer cryptoDomain.Zero(dek)

	kek, err := e.aeadManager.CreateCipher(keys.CipherKey, e.alg)
	if err != nil {
		return nil, err
	}
	wrappedCiphertext, wrappedIV, err := kek.Encrypt(dek, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap dek: %w", err)
	}

	plaintext, err := payload.Canonical()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize token payload: %w", err)
	}
	defer cryptoDomain.Zero(plaintext)

	dekCipher, err := e.aeadManager.CreateCipher(dek, e.alg)
	if err != nil {
		return nil, err
	}
	ciphertext, iv, err := dekCipher.Encrypt(plaintext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt token payload: %w", err)
	}

	return &cryptoDomain.EnvelopeBlob{
		WrappedIV:         wrappedIV,
		WrappedCiphertext: wrappedCiphertext,
		IV:                iv,
		Ciphertext:        ciphertext,
		Fingerprint:       fingerprint(keys.IntegrityKey, plaintext),
	}, nil
}

// Decrypt opens blob. Every authentication, size or fingerprint failure returns
// ErrDecryptionFailed.
func (e *EnvelopeCipherService) Decrypt(
	blob *cryptoDomain.EnvelopeBlob,
) (*cryptoDomain.TokenPayload, error) {
	if err := blob.Validate(); err != nil {
		return nil, err
	}

	keys, err := e.deriver.Derive()
	if err != nil {
		return nil, err
	}
	defer keys.Close()

	kek, err := e.aeadManager.CreateCipher(keys.CipherKey, e.alg)
	if err != nil {
		return nil, err
	}
	dek, err := kek.Decrypt(blob.WrappedCiphertext, blob.WrappedIV, nil)
	if err != nil {
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	defer cryptoDomain.Zero(dek)
	if len(dek) != cryptoDomain.KeySize {
		return nil, cryptoDomain.ErrDecryptionFailed
	}

	dekCipher, err := e.aeadManager.CreateCipher(dek, e.alg)
	if err != nil {
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	plaintext, err := dekCipher.Decrypt(blob.Ciphertext, blob.IV, nil)
	if err != nil {
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	defer cryptoDomain.Zero(plaintext)

	if !hmac.Equal(fingerprint(keys.IntegrityKey, plaintext), blob.Fingerprint) {
		return nil, cryptoDomain.ErrDecryptionFailed
	}

	var payload cryptoDomain.TokenPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	return &payload, nil
}

// Fingerprint returns HMAC-SHA256(integrityKey, canonical(payload)).
func (e *EnvelopeCipherService) Fingerprint(payload *cryptoDomain.TokenPayload) ([]byte, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	keys, err := e.deriver.Derive()
	if err != nil {
		return nil, err
	}
	defer keys.Close()

	plaintext, err := payload.Canonical()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize token payload: %w", err)
	}
	defer cryptoDomain.Zero(plaintext)

	return fingerprint(keys.IntegrityKey, plaintext), nil
}

func fingerprint(key, plaintext []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(plaintext)
	return mac.Sum(nil)
}

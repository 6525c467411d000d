package service

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	cryptoDomain "github.com/allisson/channelvault/internal/crypto/domain"
)

// HKDFKeyDeriver derives the cipher and integrity keys with HKDF-SHA256 over the
// RootSecret, using a fixed salt and the "envelope-v1" info string.
type HKDFKeyDeriver struct {
	secret *cryptoDomain.RootSecret
	salt   []byte
	info   []byte
}

// NewKeyDeriver binds a deriver to secret. It fails with ErrConfiguration when the
// secret is absent or shorter than 32 bytes.
func NewKeyDeriver(secret *cryptoDomain.RootSecret) (*HKDFKeyDeriver, error) {
	if secret == nil || len(secret.Bytes()) < cryptoDomain.RootSecretMinSize {
		return nil, fmt.Errorf(
			"%w: root secret must be at least %d bytes",
			cryptoDomain.ErrConfiguration,
			cryptoDomain.RootSecretMinSize,
		)
	}

	return &HKDFKeyDeriver{
		secret: secret,
		salt:   []byte(cryptoDomain.KDFSalt),
		info:   []byte(cryptoDomain.KDFInfo),
	}, nil
}

// Derive expands 64 bytes of key material: the first 32 form the cipher key, the last
// 32 the integrity key. It fails with ErrConfiguration once the root secret is closed.
func (d *HKDFKeyDeriver) Derive() (*cryptoDomain.DerivedKeyPair, error) {
	okm := make([]byte, 2*cryptoDomain.KeySize)
	defer cryptoDomain.Zero(okm)

	err := d.secret.Use(func(key []byte) error {
		reader := hkdf.New(sha256.New, key, d.salt, d.info)
		if _, err := io.ReadFull(reader, okm); err != nil {
			return fmt.Errorf("failed to derive keys: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	pair := &cryptoDomain.DerivedKeyPair{
		CipherKey:    make([]byte, cryptoDomain.KeySize),
		IntegrityKey: make([]byte, cryptoDomain.KeySize),
	}
	copy(pair.CipherKey, okm[:cryptoDomain.KeySize])
	copy(pair.IntegrityKey, okm[cryptoDomain.KeySize:])
	return pair, nil
}

package domain

import (
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
)

// RootSecret is the single top-level secret every vault key is derived from. It is
// loaded once at startup, passed by reference to the key deriver and never persisted.
type RootSecret struct {
	mu  sync.RWMutex
	key []byte
}

// NewRootSecret copies raw into a RootSecret. It fails with ErrConfiguration when raw
// is shorter than RootSecretMinSize.
func NewRootSecret(raw []byte) (*RootSecret, error) {
	if len(raw) < RootSecretMinSize {
		return nil, fmt.Errorf(
			"%w: root secret must be at least %d bytes, got %d",
			ErrConfiguration,
			RootSecretMinSize,
			len(raw),
		)
	}

	key := make([]byte, len(raw))
	copy(key, raw)
	return &RootSecret{key: key}, nil
}

// ParseRootSecret decodes a standard base64 value into a RootSecret.
func ParseRootSecret(encoded string) (*RootSecret, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, fmt.Errorf("%w: root secret is not set", ErrConfiguration)
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: root secret is not valid base64", ErrConfiguration)
	}
	defer Zero(raw)

	return NewRootSecret(raw)
}

// Bytes returns the secret material. Callers must not modify or retain it.
func (r *RootSecret) Bytes() []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.key
}

// Use calls fn with the secret material while holding it open, so Close waits for fn
// to return. It fails with ErrConfiguration once the secret has been closed.
func (r *RootSecret) Use(fn func(key []byte) error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.key) < RootSecretMinSize {
		return fmt.Errorf("%w: root secret is closed", ErrConfiguration)
	}
	return fn(r.key)
}

// Close wipes the secret from memory. The RootSecret is unusable afterwards.
func (r *RootSecret) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	Zero(r.key)
	r.key = nil
}

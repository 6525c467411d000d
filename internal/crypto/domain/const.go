package domain

import (
	"fmt"
	"strings"
)

// Algorithm names the AEAD construction used for both envelope layers.
//
// Both supported algorithms take a 256-bit key and a 12-byte nonce and produce a
// 16-byte authentication tag. AESGCM is the default; ChaCha20 is available for hosts
// without AES hardware acceleration.
type Algorithm string

const (
	// AESGCM is AES-256 in Galois/Counter Mode.
	AESGCM Algorithm = "aes-gcm"

	// ChaCha20 is ChaCha20-Poly1305 (RFC 8439).
	ChaCha20 Algorithm = "chacha20-poly1305"
)

const (
	// RootSecretMinSize is the minimum accepted RootSecret length in bytes.
	RootSecretMinSize = 32

	// KeySize is the size of every symmetric key handled by the vault: the cipher key,
	// the integrity key and each DEK.
	KeySize = 32

	// NonceSize is the AEAD nonce length for both supported algorithms.
	NonceSize = 12

	// FingerprintSize is the length of an HMAC-SHA256 fingerprint.
	FingerprintSize = 32

	// KDFSalt is the fixed domain-separation salt fed to HKDF.
	KDFSalt = "channelvault-kdf"

	// KDFInfo binds derived keys to the current envelope format.
	KDFInfo = "envelope-v1"
)

// ParseAlgorithm converts a configuration value into an Algorithm.
func ParseAlgorithm(value string) (Algorithm, error) {
	switch alg := Algorithm(strings.ToLower(strings.TrimSpace(value))); alg {
	case AESGCM, ChaCha20:
		return alg, nil
	case "":
		return AESGCM, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, value)
	}
}

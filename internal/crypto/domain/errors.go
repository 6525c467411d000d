package domain

import (
	"github.com/allisson/channelvault/internal/errors"
)

// Cryptographic errors. Every decryption-side failure surfaces as ErrDecryptionFailed
// so callers never act on partially decrypted or unauthenticated data.
var (
	// ErrConfiguration indicates the vault cannot start: RootSecret missing or too
	// short, or an unusable KMS key. It is fatal at startup.
	ErrConfiguration = errors.Wrap(errors.ErrConfiguration, "vault")

	// ErrUnsupportedAlgorithm indicates an unknown AEAD algorithm was requested.
	ErrUnsupportedAlgorithm = errors.Wrap(errors.ErrInvalidInput, "unsupported algorithm")

	// ErrInvalidKeySize indicates a key that is not exactly 32 bytes.
	ErrInvalidKeySize = errors.Wrap(errors.ErrInvalidInput, "invalid key size")

	// ErrDecryptionFailed indicates an AEAD authentication failure on unwrap or decrypt,
	// or a fingerprint mismatch. The cause is intentionally not disclosed; it may be
	// tampering or a RootSecret that changed without re-encrypting stored blobs.
	ErrDecryptionFailed = errors.Wrap(errors.ErrInvalidInput, "decryption failed")

	// ErrInvalidEnvelope indicates an EnvelopeBlob whose fields are missing or have the
	// wrong size. It is a decryption failure.
	ErrInvalidEnvelope = errors.Wrap(ErrDecryptionFailed, "invalid envelope blob")

	// ErrInvalidTokenPayload indicates a token payload rejected at the cipher boundary.
	ErrInvalidTokenPayload = errors.Wrap(errors.ErrInvalidInput, "invalid token payload")
)

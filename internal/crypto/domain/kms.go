package domain

import "context"

// KMSKeeper decrypts a KMS-wrapped RootSecret. *secrets.Keeper from gocloud.dev
// satisfies it.
type KMSKeeper interface {
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	Close() error
}

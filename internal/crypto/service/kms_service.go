package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"gocloud.dev/secrets"

	cryptoDomain "github.com/allisson/channelvault/internal/crypto/domain"

	// Register KMS provider drivers.
	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/hashivault"
	_ "gocloud.dev/secrets/localsecrets"
)

type kmsService struct{}

// NewKMSService returns a KMSService backed by gocloud.dev/secrets.
func NewKMSService() KMSService {
	return &kmsService{}
}

func (k *kmsService) OpenKeeper(ctx context.Context, keyURI string) (cryptoDomain.KMSKeeper, error) {
	keeper, err := secrets.OpenKeeper(ctx, keyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open KMS keeper: %w", err)
	}
	return keeper, nil
}

// LoadRootSecret decodes the configured ROOT_SECRET. When keyURI is set the decoded
// bytes are KMS ciphertext and are decrypted through the keeper first.
func LoadRootSecret(
	ctx context.Context,
	kms KMSService,
	encoded string,
	keyURI string,
) (*cryptoDomain.RootSecret, error) {
	if strings.TrimSpace(keyURI) == "" {
		return cryptoDomain.ParseRootSecret(encoded)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil || len(ciphertext) == 0 {
		return nil, fmt.Errorf("%w: root secret is not valid base64 KMS ciphertext", cryptoDomain.ErrConfiguration)
	}

	keeper, err := kms.OpenKeeper(ctx, keyURI)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cryptoDomain.ErrConfiguration, err)
	}
	defer func() { _ = keeper.Close() }()

	raw, err := keeper.Decrypt(ctx, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decrypt root secret with KMS: %v", cryptoDomain.ErrConfiguration, err)
	}
	defer cryptoDomain.Zero(raw)

	return cryptoDomain.NewRootSecret(raw)
}

// SealRootSecret encrypts raw with the KMS key at keyURI and returns the base64
// ciphertext suitable for ROOT_SECRET.
func SealRootSecret(ctx context.Context, kms KMSService, keyURI string, raw []byte) (string, error) {
	keeper, err := kms.OpenKeeper(ctx, keyURI)
	if err != nil {
		return "", err
	}
	defer func() { _ = keeper.Close() }()

	encrypter, ok := keeper.(interface {
		Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	})
	if !ok {
		return "", fmt.Errorf("KMS keeper does not support encryption")
	}

	ciphertext, err := encrypter.Encrypt(ctx, raw)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt root secret with KMS: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

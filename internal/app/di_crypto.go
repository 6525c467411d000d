package app

import (
	"context"
	"fmt"
	"log/slog"

	cryptoDomain "github.com/allisson/channelvault/internal/crypto/domain"
	cryptoService "github.com/allisson/channelvault/internal/crypto/service"
)

// KMSService returns the KMS service.
func (c *Container) KMSService() cryptoService.KMSService {
	c.kmsServiceInit.Do(func() {
		c.kmsService = cryptoService.NewKMSService()
	})
	return c.kmsService
}

// RootSecret returns the root secret loaded from ROOT_SECRET, unwrapped through the
// KMS when KMS_KEY_URI is set.
func (c *Container) RootSecret() (*cryptoDomain.RootSecret, error) {
	var err error
	c.rootSecretInit.Do(func() {
		c.rootSecret, err = c.initRootSecret()
		if err != nil {
			c.initErrors["rootSecret"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["rootSecret"]; exists {
		return nil, storedErr
	}
	return c.rootSecret, nil
}

// EnvelopeCipher returns the token envelope cipher.
func (c *Container) EnvelopeCipher() (cryptoService.EnvelopeCipher, error) {
	var err error
	c.envelopeCipherInit.Do(func() {
		c.envelopeCipher, err = c.initEnvelopeCipher()
		if err != nil {
			c.initErrors["envelopeCipher"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["envelopeCipher"]; exists {
		return nil, storedErr
	}
	return c.envelopeCipher, nil
}

// initRootSecret loads the root secret and fails fast on a missing or short value.
func (c *Container) initRootSecret() (*cryptoDomain.RootSecret, error) {
	keyURI := ""
	if c.config.KMSProvider != "" {
		keyURI = c.config.KMSKeyURI
		if keyURI == "" {
			return nil, fmt.Errorf("%w: KMS_PROVIDER is set but KMS_KEY_URI is empty", cryptoDomain.ErrConfiguration)
		}
	}

	secret, err := cryptoService.LoadRootSecret(context.Background(), c.KMSService(), c.config.RootSecret, keyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to load root secret: %w", err)
	}

	c.Logger().Info("root secret loaded", slog.String("kms_provider", c.config.KMSProvider))
	return secret, nil
}

// initEnvelopeCipher creates the envelope cipher over keys derived from the root secret.
func (c *Container) initEnvelopeCipher() (cryptoService.EnvelopeCipher, error) {
	alg, err := cryptoDomain.ParseAlgorithm(c.config.EnvelopeAlgorithm)
	if err != nil {
		return nil, err
	}

	secret, err := c.RootSecret()
	if err != nil {
		return nil, err
	}

	deriver, err := cryptoService.NewKeyDeriver(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to create key deriver: %w", err)
	}

	return cryptoService.NewEnvelopeCipher(deriver, cryptoService.NewAEADManager(), alg), nil
}

package commands

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"

	cryptoDomain "github.com/allisson/channelvault/internal/crypto/domain"
	cryptoService "github.com/allisson/channelvault/internal/crypto/service"
)

// RunCreateRootSecret generates a 32-byte root secret for the token vault and prints
// it as environment variables. Without KMS parameters the secret is printed as plain
// base64. With them it is sealed by the KMS key first, and the vault unseals it at
// startup. Key material is zeroed from memory after encoding.
func RunCreateRootSecret(
	ctx context.Context,
	kmsService cryptoService.KMSService,
	logger *slog.Logger,
	writer io.Writer,
	kmsProvider, kmsKeyURI string,
) error {
	if (kmsProvider == "") != (kmsKeyURI == "") {
		return fmt.Errorf(
			"--kms-provider and --kms-key-uri are required together\n\nFor local development, use:\n  --kms-provider=localsecrets --kms-key-uri=\"base64key://<32-byte-base64-key>\"",
		)
	}

	secret := make([]byte, cryptoDomain.RootSecretMinSize)
	if _, err := rand.Read(secret); err != nil {
		return fmt.Errorf("failed to generate root secret: %w", err)
	}
	defer cryptoDomain.Zero(secret)

	if kmsProvider == "" {
		logger.Warn("root secret generated without KMS, keep it in a secrets manager")
		_, _ = fmt.Fprintln(writer, "# Root Secret Configuration")
		_, _ = fmt.Fprintln(writer, "# Copy this environment variable to your .env file or secrets manager")
		_, _ = fmt.Fprintln(writer)
		_, _ = fmt.Fprintf(writer, "ROOT_SECRET=\"%s\"\n", base64.StdEncoding.EncodeToString(secret))
		return nil
	}

	logger.Info("sealing root secret with KMS", slog.String("kms_provider", kmsProvider))

	sealed, err := cryptoService.SealRootSecret(ctx, kmsService, kmsKeyURI, secret)
	if err != nil {
		return fmt.Errorf("failed to seal root secret: %w", err)
	}

	_, _ = fmt.Fprintln(writer, "# Root Secret Configuration (KMS Mode)")
	_, _ = fmt.Fprintln(writer, "# Copy these environment variables to your .env file or secrets manager")
	_, _ = fmt.Fprintln(writer)
	_, _ = fmt.Fprintf(writer, "KMS_PROVIDER=\"%s\"\n", kmsProvider)
	_, _ = fmt.Fprintf(writer, "KMS_KEY_URI=\"%s\"\n", kmsKeyURI)
	_, _ = fmt.Fprintf(writer, "ROOT_SECRET=\"%s\"\n", sealed)
	return nil
}

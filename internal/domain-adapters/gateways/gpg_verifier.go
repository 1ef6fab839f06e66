package gateways

import (
	"context"
	"fmt"

	"github.com/ochairo/cauldron/internal/external-adapters/gpg"
)

// gpgVerifier wraps the external GPG adapter for the security gateway
type gpgVerifier struct {
	verifier *gpg.Verifier
}

// NewGPGVerifier creates a new GPG verifier gateway
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewGPGVerifier() *gpgVerifier {
	return &gpgVerifier{
		verifier: gpg.NewVerifier(),
	}
}

// ImportKeyFromFile imports a public key from a local file
func (g *gpgVerifier) ImportKeyFromFile(keyPath string) error {
	if err := g.verifier.ImportKeyFromFile(keyPath); err != nil {
		return fmt.Errorf("failed to import GPG key from file: %w", err)
	}
	return nil
}

// ImportKeysFromURL imports all keys of a KEYS file
func (g *gpgVerifier) ImportKeysFromURL(ctx context.Context, keysURL string) error {
	if err := g.verifier.ImportKeysFromURL(ctx, keysURL); err != nil {
		return fmt.Errorf("failed to import GPG keys from URL: %w", err)
	}
	return nil
}

// VerifySignature verifies a detached signature stored next to the file
func (g *gpgVerifier) VerifySignature(ctx context.Context, filePath, sigPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := g.verifier.VerifySignatureFromFile(filePath, sigPath); err != nil {
		return fmt.Errorf("GPG signature verification failed: %w", err)
	}
	return nil
}

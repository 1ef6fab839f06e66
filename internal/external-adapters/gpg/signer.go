package gpg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
)

// SignatureExtension is appended to the signed file's name
const SignatureExtension = ".asc"

// ErrNoSigningKey is returned when a key file holds no usable private key
var ErrNoSigningKey = errors.New("no private signing key")

// Signer produces armored detached signatures with one private key
type Signer struct {
	entity *openpgp.Entity
}

// NewSigner loads the first private key of keyPath, decrypting it with passphrase when needed
func NewSigner(keyPath string, passphrase []byte) (*Signer, error) {
	//nolint:gosec // G304: keyPath is user-provided for signing
	f, err := os.Open(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open key file: %w", err)
	}
	//nolint:errcheck // Defer close
	defer f.Close()

	keys, err := readKeyRing(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read key: %w", err)
	}

	for _, entity := range keys {
		if entity.PrivateKey == nil {
			continue
		}
		if err := entity.DecryptPrivateKeys(passphrase); err != nil {
			return nil, fmt.Errorf("failed to unlock key %X: %w", entity.PrimaryKey.Fingerprint, err)
		}
		if _, ok := entity.SigningKey(time.Now()); !ok {
			continue
		}
		return &Signer{entity: entity}, nil
	}
	return nil, fmt.Errorf("%w in %s", ErrNoSigningKey, keyPath)
}

// Fingerprint returns the hex fingerprint of the signing key
func (s *Signer) Fingerprint() string {
	return fmt.Sprintf("%X", s.entity.PrimaryKey.Fingerprint)
}

// SignFile writes "<path>.asc" and returns its path
func (s *Signer) SignFile(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	//nolint:gosec // G304: path is the build output being signed
	data, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer data.Close()

	sigPath := path + SignatureExtension
	//nolint:gosec // G304: signature sits next to the signed file
	out, err := os.Create(sigPath)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", sigPath, err)
	}

	if err := openpgp.ArmoredDetachSign(out, s.entity, data, nil); err != nil {
		//nolint:errcheck,gosec // G104: signing error takes precedence
		out.Close()
		return "", fmt.Errorf("failed to sign %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return sigPath, nil
}

// Package gpg signs and verifies detached OpenPGP signatures.
package gpg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
)

const (
	maxKeysFileSize  = 10 * 1024 * 1024
	armorHeaderProbe = "-----BEGIN PGP"
)

// ErrNoKeys is returned when a verification is attempted before any key was imported
var ErrNoKeys = errors.New("no GPG keys imported")

// Verifier checks detached signatures against an in-memory keyring
type Verifier struct {
	keyring    openpgp.EntityList
	httpClient *http.Client
}

// NewVerifier creates a new GPG verifier
func NewVerifier() *Verifier {
	return &Verifier{
		keyring: make(openpgp.EntityList, 0),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ImportKeysFromURL imports all keys of a KEYS file, as published by Apache projects
func (v *Verifier) ImportKeysFromURL(ctx context.Context, keysURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, keysURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download KEYS file: %w", err)
	}
	//nolint:errcheck // Defer close
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("KEYS file download failed with status %d", resp.StatusCode)
	}

	return v.ImportKeyring(io.LimitReader(resp.Body, maxKeysFileSize))
}

// ImportKeyFromFile imports an armored or binary key file
func (v *Verifier) ImportKeyFromFile(keyPath string) error {
	//nolint:gosec // G304: keyPath is user-provided for GPG key import
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return fmt.Errorf("failed to open key file: %w", err)
	}
	return v.ImportKeyring(bytes.NewReader(data))
}

// ImportKeyring adds every key in r to the keyring
func (v *Verifier) ImportKeyring(r io.Reader) error {
	keys, err := readKeyRing(r)
	if err != nil {
		return fmt.Errorf("failed to read key: %w", err)
	}
	if len(keys) == 0 {
		return fmt.Errorf("no keys found")
	}
	v.keyring = append(v.keyring, keys...)
	return nil
}

// VerifySignatureFromFile verifies a detached armored or binary signature of filePath
func (v *Verifier) VerifySignatureFromFile(filePath, sigPath string) error {
	if len(v.keyring) == 0 {
		return ErrNoKeys
	}

	//nolint:gosec // G304: sigPath is user-provided for GPG verification
	sigFile, err := os.Open(sigPath)
	if err != nil {
		return fmt.Errorf("failed to open signature file: %w", err)
	}
	//nolint:errcheck // Defer close
	defer sigFile.Close()

	//nolint:gosec // G304: filePath is user-provided for GPG verification
	dataFile, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open data file: %w", err)
	}
	//nolint:errcheck // Defer close
	defer dataFile.Close()

	sig := bufio.NewReader(sigFile)
	if isArmored(sig) {
		_, err = openpgp.CheckArmoredDetachedSignature(v.keyring, dataFile, sig, nil)
	} else {
		_, err = openpgp.CheckDetachedSignature(v.keyring, dataFile, sig, nil)
	}
	if err != nil {
		return fmt.Errorf("signature verification failed: %w", err)
	}
	return nil
}

// KeyringSize returns the number of keys in the keyring
func (v *Verifier) KeyringSize() int {
	return len(v.keyring)
}

// ClearKeyring clears all imported keys
func (v *Verifier) ClearKeyring() {
	v.keyring = make(openpgp.EntityList, 0)
}

func readKeyRing(r io.Reader) (openpgp.EntityList, error) {
	br := bufio.NewReader(r)
	if isArmored(br) {
		return openpgp.ReadArmoredKeyRing(br)
	}
	return openpgp.ReadKeyRing(br)
}

func isArmored(r *bufio.Reader) bool {
	head, _ := r.Peek(len(armorHeaderProbe) + 16)
	return bytes.Contains(head, []byte(armorHeaderProbe))
}

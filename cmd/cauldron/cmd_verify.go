package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ochairo/cauldron/internal/external-adapters/gpg"
)

func newVerifyCmd() *cobra.Command {
	var keyFile, keysURL string
	cmd := &cobra.Command{
		Use:   "verify <file>",
		Short: "Verify a file against its .sha256 sidecar and optional signature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				expected, err := readSidecarChecksum(path + ".sha256")
				if err != nil {
					return err
				}
				if err := a.security.VerifyChecksum(ctx, path, expected); err != nil {
					return err
				}
				printSuccess(a.out, "checksum OK %s", faint(expected))

				sigPath := path + gpg.SignatureExtension
				if _, err := os.Stat(sigPath); errors.Is(err, fs.ErrNotExist) {
					if keyFile != "" || keysURL != "" {
						return fmt.Errorf("no signature %s", sigPath)
					}
					return nil
				}
				if keyFile == "" && keysURL == "" {
					printWarning(a.out, "signature %s present but not checked (use --key)", sigPath)
					return nil
				}
				if keyFile != "" {
					if err := a.security.ImportKeyFromFile(keyFile); err != nil {
						return err
					}
				}
				if keysURL != "" {
					if err := a.security.ImportKeysFromURL(ctx, keysURL); err != nil {
						return err
					}
				}
				if err := a.security.VerifySignature(ctx, path, sigPath); err != nil {
					return err
				}
				printSuccess(a.out, "signature OK")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&keyFile, "key", "", "armored or binary public key used to check the signature")
	cmd.Flags().StringVar(&keysURL, "keys-url", "", "URL of a KEYS file with the signer's public keys")
	return cmd
}

// readSidecarChecksum reads the digest from a "<hash>  <file>" sidecar
func readSidecarChecksum(path string) (string, error) {
	//nolint:gosec // G304: path is the user-provided file plus a fixed extension
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read checksum file: %w", err)
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return "", fmt.Errorf("checksum file %s is empty", path)
	}
	return fields[0], nil
}

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ochairo/cauldron/internal/external-adapters/gpg"
)

func newSignCmd() *cobra.Command {
	var keyFile string
	cmd := &cobra.Command{
		Use:   "sign <file>",
		Short: "Write an ASCII-armored detached signature next to a file",
		Long: `Sign writes <file>.asc using the private key given by --key or the gpg_key
setting. A protected key is unlocked with CAULDRON_GPG_PASSPHRASE.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				if keyFile == "" {
					keyFile = a.config.GPGKey
				}
				if keyFile == "" {
					return fmt.Errorf("no signing key: pass --key or set gpg_key")
				}
				signer, err := gpg.NewSigner(keyFile, passphrase())
				if err != nil {
					return err
				}
				sig, err := signer.SignFile(ctx, args[0])
				if err != nil {
					return err
				}
				printSuccess(a.out, "signed with %s: %s", signer.Fingerprint(), sig)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&keyFile, "key", "", "private key file")
	return cmd
}

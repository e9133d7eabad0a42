package main

import (
	"fmt"

	relay "github.com/dawitel/ed25519-relay"
	"github.com/spf13/cobra"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an Ed25519 key pair",
	Long: `Generate a new Ed25519 key pair and print both halves as hex.

The public key goes into PUBLIC_KEY; keep the private key with the sender.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		kp, err := relay.GenerateKeyPair()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "PUBLIC_KEY=%s\nPRIVATE_KEY=%s\n", kp.PublicKey, kp.PrivateKey)
		return nil
	},
}

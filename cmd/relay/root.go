package main

import (
	"github.com/spf13/cobra"
)

var envFile string

// rootCmd runs the relay when no subcommand is given
var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "Ed25519 signed webhook relay",
	Long: `relay verifies Ed25519 signed webhooks and forwards them to a downstream
HTTP service, passing the downstream status and body back to the caller.

Configuration is read from the environment (and an optional .env file):
  PUBLIC_KEY       hex encoded Ed25519 public key (required)
  FORWARDING_URL   downstream URL (required)
  PORT             listening port (required)`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.AddCommand(serveCmd, keygenCmd, signCmd)
}

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	relay "github.com/dawitel/ed25519-relay"
	"github.com/spf13/cobra"
)

var (
	signPrivateKey string
	signTimestamp  string
	signBody       string
	signBodyFile   string
)

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Sign a request body the way the relay expects",
	Long: `Sign timestamp followed by body with an Ed25519 private key and print the
headers to send.

Examples:
  relay sign --private-key $PRIVATE_KEY --body '{"ping":1}'
  relay sign --private-key $PRIVATE_KEY --timestamp 1700000000 --body-file payload.json
  echo -n '{"ping":1}' | relay sign --private-key $PRIVATE_KEY --body-file -`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if signPrivateKey == "" {
			signPrivateKey = os.Getenv("PRIVATE_KEY")
		}
		if signPrivateKey == "" {
			return errors.New("--private-key or PRIVATE_KEY is required")
		}

		body, err := readSignBody(cmd.InOrStdin())
		if err != nil {
			return err
		}

		timestamp := signTimestamp
		if timestamp == "" {
			timestamp = strconv.FormatInt(time.Now().Unix(), 10)
		}

		sig, err := relay.Sign(signPrivateKey, timestamp, body)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s: %s\n", relay.SignatureHeader, sig)
		fmt.Fprintf(out, "%s: %s\n", relay.TimestampHeader, timestamp)
		return nil
	},
}

func init() {
	signCmd.Flags().StringVar(&signPrivateKey, "private-key", "", "hex encoded Ed25519 private key or seed (default $PRIVATE_KEY)")
	signCmd.Flags().StringVar(&signTimestamp, "timestamp", "", "timestamp header value (default: current unix time)")
	signCmd.Flags().StringVar(&signBody, "body", "", "request body to sign")
	signCmd.Flags().StringVar(&signBodyFile, "body-file", "", "read the body from a file, '-' for stdin")
	signCmd.MarkFlagsMutuallyExclusive("body", "body-file")
}

func readSignBody(stdin io.Reader) ([]byte, error) {
	switch signBodyFile {
	case "":
		return []byte(signBody), nil
	case "-":
		return io.ReadAll(stdin)
	default:
		b, err := os.ReadFile(signBodyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read body file: %w", err)
		}
		return b, nil
	}
}

package main

import (
	"bytes"
	"strings"
	"testing"

	relay "github.com/dawitel/ed25519-relay"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin string, args ...string) string {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		signCmd.Flags().VisitAll(func(f *pflag.Flag) {
			f.Value.Set(f.DefValue)
			f.Changed = false
		})
	})

	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func parseHeaders(out string) map[string]string {
	headers := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if k, v, ok := strings.Cut(line, ": "); ok {
			headers[k] = v
		}
	}
	return headers
}

func TestKeygenAndSign(t *testing.T) {
	keys := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(execute(t, "", "keygen")), "\n") {
		k, v, ok := strings.Cut(line, "=")
		require.True(t, ok)
		keys[k] = v
	}
	require.Len(t, keys["PUBLIC_KEY"], 64)
	require.Len(t, keys["PRIVATE_KEY"], 128)

	v, err := relay.NewVerifier(keys["PUBLIC_KEY"])
	require.NoError(t, err)

	t.Run("body flag", func(t *testing.T) {
		headers := parseHeaders(execute(t, "", "sign",
			"--private-key", keys["PRIVATE_KEY"],
			"--timestamp", "1700000000",
			"--body", `{"ping":1}`))

		assert.Equal(t, "1700000000", headers[relay.TimestampHeader])
		assert.True(t, v.Verify(headers[relay.SignatureHeader], "1700000000", []byte(`{"ping":1}`)))
	})

	t.Run("stdin body and default timestamp", func(t *testing.T) {
		t.Setenv("PRIVATE_KEY", keys["PRIVATE_KEY"])

		headers := parseHeaders(execute(t, `{"from":"stdin"}`, "sign", "--body-file", "-"))

		ts := headers[relay.TimestampHeader]
		require.NotEmpty(t, ts)
		assert.True(t, v.Verify(headers[relay.SignatureHeader], ts, []byte(`{"from":"stdin"}`)))
	})
}

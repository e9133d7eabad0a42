package relay

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVerifier(t *testing.T) {
	keys := newTestKeys(t)

	t.Run("valid key", func(t *testing.T) {
		v, err := NewVerifier(keys.publicHex)
		require.NoError(t, err)
		assert.NotNil(t, v)
	})

	tests := []struct {
		name string
		key  string
	}{
		{"empty", ""},
		{"not hex", "zz" + keys.publicHex[2:]},
		{"too short", keys.publicHex[:62]},
		{"too long", keys.publicHex + "00"},
		{"odd length", keys.publicHex[:63]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewVerifier(tt.key)
			assert.Nil(t, v)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfigurationMissing))
		})
	}
}

func TestVerifier_AcceptsValidSignature(t *testing.T) {
	keys := newTestKeys(t)
	v, err := NewVerifier(keys.publicHex)
	require.NoError(t, err)

	bodies := []string{`{"ping":1}`, ``, `{"type":1,"data":{"name":"hello"}}`, strings.Repeat("x", 4096)}
	timestamps := []string{testTimestamp, "0", "not-a-time-at-all"}

	for _, body := range bodies {
		for _, ts := range timestamps {
			sig := keys.sign(ts, []byte(body))
			assert.True(t, v.Verify(sig, ts, []byte(body)), "body=%q ts=%q", body, ts)
		}
	}
}

func TestVerifier_AcceptsUppercaseHexSignature(t *testing.T) {
	keys := newTestKeys(t)
	v, err := NewVerifier(keys.publicHex)
	require.NoError(t, err)

	body := []byte(`{"ping":1}`)
	sig := strings.ToUpper(keys.sign(testTimestamp, body))
	assert.True(t, v.Verify(sig, testTimestamp, body))
}

func TestVerifier_SingleBitMutationsAreRejected(t *testing.T) {
	keys := newTestKeys(t)
	v, err := NewVerifier(keys.publicHex)
	require.NoError(t, err)

	body := []byte(`{"ping":1}`)
	sigHex := keys.sign(testTimestamp, body)
	sig, err := hex.DecodeString(sigHex)
	require.NoError(t, err)

	t.Run("signature", func(t *testing.T) {
		for i := 0; i < len(sig)*8; i++ {
			mutated := append([]byte(nil), sig...)
			mutated[i/8] ^= 1 << (i % 8)
			assert.False(t, v.Verify(hex.EncodeToString(mutated), testTimestamp, body), "bit %d", i)
		}
	})

	t.Run("timestamp", func(t *testing.T) {
		ts := []byte(testTimestamp)
		for i := 0; i < len(ts)*8; i++ {
			mutated := append([]byte(nil), ts...)
			mutated[i/8] ^= 1 << (i % 8)
			assert.False(t, v.Verify(sigHex, string(mutated), body), "bit %d", i)
		}
	})

	t.Run("body", func(t *testing.T) {
		for i := 0; i < len(body)*8; i++ {
			mutated := append([]byte(nil), body...)
			mutated[i/8] ^= 1 << (i % 8)
			assert.False(t, v.Verify(sigHex, testTimestamp, mutated), "bit %d", i)
		}
	})
}

func TestVerifier_SignatureCoversTimestampBoundary(t *testing.T) {
	keys := newTestKeys(t)
	v, err := NewVerifier(keys.publicHex)
	require.NoError(t, err)

	// "17" + "00{}" and "1700" + "{}" are the same signed bytes; shifting the
	// boundary must still verify because no separator is used.
	sig := keys.sign("17", []byte("00{}"))
	assert.True(t, v.Verify(sig, "1700", []byte("{}")))
}

func TestVerifier_WrongKeyIsRejected(t *testing.T) {
	signer := newTestKeys(t)
	other := newTestKeys(t)

	v, err := NewVerifier(other.publicHex)
	require.NoError(t, err)

	body := []byte(`{"ping":1}`)
	assert.False(t, v.Verify(signer.sign(testTimestamp, body), testTimestamp, body))
}

func TestVerifier_FailsClosedOnMalformedInput(t *testing.T) {
	keys := newTestKeys(t)
	v, err := NewVerifier(keys.publicHex)
	require.NoError(t, err)

	body := []byte(`{"ping":1}`)
	valid := keys.sign(testTimestamp, body)

	tests := []struct {
		name      string
		signature string
		timestamp string
	}{
		{"empty signature", "", testTimestamp},
		{"empty timestamp", valid, ""},
		{"non hex signature", "g" + valid[1:], testTimestamp},
		{"odd length signature", valid[:127], testTimestamp},
		{"short signature", valid[:126], testTimestamp},
		{"long signature", valid + "00", testTimestamp},
		{"whitespace padded signature", " " + valid, testTimestamp},
		{"all zero signature", strings.Repeat("0", 128), testTimestamp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.False(t, v.Verify(tt.signature, tt.timestamp, body))
			})
		})
	}

	t.Run("nil verifier", func(t *testing.T) {
		var nilVerifier *Verifier
		assert.False(t, nilVerifier.Verify(valid, testTimestamp, body))
	})

	t.Run("zero value verifier", func(t *testing.T) {
		assert.False(t, (&Verifier{}).Verify(valid, testTimestamp, body))
	})
}

func TestSign(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	v, err := NewVerifier(kp.PublicKey)
	require.NoError(t, err)

	body := []byte(`{"ping":1}`)

	t.Run("full private key", func(t *testing.T) {
		sig, err := Sign(kp.PrivateKey, testTimestamp, body)
		require.NoError(t, err)
		assert.Len(t, sig, 128)
		assert.True(t, v.Verify(sig, testTimestamp, body))
	})

	t.Run("seed", func(t *testing.T) {
		sig, err := Sign(kp.PrivateKey[:64], testTimestamp, body)
		require.NoError(t, err)
		assert.True(t, v.Verify(sig, testTimestamp, body))
	})

	t.Run("bad key", func(t *testing.T) {
		_, err := Sign("abcd", testTimestamp, body)
		assert.Error(t, err)

		_, err = Sign("not hex", testTimestamp, body)
		assert.Error(t, err)
	})
}

package relay

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
)

const (
	// SignatureHeader carries the hex encoded detached Ed25519 signature.
	SignatureHeader = "X-Signature-Ed25519"
	// TimestampHeader carries the opaque timestamp prefixed to the signed message.
	TimestampHeader = "X-Signature-Timestamp"
)

// Verifier handles signature verification for webhook payloads
type Verifier struct {
	publicKey ed25519.PublicKey
}

// NewVerifier creates a new signature verifier from a hex encoded Ed25519 public key
func NewVerifier(publicKeyHex string) (*Verifier, error) {
	key, err := decodePublicKey(publicKeyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: public key: %v", ErrConfigurationMissing, err)
	}

	return &Verifier{
		publicKey: key,
	}, nil
}

// Verify reports whether signatureHex is a valid Ed25519 signature over
// timestamp followed by rawBody. It never fails open: empty inputs, bad hex,
// wrong lengths and an unset key all yield false.
func (v *Verifier) Verify(signatureHex, timestamp string, rawBody []byte) bool {
	if v == nil || len(v.publicKey) != ed25519.PublicKeySize {
		return false
	}

	if signatureHex == "" || timestamp == "" {
		return false
	}

	sig, err := hex.DecodeString(signatureHex)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}

	return ed25519.Verify(v.publicKey, signedMessage(timestamp, rawBody), sig)
}

// signedMessage builds timestamp||body without a separator.
func signedMessage(timestamp string, rawBody []byte) []byte {
	msg := make([]byte, 0, len(timestamp)+len(rawBody))
	msg = append(msg, timestamp...)
	return append(msg, rawBody...)
}

func decodePublicKey(publicKeyHex string) (ed25519.PublicKey, error) {
	if publicKeyHex == "" {
		return nil, fmt.Errorf("empty key")
	}

	raw, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}

	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid length: got %d bytes, want %d", len(raw), ed25519.PublicKeySize)
	}

	return ed25519.PublicKey(raw), nil
}

package relay

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// KeyPair is a hex encoded Ed25519 key pair.
type KeyPair struct {
	PublicKey  string
	PrivateKey string
}

// GenerateKeyPair creates a new random Ed25519 key pair
func GenerateKeyPair() (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("failed to generate key pair: %w", err)
	}

	return KeyPair{
		PublicKey:  hex.EncodeToString(pub),
		PrivateKey: hex.EncodeToString(priv),
	}, nil
}

// Sign produces the hex signature a caller sends in SignatureHeader.
// privateKeyHex may be the 64 byte private key or its 32 byte seed.
func Sign(privateKeyHex, timestamp string, rawBody []byte) (string, error) {
	raw, err := hex.DecodeString(privateKeyHex)
	if err != nil {
		return "", fmt.Errorf("failed to decode private key: %w", err)
	}

	var key ed25519.PrivateKey
	switch len(raw) {
	case ed25519.PrivateKeySize:
		key = ed25519.PrivateKey(raw)
	case ed25519.SeedSize:
		key = ed25519.NewKeyFromSeed(raw)
	default:
		return "", fmt.Errorf("invalid private key length: got %d bytes", len(raw))
	}

	return hex.EncodeToString(ed25519.Sign(key, signedMessage(timestamp, rawBody))), nil
}

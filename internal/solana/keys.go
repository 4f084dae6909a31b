package solana

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Key material errors.
var (
	ErrInvalidPublicKey  = errors.New("invalid public key")
	ErrInvalidPrivateKey = errors.New("invalid private key")
)

// Keypair is an ed25519 signing keypair in Solana's base58 conventions.
type Keypair struct {
	priv ed25519.PrivateKey
}

// ParseKeypair decodes a base58 private key. Accepts the 64-byte keypair
// form (seed plus public key) or a bare 32-byte seed.
func ParseKeypair(encoded string) (*Keypair, error) {
	raw, err := base58.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}

	var priv ed25519.PrivateKey
	switch len(raw) {
	case ed25519.PrivateKeySize:
		priv = ed25519.PrivateKey(raw)
		// The trailing 32 bytes must match the key derived from the seed.
		derived := ed25519.NewKeyFromSeed(priv.Seed())
		if !priv.Equal(derived) {
			return nil, fmt.Errorf("%w: public half does not match seed", ErrInvalidPrivateKey)
		}
	case ed25519.SeedSize:
		priv = ed25519.NewKeyFromSeed(raw)
	default:
		return nil, fmt.Errorf("%w: unexpected length %d", ErrInvalidPrivateKey, len(raw))
	}

	return &Keypair{priv: priv}, nil
}

// PublicKey returns the base58-encoded public key.
func (k *Keypair) PublicKey() string {
	pub := k.priv.Public().(ed25519.PublicKey)
	return base58.Encode(pub)
}

// Sign signs a raw message (a serialized transaction message) and returns
// the 64-byte signature.
func (k *Keypair) Sign(message []byte) []byte {
	return ed25519.Sign(k.priv, message)
}

// ValidatePublicKey checks that s is a base58-encoded 32-byte point on the
// ed25519 curve. Wallet addresses must pass this before they are stored.
func ValidatePublicKey(s string) error {
	raw, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: unexpected length %d", ErrInvalidPublicKey, len(raw))
	}
	if _, err := new(edwards25519.Point).SetBytes(raw); err != nil {
		return fmt.Errorf("%w: not on curve", ErrInvalidPublicKey)
	}
	return nil
}

package solana

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"testing"

	"github.com/mr-tron/base58"
)

func testSeed() []byte {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i + 1)
	}
	return seed
}

func TestParseKeypair_FullKeypair(t *testing.T) {
	priv := ed25519.NewKeyFromSeed(testSeed())
	encoded := base58.Encode(priv)

	kp, err := ParseKeypair(encoded)
	if err != nil {
		t.Fatalf("ParseKeypair: %v", err)
	}

	wantPub := base58.Encode(priv.Public().(ed25519.PublicKey))
	if kp.PublicKey() != wantPub {
		t.Errorf("expected public key %s, got %s", wantPub, kp.PublicKey())
	}
}

func TestParseKeypair_SeedOnly(t *testing.T) {
	seed := testSeed()

	kp, err := ParseKeypair(base58.Encode(seed))
	if err != nil {
		t.Fatalf("ParseKeypair: %v", err)
	}

	want := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
	if kp.PublicKey() != base58.Encode(want) {
		t.Errorf("seed-derived public key mismatch")
	}
}

func TestParseKeypair_RejectsMismatchedHalves(t *testing.T) {
	priv := ed25519.NewKeyFromSeed(testSeed())
	tampered := make([]byte, len(priv))
	copy(tampered, priv)
	tampered[ed25519.SeedSize] ^= 0xff // corrupt the public half

	_, err := ParseKeypair(base58.Encode(tampered))
	if !errors.Is(err, ErrInvalidPrivateKey) {
		t.Fatalf("expected ErrInvalidPrivateKey, got %v", err)
	}
}

func TestParseKeypair_RejectsBadLength(t *testing.T) {
	_, err := ParseKeypair(base58.Encode([]byte{1, 2, 3}))
	if !errors.Is(err, ErrInvalidPrivateKey) {
		t.Fatalf("expected ErrInvalidPrivateKey, got %v", err)
	}
}

func TestKeypair_SignVerifies(t *testing.T) {
	priv := ed25519.NewKeyFromSeed(testSeed())
	kp, err := ParseKeypair(base58.Encode(priv))
	if err != nil {
		t.Fatalf("ParseKeypair: %v", err)
	}

	message := []byte("serialized transaction message")
	sig := kp.Sign(message)

	if len(sig) != ed25519.SignatureSize {
		t.Fatalf("expected %d-byte signature, got %d", ed25519.SignatureSize, len(sig))
	}
	if !ed25519.Verify(priv.Public().(ed25519.PublicKey), message, sig) {
		t.Error("signature does not verify")
	}
	if bytes.Equal(sig, make([]byte, ed25519.SignatureSize)) {
		t.Error("signature is all zeros")
	}
}

func TestValidatePublicKey(t *testing.T) {
	priv := ed25519.NewKeyFromSeed(testSeed())
	pub := base58.Encode(priv.Public().(ed25519.PublicKey))

	if err := ValidatePublicKey(pub); err != nil {
		t.Errorf("valid key rejected: %v", err)
	}

	if err := ValidatePublicKey("not!base58!"); !errors.Is(err, ErrInvalidPublicKey) {
		t.Errorf("expected ErrInvalidPublicKey for bad encoding, got %v", err)
	}

	if err := ValidatePublicKey(base58.Encode([]byte{1, 2, 3})); !errors.Is(err, ErrInvalidPublicKey) {
		t.Errorf("expected ErrInvalidPublicKey for short key, got %v", err)
	}
}

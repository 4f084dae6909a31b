// Package vault provides the symmetric cipher guarding private keys and
// encrypted settings. The vault never fails the caller: with no key
// configured values pass through in clear text, and a decrypt failure
// (wrong or rotated key, corrupt payload) yields the caller's default.
package vault

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"

	"golang.org/x/crypto/nacl/secretbox"
)

// Cipher encrypts and decrypts short string values with a key derived from
// an externally supplied secret.
type Cipher struct {
	key     [32]byte
	enabled bool
}

// New derives a cipher from secret. An empty secret returns a disabled
// cipher that stores values in clear text.
func New(secret string) *Cipher {
	c := &Cipher{}
	if secret == "" {
		return c
	}
	c.key = sha256.Sum256([]byte(secret))
	c.enabled = true
	return c
}

// Enabled reports whether a key is configured.
func (c *Cipher) Enabled() bool {
	return c.enabled
}

// Encrypt seals plain and returns the encoded ciphertext plus true. With no
// key configured it returns plain unchanged and false.
func (c *Cipher) Encrypt(plain string) (string, bool) {
	if !c.enabled {
		return plain, false
	}

	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		// Entropy failure: storing in clear is preferable to losing the value.
		return plain, false
	}

	sealed := secretbox.Seal(nonce[:], []byte(plain), &nonce, &c.key)
	return base64.StdEncoding.EncodeToString(sealed), true
}

// Decrypt opens enc and returns the plaintext. Any failure returns def.
func (c *Cipher) Decrypt(enc, def string) string {
	if !c.enabled {
		return def
	}

	raw, err := base64.StdEncoding.DecodeString(enc)
	if err != nil || len(raw) <= 24 {
		return def
	}

	var nonce [24]byte
	copy(nonce[:], raw[:24])

	plain, ok := secretbox.Open(nil, raw[24:], &nonce, &c.key)
	if !ok {
		return def
	}
	return string(plain)
}

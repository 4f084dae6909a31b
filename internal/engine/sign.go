package engine

import (
	"crypto/ed25519"
	"fmt"

	"pump-deck/internal/solana"
)

// signTransaction attaches the fee payer's signature to a serialized
// transaction. Wire layout is a compact-u16 signature count, the signature
// slots, then the message. The message bytes are what gets signed and they
// are never modified; only the first signature slot is filled in.
func signTransaction(tx []byte, kp *solana.Keypair) ([]byte, error) {
	count, offset, err := decodeCompactU16(tx)
	if err != nil {
		return nil, fmt.Errorf("signature count: %w", err)
	}
	if count == 0 {
		return nil, fmt.Errorf("transaction declares no signature slots")
	}

	msgStart := offset + count*ed25519.SignatureSize
	if msgStart >= len(tx) {
		return nil, fmt.Errorf("transaction truncated: %d bytes, message starts at %d", len(tx), msgStart)
	}

	signed := make([]byte, len(tx))
	copy(signed, tx)

	sig := kp.Sign(tx[msgStart:])
	copy(signed[offset:], sig)
	return signed, nil
}

// decodeCompactU16 reads a Solana compact-u16 length prefix. Returns the
// value and the number of bytes consumed.
func decodeCompactU16(data []byte) (int, int, error) {
	value := 0
	for i := 0; i < 3; i++ {
		if i >= len(data) {
			return 0, 0, fmt.Errorf("truncated compact-u16")
		}
		b := int(data[i])
		value |= (b & 0x7f) << (7 * i)
		if b&0x80 == 0 {
			return value, i + 1, nil
		}
	}
	return 0, 0, fmt.Errorf("compact-u16 too long")
}

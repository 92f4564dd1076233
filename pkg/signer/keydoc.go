package signer

import (
	"crypto/ed25519"
	"fmt"
	"strings"
)

// did:key multicodec prefix for an Ed25519 public key (0xed01, varint
// encoded) and the multibase prefix for base58btc ("z"). No pack example
// or ecosystem library for did:key construction was wired here — see
// DESIGN.md for why this stays hand-rolled.
var ed25519MulticodecPrefix = []byte{0xed, 0x01}

const base58BTCAlphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// KeyDocument is the DID key document UBL Gate publishes for a kid: a
// did:key identifier plus the fragment (#k1, #k2, ...) spec.md §6.5
// requires a `kid` to resolve against.
type KeyDocument struct {
	DID      string `json:"id"`
	Kid      string `json:"kid"`     // did:key:z6Mk...#k1
	KeyType  string `json:"type"`    // "Ed25519VerificationKey2020"
	PublicKeyMultibase string `json:"publicKeyMultibase"`
}

// DIDKey encodes an Ed25519 public key as a did:key identifier.
func DIDKey(pub ed25519.PublicKey) string {
	payload := append(append([]byte{}, ed25519MulticodecPrefix...), pub...)
	return "did:key:z" + base58Encode(payload)
}

// NewKeyDocument builds the key document for entry, with fragment as the
// kid suffix ("k1", "k2", ...) per §6.5's did:key#fragment convention.
func NewKeyDocument(entry *KeyEntry, fragment string) KeyDocument {
	did := DIDKey(entry.Pub)
	return KeyDocument{
		DID:                did,
		Kid:                did + "#" + fragment,
		KeyType:            "Ed25519VerificationKey2020",
		PublicKeyMultibase: "z" + base58Encode(entry.Pub),
	}
}

// ParseDIDKeyFragment splits "did:key:z...#k1" into the bare DID and the
// fragment name.
func ParseDIDKeyFragment(kid string) (did, fragment string, err error) {
	idx := strings.IndexByte(kid, '#')
	if idx < 0 {
		return "", "", fmt.Errorf("signer: kid %q has no fragment", kid)
	}
	return kid[:idx], kid[idx+1:], nil
}

// base58Encode implements base58btc (Bitcoin alphabet) encoding, the
// multibase default for did:key. Leading zero bytes become leading '1's.
func base58Encode(input []byte) string {
	zeros := 0
	for zeros < len(input) && input[zeros] == 0 {
		zeros++
	}

	// big-endian base256 -> base58 digit conversion by repeated division.
	digits := make([]byte, 0, len(input)*138/100+1)
	work := append([]byte{}, input...)
	for len(work) > 0 {
		var remainder int
		var nextWork []byte
		for _, b := range work {
			acc := remainder*256 + int(b)
			digit := acc / 58
			remainder = acc % 58
			if len(nextWork) > 0 || digit > 0 {
				nextWork = append(nextWork, byte(digit))
			}
		}
		digits = append(digits, byte(remainder))
		work = nextWork
	}

	out := make([]byte, zeros+len(digits))
	for i := 0; i < zeros; i++ {
		out[i] = '1'
	}
	for i, d := range digits {
		out[zeros+len(digits)-1-i] = base58BTCAlphabet[d]
	}
	return string(out)
}

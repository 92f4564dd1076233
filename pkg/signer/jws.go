package signer

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ubl-gate/core/pkg/receipts"
)

// detachedHeader is the protected JWS header UBL Gate signs with
// (spec.md §6.4): EdDSA, b64:false so the payload appears unencoded
// between the two dots, and the receipt media type. Field order is
// fixed by the struct tags below so the header's byte layout — part of
// what gets base64url-encoded and therefore part of the signing input —
// is itself canonical.
type detachedHeader struct {
	Alg string `json:"alg"`
	B64 bool   `json:"b64"`
	Typ string `json:"typ"`
	Kid string `json:"kid"`
}

const (
	algEdDSA  = "EdDSA"
	typReceipt = "ubl/rc+json"
)

// Sign produces a detached JWS (RFC 7797) over bodyBytes — the canonical
// bytes of a receipt's body, never the body_cid text — using the
// KeyRing's active key, and returns it as a receipts.Proof ready to
// attach to a Receipt. Per §4.3/§6.4 the payload is never embedded in
// the proof; verifiers must supply bodyBytes again to Verify.
func Sign(k *KeyRing, bodyBytes []byte) (*receipts.Proof, error) {
	entry, err := k.activeEntry()
	if err != nil {
		return nil, err
	}
	if entry.Priv == nil {
		return nil, fmt.Errorf("signer: active kid %q has no private key", entry.Kid)
	}
	return signWith(entry, bodyBytes)
}

func signWith(entry *KeyEntry, bodyBytes []byte) (*receipts.Proof, error) {
	hdr := detachedHeader{Alg: algEdDSA, B64: false, Typ: typReceipt, Kid: entry.Kid}
	hdrJSON, err := json.Marshal(hdr)
	if err != nil {
		return nil, fmt.Errorf("signer: header marshal: %w", err)
	}
	hdrB64 := base64.RawURLEncoding.EncodeToString(hdrJSON)

	// RFC 7797 detached/unencoded payload: signing input is the encoded
	// header, a literal dot, and the raw payload bytes — not a further
	// base64 encoding of them.
	signingInput := append([]byte(hdrB64+"."), bodyBytes...)
	method := jwt.SigningMethodEdDSA
	sigBytes, err := method.Sign(string(signingInput), entry.Priv)
	if err != nil {
		return nil, fmt.Errorf("signer: sign: %w", err)
	}
	sigB64 := base64.RawURLEncoding.EncodeToString(sigBytes)

	// Detached compact serialization: header..signature, with the
	// (unencoded) payload carried alongside rather than in the token
	// itself, per RFC 7797 §5.
	compact := hdrB64 + "." + "." + sigB64

	return &receipts.Proof{
		Kid:       entry.Kid,
		Alg:       algEdDSA,
		Signature: compact,
	}, nil
}

// Verify checks a detached JWS produced by Sign against bodyBytes,
// looking up the signer's public key by the kid carried in the compact
// serialization's header — never by trying every key in the ring.
func Verify(k *KeyRing, bodyBytes []byte, proof *receipts.Proof) error {
	if proof == nil || proof.Signature == "" {
		return fmt.Errorf("signer: %w: missing proof", ErrInvalidSignature)
	}
	parts := strings.Split(proof.Signature, ".")
	if len(parts) != 3 || parts[1] != "" {
		return fmt.Errorf("signer: %w: malformed detached JWS", ErrInvalidSignature)
	}
	hdrJSON, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return fmt.Errorf("signer: %w: header decode: %v", ErrInvalidSignature, err)
	}
	var hdr detachedHeader
	if err := json.Unmarshal(hdrJSON, &hdr); err != nil {
		return fmt.Errorf("signer: %w: header decode: %v", ErrInvalidSignature, err)
	}
	if hdr.Alg != algEdDSA || hdr.B64 || hdr.Typ != typReceipt {
		return fmt.Errorf("signer: %w: unsupported header %+v", ErrInvalidSignature, hdr)
	}
	if hdr.Kid != proof.Kid {
		return fmt.Errorf("signer: %w: kid mismatch between header and proof", ErrInvalidSignature)
	}

	entry, ok := k.Lookup(hdr.Kid)
	if !ok {
		return fmt.Errorf("signer: %w: unknown kid %q", ErrUnknownKey, hdr.Kid)
	}

	sigBytes, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return fmt.Errorf("signer: %w: signature decode: %v", ErrInvalidSignature, err)
	}

	signingInput := append([]byte(parts[0]+"."), bodyBytes...)
	method := jwt.SigningMethodEdDSA
	if err := method.Verify(string(signingInput), sigBytes, entry.Pub); err != nil {
		return fmt.Errorf("signer: %w: %v", ErrInvalidSignature, err)
	}
	return nil
}

package rbvm

import "encoding/hex"

const cidTextPrefix = "b3:"

// cidToText renders a stack CID value's 32 raw digest bytes in the
// "b3:<hex64>" textual form used everywhere outside the VM's operand
// stack (spec.md §3 "CID").
func cidToText(raw [32]byte) string {
	return cidTextPrefix + hex.EncodeToString(raw[:])
}

// CIDText is cidToText exported for callers outside the package (the
// pipeline, translating a Transition receipt's preimage out of a stack
// CID value).
func CIDText(raw [32]byte) string { return cidToText(raw) }

// CIDFromText is cidFromText exported for callers outside the package.
func CIDFromText(text string) ([32]byte, error) { return cidFromText(text) }

// cidFromText parses a "b3:<hex64>" textual CID back into the stack's
// 32-raw-byte representation.
func cidFromText(text string) ([32]byte, error) {
	var out [32]byte
	if len(text) != len(cidTextPrefix)+64 || text[:len(cidTextPrefix)] != cidTextPrefix {
		return out, newErr(ErrTypeMismatch, "malformed CID text %q", text)
	}
	b, err := hex.DecodeString(text[len(cidTextPrefix):])
	if err != nil || len(b) != 32 {
		return out, newErr(ErrTypeMismatch, "malformed CID text %q", text)
	}
	copy(out[:], b)
	return out, nil
}

// cidFromImmediate converts a raw 32-byte TLV operand (CONST_CID,
// CAS_GET_IMM's immediate) into the stack's [32]byte representation,
// rejecting any operand of the wrong length.
func cidFromImmediate(operand []byte) ([32]byte, error) {
	var out [32]byte
	if len(operand) != 32 {
		return out, newErr(ErrVarintInvalid, "CID immediate must be 32 bytes, got %d", len(operand))
	}
	copy(out[:], operand)
	return out, nil
}

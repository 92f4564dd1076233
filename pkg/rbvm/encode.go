package rbvm

import "encoding/binary"

// encodeVarint encodes v as a base-128 MSB-continuation varint using the
// minimal number of bytes — the unique encoding decodeVarint will accept
// back.
func encodeVarint(v uint64) []byte {
	if v == 0 {
		return []byte{0}
	}
	var out []byte
	for v > 0 {
		b := byte(v & 0x7f)
		v >>= 7
		if v > 0 {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
}

// encodeFrame serializes one instruction as [opcode][varint length][operand].
func encodeFrame(op Opcode, operand []byte) []byte {
	out := make([]byte, 0, 2+len(operand))
	out = append(out, byte(op))
	out = append(out, encodeVarint(uint64(len(operand)))...)
	out = append(out, operand...)
	return out
}

// ConstI64Frame encodes a CONST_I64 instruction for i.
func ConstI64Frame(i int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(i))
	return encodeFrame(OpConstI64, b)
}

// ConstBytesFrame encodes a CONST_BYTES instruction carrying b verbatim.
func ConstBytesFrame(b []byte) []byte {
	return encodeFrame(OpConstBytes, b)
}

// ConstCIDFrame encodes a CONST_CID instruction carrying a 32-byte raw
// digest; the [32]byte parameter type fixes the operand's length.
func ConstCIDFrame(raw [32]byte) []byte {
	return encodeFrame(OpConstCID, raw[:])
}

// CASGetImmFrame encodes a CAS_GET_IMM instruction referencing raw's
// 32-byte digest as the immediate.
func CASGetImmFrame(raw [32]byte) []byte {
	return encodeFrame(OpCASGetImm, raw[:])
}

// JSONValidateFrame encodes a JSON_VALIDATE instruction whose immediate
// names the schema's CID (32 raw bytes), resolved through the CAS at run
// time.
func JSONValidateFrame(schemaCIDRaw [32]byte) []byte {
	return encodeFrame(OpJSONValidate, schemaCIDRaw[:])
}

// ContextGetFrame encodes a CONTEXT_GET instruction for idx.
func ContextGetFrame(idx ContextIndex) []byte {
	return encodeFrame(OpContextGet, []byte{byte(idx)})
}

// SimpleFrame encodes a zero-operand instruction (arithmetic, DROP,
// ASSERT_TRUE, JSON_NORMALIZE, SIGN_DEFAULT_ED, EMIT_RC, ...).
func SimpleFrame(op Opcode) []byte {
	return encodeFrame(op, nil)
}

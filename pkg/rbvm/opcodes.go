// Package rbvm implements the Reasoning Bytecode Virtual Machine: a
// strict, deterministic stack machine over TLV bytecode with fuel
// metering and content-addressed storage as its only external interface
// (spec.md §4.4). Grounded in shape on the teacher's minimal opcode enum
// (pkg/vm's fixed-width dispatch table over a typed operand stack) but
// with an opcode set, fuel model, and error taxonomy taken verbatim from
// spec.md §4.4.4-§4.4.5 rather than invented: the VM is spec-normative,
// so two hosts decoding and executing the same bytecode must reach the
// same result, which only holds if every opcode tag means exactly what
// the table says it means.
package rbvm

// Opcode is one instruction tag in the TLV bytecode stream (spec.md
// §4.4.1). This revision defines no branching opcodes — §4.4.3 reserves
// that for a future revision — so an instruction stream always executes
// straight through in program order.
type Opcode byte

const (
	OpConstI64   Opcode = 0x01
	OpConstBytes Opcode = 0x02
	OpConstCID   Opcode = 0x03

	OpCASGetImm   Opcode = 0x10
	OpHashBlake3  Opcode = 0x11
	OpCASPut      Opcode = 0x12
	OpCASGetStack Opcode = 0x13

	OpAddI64 Opcode = 0x20
	OpSubI64 Opcode = 0x21
	OpMulI64 Opcode = 0x22
	OpCmpI64 Opcode = 0x23

	OpJSONNormalize Opcode = 0x30
	OpJSONValidate  Opcode = 0x31
	OpAssertTrue    Opcode = 0x32

	OpSetRCBody     Opcode = 0x40
	OpAttachProof   Opcode = 0x41
	OpSignDefaultEd Opcode = 0x42
	OpAddMeta       Opcode = 0x43
	OpEmitRC        Opcode = 0x44

	OpContextGet Opcode = 0x50

	OpDrop Opcode = 0x60
)

// ContextIndex is the one-byte immediate CONTEXT_GET takes (spec.md
// §4.4.4's Context indices table). 0x03..0x0F are reserved and rejected.
type ContextIndex byte

const (
	ContextModuleID  ContextIndex = 0x00
	ContextRBCID     ContextIndex = 0x01
	ContextInputsCID ContextIndex = 0x02
)

// baseCost is the fixed per-opcode fuel charge (spec.md §4.4.3). The
// CAS-touching opcodes additionally charge a per-byte rate in
// Machine.step once the actual payload length is known, so they are not
// resolvable from this table alone — see perByteCost.
var baseCost = map[Opcode]uint64{
	OpConstI64:      1,
	OpConstBytes:    1,
	OpConstCID:      1,
	OpCASGetImm:     4,
	OpHashBlake3:    8,
	OpCASPut:        4,
	OpCASGetStack:   4,
	OpAddI64:        1,
	OpSubI64:        1,
	OpMulI64:        1,
	OpCmpI64:        1,
	OpJSONNormalize: 16,
	OpJSONValidate:  32,
	OpAssertTrue:    1,
	OpSetRCBody:     2,
	OpAttachProof:   2,
	OpSignDefaultEd: 64,
	OpAddMeta:       2,
	OpEmitRC:        1,
	OpContextGet:    1,
	OpDrop:          1,
}

// perByteCost is the additional fuel charged per byte of payload moved
// through a CAS-touching opcode: "CAS_GET* and CAS_PUT additionally
// charge per byte" (spec.md §4.4.3).
const perByteCost uint64 = 1

// knownOpcode reports whether op is one the decoder will dispatch. An
// unrecognized byte has no fuel cost and no semantics in this revision,
// so it is rejected structurally before any fuel is charged against it.
func knownOpcode(op Opcode) bool {
	_, ok := baseCost[op]
	return ok
}

package rbvm

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"lukechampine.com/blake3"

	"github.com/ubl-gate/core/pkg/canonicalize"
	"github.com/ubl-gate/core/pkg/cas"
	"github.com/ubl-gate/core/pkg/receipts"
	"github.com/ubl-gate/core/pkg/signer"
)

// Limits bounds a single program execution, enforced deterministically —
// none of these depend on wall-clock time or host load.
type Limits struct {
	MaxFuel  uint64
	MaxStack int
}

// DefaultLimits mirrors spec.md §4.4's suggested defaults for a single
// grammar program execution.
func DefaultLimits() Limits {
	return Limits{MaxFuel: 100_000, MaxStack: 256}
}

// Machine executes a decoded TLV instruction stream against a typed
// stack, charging fuel per opcode and refusing to proceed once fuel is
// exhausted or any structural limit is exceeded. Its only external
// interface, per §4.4, is the CAS (for CAS_GET_IMM/CAS_GET_STACK/CAS_PUT)
// and the Signer (for SIGN_DEFAULT_ED) — no clock, no filesystem, no
// network, no randomness.
type Machine struct {
	limits  Limits
	CAS     cas.Store
	KeyRing *signer.KeyRing

	schemaCache map[string]*jsonschema.Schema
}

// NewMachine returns a Machine bound to limits, a CAS for CAS_* opcodes,
// and a KeyRing for SIGN_DEFAULT_ED. Either may be nil if the program the
// caller intends to run never touches the corresponding opcodes.
func NewMachine(limits Limits, casStore cas.Store, keyRing *signer.KeyRing) *Machine {
	return &Machine{limits: limits, CAS: casStore, KeyRing: keyRing, schemaCache: make(map[string]*jsonschema.Schema)}
}

// Run executes program with an empty ExecutionContext and returns the
// final stack's top value.
func (m *Machine) Run(ctx context.Context, program []byte) (StackValue, error) {
	result, _, err := m.RunMetered(ctx, program, ExecutionContext{})
	return result, err
}

// RunMetered executes program against ec, returning the final stack's
// top value and the fuel actually spent — the latter populates a
// Transition receipt's witness.fuel_spent (spec.md §4.4.7).
func (m *Machine) RunMetered(ctx context.Context, program []byte, ec ExecutionContext) (StackValue, uint64, error) {
	instrs, err := Decode(program)
	if err != nil {
		return StackValue{}, 0, err
	}

	stack := NewStack(m.limits.MaxStack)
	rc := &rcBuilder{}
	var fuel uint64

	for pc, instr := range instrs {
		if !knownOpcode(instr.Op) {
			return StackValue{}, fuel, newErr(ErrTypeMismatch, "unrecognized opcode 0x%02x at pc %d", byte(instr.Op), pc)
		}
		fuel += baseCost[instr.Op]
		if fuel > m.limits.MaxFuel {
			return StackValue{}, fuel, newErr(ErrFuelExhaust, "fuel limit %d exceeded at pc %d", m.limits.MaxFuel, pc)
		}

		byteFuel, stepErr := m.step(ctx, instr, stack, rc, ec, pc)
		fuel += byteFuel
		if fuel > m.limits.MaxFuel {
			return StackValue{}, fuel, newErr(ErrFuelExhaust, "fuel limit %d exceeded at pc %d", m.limits.MaxFuel, pc)
		}
		if stepErr != nil {
			return StackValue{}, fuel, stepErr
		}
	}

	top, err := stack.Peek()
	return top, fuel, err
}

// step executes one instruction and returns any additional per-byte fuel
// it charged beyond baseCost (CAS_GET_IMM, CAS_GET_STACK, CAS_PUT).
func (m *Machine) step(ctx context.Context, instr Instruction, stack *Stack, rc *rcBuilder, ec ExecutionContext, pc int) (uint64, error) {
	switch instr.Op {
	case OpConstI64:
		if len(instr.Operand) != 8 {
			return 0, newErr(ErrVarintInvalid, "CONST_I64 operand must be 8 bytes, got %d", len(instr.Operand))
		}
		return 0, stack.Push(i64Val(int64(binary.BigEndian.Uint64(instr.Operand))))
	case OpConstBytes:
		return 0, stack.Push(bytesVal(append([]byte(nil), instr.Operand...)))
	case OpConstCID:
		raw, err := cidFromImmediate(instr.Operand)
		if err != nil {
			return 0, err
		}
		return 0, stack.Push(cidRawVal(raw))

	case OpCASGetImm:
		raw, err := cidFromImmediate(instr.Operand)
		if err != nil {
			return 0, err
		}
		return m.casGet(ctx, raw, stack)
	case OpCASGetStack:
		top, err := stack.Pop()
		if err != nil {
			return 0, err
		}
		if top.Type != TypeCID {
			return 0, newErr(ErrTypeMismatch, "CAS_GET_STACK requires a CID operand")
		}
		return m.casGet(ctx, top.CID, stack)
	case OpCASPut:
		top, err := stack.Pop()
		if err != nil {
			return 0, err
		}
		if top.Type != TypeBytes {
			return 0, newErr(ErrTypeMismatch, "CAS_PUT requires a BYTES operand")
		}
		if m.CAS == nil {
			return 0, newErr(ErrCASMiss, "CAS_PUT: no CAS bound to this machine")
		}
		cidText, err := m.CAS.Put(ctx, top.Bytes)
		if err != nil {
			return 0, newErr(ErrCASMiss, "CAS_PUT: %v", err)
		}
		raw, err := cidFromText(cidText)
		if err != nil {
			return 0, err
		}
		return perByteCost * uint64(len(top.Bytes)), stack.Push(cidRawVal(raw))

	case OpHashBlake3:
		top, err := stack.Pop()
		if err != nil {
			return 0, err
		}
		if top.Type != TypeBytes {
			return 0, newErr(ErrTypeMismatch, "HASH_BLAKE3 requires a BYTES operand")
		}
		digest := blake3.Sum256(top.Bytes)
		return 0, stack.Push(cidRawVal(digest))

	case OpAddI64, OpSubI64, OpMulI64:
		return 0, m.arith(instr.Op, stack)
	case OpCmpI64:
		return 0, m.cmp(stack)

	case OpJSONNormalize:
		return 0, m.jsonNormalize(stack)
	case OpJSONValidate:
		return m.jsonValidate(ctx, instr.Operand, stack)
	case OpAssertTrue:
		top, err := stack.Pop()
		if err != nil {
			return 0, err
		}
		if top.Type != TypeBool {
			return 0, newErr(ErrTypeMismatch, "ASSERT_TRUE requires a BOOL operand")
		}
		if !top.Bool {
			return 0, newErr(ErrAssertFail, "assertion failed at pc %d", pc)
		}
		return 0, nil

	case OpSetRCBody:
		top, err := stack.Pop()
		if err != nil {
			return 0, err
		}
		if top.Type != TypeBytes {
			return 0, newErr(ErrTypeMismatch, "SET_RC_BODY requires a BYTES operand")
		}
		rc.setBody(top.Bytes)
		return 0, nil
	case OpAttachProof:
		top, err := stack.Pop()
		if err != nil {
			return 0, err
		}
		if top.Type != TypeBytes {
			return 0, newErr(ErrTypeMismatch, "ATTACH_PROOF requires a BYTES operand")
		}
		rc.attachProof(top.Bytes)
		return 0, nil
	case OpSignDefaultEd:
		return 0, m.signDefaultEd(rc)
	case OpAddMeta:
		top, err := stack.Pop()
		if err != nil {
			return 0, err
		}
		if top.Type != TypeBytes {
			return 0, newErr(ErrTypeMismatch, "ADD_META requires a BYTES operand")
		}
		rc.addMeta(top.Bytes)
		return 0, nil
	case OpEmitRC:
		if !rc.bodySet {
			return 0, newErr(ErrRCNotSet, "EMIT_RC: RC_BODY was never set")
		}
		return 0, stack.Push(bytesVal(rc.encode()))

	case OpContextGet:
		return 0, m.contextGet(instr.Operand, ec, stack)

	case OpDrop:
		_, err := stack.Pop()
		return 0, err

	default:
		return 0, newErr(ErrTypeMismatch, "unrecognized opcode 0x%02x at pc %d", byte(instr.Op), pc)
	}
}

func (m *Machine) casGet(ctx context.Context, raw [32]byte, stack *Stack) (uint64, error) {
	if m.CAS == nil {
		return 0, newErr(ErrCASMiss, "CAS read: no CAS bound to this machine")
	}
	b, err := m.CAS.Get(ctx, cidToText(raw))
	if err != nil {
		return 0, newErr(ErrCASMiss, "%v", err)
	}
	if err := stack.Push(bytesVal(b)); err != nil {
		return 0, err
	}
	return perByteCost * uint64(len(b)), nil
}

func (m *Machine) arith(op Opcode, stack *Stack) error {
	b, err := stack.Pop()
	if err != nil {
		return err
	}
	a, err := stack.Pop()
	if err != nil {
		return err
	}
	if a.Type != TypeI64 || b.Type != TypeI64 {
		return newErr(ErrTypeMismatch, "arithmetic requires two I64 operands")
	}
	var result int64
	switch op {
	case OpAddI64:
		result = a.I64 + b.I64
		if (b.I64 > 0 && result < a.I64) || (b.I64 < 0 && result > a.I64) {
			return newErr(ErrIntOverflow, "ADD_I64 overflow")
		}
	case OpSubI64:
		result = a.I64 - b.I64
		if (b.I64 > 0 && result > a.I64) || (b.I64 < 0 && result < a.I64) {
			return newErr(ErrIntOverflow, "SUB_I64 overflow")
		}
	case OpMulI64:
		result = a.I64 * b.I64
		if (a.I64 != 0 && result/a.I64 != b.I64) || (a.I64 == -1 && b.I64 == math.MinInt64) {
			return newErr(ErrIntOverflow, "MUL_I64 overflow")
		}
	}
	return stack.Push(i64Val(result))
}

func (m *Machine) cmp(stack *Stack) error {
	b, err := stack.Pop()
	if err != nil {
		return err
	}
	a, err := stack.Pop()
	if err != nil {
		return err
	}
	if a.Type != TypeI64 || b.Type != TypeI64 {
		return newErr(ErrTypeMismatch, "CMP_I64 requires two I64 operands")
	}
	var result int64
	switch {
	case a.I64 < b.I64:
		result = -1
	case a.I64 > b.I64:
		result = 1
	}
	return stack.Push(i64Val(result))
}

func (m *Machine) jsonNormalize(stack *Stack) error {
	top, err := stack.Pop()
	if err != nil {
		return err
	}
	if top.Type != TypeBytes {
		return newErr(ErrTypeMismatch, "JSON_NORMALIZE requires a BYTES operand holding UTF-8 JSON")
	}
	var doc any
	if err := jsonUnmarshal(top.Bytes, &doc); err != nil {
		return newErr(ErrTypeMismatch, "invalid JSON: %v", err)
	}
	normalized, err := canonicalize.CanonicalizeAny(doc)
	if err != nil {
		return newErr(ErrTypeMismatch, "value has no canonical form: %v", err)
	}
	return stack.Push(bytesVal(normalized))
}

// jsonValidate resolves schemaOperand (a 32-byte CID immediate, per
// spec.md §4.4.4) through the CAS, compiles and caches it, and validates
// the BYTES popped off the stack against it.
func (m *Machine) jsonValidate(ctx context.Context, schemaOperand []byte, stack *Stack) (uint64, error) {
	top, err := stack.Pop()
	if err != nil {
		return 0, err
	}
	if top.Type != TypeBytes {
		return 0, newErr(ErrTypeMismatch, "JSON_VALIDATE requires a BYTES operand holding UTF-8 JSON")
	}
	raw, err := cidFromImmediate(schemaOperand)
	if err != nil {
		return 0, err
	}
	schemaCID := cidToText(raw)

	schema, ok := m.schemaCache[schemaCID]
	var byteFuel uint64
	if !ok {
		if m.CAS == nil {
			return 0, newErr(ErrCASMiss, "JSON_VALIDATE: no CAS bound to this machine")
		}
		schemaBytes, err := m.CAS.Get(ctx, schemaCID)
		if err != nil {
			return 0, newErr(ErrCASMiss, "JSON_VALIDATE: schema %s: %v", schemaCID, err)
		}
		byteFuel = perByteCost * uint64(len(schemaBytes))
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaCID, jsonschemaReader(schemaBytes)); err != nil {
			return byteFuel, newErr(ErrTypeMismatch, "compile schema %s: %v", schemaCID, err)
		}
		schema, err = compiler.Compile(schemaCID)
		if err != nil {
			return byteFuel, newErr(ErrTypeMismatch, "compile schema %s: %v", schemaCID, err)
		}
		m.schemaCache[schemaCID] = schema
	}

	var doc any
	if err := jsonUnmarshal(top.Bytes, &doc); err != nil {
		return byteFuel, newErr(ErrTypeMismatch, "invalid JSON: %v", err)
	}
	valid := schema.Validate(doc) == nil
	return byteFuel, stack.Push(boolVal(valid))
}

// signDefaultEd attaches a detached-JWS proof over the in-progress RC's
// body using the Machine's active signing key (spec.md §4.4.4,
// SIGN_DEFAULT_ED). The proof is serialized with pkg/signer's proof
// shape so ATTACH_PROOF/EMIT_RC carry the same envelope a pipeline-level
// receipt would.
func (m *Machine) signDefaultEd(rc *rcBuilder) error {
	if !rc.bodySet {
		return newErr(ErrRCNotSet, "SIGN_DEFAULT_ED: RC_BODY not set")
	}
	if m.KeyRing == nil {
		return newErr(ErrTypeMismatch, "SIGN_DEFAULT_ED: no KeyRing bound to this machine")
	}
	proof, err := signer.Sign(m.KeyRing, rc.body)
	if err != nil {
		return newErr(ErrTypeMismatch, "SIGN_DEFAULT_ED: %v", err)
	}
	encoded, err := encodeProof(proof)
	if err != nil {
		return newErr(ErrTypeMismatch, "SIGN_DEFAULT_ED: %v", err)
	}
	rc.attachProof(encoded)
	return nil
}

func encodeProof(p *receipts.Proof) ([]byte, error) {
	return canonicalize.CanonicalizeAny(map[string]any{
		"kid":       p.Kid,
		"alg":       p.Alg,
		"signature": p.Signature,
	})
}

func (m *Machine) contextGet(operand []byte, ec ExecutionContext, stack *Stack) error {
	if len(operand) != 1 {
		return newErr(ErrVarintInvalid, "CONTEXT_GET operand must be 1 byte, got %d", len(operand))
	}
	var text string
	switch ContextIndex(operand[0]) {
	case ContextModuleID:
		text = ec.ModuleCID
	case ContextRBCID:
		text = ec.RBCID
	case ContextInputsCID:
		text = ec.InputsCID
	default:
		return newErr(ErrTypeMismatch, "CONTEXT_GET: reserved or unknown index 0x%02x", operand[0])
	}
	return stack.Push(bytesVal([]byte(text)))
}

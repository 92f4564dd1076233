package rbvm

import "fmt"

// VMErrorCode is the RB-VM's enumerated error taxonomy (spec.md §4.4.5),
// reproduced with its exact hex codes since they are part of the wire
// contract: an error envelope that becomes a DENY receipt's body names
// this code, and two hosts must agree on it for identical failing
// bytecode.
type VMErrorCode uint16

const (
	ErrStackUnderflow VMErrorCode = 0x8000 // STACK.UNDERFLOW
	ErrTypeMismatch   VMErrorCode = 0x8001 // TYPE.MISMATCH (also: unrecognized opcode)
	ErrIntOverflow    VMErrorCode = 0x8002 // INT.OVERFLOW
	ErrVarintInvalid  VMErrorCode = 0x8003 // VARINT.INVALID (also: any malformed TLV frame)
	ErrFuelExhaust    VMErrorCode = 0x8004 // FUEL.EXHAUST
	ErrDepthOver      VMErrorCode = 0x8005 // DEPTH.OVER (also: operand stack capacity)
	ErrCASMiss        VMErrorCode = 0x8006 // CAS.MISS
	ErrPolicyFail     VMErrorCode = 0x8007 // POLICY.FAIL — reserved; no opcode in this
	//                                        revision raises it directly, but the code
	//                                        is reproduced so a future branching/policy
	//                                        opcode has a stable slot to report into.
	ErrRCNotSet    VMErrorCode = 0x8008 // RC.NOTSET
	ErrAssertFail  VMErrorCode = 0x8009 // ASSERT.FAIL
)

func (c VMErrorCode) String() string {
	switch c {
	case ErrStackUnderflow:
		return "STACK.UNDERFLOW"
	case ErrTypeMismatch:
		return "TYPE.MISMATCH"
	case ErrIntOverflow:
		return "INT.OVERFLOW"
	case ErrVarintInvalid:
		return "VARINT.INVALID"
	case ErrFuelExhaust:
		return "FUEL.EXHAUST"
	case ErrDepthOver:
		return "DEPTH.OVER"
	case ErrCASMiss:
		return "CAS.MISS"
	case ErrPolicyFail:
		return "POLICY.FAIL"
	case ErrRCNotSet:
		return "RC.NOTSET"
	case ErrAssertFail:
		return "ASSERT.FAIL"
	default:
		return fmt.Sprintf("UNKNOWN(0x%04x)", uint16(c))
	}
}

// VMError is the error type every rbvm operation returns on failure. Its
// Code is the only part that should drive caller branching; Msg is
// diagnostic text only.
type VMError struct {
	Code VMErrorCode
	Msg  string
}

func (e *VMError) Error() string {
	return fmt.Sprintf("rbvm: %s (0x%04x): %s", e.Code, uint16(e.Code), e.Msg)
}

func newErr(code VMErrorCode, format string, args ...any) *VMError {
	return &VMError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

package rbvm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ubl-gate/core/pkg/cas"
	"github.com/ubl-gate/core/pkg/signer"
)

func TestMachine_AddTwoInts(t *testing.T) {
	program := append(ConstI64Frame(2), ConstI64Frame(3)...)
	program = append(program, SimpleFrame(OpAddI64)...)

	m := NewMachine(DefaultLimits(), nil, nil)
	result, err := m.Run(context.Background(), program)
	require.NoError(t, err)
	require.Equal(t, TypeI64, result.Type)
	require.Equal(t, int64(5), result.I64)
}

func TestMachine_StackUnderflow(t *testing.T) {
	program := SimpleFrame(OpAddI64)
	m := NewMachine(DefaultLimits(), nil, nil)
	_, err := m.Run(context.Background(), program)
	var vmErr *VMError
	require.ErrorAs(t, err, &vmErr)
	require.Equal(t, ErrStackUnderflow, vmErr.Code)
}

func TestMachine_OutOfFuel(t *testing.T) {
	var program []byte
	for i := 0; i < 10; i++ {
		program = append(program, ConstI64Frame(1)...)
		program = append(program, SimpleFrame(OpDrop)...)
	}

	m := NewMachine(Limits{MaxFuel: 2, MaxStack: 256}, nil, nil)
	_, err := m.Run(context.Background(), program)
	var vmErr *VMError
	require.ErrorAs(t, err, &vmErr)
	require.Equal(t, ErrFuelExhaust, vmErr.Code)
}

func TestMachine_UnknownOpcodeRejected(t *testing.T) {
	program := encodeFrame(Opcode(0x99), nil)
	m := NewMachine(DefaultLimits(), nil, nil)
	_, err := m.Run(context.Background(), program)
	var vmErr *VMError
	require.ErrorAs(t, err, &vmErr)
	require.Equal(t, ErrTypeMismatch, vmErr.Code)
}

func TestDecodeVarint_RejectsNonMinimal(t *testing.T) {
	// 0x80 0x00 encodes zero non-minimally (a single 0x00 would suffice).
	_, _, err := decodeVarint([]byte{0x80, 0x00}, 0)
	require.Error(t, err)
}

func TestMachine_HashProducesValidCID(t *testing.T) {
	program := append(ConstBytesFrame([]byte("hello")), SimpleFrame(OpHashBlake3)...)

	m := NewMachine(DefaultLimits(), nil, nil)
	result, err := m.Run(context.Background(), program)
	require.NoError(t, err)
	require.Equal(t, TypeCID, result.Type)
	require.Regexp(t, `^b3:[0-9a-f]{64}$`, CIDText(result.CID))
}

func TestMachine_CASRoundTrip(t *testing.T) {
	store := cas.NewMemory()
	cidText, err := store.Put(context.Background(), []byte("payload"))
	require.NoError(t, err)
	raw, err := CIDFromText(cidText)
	require.NoError(t, err)

	program := CASGetImmFrame(raw)
	m := NewMachine(DefaultLimits(), store, nil)
	result, err := m.Run(context.Background(), program)
	require.NoError(t, err)
	require.Equal(t, TypeBytes, result.Type)
	require.Equal(t, []byte("payload"), result.Bytes)
}

func TestMachine_CASMissWithoutStore(t *testing.T) {
	var raw [32]byte
	program := CASGetImmFrame(raw)
	m := NewMachine(DefaultLimits(), nil, nil)
	_, err := m.Run(context.Background(), program)
	var vmErr *VMError
	require.ErrorAs(t, err, &vmErr)
	require.Equal(t, ErrCASMiss, vmErr.Code)
}

func TestMachine_SignDefaultEdRequiresBody(t *testing.T) {
	program := SimpleFrame(OpSignDefaultEd)
	ring := signer.NewKeyRing()
	_, err := ring.GenerateKey("k1")
	require.NoError(t, err)

	m := NewMachine(DefaultLimits(), nil, ring)
	_, err = m.Run(context.Background(), program)
	var vmErr *VMError
	require.ErrorAs(t, err, &vmErr)
	require.Equal(t, ErrRCNotSet, vmErr.Code)
}

func TestMachine_EmitRCProducesBytesAfterSetBody(t *testing.T) {
	program := append(ConstBytesFrame([]byte(`{"decision":"ALLOW"}`)), SimpleFrame(OpSetRCBody)...)
	program = append(program, SimpleFrame(OpEmitRC)...)

	m := NewMachine(DefaultLimits(), nil, nil)
	result, err := m.Run(context.Background(), program)
	require.NoError(t, err)
	require.Equal(t, TypeBytes, result.Type)
	require.NotEmpty(t, result.Bytes)
}

func TestMachine_ContextGetReturnsBoundValues(t *testing.T) {
	ec := ExecutionContext{ModuleCID: "b3:module", RBCID: "b3:rb", InputsCID: "b3:inputs"}
	program := ContextGetFrame(ContextModuleID)

	m := NewMachine(DefaultLimits(), nil, nil)
	result, _, err := m.RunMetered(context.Background(), program, ec)
	require.NoError(t, err)
	require.Equal(t, TypeBytes, result.Type)
	require.Equal(t, "b3:module", string(result.Bytes))
}

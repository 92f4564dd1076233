package pipeline

import (
	"encoding/binary"
	"fmt"

	"github.com/ubl-gate/core/pkg/canonicalize"
	"github.com/ubl-gate/core/pkg/rbvm"
)

// rawFromStackValue serializes an RB-VM stack result into the "raw"
// bytes the Transition receipt's preimage_raw_cid names, alongside the
// canonicalize.Value used to compute rho_cid — the canonical form of the
// same result (spec.md §3 "Transition").
func rawFromStackValue(sv rbvm.StackValue) (raw []byte, cv canonicalize.Value, err error) {
	switch sv.Type {
	case rbvm.TypeI64:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, uint64(sv.I64))
		return b, canonicalize.Int64(sv.I64), nil
	case rbvm.TypeBool:
		v := byte(0)
		if sv.Bool {
			v = 1
		}
		return []byte{v}, canonicalize.Bool(sv.Bool), nil
	case rbvm.TypeBytes:
		return append([]byte(nil), sv.Bytes...), canonicalize.Bytes(sv.Bytes), nil
	case rbvm.TypeCID:
		text := rbvm.CIDText(sv.CID)
		return []byte(text), canonicalize.String(text), nil
	default:
		return nil, canonicalize.Value{}, fmt.Errorf("pipeline: unknown RB-VM stack type %d", sv.Type)
	}
}

// Package canonicalize implements NRF-1.1, the byte-exact normal form used
// everywhere a value's identity (its CID) is computed.
package canonicalize

import (
	"encoding/json"
	"fmt"
)

// Kind discriminates the variants of Value, the sum type used to carry
// heterogeneous manifest vars and grammar values across the pipeline
// without losing the distinction between, say, a BYTES payload and a
// STRING that happens to look the same once base64-decoded.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt64
	KindDecimal
	KindString
	KindBytes
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt64:
		return "int64"
	case KindDecimal:
		return "decimal"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is the explicit-constructor sum type for dynamic, heterogeneous
// grammar and manifest values (§9 of the spec). NaN/±Inf are rejected at
// construction time, not deferred to canonicalization.
type Value struct {
	kind    Kind
	boolV   bool
	int64V  int64
	decimal string // canonical decimal string, set only for KindDecimal
	strV    string
	bytesV  []byte
	arrV    []Value
	objV    map[string]Value
}

func (v Value) Kind() Kind { return v.kind }

func Null() Value                { return Value{kind: KindNull} }
func Bool(b bool) Value          { return Value{kind: KindBool, boolV: b} }
func Int64(i int64) Value        { return Value{kind: KindInt64, int64V: i} }
func String(s string) Value      { return Value{kind: KindString, strV: s} }
func Bytes(b []byte) Value       { return Value{kind: KindBytes, bytesV: append([]byte(nil), b...)} }
func Array(items ...Value) Value { return Value{kind: KindArray, arrV: items} }

// Decimal constructs a non-integer numeric value from its canonical decimal
// string form. The caller is responsible for supplying an already-finite
// decimal; Decimal never accepts "NaN"/"Inf"/"-Inf".
func Decimal(s string) (Value, error) {
	if s == "NaN" || s == "Inf" || s == "-Inf" || s == "+Inf" {
		return Value{}, fmt.Errorf("canonicalize: %w: decimal %q", ErrNonCanonical, s)
	}
	return Value{kind: KindDecimal, decimal: s}, nil
}

func Object(m map[string]Value) Value {
	return Value{kind: KindObject, objV: m}
}

func (v Value) AsBool() (bool, bool)          { return v.boolV, v.kind == KindBool }
func (v Value) AsInt64() (int64, bool)        { return v.int64V, v.kind == KindInt64 }
func (v Value) AsString() (string, bool)      { return v.strV, v.kind == KindString }
func (v Value) AsBytes() ([]byte, bool)       { return v.bytesV, v.kind == KindBytes }
func (v Value) AsArray() ([]Value, bool)      { return v.arrV, v.kind == KindArray }
func (v Value) AsObject() (map[string]Value, bool) {
	return v.objV, v.kind == KindObject
}

// Generic converts a Value tree into the plain any-tree (map[string]any,
// []any, string, int64, json.Number for decimals, bool, nil) that
// Canonicalize operates on. BYTES
// values are represented as base64-std-encoded strings at the JSON
// boundary — the RB-VM is the only place raw bytes exist as a distinct
// stack type; once a value crosses back into JSON-shaped grammar data it
// is necessarily textual.
func (v Value) Generic() (any, error) {
	switch v.kind {
	case KindNull:
		return nil, nil
	case KindBool:
		return v.boolV, nil
	case KindInt64:
		return v.int64V, nil
	case KindDecimal:
		return json.Number(v.decimal), nil
	case KindString:
		return v.strV, nil
	case KindBytes:
		return encodeBytesToString(v.bytesV), nil
	case KindArray:
		out := make([]any, 0, len(v.arrV))
		for _, item := range v.arrV {
			g, err := item.Generic()
			if err != nil {
				return nil, err
			}
			out = append(out, g)
		}
		return out, nil
	case KindObject:
		out := make(map[string]any, len(v.objV))
		for k, item := range v.objV {
			g, err := item.Generic()
			if err != nil {
				return nil, err
			}
			out[k] = g
		}
		return out, nil
	default:
		return nil, fmt.Errorf("canonicalize: unknown value kind %d", v.kind)
	}
}

package canonicalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"regexp"
	"sort"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// integerPattern matches a bare, base-10 integer literal with an optional
// leading minus sign — the only numeric shape NRF-1.1 treats as a true
// int64 rather than a canonical decimal string.
var integerPattern = regexp.MustCompile(`^-?[0-9]+$`)

// Canonicalize renders v in NRF-1.1: the byte-exact normal form whose
// hash is a value's CID. It generalizes the teacher's hand-rolled JCS
// encoder (pkg/canonicalize/jcs.go in the teacher repo) with the
// normalization rules spec.md §4.1 requires: NFC string normalization,
// BOM stripping, null-member stripping, true int64 vs. canonical-decimal
// number handling, and rejection of values with no canonical form at all.
func Canonicalize(v Value) ([]byte, error) {
	g, err := v.Generic()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := writeCanonical(&buf, g); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CanonicalizeAny accepts a plain any-tree (string/bool/int64/float64/
// json.Number/nil/[]any/map[string]any) produced outside of the Value
// constructors — e.g. decoded from incoming JSON — and renders it in
// NRF-1.1 the same way. Any other type (such as a receipt body struct) is
// first rendered through its encoding/json form and then canonicalized.
func CanonicalizeAny(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case int64:
		return writeInt64(buf, t)
	case int:
		return writeInt64(buf, int64(t))
	case json.Number:
		return writeNumberLiteral(buf, t.String())
	case float64:
		return writeFloat(buf, t)
	case string:
		return writeCanonicalString(buf, t)
	case []any:
		return writeArray(buf, t)
	case []Value:
		generic := make([]any, len(t))
		for i, item := range t {
			g, err := item.Generic()
			if err != nil {
				return err
			}
			generic[i] = g
		}
		return writeArray(buf, generic)
	case map[string]any:
		return writeObject(buf, t)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("canonicalize: %w: unsupported type %T: %v", ErrNonCanonical, v, err)
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var generic any
		if err := dec.Decode(&generic); err != nil {
			return fmt.Errorf("canonicalize: %w: %T: %v", ErrNonCanonical, v, err)
		}
		return writeCanonical(buf, generic)
	}
}

// writeInt64 handles the true-integer fast path, including the -0 → 0
// normalization §4.1 requires.
func writeInt64(buf *bytes.Buffer, i int64) error {
	if i == 0 {
		buf.WriteByte('0')
		return nil
	}
	fmt.Fprintf(buf, "%d", i)
	return nil
}

// writeNumberLiteral decides, from the literal's own shape, whether a
// json.Number is a true integer (emitted as int64 text) or a non-integer
// (emitted as its canonical minimal-digit decimal string). This is the
// deliberate departure from piping everything through gowebpki/jcs: JCS
// follows ECMAScript Number::toString, which reinterprets every number as
// an IEEE-754 double and silently loses precision above 2^53 — fatal for
// spec.md's requirement that integers be true signed 64-bit values.
func writeNumberLiteral(buf *bytes.Buffer, lit string) error {
	if integerPattern.MatchString(lit) {
		var i int64
		if _, err := fmt.Sscanf(lit, "%d", &i); err != nil {
			return fmt.Errorf("canonicalize: %w: integer literal %q out of int64 range", ErrNonCanonical, lit)
		}
		return writeInt64(buf, i)
	}
	return writeDecimalLiteral(buf, lit)
}

func writeFloat(buf *bytes.Buffer, f float64) error {
	if f != f || f > maxFloat || f < -maxFloat {
		return fmt.Errorf("canonicalize: %w: NaN/Inf has no canonical form", ErrNonCanonical)
	}
	bf := big.NewFloat(f)
	if bf.IsInf() {
		return fmt.Errorf("canonicalize: %w: Inf has no canonical form", ErrNonCanonical)
	}
	return writeDecimalLiteral(buf, bf.Text('f', -1))
}

// maxFloat guards the f > maxFloat / f < -maxFloat comparison against a
// vet complaint about comparing a float to itself for NaN detection; it
// is effectively unbounded (math.MaxFloat64) and only excludes ±Inf.
const maxFloat = 1.797693134862315708145274237317043567981e+308

func writeDecimalLiteral(buf *bytes.Buffer, lit string) error {
	if lit == "NaN" || lit == "Inf" || lit == "+Inf" || lit == "-Inf" {
		return fmt.Errorf("canonicalize: %w: %q has no canonical form", ErrNonCanonical, lit)
	}
	bf, _, err := big.ParseFloat(lit, 10, 200, big.ToNearestEven)
	if err != nil {
		return fmt.Errorf("canonicalize: %w: %q is not a valid decimal literal", ErrNonCanonical, lit)
	}
	if bf.Sign() == 0 {
		buf.WriteByte('0') // -0 → 0, as for integers
		return nil
	}
	canon := bf.Text('f', -1)
	buf.WriteString(canon)
	return nil
}

func writeArray(buf *bytes.Buffer, arr []any) error {
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeCanonical(buf, elem); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func writeObject(buf *bytes.Buffer, obj map[string]any) error {
	normalized := make(map[string]any, len(obj))
	keys := make([]string, 0, len(obj))
	for k, v := range obj {
		if v == nil {
			// §4.1: members whose value is null are stripped entirely,
			// not emitted as "key":null.
			continue
		}
		nk := norm.NFC.String(k)
		if !utf8.ValidString(nk) {
			return fmt.Errorf("canonicalize: %w: object key contains a lone surrogate or invalid codepoint", ErrNonCanonical)
		}
		if _, dup := normalized[nk]; dup {
			return fmt.Errorf("canonicalize: %w: %w: %q", ErrNonCanonical, ErrDuplicateKey, nk)
		}
		normalized[nk] = v
		keys = append(keys, nk)
	}
	sort.Strings(keys) // byte-wise sort on UTF-8 is codepoint order

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeCanonicalString(buf, k); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := writeCanonical(buf, normalized[k]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeCanonicalString(buf *bytes.Buffer, s string) error {
	s = stripBOM(s)
	nfc := norm.NFC.String(s)
	if !utf8.ValidString(nfc) {
		return fmt.Errorf("canonicalize: %w: string contains a lone surrogate or invalid codepoint", ErrNonCanonical)
	}
	var enc bytes.Buffer
	e := json.NewEncoder(&enc)
	e.SetEscapeHTML(false) // RFC 8785 forbids HTML-escaping <,>,&
	if err := e.Encode(nfc); err != nil {
		return fmt.Errorf("canonicalize: %w", err)
	}
	buf.Write(bytes.TrimSuffix(enc.Bytes(), []byte{'\n'}))
	return nil
}

func stripBOM(s string) string {
	const bom = "\xef\xbb\xbf" // U+FEFF in UTF-8
	for len(s) >= len(bom) && s[:len(bom)] == bom {
		s = s[len(bom):]
	}
	return s
}

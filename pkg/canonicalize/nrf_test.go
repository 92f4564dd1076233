package canonicalize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalize_NegativeZero(t *testing.T) {
	b, err := CanonicalizeAny(math.Copysign(0, -1))
	require.NoError(t, err)
	require.Equal(t, "0", string(b))
}

func TestCanonicalize_ObjectKeySorting(t *testing.T) {
	obj := Object(map[string]Value{
		"b": Int64(2),
		"a": Int64(1),
		"c": Int64(3),
	})
	b, err := Canonicalize(obj)
	require.NoError(t, err)
	require.Equal(t, `{"a":1,"b":2,"c":3}`, string(b))
}

func TestCanonicalize_NullMembersStripped(t *testing.T) {
	b, err := CanonicalizeAny(map[string]any{
		"present": 1,
		"absent":  nil,
	})
	require.NoError(t, err)
	require.Equal(t, `{"present":1}`, string(b))
}

func TestCanonicalize_DuplicateKeyAfterNFC(t *testing.T) {
	// "é" (U+00E9) and "é" (e + combining acute) normalize to the
	// same NFC string, so an object carrying both keys has no canonical
	// form.
	_, err := CanonicalizeAny(map[string]any{
		"é": 1,
		"é":  2,
	})
	require.ErrorIs(t, err, ErrDuplicateKey)
}

func TestCanonicalize_LoneSurrogateRejected(t *testing.T) {
	_, err := CanonicalizeAny(string([]byte{0xed, 0xa0, 0x80}))
	require.ErrorIs(t, err, ErrNonCanonical)
}

func TestCanonicalize_NonIntegerDecimal(t *testing.T) {
	d, err := Decimal("1.50")
	require.NoError(t, err)
	b, err := Canonicalize(d)
	require.NoError(t, err)
	require.Equal(t, "1.5", string(b))
}

func TestCanonicalize_TrueInt64BeyondFloatPrecision(t *testing.T) {
	// 2^53 + 1 cannot be represented exactly as an IEEE-754 double; a
	// JCS/ECMAScript-number pipeline would silently corrupt it.
	const big64 = int64(1<<53) + 1
	b, err := Canonicalize(Int64(big64))
	require.NoError(t, err)
	require.Equal(t, "9007199254740993", string(b))
}

func TestCanonicalize_NaNRejected(t *testing.T) {
	_, err := CanonicalizeAny(nan())
	require.ErrorIs(t, err, ErrNonCanonical)
}

func nan() float64 {
	var zero float64
	return zero / zero
}

func TestCID_Deterministic(t *testing.T) {
	v := Object(map[string]Value{"x": Int64(1)})
	c1, err := CIDOf(v)
	require.NoError(t, err)
	c2, err := CIDOf(v)
	require.NoError(t, err)
	require.Equal(t, c1, c2)
	require.Regexp(t, `^b3:[0-9a-f]{64}$`, c1)
}

func TestCID_DifferentInputsDifferentCID(t *testing.T) {
	c1, err := CIDOf(Int64(1))
	require.NoError(t, err)
	c2, err := CIDOf(Int64(2))
	require.NoError(t, err)
	require.NotEqual(t, c1, c2)
}

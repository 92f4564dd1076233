package grammar

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ubl-gate/core/pkg/canonicalize"
)

func TestDocument_Apply_Base64DecodeThenOutput(t *testing.T) {
	reg := NewRegistry()
	doc := &Document{
		Inputs: []string{"input_data"},
		Mappings: []Mapping{
			{From: "input_data", Codec: "base64.decode", To: "decoded"},
		},
		OutputFrom: "decoded",
	}

	vars := map[string]canonicalize.Value{
		"input_data": canonicalize.String("aGVsbG8="),
	}

	out, err := doc.Apply(reg, vars)
	require.NoError(t, err)
	b, ok := out.AsBytes()
	require.True(t, ok)
	require.Equal(t, "hello", string(b))
}

func TestDocument_Apply_UnboundVarFails(t *testing.T) {
	reg := NewRegistry()
	doc := &Document{OutputFrom: "missing"}
	_, err := doc.Apply(reg, map[string]canonicalize.Value{})
	require.Error(t, err)
}

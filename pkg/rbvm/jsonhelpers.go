package rbvm

import (
	"bytes"
	"encoding/json"
	"io"
)

// jsonschemaReader adapts raw schema bytes into the io.Reader the
// jsonschema/v5 compiler's AddResource expects.
func jsonschemaReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}

// jsonUnmarshal decodes JSON using json.Number for integers so
// JSON_VALIDATE/JSON_NORMALIZE never silently reinterpret a large
// integer as a float64.
func jsonUnmarshal(b []byte, out *any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	return dec.Decode(out)
}

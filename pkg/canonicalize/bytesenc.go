package canonicalize

import "encoding/base64"

// encodeBytesToString renders a BYTES value as the base64-standard string
// spec.md's worked examples use (e.g. vars.input_data = "aGVsbG8="). Raw
// byte semantics only exist again once an RB-VM codec like base64.decode
// runs against the string.
func encodeBytesToString(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeBytesFromString is the inverse of encodeBytesToString, exposed for
// codecs and tests that need to go from the JSON-level string back to raw
// bytes without round-tripping through the RB-VM.
func DecodeBytesFromString(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

package canonicalize

import (
	"encoding/hex"

	"lukechampine.com/blake3"
)

// cidPrefix is the textual CID tag defined by spec.md §4.1: "b3:" followed
// by the lowercase hex digest of a BLAKE3-256 hash.
const cidPrefix = "b3:"

// CID returns the textual content identifier of b: BLAKE3-256, hex
// encoded, tagged with the algorithm. The teacher hashes with SHA-256
// (pkg/canonicalize/jcs.go's HashBytes); UBL Gate generalizes to BLAKE3
// per spec.md's explicit algorithm requirement — see DESIGN.md.
func CID(b []byte) string {
	sum := blake3.Sum256(b)
	return cidPrefix + hex.EncodeToString(sum[:])
}

// CIDOf canonicalizes v and returns its CID in one step.
func CIDOf(v Value) (string, error) {
	b, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	return CID(b), nil
}

// CIDOfAny canonicalizes a plain any-tree and returns its CID.
func CIDOfAny(v any) (string, error) {
	b, err := CanonicalizeAny(v)
	if err != nil {
		return "", err
	}
	return CID(b), nil
}

package policy

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
	"lukechampine.com/blake3"
)

func marshalForJCS(v any) ([]byte, error) {
	return json.Marshal(v)
}

// decisionHashInput is the narrow, string/bool-only struct whose JCS
// canonicalization becomes the decision hash bound into receipts — the
// same scoping the teacher's pdp.ComputeDecisionHash uses, kept distinct
// from pkg/canonicalize's NRF-1.1 so the int64-precision concerns that
// motivated NRF never apply here: every field is a string or bool by
// construction.
type decisionHashInput struct {
	Effect       string `json:"effect"`
	DecidingRule string `json:"deciding_rule"`
	Reason       string `json:"reason"`
	RegistryStateCID string `json:"registry_state_cid"`
}

// ComputeDecisionHash canonicalizes d's outcome via RFC 8785 (gowebpki/jcs)
// and returns its BLAKE3 digest, tagged the same way pkg/canonicalize
// tags a CID.
func ComputeDecisionHash(d Decision, registryStateCID string) (string, error) {
	input := decisionHashInput{
		Effect:           string(d.Effect),
		DecidingRule:     d.DecidingRule,
		Reason:           d.Reason,
		RegistryStateCID: registryStateCID,
	}
	raw, err := marshalForJCS(input)
	if err != nil {
		return "", fmt.Errorf("policy: marshal decision: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("policy: jcs transform: %w", err)
	}
	sum := blake3.Sum256(canonical)
	return "b3:" + hex.EncodeToString(sum[:]), nil
}

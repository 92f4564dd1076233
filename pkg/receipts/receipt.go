// Package receipts defines the WA/Transition/WF/Attestation receipt
// envelopes the pipeline emits, and the Byte Law that binds them: only
// `Body` is ever canonicalized and hashed into `BodyCID`; `Proof` and
// `Observability` never affect it. Grounded on the teacher's
// pkg/contracts.Receipt (prev-hash causal chaining, provenance, witness
// signatures) generalized to the spec's content-addressed chain.
package receipts

import (
	"github.com/ubl-gate/core/pkg/canonicalize"
	"github.com/ubl-gate/core/pkg/observability"
)

// Kind names the three receipt kinds the pipeline emits per execution,
// plus the standalone Wasm-adapter acquisition receipt (§6.6).
type Kind string

const (
	KindWA           Kind = "ubl/wa"
	KindTransition   Kind = "ubl/transition"
	KindWF           Kind = "ubl/wf"
	KindWasmAcquire  Kind = "ubl/wasm_acquire"
	KindAttestation  Kind = "ubl/attestation"
)

// Proof is the detached-JWS-backed signature block (§6.4) naming the key
// that signed the receipt's canonical body bytes.
type Proof struct {
	Kid       string `json:"kid"`
	Alg       string `json:"alg"`
	Signature string `json:"signature"` // detached JWS compact serialization
}

// Receipt is the common envelope shared by every receipt kind. Body is a
// Kind-specific payload (WABody, TransitionBody, WFBody, ...); BodyCID
// is CID(Canonicalize(Body)) and nothing else ever contributes to it.
// Parents is ordered: a WF's Parents[0] is always its WA's BodyCID, and
// Parents[1], when present, is the Transition's BodyCID.
type Receipt struct {
	Kind          Kind                    `json:"kind"`
	TenantID      string                  `json:"tenant_id"`
	BodyCID       string                  `json:"body_cid"`
	Body          any                     `json:"body"`
	Parents       []string                `json:"parents,omitempty"`
	Proof         *Proof                  `json:"proof,omitempty"`
	Observability *observability.Envelope `json:"observability,omitempty"`
}

// Artifacts names the content-addressed input/output of a receipt's
// stage. OutputCID is null (empty) until the stage that produces it runs
// — a WA's Artifacts.OutputCID is always empty; a DENY'd WF's is too.
type Artifacts struct {
	InputCID  string `json:"input_cid,omitempty"`
	OutputCID string `json:"output_cid,omitempty"`
}

// Environment names the caller context a WA's intent was captured under
// (spec.md §3): the caller's DID and the request's context id. Neither
// is a secret — both are part of the receipt's auditable intent, not
// credential material.
type Environment struct {
	CallerDID string `json:"caller_did,omitempty"`
	ContextID string `json:"context_id,omitempty"`
}

// WABody is the body of a "ubl/wa" receipt: the write-ahead record of
// intent captured before any policy or rendering work happens, naming
// the bound pipeline/grammar, the chip this execution is bound to, the
// caller's environment, and the D8 bind outcome.
type WABody struct {
	Pipeline    string         `json:"pipeline"`
	ManifestCID string         `json:"manifest_cid"`
	Grammar     string         `json:"grammar"`
	ChipRef     string         `json:"chip_ref,omitempty"`
	Environment Environment    `json:"environment"`
	Vars        map[string]any `json:"vars"`
	BoundBy     string         `json:"bound_by"` // "exact" or "one_to_one"
	Artifacts   Artifacts      `json:"artifacts"`
}

// TransitionBody is the body of a "ubl/transition" receipt: proof of the
// layer -1 -> layer 0 jump the RB-VM performed.
type TransitionBody struct {
	FromLayer      int     `json:"from_layer"`
	ToLayer        int     `json:"to_layer"`
	PreimageRawCID string  `json:"preimage_raw_cid"` // raw RB-VM output, pre-canonicalization
	RhoCID         string  `json:"rho_cid"`          // canonical form of that output
	Witness        Witness `json:"witness"`
}

// Witness records what produced a Transition's rho: the VM tag, the
// bytecode program's CID, and the fuel it actually spent.
type Witness struct {
	VMTag       string `json:"vm_tag"`
	BytecodeCID string `json:"bytecode_cid"`
	FuelSpent   uint64 `json:"fuel_spent"`
}

// WFBody is the body of a "ubl/wf" receipt: the execution's final
// outcome, chained to the tenant's prior chain tip.
type WFBody struct {
	Decision     string    `json:"decision"` // "ALLOW" or "DENY"
	Reason       string    `json:"reason,omitempty"`
	RuleID       string    `json:"rule_id,omitempty"`
	DecisionHash string    `json:"decision_hash"` // JCS/BLAKE3 hash of the decision, bound to registry_state_cid
	Artifacts    Artifacts `json:"artifacts"`
	PrevTip      string    `json:"prev_tip,omitempty"`
}

// WasmAcquireBody is the body of a "ubl/wasm_acquire" receipt (§6.6): the
// frozen, canonicalized snapshot a Wasm adapter call bound to.
type WasmAcquireBody struct {
	ModuleCID string `json:"module_cid"`
	FrozenCID string `json:"frozen_cid"`
}

// NewReceipt canonicalizes body, computes its CID, and returns a Receipt
// with BodyCID populated. Proof and Observability are attached by the
// caller afterward — neither ever participates in BodyCID. parents is
// stored as given; pass none for a chain-starting WA.
func NewReceipt(kind Kind, tenantID string, body any, parents ...string) (Receipt, error) {
	cid, err := canonicalize.CIDOfAny(body)
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{
		Kind:     kind,
		TenantID: tenantID,
		BodyCID:  cid,
		Body:     body,
		Parents:  parents,
	}, nil
}

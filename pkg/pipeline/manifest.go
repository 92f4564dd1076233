// Package pipeline orchestrates a single execution: bind -> parse ->
// policy -> render, emitting WA/Transition/WF receipts in that order and
// chaining them to the tenant's prior tip (spec.md §3, §4.6). Grounded on
// the teacher's top-level execution flow (its API gateway -> kernel ->
// PDP -> ledger sequence) generalized to the spec's receipt-first
// pipeline.
package pipeline

import (
	"fmt"
	"sort"

	"github.com/ubl-gate/core/pkg/canonicalize"
	"github.com/ubl-gate/core/pkg/grammar"
	"github.com/ubl-gate/core/pkg/ublerrors"
)

// Manifest declares the pipeline, grammars, and policy a single execution
// binds against (spec.md §3 "Execution context").
type Manifest struct {
	ManifestCID   string
	Pipeline      string
	GrammarName   string
	InGrammar     grammar.Document
	OutGrammar    grammar.Document
	Policy        string
	Program       []byte // RB-VM bytecode run against the in_grammar's output
}

// BoundBy names how Bind resolved the manifest's inputs against the
// caller's vars.
const (
	BoundByExact    = "exact"
	BoundByOneToOne = "one_to_one"
)

// Bind implements the D8 rule (spec.md §4.6.1): for each declared input,
// bind the identically-named var if one exists; if exactly one input and
// exactly one var remain unbound afterward, bind them as a 1-to-1
// fallback; otherwise fail with BIND.AMBIGUOUS naming every input and var
// left over.
func Bind(m *Manifest, vars map[string]canonicalize.Value) (bound map[string]canonicalize.Value, boundBy string, err error) {
	bound = make(map[string]canonicalize.Value, len(m.InGrammar.Inputs))
	remainingVars := make(map[string]canonicalize.Value, len(vars))
	for k, v := range vars {
		remainingVars[k] = v
	}

	var unboundInputs []string
	for _, name := range m.InGrammar.Inputs {
		if v, ok := remainingVars[name]; ok {
			bound[name] = v
			delete(remainingVars, name)
			continue
		}
		unboundInputs = append(unboundInputs, name)
	}

	if len(unboundInputs) == 0 {
		return bound, BoundByExact, nil
	}

	if len(unboundInputs) == 1 && len(remainingVars) == 1 {
		for _, v := range remainingVars {
			bound[unboundInputs[0]] = v
			return bound, BoundByOneToOne, nil
		}
	}

	var leftoverVars []string
	for k := range remainingVars {
		leftoverVars = append(leftoverVars, k)
	}
	sort.Strings(unboundInputs)
	sort.Strings(leftoverVars)
	return nil, "", ublerrors.Wrap(ublerrors.KindValidation, "BIND.AMBIGUOUS",
		"pipeline: cannot bind inputs %v against remaining vars %v", unboundInputs, leftoverVars)
}

// Fingerprint computes the idempotency key spec.md §3 defines:
// CID(canon({pipeline, inputs_raw_cid, tenant_id})).
func Fingerprint(pipelineName, inputsRawCID, tenantID string) (string, error) {
	body := map[string]any{
		"pipeline":       pipelineName,
		"inputs_raw_cid": inputsRawCID,
		"tenant_id":      tenantID,
	}
	cid, err := canonicalize.CIDOfAny(body)
	if err != nil {
		return "", fmt.Errorf("pipeline: fingerprint: %w", err)
	}
	return cid, nil
}

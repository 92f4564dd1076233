package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/ubl-gate/core/pkg/canonicalize"
	"github.com/ubl-gate/core/pkg/grammar"
	"github.com/ubl-gate/core/pkg/observability"
	"github.com/ubl-gate/core/pkg/pipeline/idempotency"
	"github.com/ubl-gate/core/pkg/policy"
	"github.com/ubl-gate/core/pkg/rbvm"
	"github.com/ubl-gate/core/pkg/receipts"
	"github.com/ubl-gate/core/pkg/signer"
	"github.com/ubl-gate/core/pkg/store"
	"github.com/ubl-gate/core/pkg/tenant"
	"github.com/ubl-gate/core/pkg/ublerrors"
)

// ErrReplay is returned by Execute when the request's fingerprint matches
// an already-committed execution (spec.md §4.6.7). The caller should
// surface the existing WF rather than treat this as a failure.
var ErrReplay = errors.New("pipeline: fingerprint already committed")

// Pipeline wires the components a single Execute call needs: receipt
// storage, idempotency tracking, signing, policy evaluation, the RB-VM,
// and the codec registry grammars reference. Grounded on the teacher's
// wiring of kernel/PDP/ledger/signer behind its API gateway, generalized
// to spec.md's synchronous bind -> parse -> policy -> render pipeline.
type Pipeline struct {
	Store         store.ReceiptStore
	Idempotency   idempotency.Store
	KeyRing       *signer.KeyRing
	PolicyEval    *policy.Evaluator
	Machine       *rbvm.Machine
	GrammarReg    *grammar.Registry
	Observability *observability.Provider

	// DefaultPolicyEffect is the cascade's deployment-configurable
	// fallthrough when no DENY and no explicit ALLOW rule matches
	// (spec.md §4.5 rule 4). Zero value falls back to
	// policy.DefaultGlobalDefault (fail-closed).
	DefaultPolicyEffect policy.Effect
}

func (p *Pipeline) defaultPolicyEffect() policy.Effect {
	if p.DefaultPolicyEffect == "" {
		return policy.DefaultGlobalDefault
	}
	return p.DefaultPolicyEffect
}

// Request is the input to a single Execute call.
type Request struct {
	TenantID         string
	Manifest         *Manifest
	Vars             map[string]canonicalize.Value
	Ghost            bool
	RegistryStateCID string
	PolicyTiers      []*policy.Document
	PolicyInput      map[string]any // extra fields merged into the CEL `input` map beyond vars

	// ChipRef, CallerDID, and ContextID name the execution's captured
	// intent per spec.md §3 — the chip this execution is bound to and
	// the caller's environment — and flow straight into the WA body.
	ChipRef   string
	CallerDID string
	ContextID string
}

// Result is Execute's output: the full receipt chain for one execution
// plus the tenant's chain tip after it.
type Result struct {
	WA         receipts.Receipt
	Transition *receipts.Receipt
	WF         receipts.Receipt
	TipCID     string
}

// Execute runs one bind -> parse -> policy -> render cycle and returns
// the resulting receipt chain, or ErrReplay if the request's fingerprint
// was already committed. On replay the returned Result is the chain this
// call built, not the prior execution's; the prior WF's CID appears only
// in the error message.
func (p *Pipeline) Execute(ctx context.Context, req *Request) (*Result, error) {
	tid := tenant.ID(req.TenantID)
	ctx = tenant.WithTenant(ctx, tid)

	varsGeneric, err := valuesToGeneric(req.Vars)
	if err != nil {
		return nil, ublerrors.Wrap(ublerrors.KindValidation, "VALIDATION.NON_CANONICAL", "pipeline: vars: %w", err)
	}
	inputsRawCID, err := canonicalize.CIDOfAny(varsGeneric)
	if err != nil {
		return nil, ublerrors.Wrap(ublerrors.KindValidation, "VALIDATION.NON_CANONICAL", "pipeline: inputs_raw_cid: %w", err)
	}
	fp, err := Fingerprint(req.Manifest.Pipeline, inputsRawCID, req.TenantID)
	if err != nil {
		return nil, err
	}

	ctx, done := p.track(ctx, "bind", req.TenantID, fp)
	bound, boundBy, err := Bind(req.Manifest, req.Vars)
	done(err)
	if err != nil {
		return nil, err
	}
	boundGeneric, err := valuesToGeneric(bound)
	if err != nil {
		return nil, err
	}

	prevTip, err := p.Store.Tip(ctx, tid)
	if err != nil {
		return nil, fmt.Errorf("pipeline: read tip: %w", err)
	}

	var waParents []string
	if prevTip != "" {
		waParents = []string{prevTip}
	}
	waBody := receipts.WABody{
		Pipeline:    req.Manifest.Pipeline,
		ManifestCID: req.Manifest.ManifestCID,
		Grammar:     req.Manifest.GrammarName,
		ChipRef:     req.ChipRef,
		Environment: receipts.Environment{CallerDID: req.CallerDID, ContextID: req.ContextID},
		Vars:        boundGeneric,
		BoundBy:     boundBy,
		Artifacts:   receipts.Artifacts{InputCID: inputsRawCID},
	}
	waReceipt, err := receipts.NewReceipt(receipts.KindWA, req.TenantID, waBody, waParents...)
	if err != nil {
		return nil, err
	}
	if err := p.sign(&waReceipt); err != nil {
		return nil, err
	}
	p.stampEnvelope(&waReceipt, "wa", req.Ghost)

	ctx, done = p.track(ctx, "parse", req.TenantID, fp)
	renderedInput, err := req.Manifest.InGrammar.Apply(p.GrammarReg, bound)
	done(err)
	if err != nil {
		return nil, ublerrors.Wrap(ublerrors.KindValidation, "VALIDATION.GRAMMAR", "pipeline: parse: %w", err)
	}

	ctx, done = p.track(ctx, "policy", req.TenantID, fp)
	policyInput := make(map[string]any, len(boundGeneric)+len(req.PolicyInput))
	for k, v := range boundGeneric {
		policyInput[k] = v
	}
	for k, v := range req.PolicyInput {
		policyInput[k] = v
	}
	decision, err := policy.Cascade(ctx, p.PolicyEval, req.RegistryStateCID, req.PolicyTiers, policyInput, p.defaultPolicyEffect())
	done(err)
	if err != nil && ublerrors.KindOf(err) != ublerrors.KindPolicy {
		return nil, err
	}

	var transitionReceipt *receipts.Receipt
	var wfParents []string
	var wfArtifacts receipts.Artifacts

	if decision.Effect == policy.EffectAllow {
		ctx, done = p.track(ctx, "render", req.TenantID, fp)
		canonicalInputBytes, cerr := canonicalize.Canonicalize(renderedInput)
		if cerr != nil {
			done(cerr)
			return nil, ublerrors.Wrap(ublerrors.KindValidation, "VALIDATION.NON_CANONICAL", "pipeline: render input: %w", cerr)
		}
		program := append(rbvm.ConstBytesFrame(canonicalInputBytes), req.Manifest.Program...)
		bytecodeCID := canonicalize.CID(req.Manifest.Program)
		execCtx := rbvm.ExecutionContext{
			ModuleCID: req.Manifest.ManifestCID,
			RBCID:     bytecodeCID,
			InputsCID: inputsRawCID,
		}
		stackResult, fuelSpent, rerr := p.Machine.RunMetered(ctx, program, execCtx)
		done(rerr)
		if rerr != nil {
			return nil, rerr
		}

		rawOutput, outputValue, cerr := rawFromStackValue(stackResult)
		if cerr != nil {
			return nil, cerr
		}
		preimageRawCID := canonicalize.CID(rawOutput)
		canonicalOutput, cerr := canonicalize.Canonicalize(outputValue)
		if cerr != nil {
			return nil, cerr
		}
		rhoCID := canonicalize.CID(canonicalOutput)

		tBody := receipts.TransitionBody{
			FromLayer:      -1,
			ToLayer:        0,
			PreimageRawCID: preimageRawCID,
			RhoCID:         rhoCID,
			Witness: receipts.Witness{
				VMTag:       "rbvm/1",
				BytecodeCID: bytecodeCID,
				FuelSpent:   fuelSpent,
			},
		}
		tReceipt, terr := receipts.NewReceipt(receipts.KindTransition, req.TenantID, tBody, waReceipt.BodyCID)
		if terr != nil {
			return nil, terr
		}
		if err := p.sign(&tReceipt); err != nil {
			return nil, err
		}
		p.stampEnvelope(&tReceipt, "transition", req.Ghost)
		transitionReceipt = &tReceipt

		outInputName := req.Manifest.OutGrammar.OutputFrom
		if len(req.Manifest.OutGrammar.Inputs) > 0 {
			outInputName = req.Manifest.OutGrammar.Inputs[0]
		}
		outBound := map[string]canonicalize.Value{outInputName: outputValue}
		finalOutput, oerr := req.Manifest.OutGrammar.Apply(p.GrammarReg, outBound)
		if oerr != nil {
			return nil, ublerrors.Wrap(ublerrors.KindValidation, "VALIDATION.GRAMMAR", "pipeline: out_grammar: %w", oerr)
		}
		finalOutputBytes, oerr := canonicalize.Canonicalize(finalOutput)
		if oerr != nil {
			return nil, oerr
		}
		wfArtifacts = receipts.Artifacts{InputCID: inputsRawCID, OutputCID: canonicalize.CID(finalOutputBytes)}
		wfParents = []string{waReceipt.BodyCID, tReceipt.BodyCID}
	} else {
		wfArtifacts = receipts.Artifacts{InputCID: inputsRawCID}
		wfParents = []string{waReceipt.BodyCID}
	}

	decisionHash, err := policy.ComputeDecisionHash(decision, req.RegistryStateCID)
	if err != nil {
		return nil, fmt.Errorf("pipeline: decision hash: %w", err)
	}
	wfBody := receipts.WFBody{
		Decision:     string(decision.Effect),
		Reason:       decision.Reason,
		RuleID:       decision.DecidingRule,
		DecisionHash: decisionHash,
		Artifacts:    wfArtifacts,
		PrevTip:      prevTip,
	}
	wfReceipt, err := receipts.NewReceipt(receipts.KindWF, req.TenantID, wfBody, wfParents...)
	if err != nil {
		return nil, err
	}
	if err := p.sign(&wfReceipt); err != nil {
		return nil, err
	}
	p.stampEnvelope(&wfReceipt, "wf", req.Ghost)
	wfReceipt.Observability.PolicyTrace = decision.Trace

	result := &Result{WA: waReceipt, Transition: transitionReceipt, WF: wfReceipt, TipCID: wfReceipt.BodyCID}

	if req.Ghost {
		// Ghost mode: produce and return the full chain, but never touch
		// external/observable storage or the idempotency map (spec.md §4.6.6).
		return result, nil
	}

	if err := p.commit(ctx, tid, fp, prevTip, result); err != nil {
		return result, err
	}
	return result, nil
}

// commit persists the receipt chain, advances the tenant's chain tip, and
// records the fingerprint — in that order, and only once all three
// succeed does the execution count as committed. The idempotency insert
// happens last and atomically, closing the TOCTOU window a naive
// check-then-store pair would leave open (spec.md §4.6.7).
func (p *Pipeline) commit(ctx context.Context, tid tenant.ID, fp, prevTip string, result *Result) error {
	if err := p.Store.PutReceipt(ctx, tid, result.WA); err != nil {
		return fmt.Errorf("pipeline: store WA: %w", err)
	}
	if result.Transition != nil {
		if err := p.Store.PutReceipt(ctx, tid, *result.Transition); err != nil {
			return fmt.Errorf("pipeline: store transition: %w", err)
		}
	}
	if err := p.Store.PutReceipt(ctx, tid, result.WF); err != nil {
		return fmt.Errorf("pipeline: store WF: %w", err)
	}

	if err := p.Store.AdvanceTip(ctx, tid, prevTip, result.WF.BodyCID); err != nil {
		if errors.Is(err, store.ErrTipConflict) {
			current, tErr := p.Store.Tip(ctx, tid)
			if tErr == nil && current == result.WF.BodyCID {
				// Another concurrent execution with the same inputs already
				// advanced the tip to the same WF — not a real conflict.
			} else {
				return fmt.Errorf("pipeline: advance tip: %w", err)
			}
		} else {
			return fmt.Errorf("pipeline: advance tip: %w", err)
		}
	}

	inserted, existing, err := p.Idempotency.InsertIfAbsent(ctx, tid, fp, result.WF.BodyCID)
	if err != nil {
		return fmt.Errorf("pipeline: idempotency insert: %w", err)
	}
	if !inserted {
		// fp was already committed by a prior (possibly concurrent)
		// execution, whether or not it landed on the same WF — per
		// spec.md §4.6.7 every caller but the first to insert replays,
		// never silently succeeds.
		return ublerrors.Wrap(ublerrors.KindIdempotency, "IDEMPOTENCY.REPLAY", "pipeline: fingerprint %s already committed to %s: %w", fp, existing, ErrReplay)
	}
	return nil
}

// GetReceipt looks up any receipt this pipeline has stored for tenantID
// by its BodyCID, regardless of kind.
func (p *Pipeline) GetReceipt(ctx context.Context, tenantID, bodyCID string) (receipts.Receipt, error) {
	return p.Store.GetReceipt(ctx, tenant.ID(tenantID), bodyCID)
}

// GetTransition is GetReceipt narrowed to the "ubl/transition" kind,
// rejecting a hit of any other kind rather than returning it silently.
func (p *Pipeline) GetTransition(ctx context.Context, tenantID, bodyCID string) (receipts.Receipt, error) {
	r, err := p.Store.GetReceipt(ctx, tenant.ID(tenantID), bodyCID)
	if err != nil {
		return receipts.Receipt{}, err
	}
	if r.Kind != receipts.KindTransition {
		return receipts.Receipt{}, fmt.Errorf("pipeline: %s is a %s receipt, not %s", bodyCID, r.Kind, receipts.KindTransition)
	}
	return r, nil
}

func (p *Pipeline) sign(r *receipts.Receipt) error {
	bodyBytes, err := canonicalize.CanonicalizeAny(r.Body)
	if err != nil {
		return fmt.Errorf("pipeline: canonicalize %s body for signing: %w", r.Kind, err)
	}
	proof, err := signer.Sign(p.KeyRing, bodyBytes)
	if err != nil {
		return fmt.Errorf("pipeline: sign %s: %w", r.Kind, err)
	}
	r.Proof = proof
	return nil
}

func (p *Pipeline) stampEnvelope(r *receipts.Receipt, stage string, ghost bool) {
	env := observability.NewEnvelope(stage)
	env.Ghost = ghost
	r.Observability = &env
}

func (p *Pipeline) track(ctx context.Context, phase, tenantID, fp string) (context.Context, func(error)) {
	if p.Observability == nil {
		return ctx, func(error) {}
	}
	return p.Observability.TrackPhase(ctx, phase, tenantID, fp)
}

func valuesToGeneric(vars map[string]canonicalize.Value) (map[string]any, error) {
	out := make(map[string]any, len(vars))
	for k, v := range vars {
		g, err := v.Generic()
		if err != nil {
			return nil, err
		}
		out[k] = g
	}
	return out, nil
}

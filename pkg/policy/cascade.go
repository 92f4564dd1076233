package policy

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/cel-go/cel"

	"github.com/ubl-gate/core/pkg/observability"
	"github.com/ubl-gate/core/pkg/ublerrors"
)

// Decision is the cascade's final outcome for one execution.
type Decision struct {
	Effect       Effect
	DecidingRule string
	Reason       string
	Trace        []observability.PolicyTraceEntry
}

// Evaluator compiles and runs CEL rule conditions over an `input` map,
// following the teacher's celdp.CELDPEvaluator wiring generalized to a
// reusable, cached-per-expression evaluator.
type Evaluator struct {
	env      *cel.Env
	programs map[string]cel.Program
}

// NewEvaluator builds a CEL environment exposing a single `input` map
// variable, the same shape spec.md's rule conditions evaluate against.
func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("input", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("policy: cel env: %w", err)
	}
	return &Evaluator{env: env, programs: make(map[string]cel.Program)}, nil
}

func (e *Evaluator) program(expr string) (cel.Program, error) {
	if p, ok := e.programs[expr]; ok {
		return p, nil
	}
	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	if dIssues := checkDeterministic(ast.Expr()); len(dIssues) > 0 { //nolint:staticcheck // Expr() is deprecated but is the only AST accessor this cel-go version exposes
		return nil, fmt.Errorf("policy: condition %q is not deterministic: %s", expr, dIssues[0].Message)
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, err
	}
	e.programs[expr] = prg
	return prg, nil
}

// evalCondition returns the rule condition's boolean result. A compile or
// runtime error is never swallowed — callers must fail closed on it.
func (e *Evaluator) evalCondition(expr string, input map[string]any) (bool, error) {
	prg, err := e.program(expr)
	if err != nil {
		return false, err
	}
	val, _, err := prg.Eval(map[string]any{"input": input})
	if err != nil {
		return false, err
	}
	b, ok := val.Value().(bool)
	if !ok {
		return false, fmt.Errorf("policy: condition %q did not evaluate to bool", expr)
	}
	return b, nil
}

// DefaultGlobalDefault is the fallback `defaultEffect` a deployment gets
// if it never configures one explicitly — fail-closed, consistent with
// the cascade's other default-deny behavior (eval errors, unparseable
// conditions) rather than fail-open.
const DefaultGlobalDefault = EffectDeny

// Cascade evaluates global, tenant, and app documents in that fixed
// order. DENY short-circuits immediately. WARN rules never short-circuit
// — they are recorded in the trace and evaluation continues. If no DENY
// matches and at least one explicit ALLOW rule matches, the decision is
// ALLOW; otherwise defaultEffect applies — the deployment-configurable
// global default spec.md §4.5 rule 4 names (pass DefaultGlobalDefault
// for the fail-closed default). A CEL compile or eval error is
// fail-closed: the cascade stops and returns DENY with reason
// POLICY.EVAL_ERROR, per spec.md §4.5 rule 6 / §9.
func Cascade(ctx context.Context, ev *Evaluator, registryStateCID string, tiers []*Document, input map[string]any, defaultEffect Effect) (Decision, error) {
	var trace []observability.PolicyTraceEntry
	var matchedAllow bool
	var allowRule, allowReason string

	rank := func(t Tier) int {
		switch t {
		case TierGlobal:
			return 0
		case TierTenant:
			return 1
		case TierApp:
			return 2
		}
		return 3
	}
	ordered := append([]*Document(nil), tiers...)
	sort.SliceStable(ordered, func(i, j int) bool { return rank(ordered[i].Tier) < rank(ordered[j].Tier) })

	for _, doc := range ordered {
		for _, rule := range doc.Rules {
			ok, err := ev.evalCondition(rule.Condition, input)
			if err != nil {
				trace = append(trace, observability.PolicyTraceEntry{
					RuleID: rule.ID, Tier: string(doc.Tier), Effect: "ERROR", Reason: err.Error(),
				})
				return Decision{
					Effect:       EffectDeny,
					DecidingRule: rule.ID,
					Reason:       "POLICY.EVAL_ERROR",
					Trace:        trace,
				}, ublerrors.Wrap(ublerrors.KindPolicy, "POLICY.EVAL_ERROR", "policy: rule %q (%s): %w", rule.ID, doc.Tier, err)
			}
			if !ok {
				continue
			}

			trace = append(trace, observability.PolicyTraceEntry{
				RuleID: rule.ID, Tier: string(doc.Tier), Effect: string(rule.Effect), Reason: rule.Reason,
			})

			switch rule.Effect {
			case EffectDeny:
				return Decision{
					Effect:       EffectDeny,
					DecidingRule: rule.ID,
					Reason:       rule.Reason,
					Trace:        trace,
				}, nil
			case EffectWarn:
				// Trace-only: recorded above, never short-circuits.
				continue
			case EffectAllow:
				// An explicit ALLOW rule matching does not itself
				// short-circuit lower tiers' DENY rules — the cascade
				// only ends early on DENY or on exhausting every tier.
				// Remembered so the end-of-cascade fallthrough can
				// distinguish "explicitly allowed" from "nothing
				// matched at all".
				if !matchedAllow {
					matchedAllow = true
					allowRule, allowReason = rule.ID, rule.Reason
				}
				continue
			}
		}
	}

	if matchedAllow {
		return Decision{Effect: EffectAllow, DecidingRule: allowRule, Reason: allowReason, Trace: trace}, nil
	}
	return Decision{Effect: defaultEffect, Reason: "POLICY.DEFAULT", Trace: trace}, nil
}

package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCascade_DenyShortCircuits(t *testing.T) {
	ev, err := NewEvaluator()
	require.NoError(t, err)

	global := &Document{Tier: TierGlobal, Version: "1.0.0", Rules: []Rule{
		{ID: "g1", Condition: `input.amount > 1000`, Effect: EffectDeny, Reason: "AMOUNT_TOO_HIGH"},
	}}
	tenant := &Document{Tier: TierTenant, Version: "1.0.0", Rules: []Rule{
		{ID: "t1", Condition: `true`, Effect: EffectAllow},
	}}

	decision, err := Cascade(context.Background(), ev, "b3:abc", []*Document{global, tenant}, map[string]any{"amount": int64(5000)}, DefaultGlobalDefault)
	require.NoError(t, err)
	require.Equal(t, EffectDeny, decision.Effect)
	require.Equal(t, "g1", decision.DecidingRule)
}

func TestCascade_WarnDoesNotShortCircuit(t *testing.T) {
	ev, err := NewEvaluator()
	require.NoError(t, err)

	global := &Document{Tier: TierGlobal, Version: "1.0.0", Rules: []Rule{
		{ID: "g1", Condition: `input.amount > 100`, Effect: EffectWarn, Reason: "ELEVATED"},
		{ID: "g2", Condition: `true`, Effect: EffectAllow},
	}}

	decision, err := Cascade(context.Background(), ev, "b3:abc", []*Document{global}, map[string]any{"amount": int64(500)}, DefaultGlobalDefault)
	require.NoError(t, err)
	require.Equal(t, EffectAllow, decision.Effect)
	require.Equal(t, "g2", decision.DecidingRule)
	require.Len(t, decision.Trace, 2)
	require.Equal(t, "ELEVATED", decision.Trace[0].Reason)
}

func TestCascade_NoMatchFallsToConfiguredDefault(t *testing.T) {
	ev, err := NewEvaluator()
	require.NoError(t, err)

	global := &Document{Tier: TierGlobal, Version: "1.0.0", Rules: []Rule{
		{ID: "g1", Condition: `input.amount > 100`, Effect: EffectWarn, Reason: "ELEVATED"},
	}}

	decision, err := Cascade(context.Background(), ev, "b3:abc", []*Document{global}, map[string]any{"amount": int64(500)}, EffectDeny)
	require.NoError(t, err)
	require.Equal(t, EffectDeny, decision.Effect)
	require.Equal(t, "POLICY.DEFAULT", decision.Reason)

	decision, err = Cascade(context.Background(), ev, "b3:abc", []*Document{global}, map[string]any{"amount": int64(500)}, EffectAllow)
	require.NoError(t, err)
	require.Equal(t, EffectAllow, decision.Effect)
}

func TestCascade_EvalErrorFailsClosed(t *testing.T) {
	ev, err := NewEvaluator()
	require.NoError(t, err)

	global := &Document{Tier: TierGlobal, Version: "1.0.0", Rules: []Rule{
		{ID: "g1", Condition: `input.nonexistent.deeply.nested`, Effect: EffectDeny},
	}}

	decision, err := Cascade(context.Background(), ev, "b3:abc", []*Document{global}, map[string]any{}, DefaultGlobalDefault)
	require.Error(t, err)
	require.Equal(t, EffectDeny, decision.Effect)
	require.Equal(t, "POLICY.EVAL_ERROR", decision.Reason)
}

func TestDocument_CheckInherits(t *testing.T) {
	doc := &Document{Inherits: ">=1.0.0, <2.0.0"}
	ok, err := doc.CheckInherits("1.4.0")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = doc.CheckInherits("2.0.0")
	require.NoError(t, err)
	require.False(t, ok)
}

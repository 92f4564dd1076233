package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ubl-gate/core/pkg/canonicalize"
	"github.com/ubl-gate/core/pkg/grammar"
	"github.com/ubl-gate/core/pkg/pipeline/idempotency"
	"github.com/ubl-gate/core/pkg/policy"
	"github.com/ubl-gate/core/pkg/rbvm"
	"github.com/ubl-gate/core/pkg/receipts"
	"github.com/ubl-gate/core/pkg/signer"
	"github.com/ubl-gate/core/pkg/store"
)

func testPipeline(t *testing.T) *Pipeline {
	t.Helper()
	ring := signer.NewKeyRing()
	_, err := ring.GenerateKey("k1")
	require.NoError(t, err)
	ev, err := policy.NewEvaluator()
	require.NoError(t, err)
	return &Pipeline{
		Store:               store.NewMemory(),
		Idempotency:         idempotency.NewMemory(),
		KeyRing:             ring,
		PolicyEval:          ev,
		Machine:             rbvm.NewMachine(rbvm.DefaultLimits(), nil, ring),
		GrammarReg:          grammar.NewRegistry(),
		DefaultPolicyEffect: policy.EffectAllow,
	}
}

func hashingManifest() *Manifest {
	program := rbvm.SimpleFrame(rbvm.OpHashBlake3)
	return &Manifest{
		ManifestCID: "b3:test-manifest",
		Pipeline:    "echo-hash",
		GrammarName: "identity",
		InGrammar:   grammar.Document{Inputs: []string{"x"}, OutputFrom: "x"},
		OutGrammar:  grammar.Document{Inputs: []string{"out"}, OutputFrom: "out"},
		Policy:      "none",
		Program:     program,
	}
}

func TestPipeline_AllowProducesFullChain(t *testing.T) {
	p := testPipeline(t)
	req := &Request{
		TenantID:         "tenant-a",
		Manifest:         hashingManifest(),
		Vars:             map[string]canonicalize.Value{"x": canonicalize.Bytes([]byte("hello"))},
		RegistryStateCID: "b3:registry-snapshot",
	}

	result, err := p.Execute(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, receipts.KindWA, result.WA.Kind)
	require.NotNil(t, result.Transition)
	require.Equal(t, receipts.KindTransition, result.Transition.Kind)
	require.Equal(t, []string{result.WA.BodyCID}, result.Transition.Parents)

	wfBody, ok := result.WF.Body.(receipts.WFBody)
	require.True(t, ok)
	require.Equal(t, "ALLOW", wfBody.Decision)
	require.NotEmpty(t, wfBody.Artifacts.OutputCID)
	require.Equal(t, []string{result.WA.BodyCID, result.Transition.BodyCID}, result.WF.Parents)

	tip, err := p.Store.Tip(context.Background(), "tenant-a")
	require.NoError(t, err)
	require.Equal(t, result.WF.BodyCID, tip)
}

func TestPipeline_DenyShortCircuitsRender(t *testing.T) {
	p := testPipeline(t)
	tiers := []*policy.Document{
		{
			Tier:    policy.TierGlobal,
			Version: "1.0.0",
			Rules: []policy.Rule{
				{ID: "deny-all", Condition: "true", Effect: policy.EffectDeny, Reason: "blocked for test"},
			},
		},
	}
	req := &Request{
		TenantID:         "tenant-b",
		Manifest:         hashingManifest(),
		Vars:             map[string]canonicalize.Value{"x": canonicalize.Bytes([]byte("hello"))},
		RegistryStateCID: "b3:registry-snapshot",
		PolicyTiers:      tiers,
	}

	result, err := p.Execute(context.Background(), req)
	require.NoError(t, err)
	require.Nil(t, result.Transition)

	wfBody, ok := result.WF.Body.(receipts.WFBody)
	require.True(t, ok)
	require.Equal(t, "DENY", wfBody.Decision)
	require.Equal(t, "blocked for test", wfBody.Reason)
	require.Empty(t, wfBody.Artifacts.OutputCID)
	require.Equal(t, []string{result.WA.BodyCID}, result.WF.Parents)
}

func TestPipeline_ReplayIsRejected(t *testing.T) {
	p := testPipeline(t)
	req := &Request{
		TenantID:         "tenant-c",
		Manifest:         hashingManifest(),
		Vars:             map[string]canonicalize.Value{"x": canonicalize.Bytes([]byte("same input"))},
		RegistryStateCID: "b3:registry-snapshot",
	}

	first, err := p.Execute(context.Background(), req)
	require.NoError(t, err)

	_, err = p.Execute(context.Background(), req)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrReplay))
	_ = first
}

func TestPipeline_ConcurrentIdenticalRequestsProduceExactlyOneWinner(t *testing.T) {
	p := testPipeline(t)
	req := &Request{
		TenantID:         "tenant-concurrent",
		Manifest:         hashingManifest(),
		Vars:             map[string]canonicalize.Value{"x": canonicalize.Bytes([]byte("same concurrent input"))},
		RegistryStateCID: "b3:registry-snapshot",
	}

	const n = 20
	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := p.Execute(context.Background(), req)
			results[i] = err
		}(i)
	}
	wg.Wait()

	var wins, replays int
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrReplay):
			replays++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, wins, "exactly one concurrent execution should commit")
	require.Equal(t, n-1, replays, "every other concurrent execution should replay")
}

func TestPipeline_GhostModeSkipsExternalWrites(t *testing.T) {
	p := testPipeline(t)
	req := &Request{
		TenantID:         "tenant-d",
		Manifest:         hashingManifest(),
		Vars:             map[string]canonicalize.Value{"x": canonicalize.Bytes([]byte("ghost"))},
		RegistryStateCID: "b3:registry-snapshot",
		Ghost:            true,
	}

	result, err := p.Execute(context.Background(), req)
	require.NoError(t, err)
	require.True(t, result.WF.Observability.Ghost)

	tip, err := p.Store.Tip(context.Background(), "tenant-d")
	require.NoError(t, err)
	require.Empty(t, tip, "ghost execution must not advance the externally-visible chain tip")

	_, err = p.Store.GetReceipt(context.Background(), "tenant-d", result.WF.BodyCID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

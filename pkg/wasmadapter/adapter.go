// Package wasmadapter implements the §6.6 Wasm adapter boundary: a
// no-IO law contract between a deterministic grammar program and a Wasm
// module. Acquire canonicalizes the module's declared inputs, freezes
// them into a content-addressed snapshot, and emits a "ubl/wasm_acquire"
// receipt naming both the module and the frozen snapshot — only after
// that receipt exists may the module's output be trusted downstream.
// Grounded on the teacher's pkg/runtime/sandbox.WASISandbox (wazero
// runtime, deny-by-default WASI instantiation, CPU-time via context
// deadline, memory-page ceiling) generalized from a free-form pack
// executor to a pure Acquire boundary.
package wasmadapter

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"golang.org/x/time/rate"

	"github.com/ubl-gate/core/pkg/canonicalize"
	"github.com/ubl-gate/core/pkg/receipts"
)

// Config bounds a single Wasm module execution. All limits are
// deterministic ceilings, never measured-and-adapted values.
type Config struct {
	MemoryLimitPages uint32
	MaxExecDuration  time.Duration
	RateLimitPerSec  float64
}

// Adapter is the concrete, wazero-backed Wasm boundary. Deny-by-default:
// no filesystem, no network, no environment variables, no ambient clock
// or randomness — the same four denials the teacher's WASISandbox
// documents.
type Adapter struct {
	runtime wazero.Runtime
	cfg     Config
	limiter *rate.Limiter
}

// New builds an Adapter bound to cfg. The wazero runtime is created once
// and reused across Acquire calls; each call gets its own module
// instantiation.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	runtimeCfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	r := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		return nil, fmt.Errorf("wasmadapter: instantiate WASI: %w", err)
	}

	limit := cfg.RateLimitPerSec
	if limit <= 0 {
		limit = float64(rate.Inf)
	}

	return &Adapter{
		runtime: r,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(limit), 1),
	}, nil
}

// Close releases the wazero runtime.
func (a *Adapter) Close(ctx context.Context) error {
	return a.runtime.Close(ctx)
}

// Acquire canonicalizes input, runs moduleBytes against it under the
// deny-by-default WASI sandbox, and returns the module's stdout alongside
// a "ubl/wasm_acquire" receipt naming the module's CID and the frozen
// input snapshot's CID. The caller is responsible for storing the
// receipt before trusting the output (§6.6's ordering requirement).
func (a *Adapter) Acquire(ctx context.Context, tenantID string, moduleBytes []byte, input canonicalize.Value) ([]byte, receipts.Receipt, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, receipts.Receipt{}, fmt.Errorf("wasmadapter: rate limit wait: %w", err)
	}

	frozenBytes, err := canonicalize.Canonicalize(input)
	if err != nil {
		return nil, receipts.Receipt{}, fmt.Errorf("wasmadapter: canonicalize input: %w", err)
	}
	frozenCID := canonicalize.CID(frozenBytes)
	moduleCID := canonicalize.CID(moduleBytes)

	if a.cfg.MaxExecDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.MaxExecDuration)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	modCfg := wazero.NewModuleConfig().
		WithStdin(bytes.NewReader(frozenBytes)).
		WithStdout(&stdout).
		WithStderr(&stderr)
	// Deny-by-default: no WithFSConfig, no WithSysWalltime/WithSysNanotime,
	// no WithRandSource, no WithEnv — the module gets exactly stdin in,
	// stdout/stderr out, and nothing else.

	compiled, err := a.runtime.CompileModule(ctx, moduleBytes)
	if err != nil {
		return nil, receipts.Receipt{}, fmt.Errorf("wasmadapter: compile module %s: %w", moduleCID, err)
	}
	defer compiled.Close(ctx)

	mod, err := a.runtime.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		if ctx.Err() != nil {
			return nil, receipts.Receipt{}, fmt.Errorf("wasmadapter: module %s exceeded %v execution budget", moduleCID, a.cfg.MaxExecDuration)
		}
		return nil, receipts.Receipt{}, fmt.Errorf("wasmadapter: instantiate module %s: %w", moduleCID, err)
	}
	defer mod.Close(ctx)

	if stderr.Len() > 0 {
		return stdout.Bytes(), receipts.Receipt{}, fmt.Errorf("wasmadapter: module %s wrote to stderr: %s", moduleCID, stderr.String())
	}

	body := receipts.WasmAcquireBody{ModuleCID: moduleCID, FrozenCID: frozenCID}
	receipt, err := receipts.NewReceipt(receipts.KindWasmAcquire, tenantID, body)
	if err != nil {
		return nil, receipts.Receipt{}, fmt.Errorf("wasmadapter: build acquire receipt: %w", err)
	}

	return stdout.Bytes(), receipt, nil
}

// Package idempotency implements the tenant-scoped fingerprint ->
// WF-CID map the pipeline uses to make Execute idempotent (spec.md §5,
// §9): InsertIfAbsent is the single atomic operation that closes the
// check-then-commit race a separate Exists+Set pair would leave open.
package idempotency

import (
	"context"
	"fmt"
	"sync"

	"github.com/ubl-gate/core/pkg/tenant"
)

// Store is the idempotency backend contract.
type Store interface {
	// InsertIfAbsent atomically records fp -> wfCID for tid if fp has
	// never been seen for that tenant. inserted is true iff this call
	// performed the insert; when false, existing holds the wfCID an
	// earlier call already committed, and the caller must replay that
	// result instead of re-executing.
	InsertIfAbsent(ctx context.Context, tid tenant.ID, fp, wfCID string) (inserted bool, existing string, err error)
}

// Memory is an in-process Store, backed by a mutex-guarded map — correct
// within one process, used for tests and single-instance deployments.
type Memory struct {
	mu   sync.Mutex
	seen map[tenant.ID]map[string]string
}

// NewMemory returns an empty in-memory idempotency store.
func NewMemory() *Memory {
	return &Memory{seen: make(map[tenant.ID]map[string]string)}
}

func (m *Memory) InsertIfAbsent(_ context.Context, tid tenant.ID, fp, wfCID string) (bool, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket, ok := m.seen[tid]
	if !ok {
		bucket = make(map[string]string)
		m.seen[tid] = bucket
	}
	if existing, ok := bucket[fp]; ok {
		return false, existing, nil
	}
	bucket[fp] = wfCID
	return true, "", nil
}

// key namespaces a fingerprint by tenant for the Redis backend, where
// there is no separate per-tenant keyspace the way Memory's nested map
// gives one for free.
func key(tid tenant.ID, fp string) string {
	return fmt.Sprintf("ubl:idem:%s:%s", tid, fp)
}

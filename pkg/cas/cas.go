// Package cas defines the content-addressable storage contract UBL Gate
// uses for every blob that needs a stable CID: Put is idempotent (storing
// the same bytes twice returns the same CID and is a no-op the second
// time), Get is byte-exact.
package cas

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ubl-gate/core/pkg/canonicalize"
)

// ErrNotFound is returned by Get when cid has never been Put.
var ErrNotFound = errors.New("cas: object not found")

// Store is the CAS contract. Implementations must guarantee: Put(b) always
// returns CID(b) regardless of how many times b (or equal bytes) were
// previously stored; Get(CID(b)) returns exactly b.
type Store interface {
	Put(ctx context.Context, b []byte) (cid string, err error)
	Get(ctx context.Context, cid string) ([]byte, error)
}

// Memory is an in-process Store backed by a map, used as the reference
// implementation and in tests for every other backend.
type Memory struct {
	mu   sync.RWMutex
	objs map[string][]byte
}

// NewMemory returns an empty in-memory CAS.
func NewMemory() *Memory {
	return &Memory{objs: make(map[string][]byte)}
}

func (m *Memory) Put(_ context.Context, b []byte) (string, error) {
	cid := canonicalize.CID(b)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.objs[cid]; !exists {
		cp := make([]byte, len(b))
		copy(cp, b)
		m.objs[cid] = cp
	}
	return cid, nil
}

func (m *Memory) Get(_ context.Context, cid string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.objs[cid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, cid)
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp, nil
}

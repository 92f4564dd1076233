package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/ubl-gate/core/pkg/receipts"
	"github.com/ubl-gate/core/pkg/tenant"
)

// Memory is an in-process ReceiptStore, used as the reference
// implementation and in the pipeline's unit tests.
type Memory struct {
	mu       sync.Mutex
	byTenant map[tenant.ID]map[string]receipts.Receipt
	tips     map[tenant.ID]string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		byTenant: make(map[tenant.ID]map[string]receipts.Receipt),
		tips:     make(map[tenant.ID]string),
	}
}

func (m *Memory) PutReceipt(_ context.Context, tid tenant.ID, r receipts.Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket, ok := m.byTenant[tid]
	if !ok {
		bucket = make(map[string]receipts.Receipt)
		m.byTenant[tid] = bucket
	}
	bucket[r.BodyCID] = r
	return nil
}

func (m *Memory) GetReceipt(_ context.Context, tid tenant.ID, bodyCID string) (receipts.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket, ok := m.byTenant[tid]
	if !ok {
		return receipts.Receipt{}, fmt.Errorf("%w: tenant %s", ErrNotFound, tid)
	}
	r, ok := bucket[bodyCID]
	if !ok {
		return receipts.Receipt{}, fmt.Errorf("%w: %s", ErrNotFound, bodyCID)
	}
	return r, nil
}

func (m *Memory) Tip(_ context.Context, tid tenant.ID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tips[tid], nil
}

func (m *Memory) AdvanceTip(_ context.Context, tid tenant.ID, expectedPrev, newTip string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tips[tid] != expectedPrev {
		return fmt.Errorf("%w: tenant %s", ErrTipConflict, tid)
	}
	m.tips[tid] = newTip
	return nil
}

var _ ReceiptStore = (*Memory)(nil)

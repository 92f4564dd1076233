// Package store implements UBL Gate's tenant-scoped receipt store: the
// single persistence layer used by both the pipeline's write path and
// the read-side get_receipt/get_transition operations (spec.md §9 —
// no divergent in-memory maps). Grounded on the teacher's
// pkg/store/ledger (FileLedger's load/save/lock shape) generalized from
// a single global obligation map to a per-tenant receipt store plus
// chain tip.
package store

import (
	"context"
	"errors"

	"github.com/ubl-gate/core/pkg/receipts"
	"github.com/ubl-gate/core/pkg/tenant"
)

// ErrNotFound is returned when a receipt has never been written for the
// given tenant. An empty chain is not an error: Tip returns "".
var ErrNotFound = errors.New("store: not found")

// ErrTipConflict is returned by AdvanceTip when the caller's expected
// previous tip no longer matches the stored tip — another execution
// already advanced it, and the caller must retry against the new tip.
var ErrTipConflict = errors.New("store: chain tip advanced concurrently")

// ReceiptStore persists receipts and the tenant's chain tip. Every method
// is scoped by its explicit tid argument (pkg/tenant) — an
// implementation that let one tenant's call see another tenant's rows
// would violate the isolation contract no matter how it's otherwise
// coded.
type ReceiptStore interface {
	PutReceipt(ctx context.Context, tid tenant.ID, r receipts.Receipt) error
	GetReceipt(ctx context.Context, tid tenant.ID, bodyCID string) (receipts.Receipt, error)

	// Tip returns the tenant's current chain tip CID, or "" if the chain
	// is empty.
	Tip(ctx context.Context, tid tenant.ID) (string, error)
	// AdvanceTip performs a compare-and-swap: it only succeeds if the
	// stored tip currently equals expectedPrev, closing the
	// read-tip/write-tip race two concurrent executions could otherwise
	// hit.
	AdvanceTip(ctx context.Context, tid tenant.ID, expectedPrev, newTip string) error
}

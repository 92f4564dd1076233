package idempotency

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ubl-gate/core/pkg/tenant"
)

func TestMemory_InsertIfAbsent_FirstWins(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	tid := tenant.ID("t1")

	inserted, existing, err := m.InsertIfAbsent(ctx, tid, "fp1", "b3:aaa")
	require.NoError(t, err)
	require.True(t, inserted)
	require.Empty(t, existing)

	inserted, existing, err = m.InsertIfAbsent(ctx, tid, "fp1", "b3:bbb")
	require.NoError(t, err)
	require.False(t, inserted)
	require.Equal(t, "b3:aaa", existing)
}

func TestMemory_TenantIsolation(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	inserted, _, err := m.InsertIfAbsent(ctx, tenant.ID("t1"), "fp1", "b3:aaa")
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, _, err = m.InsertIfAbsent(ctx, tenant.ID("t2"), "fp1", "b3:ccc")
	require.NoError(t, err)
	require.True(t, inserted, "same fingerprint under a different tenant must not collide")
}

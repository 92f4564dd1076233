package signer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyRing_DeriveTenantKidIsDeterministic(t *testing.T) {
	ring := NewKeyRing()
	_, err := ring.GenerateKey("master")
	require.NoError(t, err)

	pubA, err := ring.DeriveTenantKid("master", "tenant-a", "tenant-a-key")
	require.NoError(t, err)

	other := NewKeyRing()
	require.NoError(t, copyMasterKey(ring, other, "master"))
	pubAAgain, err := other.DeriveTenantKid("master", "tenant-a", "tenant-a-key-again")
	require.NoError(t, err)
	require.Equal(t, pubA, pubAAgain, "the same master seed and tenantID must derive the same key material")

	pubB, err := ring.DeriveTenantKid("master", "tenant-b", "tenant-b-key")
	require.NoError(t, err)
	require.NotEqual(t, pubA, pubB, "distinct tenants must derive distinct keys")
}

func TestKeyRing_DeriveTenantKidRejectsEmptyTenant(t *testing.T) {
	ring := NewKeyRing()
	_, err := ring.GenerateKey("master")
	require.NoError(t, err)

	_, err = ring.DeriveTenantKid("master", "", "derived")
	require.Error(t, err)
}

// copyMasterKey registers kid's keypair from src into dst, standing in
// for loading the same master key material on a second host.
func copyMasterKey(src, dst *KeyRing, kid string) error {
	entry, ok := src.Lookup(kid)
	if !ok {
		return fmt.Errorf("signer: test fixture: unknown kid %q", kid)
	}
	dst.AddKey(kid, entry.Priv, entry.Pub)
	return nil
}

package signer

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// tenantKDFInfo is the fixed HKDF salt (the tenant ID is the info
// parameter), namespacing
// tenant key derivation away from any other HKDF use that might someday
// share a master seed.
const tenantKDFInfo = "ubl-gate-tenant-kdf"

// DeriveTenantKid derives a tenant-scoped Ed25519 keypair from masterKid's
// seed via HKDF-SHA256 (spec.md §4.6.9 tenant isolation): the same master
// key deterministically yields a distinct, tenant-bound signing key per
// tenantID, without the ring needing to generate and store one key per
// tenant up front. Grounded on the teacher's
// governance.Keyring.DeriveForTenant, adapted from wrapping a second
// Keyring to registering the derived key directly under derivedKid.
func (k *KeyRing) DeriveTenantKid(masterKid, tenantID, derivedKid string) (ed25519.PublicKey, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("signer: tenantID must not be empty")
	}
	k.mu.RLock()
	master, ok := k.keys[masterKid]
	k.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("signer: %w: %q", ErrUnknownKey, masterKid)
	}
	if master.Priv == nil {
		return nil, fmt.Errorf("signer: tenant key derivation requires a private master key")
	}

	hkdfReader := hkdf.New(sha256.New, master.Priv.Seed(), []byte(tenantKDFInfo), []byte(tenantID))
	tenantSeed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(hkdfReader, tenantSeed); err != nil {
		return nil, fmt.Errorf("signer: HKDF derivation: %w", err)
	}

	priv := ed25519.NewKeyFromSeed(tenantSeed)
	pub := priv.Public().(ed25519.PublicKey)
	k.AddKey(derivedKid, priv, pub)
	return pub, nil
}

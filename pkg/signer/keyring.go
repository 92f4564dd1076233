// Package signer implements UBL Gate's Ed25519 detached-JWS signing and
// the KeyRing that manages active/retired keys (spec.md §4.3, §6.4,
// §6.5). Grounded on the teacher's pkg/crypto (Ed25519Signer, KeyRing)
// but diverging where the spec diverges from the teacher: every UBL Gate
// signature carries an explicit `kid`, so verification is a direct
// map lookup rather than the teacher's try-every-key fallback.
package signer

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"sort"
	"sync"
)

// KeyEntry is one key's lifecycle state inside a KeyRing.
type KeyEntry struct {
	Kid      string
	Priv     ed25519.PrivateKey // nil for a verify-only (public) entry
	Pub      ed25519.PublicKey
	Retired  bool
}

// KeyRing holds every key UBL Gate has ever signed with, keyed by kid.
// Exactly one non-retired key is "active" (used for new signatures);
// retired keys stay resident so receipts they already signed keep
// verifying.
type KeyRing struct {
	mu        sync.RWMutex
	keys      map[string]*KeyEntry
	activeKid string
}

// NewKeyRing returns an empty KeyRing.
func NewKeyRing() *KeyRing {
	return &KeyRing{keys: make(map[string]*KeyEntry)}
}

// GenerateKey creates a fresh Ed25519 keypair under kid and, if no key is
// currently active, makes it the active signing key.
func (k *KeyRing) GenerateKey(kid string) (ed25519.PublicKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("signer: key generation: %w", err)
	}
	k.AddKey(kid, priv, pub)
	return pub, nil
}

// AddKey registers a keypair (priv may be nil for a verify-only entry,
// e.g. a peer's public key learned from a DID document).
func (k *KeyRing) AddKey(kid string, priv ed25519.PrivateKey, pub ed25519.PublicKey) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[kid] = &KeyEntry{Kid: kid, Priv: priv, Pub: pub}
	if k.activeKid == "" && priv != nil {
		k.activeKid = kid
	}
}

// Rotate designates newKid as the active signing key. newKid must already
// be registered (via GenerateKey or AddKey) with a private key.
func (k *KeyRing) Rotate(newKid string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	entry, ok := k.keys[newKid]
	if !ok || entry.Priv == nil {
		return fmt.Errorf("signer: %w: cannot rotate to unknown or public-only kid %q", ErrUnknownKey, newKid)
	}
	if entry.Retired {
		return fmt.Errorf("signer: cannot rotate to retired kid %q", newKid)
	}
	k.activeKid = newKid
	return nil
}

// Retire marks kid retired: it can no longer be selected as the active
// signing key, but remains available for verifying signatures it already
// produced, per §4.3's historical-key-retention requirement.
func (k *KeyRing) Retire(kid string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	entry, ok := k.keys[kid]
	if !ok {
		return fmt.Errorf("signer: %w: %q", ErrUnknownKey, kid)
	}
	entry.Retired = true
	if k.activeKid == kid {
		k.activeKid = k.nextActiveLocked()
	}
	return nil
}

func (k *KeyRing) nextActiveLocked() string {
	var candidates []string
	for kid, entry := range k.keys {
		if entry.Priv != nil && !entry.Retired {
			candidates = append(candidates, kid)
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	sort.Strings(candidates)
	return candidates[len(candidates)-1]
}

// ActiveKid returns the kid of the currently active signing key, or ""
// if none is active.
func (k *KeyRing) ActiveKid() string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.activeKid
}

// activeEntry returns the active signing entry, or an error if none is
// active (e.g. every registered key has been retired).
func (k *KeyRing) activeEntry() (*KeyEntry, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.activeKid == "" {
		return nil, fmt.Errorf("signer: %w", ErrNoActiveKey)
	}
	return k.keys[k.activeKid], nil
}

// Lookup returns the entry for kid, used for direct-kid verification —
// UBL Gate receipts always carry an explicit proof.kid (§6.4), so
// verification never needs to try every key in the ring.
func (k *KeyRing) Lookup(kid string) (*KeyEntry, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	e, ok := k.keys[kid]
	return e, ok
}

package signer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSigner_SignAndVerify(t *testing.T) {
	ring := NewKeyRing()
	_, err := ring.GenerateKey("k1")
	require.NoError(t, err)

	body := []byte(`{"decision":"ALLOW"}`)

	proof, err := Sign(ring, body)
	require.NoError(t, err)
	require.Equal(t, "k1", proof.Kid)

	err = Verify(ring, body, proof)
	require.NoError(t, err)
}

func TestSigner_TamperedBodyRejected(t *testing.T) {
	ring := NewKeyRing()
	_, err := ring.GenerateKey("k1")
	require.NoError(t, err)

	body := []byte(`{"decision":"ALLOW"}`)
	proof, err := Sign(ring, body)
	require.NoError(t, err)

	other := []byte(`{"decision":"DENY"}`)
	err = Verify(ring, other, proof)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestKeyRing_RotationPreservesVerification(t *testing.T) {
	ring := NewKeyRing()
	_, err := ring.GenerateKey("k1")
	require.NoError(t, err)

	body := []byte(`{"decision":"ALLOW"}`)
	proof, err := Sign(ring, body)
	require.NoError(t, err)

	_, err = ring.GenerateKey("k2")
	require.NoError(t, err)
	require.NoError(t, ring.Rotate("k2"))
	require.NoError(t, ring.Retire("k1"))

	// A signature made before rotation still verifies after k1 retires.
	err = Verify(ring, body, proof)
	require.NoError(t, err)

	newProof, err := Sign(ring, body)
	require.NoError(t, err)
	require.Equal(t, "k2", newProof.Kid)
}

func TestKeyRing_UnknownKidRejected(t *testing.T) {
	ring := NewKeyRing()
	_, err := ring.GenerateKey("k1")
	require.NoError(t, err)

	// A well-formed proof signed by a key this ring has never seen.
	other := NewKeyRing()
	_, err = other.GenerateKey("ghost")
	require.NoError(t, err)
	forged, err := Sign(other, []byte("anything"))
	require.NoError(t, err)

	err = Verify(ring, []byte("anything"), forged)
	require.ErrorIs(t, err, ErrUnknownKey)
}

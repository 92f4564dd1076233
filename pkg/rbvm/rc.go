package rbvm

// rcBuilder accumulates the in-progress VM-level receipt that
// SET_RC_BODY / ATTACH_PROOF / SIGN_DEFAULT_ED / ADD_META / EMIT_RC
// build up over a program's execution (spec.md §4.4.4). It is distinct
// from pkg/receipts.Receipt: this is layer −1 machinery the VM uses to
// assemble the bytes that, once EMIT_RC finalizes them, become the
// program's raw output — the bytes a Transition receipt hashes into
// preimage_raw_cid.
type rcBuilder struct {
	bodySet bool
	body    []byte
	proof   []byte
	meta    [][]byte
}

func (r *rcBuilder) setBody(b []byte) {
	r.body = append([]byte(nil), b...)
	r.bodySet = true
}

func (r *rcBuilder) attachProof(p []byte) {
	r.proof = append([]byte(nil), p...)
}

func (r *rcBuilder) addMeta(m []byte) {
	r.meta = append(r.meta, append([]byte(nil), m...))
}

// encode renders the accumulated RC as a deterministic byte sequence:
// varint-length-prefixed body, then proof, then a varint meta-entry count
// followed by each length-prefixed meta entry in the order ADD_META was
// called. There is no JSON or other presentational
// framing here — this is the VM's own raw output, consumed only by
// HASH_BLAKE3/JSON_NORMALIZE or the pipeline's preimage hashing, so it
// only needs to be byte-exact and self-delimiting, not human-readable.
func (r *rcBuilder) encode() []byte {
	var out []byte
	out = append(out, encodeVarint(uint64(len(r.body)))...)
	out = append(out, r.body...)
	out = append(out, encodeVarint(uint64(len(r.proof)))...)
	out = append(out, r.proof...)
	out = append(out, encodeVarint(uint64(len(r.meta)))...)
	for _, m := range r.meta {
		out = append(out, encodeVarint(uint64(len(m)))...)
		out = append(out, m...)
	}
	return out
}

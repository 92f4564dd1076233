package rbvm

// ExecutionContext supplies the values CONTEXT_GET's context indices
// resolve to (spec.md §4.4.4): the executing module's CID, the rb_cid
// (the bytecode program's own CID), and inputs_cid (the canonicalized
// input the program was invoked against). All three are textual CIDs;
// CONTEXT_GET converts to the stack's BYTES representation.
type ExecutionContext struct {
	ModuleCID  string
	RBCID      string
	InputsCID  string
}

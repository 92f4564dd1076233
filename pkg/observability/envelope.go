package observability

import "time"

// Envelope is the non-identity-bearing observability data attached to a
// receipt's `observability` field (spec.md §3, §5, §9). None of this
// participates in body_cid computation — the Byte Law is that only
// `body` is ever canonicalized and hashed.
type Envelope struct {
	RequestID string    `json:"request_id"`
	TraceID   string    `json:"trace_id"`
	SpanID    string    `json:"span_id"`
	StartedAt time.Time `json:"started_at"`
	Stage     string    `json:"stage"`
	LatencyMS int64     `json:"latency_ms"`
	// PolicyTrace records every rule the cascade evaluated, in
	// evaluation order, regardless of whether it decided the outcome —
	// WARN rules included, since they never short-circuit.
	PolicyTrace []PolicyTraceEntry `json:"policy_trace,omitempty"`
	Ghost       bool               `json:"ghost,omitempty"`
}

// PolicyTraceEntry records one rule's verdict during cascade evaluation.
type PolicyTraceEntry struct {
	RuleID string `json:"rule_id"`
	Tier   string `json:"tier"` // "global", "tenant", "app"
	Effect string `json:"effect"`
	Reason string `json:"reason,omitempty"`
}

// NewEnvelope stamps a fresh envelope for a pipeline execution. Timestamps
// are assigned here, once, at the observability boundary — never inside
// anything that feeds canonicalization.
func NewEnvelope(stage string) Envelope {
	return Envelope{
		RequestID: NewRequestID(),
		StartedAt: time.Now().UTC(),
		Stage:     stage,
	}
}

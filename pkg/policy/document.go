// Package policy implements the global -> tenant -> app policy cascade
// (spec.md §4.5): CEL-backed rule conditions, DENY short-circuit, WARN
// trace-only continuation, and fail-closed evaluation. Grounded on the
// teacher's pkg/pdp (PolicyDecisionPoint, fail-closed contract,
// JCS-canonical decision hashing) and pkg/kernel/celdp (CEL evaluator
// wiring), generalized from HELM's pluggable-backend PDP to the spec's
// CEL-only cascade.
package policy

import (
	"github.com/Masterminds/semver/v3"
)

// Tier names a cascade level, evaluated in this fixed order.
type Tier string

const (
	TierGlobal Tier = "global"
	TierTenant Tier = "tenant"
	TierApp    Tier = "app"
)

// Effect is a rule's outcome.
type Effect string

const (
	EffectAllow Effect = "ALLOW"
	EffectDeny  Effect = "DENY"
	EffectWarn  Effect = "WARN"
)

// Rule is one condition/effect pair within a policy document.
type Rule struct {
	ID        string `yaml:"id" json:"id"`
	Condition string `yaml:"condition" json:"condition"` // CEL expression over `input`
	Effect    Effect `yaml:"effect" json:"effect"`
	Reason    string `yaml:"reason,omitempty" json:"reason,omitempty"`
}

// Document is one tier's policy set: a semver-versioned, optionally
// inheriting collection of rules evaluated top to bottom.
type Document struct {
	Tier     Tier     `yaml:"tier" json:"tier"`
	Version  string   `yaml:"version" json:"version"`   // semver
	Inherits string   `yaml:"inherits,omitempty" json:"inherits,omitempty"` // semver constraint on the parent tier's version
	Rules    []Rule   `yaml:"rules" json:"rules"`
}

// CheckInherits validates that parentVersion satisfies d's Inherits
// constraint, when one is declared. An undeclared Inherits always
// satisfies (no compatibility requirement stated).
func (d *Document) CheckInherits(parentVersion string) (bool, error) {
	if d.Inherits == "" {
		return true, nil
	}
	constraint, err := semver.NewConstraint(d.Inherits)
	if err != nil {
		return false, err
	}
	v, err := semver.NewVersion(parentVersion)
	if err != nil {
		return false, err
	}
	return constraint.Check(v), nil
}

package mismatch

import (
	"sort"
	"time"
)

// Detector runs a rule set over observations. It is stateless apart from its
// parameters and safe for concurrent use.
type Detector struct {
	rules  []Rule
	params Params
}

// NewDetector constructs a Detector over the given rules (the built-in set
// when none are supplied), filling unset parameters with defaults.
func NewDetector(params Params, rules ...Rule) *Detector {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Detector{rules: rules, params: params.withDefaults()}
}

// Params returns the effective rule parameters.
func (d *Detector) Params() Params {
	return d.params
}

// Detect evaluates every registered rule against one observation. Rules are
// independent: a quantum may yield zero, one, or several mismatches, in rule
// registration order.
func (d *Detector) Detect(obs Observation) []Mismatch {
	if obs.Features == nil {
		return nil
	}
	now := time.Now().UTC()

	var out []Mismatch
	for _, rule := range d.rules {
		m, fired := rule.Detect(obs, d.params)
		if !fired {
			continue
		}
		m.QuantumID = obs.QuantumID
		m.Category = rule.Category
		m.DetectedAt = now
		out = append(out, m)
	}
	return out
}

// ScanRegion detects across a set of observations, drops results below
// minSeverity, and orders the remainder by severity descending, ties broken
// by quantum id ascending for deterministic reports.
func (d *Detector) ScanRegion(observations []Observation, minSeverity float64) []Mismatch {
	var out []Mismatch
	for _, obs := range observations {
		for _, m := range d.Detect(obs) {
			if m.Severity >= minSeverity {
				out = append(out, m)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Severity != out[j].Severity {
			return out[i].Severity > out[j].Severity
		}
		return out[i].QuantumID < out[j].QuantumID
	})
	return out
}

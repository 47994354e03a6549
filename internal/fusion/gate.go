// Package fusion decides when to ask the external judge and how to combine
// its answer with the heuristic outcome.
package fusion

import (
	"math"

	"github.com/jmerrifield20/SecretTriage/internal/triage/model"
)

// GateConfig holds the judgment gate parameters.
type GateConfig struct {
	// Threshold is the |score| below which the heuristic is not trusted alone.
	Threshold       float64
	EntropyFeature  string
	TestPathFeature string
	// EntropyConflict is the entropy above which a test-path finding still
	// looks like a real secret.
	EntropyConflict float64
}

// DefaultGateConfig returns the stock gate parameters.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		Threshold:       0.75,
		EntropyFeature:  "entropy",
		TestPathFeature: "in_test_path",
		EntropyConflict: 3.0,
	}
}

// GateReason explains a positive gate decision.
type GateReason string

const (
	ReasonNone          GateReason = ""
	ReasonLowConfidence GateReason = "low_confidence"
	ReasonConflict      GateReason = "entropy_in_test_path"
)

// Gate returns why the judge should be consulted, or ReasonNone.
func Gate(h model.HeuristicOutcome, fs model.FeatureSet, cfg GateConfig) GateReason {
	if math.Abs(h.Score) < cfg.Threshold {
		return ReasonLowConfidence
	}
	entropy, ok := fs.Get(cfg.EntropyFeature).Numeric()
	if !ok || entropy <= cfg.EntropyConflict {
		return ReasonNone
	}
	if fs.Get(cfg.TestPathFeature).Truthy() {
		return ReasonConflict
	}
	return ReasonNone
}

// ShouldConsultJudge reports whether the heuristic outcome warrants a second
// opinion: low confidence, or high entropy in a test/mock/example path.
func ShouldConsultJudge(h model.HeuristicOutcome, fs model.FeatureSet, cfg GateConfig) bool {
	return Gate(h, fs, cfg) != ReasonNone
}

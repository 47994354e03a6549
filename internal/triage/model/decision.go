package model

import (
	"time"

	"github.com/google/uuid"
)

// ExternalVerdict is the normalized answer of the external judge.
type ExternalVerdict struct {
	Verdict             Verdict  `json:"verdict"`
	Confidence          float64  `json:"confidence"`
	Explanation         string   `json:"explanation"`
	KeyFactors          []string `json:"key_factors"`
	AgreesWithHeuristic bool     `json:"agrees_with_heuristic"`
	AdditionalEvidence  string   `json:"additional_evidence,omitempty"`
	Recommendation      string   `json:"recommendation,omitempty"`
	// IsFallback is set only on the failure path, never by a genuine reply.
	IsFallback bool `json:"is_fallback"`
}

// Method names which arbiter rule produced a FusionDecision.
type Method string

const (
	MethodHeuristicsOnly           Method = "heuristics_only"
	MethodExternalOverride         Method = "external_override"
	MethodHybridAgreement          Method = "hybrid_agreement"
	MethodHybridHeuristicPreferred Method = "hybrid_heuristic_preferred"
	MethodHybridExternalPreferred  Method = "hybrid_external_preferred"
)

// FusionDecision is the final verdict for one finding.
type FusionDecision struct {
	FinalVerdict Verdict `json:"final_verdict"`
	// FinalConfidence is |score| on the heuristics_only path and may exceed 1.
	FinalConfidence float64 `json:"final_confidence"`
	Explanation     string  `json:"explanation"`
	Method          Method  `json:"method"`
	UsedExternal    bool    `json:"used_external"`
	// Agreement is nil when UsedExternal is false.
	Agreement *bool `json:"agreement,omitempty"`
}

// ClassificationResult is the per-finding API response.
type ClassificationResult struct {
	ID                uuid.UUID  `json:"id"`
	Secret            string     `json:"secret"`
	Entropy           float64    `json:"entropy"`
	Features          FeatureSet `json:"features"`
	Score             float64    `json:"score"`
	HeuristicVerdict  Verdict    `json:"heuristic_verdict"`
	Verdict           Verdict    `json:"verdict"`
	Confidence        float64    `json:"confidence"`
	Method            Method     `json:"method"`
	MatchedHeuristics []string   `json:"matched_heuristics"`
	Description       string     `json:"description"`
	JudgeUsed         bool       `json:"judge_used"`
	JudgeReason       string     `json:"judge_reason,omitempty"`
	Agreement         *bool      `json:"agreement,omitempty"`
}

// ClassificationRecord is what a ResultSink persists for one finding.
type ClassificationRecord struct {
	ID        uuid.UUID        `json:"id"`
	Finding   Finding          `json:"finding"`
	Features  FeatureSet       `json:"features"`
	Outcome   HeuristicOutcome `json:"outcome"`
	Decision  FusionDecision   `json:"decision"`
	External  *ExternalVerdict `json:"external,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// ErrValidation is returned when the caller supplies invalid input.
// Handlers map it to HTTP 400.
type ErrValidation struct{ Msg string }

func (e *ErrValidation) Error() string { return e.Msg }

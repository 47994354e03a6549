package fusion

import (
	"fmt"
	"math"

	"github.com/jmerrifield20/SecretTriage/internal/triage/model"
)

const (
	// MinJudgeConfidence is the confidence below which the judge is ignored.
	MinJudgeConfidence = 0.6
	// OverrideConfidence is the confidence above which a disagreeing judge
	// overrides the heuristic outright.
	OverrideConfidence = 0.8
)

// Arbitrate combines the heuristic outcome with an optional judge verdict.
// Rules are tried in order: ignore a missing or unsure judge, let a very
// confident dissenting judge override, merge agreeing verdicts, and
// otherwise keep the more confident side with ties going to the heuristic.
func Arbitrate(h model.HeuristicOutcome, e *model.ExternalVerdict) model.FusionDecision {
	hConf := math.Abs(h.Score)

	if e == nil || e.Confidence < MinJudgeConfidence {
		return model.FusionDecision{
			FinalVerdict:    h.Verdict,
			FinalConfidence: hConf,
			Explanation:     h.Description,
			Method:          model.MethodHeuristicsOnly,
		}
	}

	if e.Confidence > OverrideConfidence && !e.AgreesWithHeuristic {
		return model.FusionDecision{
			FinalVerdict:    e.Verdict,
			FinalConfidence: e.Confidence,
			Explanation:     e.Explanation,
			Method:          model.MethodExternalOverride,
			UsedExternal:    true,
			Agreement:       boolPtr(false),
		}
	}

	if model.SamePolarity(h.Verdict, e.Verdict) {
		return model.FusionDecision{
			FinalVerdict:    e.Verdict,
			FinalConfidence: (hConf + e.Confidence) / 2,
			Explanation:     fmt.Sprintf("Verdicts agree. Heuristics: %s. Judge: %s", h.Description, e.Explanation),
			Method:          model.MethodHybridAgreement,
			UsedExternal:    true,
			Agreement:       boolPtr(true),
		}
	}

	if hConf >= e.Confidence {
		return model.FusionDecision{
			FinalVerdict:    h.Verdict,
			FinalConfidence: hConf,
			Explanation:     "Verdict conflict, heuristics preferred: " + h.Description,
			Method:          model.MethodHybridHeuristicPreferred,
			UsedExternal:    true,
			Agreement:       boolPtr(false),
		}
	}
	return model.FusionDecision{
		FinalVerdict:    e.Verdict,
		FinalConfidence: e.Confidence,
		Explanation:     "Verdict conflict, judge preferred: " + e.Explanation,
		Method:          model.MethodHybridExternalPreferred,
		UsedExternal:    true,
		Agreement:       boolPtr(false),
	}
}

func boolPtr(b bool) *bool { return &b }

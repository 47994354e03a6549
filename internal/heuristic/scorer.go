// Package heuristic scores a FeatureSet against weighted rules. A higher score
// means more evidence that the finding is a false positive.
package heuristic

import (
	"strings"

	"go.uber.org/zap"

	"github.com/jmerrifield20/SecretTriage/internal/triage/model"
	"github.com/jmerrifield20/SecretTriage/internal/value"
)

// DefaultFPThreshold is the score at or above which the heuristic verdict is
// false_positive.
const DefaultFPThreshold = 2.0

// NoMatchDescription is reported when no rule matched.
const NoMatchDescription = "complex case"

// Options configures a Scorer.
type Options struct {
	FPThreshold float64
	Logger      *zap.Logger
}

// Scorer evaluates rules in storage order. It holds no mutable state and is
// safe for concurrent use.
type Scorer struct {
	rules     []model.HeuristicRule
	threshold float64
}

// NewScorer keeps the enabled rules with a valid operator. Rejected rules
// are logged here, once per snapshot.
func NewScorer(rules []model.HeuristicRule, opts Options) *Scorer {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.FPThreshold == 0 {
		opts.FPThreshold = DefaultFPThreshold
	}

	s := &Scorer{threshold: opts.FPThreshold}
	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		if !r.Condition.Operator.Valid() {
			logger.Warn("heuristic rule skipped: invalid operator",
				zap.String("rule", r.Name),
				zap.String("operator", string(r.Condition.Operator)),
			)
			continue
		}
		s.rules = append(s.rules, r)
	}
	return s
}

// Rules returns the active rules in evaluation order.
func (s *Scorer) Rules() []model.HeuristicRule {
	out := make([]model.HeuristicRule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Threshold returns the false-positive score threshold.
func (s *Scorer) Threshold() float64 { return s.threshold }

// Score applies every rule to fs. Rules whose feature is absent or null are
// skipped and never counted as matched.
func (s *Scorer) Score(fs model.FeatureSet) model.HeuristicOutcome {
	out := model.HeuristicOutcome{Matched: []string{}}
	var reasons []string
	for _, r := range s.rules {
		fv, ok := fs[r.Condition.Feature]
		if !ok || fv.IsNull() {
			continue
		}
		if !Holds(r.Condition.Operator, fv, r.Condition.Value) {
			continue
		}
		out.Score += r.Weight
		out.Matched = append(out.Matched, r.Name)
		reasons = append(reasons, r.Description)
	}

	if len(reasons) == 0 {
		out.Description = NoMatchDescription
	} else {
		out.Description = "FP: " + strings.Join(reasons, "; ")
	}
	out.Verdict = s.Verdict(out.Score)
	return out
}

// Verdict maps a score onto the heuristic verdict.
func (s *Scorer) Verdict(score float64) model.Verdict {
	if score >= s.threshold {
		return model.VerdictFalsePositive
	}
	return model.VerdictNeedsReview
}

// Holds applies op to the feature value and the configured value. Numbers and
// bools compare numerically, strings lexicographically. When the kinds cannot
// be compared, == is false, != is true and orderings never hold.
func Holds(op model.Operator, feature, want value.Value) bool {
	c, ok := value.Compare(feature, want)
	switch op {
	case model.OpEQ:
		return ok && c == 0
	case model.OpNE:
		return !ok || c != 0
	}
	if !ok {
		return false
	}
	switch op {
	case model.OpLT:
		return c < 0
	case model.OpLE:
		return c <= 0
	case model.OpGT:
		return c > 0
	case model.OpGE:
		return c >= 0
	}
	return false
}

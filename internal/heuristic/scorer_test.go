package heuristic_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jmerrifield20/SecretTriage/internal/heuristic"
	"github.com/jmerrifield20/SecretTriage/internal/triage/model"
	"github.com/jmerrifield20/SecretTriage/internal/value"
)

func rule(name, feature string, op model.Operator, v value.Value, weight float64) model.HeuristicRule {
	return model.HeuristicRule{
		Name:        name,
		Description: name + " desc",
		Condition:   model.Condition{Feature: feature, Operator: op, Value: v},
		Weight:      weight,
		Enabled:     true,
	}
}

func defaultRules() []model.HeuristicRule {
	return []model.HeuristicRule{
		rule("low_entropy", "entropy", model.OpLT, value.Number(3.0), 1.2),
		rule("placeholder_word", "has_placeholder", model.OpEQ, value.Bool(true), 1.5),
		rule("test_file", "in_test_path", model.OpEQ, value.Bool(true), 1.3),
	}
}

func TestScore_matchedInStorageOrder(t *testing.T) {
	s := heuristic.NewScorer(defaultRules(), heuristic.Options{})
	out := s.Score(model.FeatureSet{
		"entropy":         value.Number(2.1),
		"has_placeholder": value.Bool(true),
		"in_test_path":    value.Bool(true),
	})
	assert.InDelta(t, 4.0, out.Score, 1e-9)
	assert.Equal(t, []string{"low_entropy", "placeholder_word", "test_file"}, out.Matched)
	assert.Equal(t, "FP: low_entropy desc; placeholder_word desc; test_file desc", out.Description)
	assert.Equal(t, model.VerdictFalsePositive, out.Verdict)
}

func TestScore_noMatchSentinel(t *testing.T) {
	s := heuristic.NewScorer(defaultRules(), heuristic.Options{})
	out := s.Score(model.FeatureSet{"entropy": value.Number(4.5), "has_placeholder": value.Bool(false)})
	assert.Equal(t, 0.0, out.Score)
	assert.Empty(t, out.Matched)
	assert.NotNil(t, out.Matched)
	assert.Equal(t, heuristic.NoMatchDescription, out.Description)
	assert.Equal(t, model.VerdictNeedsReview, out.Verdict)
}

func TestScore_nullOrMissingFeatureSkipped(t *testing.T) {
	rules := []model.HeuristicRule{
		rule("null_ne", "entropy", model.OpNE, value.Number(1), 5),
		rule("missing_ne", "nope", model.OpNE, value.Number(1), 5),
	}
	out := heuristic.NewScorer(rules, heuristic.Options{}).Score(model.FeatureSet{"entropy": value.Null()})
	assert.Empty(t, out.Matched)
	assert.Equal(t, 0.0, out.Score)
}

func TestScore_invalidOperatorAndDisabledSkipped(t *testing.T) {
	bad := rule("bad", "entropy", "=~", value.Number(1), 9)
	off := rule("off", "entropy", model.OpGT, value.Number(0), 9)
	off.Enabled = false
	s := heuristic.NewScorer([]model.HeuristicRule{bad, off, rule("ok", "entropy", model.OpGT, value.Number(0), 0.5)}, heuristic.Options{})
	assert.Len(t, s.Rules(), 1)

	out := s.Score(model.FeatureSet{"entropy": value.Number(1)})
	assert.Equal(t, []string{"ok"}, out.Matched)
}

func TestScore_thresholdBoundary(t *testing.T) {
	s := heuristic.NewScorer([]model.HeuristicRule{
		rule("a", "x", model.OpEQ, value.Bool(true), 2.0),
	}, heuristic.Options{FPThreshold: 2.0})
	assert.Equal(t, model.VerdictFalsePositive, s.Score(model.FeatureSet{"x": value.Bool(true)}).Verdict)
	assert.Equal(t, model.VerdictNeedsReview, s.Verdict(1.99))
}

func TestHolds(t *testing.T) {
	tests := []struct {
		name    string
		op      model.Operator
		feature value.Value
		want    value.Value
		holds   bool
	}{
		{"number lt", model.OpLT, value.Number(2.5), value.Number(3), true},
		{"number ge equal", model.OpGE, value.Int(3), value.Number(3.0), true},
		{"bool eq", model.OpEQ, value.Bool(true), value.Bool(true), true},
		{"bool vs number", model.OpEQ, value.Bool(true), value.Int(1), true},
		{"string order", model.OpLT, value.String("abc"), value.String("abd"), true},
		{"string eq", model.OpEQ, value.String("x"), value.String("x"), true},
		{"mismatch eq", model.OpEQ, value.String("1"), value.Int(1), false},
		{"mismatch ne", model.OpNE, value.String("1"), value.Int(1), true},
		{"mismatch order", model.OpGT, value.String("9"), value.Int(1), false},
		{"null configured", model.OpEQ, value.Int(0), value.Null(), false},
		{"unknown op", "~", value.Int(1), value.Int(1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.holds, heuristic.Holds(tt.op, tt.feature, tt.want))
		})
	}
}

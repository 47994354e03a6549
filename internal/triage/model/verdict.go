package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Verdict is the single verdict space shared by the heuristic path, the
// external judge and the arbiter.
type Verdict string

const (
	VerdictTruePositive  Verdict = "true_positive"
	VerdictFalsePositive Verdict = "false_positive"
	VerdictNeedsReview   Verdict = "needs_review"
	VerdictUncertain     Verdict = "uncertain"
)

// Polarity groups verdicts by which way they lean.
type Polarity int

const (
	PolarityNone Polarity = iota
	PolarityPositive
	PolarityNegative
)

// Polarity reports whether v treats the finding as a real secret.
// needs_review leans positive: the finding is kept for a human.
func (v Verdict) Polarity() Polarity {
	switch v {
	case VerdictTruePositive, VerdictNeedsReview:
		return PolarityPositive
	case VerdictFalsePositive:
		return PolarityNegative
	}
	return PolarityNone
}

// SamePolarity reports whether a and b lean the same way. Uncertain agrees
// with nothing.
func SamePolarity(a, b Verdict) bool {
	pa := a.Polarity()
	return pa != PolarityNone && pa == b.Polarity()
}

// Valid reports whether v is a canonical verdict.
func (v Verdict) Valid() bool {
	switch v {
	case VerdictTruePositive, VerdictFalsePositive, VerdictNeedsReview, VerdictUncertain:
		return true
	}
	return false
}

// ParseVerdict accepts the canonical names plus the short forms tp, fp and
// review, case-insensitively.
func ParseVerdict(s string) (Verdict, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tp", "true_positive":
		return VerdictTruePositive, nil
	case "fp", "false_positive":
		return VerdictFalsePositive, nil
	case "review", "needs_review":
		return VerdictNeedsReview, nil
	case "uncertain":
		return VerdictUncertain, nil
	}
	return "", fmt.Errorf("unknown verdict %q", s)
}

// UnmarshalJSON accepts any spelling ParseVerdict does.
func (v *Verdict) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseVerdict(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

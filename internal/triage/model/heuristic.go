package model

import (
	"github.com/jmerrifield20/SecretTriage/internal/value"
)

// Operator is a comparison used in a heuristic condition.
type Operator string

const (
	OpLT Operator = "<"
	OpLE Operator = "<="
	OpGT Operator = ">"
	OpGE Operator = ">="
	OpEQ Operator = "=="
	OpNE Operator = "!="
)

// Valid reports whether op is a supported operator.
func (op Operator) Valid() bool {
	switch op {
	case OpLT, OpLE, OpGT, OpGE, OpEQ, OpNE:
		return true
	}
	return false
}

// Condition compares one feature against a configured value.
type Condition struct {
	Feature  string      `json:"feature"  yaml:"feature"`
	Operator Operator    `json:"operator" yaml:"operator"`
	Value    value.Value `json:"value"    yaml:"value"`
}

// HeuristicRule is a weighted condition contributing to the false-positive score.
type HeuristicRule struct {
	ID          int64     `json:"id,omitempty" yaml:"-"`
	Name        string    `json:"name"         yaml:"name"`
	Description string    `json:"description"  yaml:"description"`
	Condition   Condition `json:"condition"    yaml:"condition"`
	Weight      float64   `json:"weight"       yaml:"weight"`
	Enabled     bool      `json:"enabled"      yaml:"-"`
}

// HeuristicOutcome is the result of scoring one FeatureSet.
type HeuristicOutcome struct {
	// Score is the sum of matched weights. It is a weighted vote count, not a
	// probability, and is not bounded.
	Score       float64  `json:"score"`
	Matched     []string `json:"matched"`
	Description string   `json:"description"`
	Verdict     Verdict  `json:"verdict"`
}

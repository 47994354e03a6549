// Package store persists rule definitions and classification history.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/jmerrifield20/SecretTriage/internal/triage/model"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// RuleStore reads the active rule configuration. Results come back in
// storage order, which is also evaluation order.
type RuleStore interface {
	ListActiveFeatureDefinitions(ctx context.Context) ([]model.FeatureDefinition, error)
	ListActiveHeuristicRules(ctx context.Context) ([]model.HeuristicRule, error)
}

// ResultSink records one classification.
type ResultSink interface {
	Record(ctx context.Context, rec *model.ClassificationRecord) error
}

// RecordReader loads stored classifications.
type RecordReader interface {
	GetClassification(ctx context.Context, id uuid.UUID) (*model.ClassificationRecord, error)
}

// Store is the full persistence surface used by the service.
type Store interface {
	RuleStore
	ResultSink
	RecordReader
	// ApplyRulePack upserts every feature and heuristic in pack by name.
	ApplyRulePack(ctx context.Context, pack *RulePack) error
}

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/jmerrifield20/SecretTriage/internal/triage/model"
)

// MemoryStore is an in-memory, thread-safe Store. Records are kept as JSON
// so reads return the same data a durable store would.
type MemoryStore struct {
	mu         sync.RWMutex
	features   []model.FeatureDefinition
	heuristics []model.HeuristicRule
	records    map[uuid.UUID][]byte
	nextID     int64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[uuid.UUID][]byte)}
}

// ListActiveFeatureDefinitions implements RuleStore.
func (s *MemoryStore) ListActiveFeatureDefinitions(_ context.Context) ([]model.FeatureDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.FeatureDefinition, 0, len(s.features))
	for _, f := range s.features {
		if f.Enabled {
			f.Config = append(json.RawMessage(nil), f.Config...)
			out = append(out, f)
		}
	}
	return out, nil
}

// ListActiveHeuristicRules implements RuleStore.
func (s *MemoryStore) ListActiveHeuristicRules(_ context.Context) ([]model.HeuristicRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.HeuristicRule, 0, len(s.heuristics))
	for _, h := range s.heuristics {
		if h.Enabled {
			out = append(out, h)
		}
	}
	return out, nil
}

// Record implements ResultSink.
func (s *MemoryStore) Record(_ context.Context, rec *model.ClassificationRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = data
	return nil
}

// GetClassification implements RecordReader.
func (s *MemoryStore) GetClassification(_ context.Context, id uuid.UUID) (*model.ClassificationRecord, error) {
	s.mu.RLock()
	data, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	var rec model.ClassificationRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return &rec, nil
}

// ApplyRulePack implements Store. Existing entries keep their position.
func (s *MemoryStore) ApplyRulePack(_ context.Context, pack *RulePack) error {
	defs, err := pack.Definitions()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range defs {
		if i := indexFeature(s.features, d.Name); i >= 0 {
			d.ID = s.features[i].ID
			s.features[i] = d
			continue
		}
		s.nextID++
		d.ID = s.nextID
		s.features = append(s.features, d)
	}
	for _, h := range pack.Heuristics {
		if i := indexHeuristic(s.heuristics, h.Name); i >= 0 {
			h.ID = s.heuristics[i].ID
			s.heuristics[i] = h
			continue
		}
		s.nextID++
		h.ID = s.nextID
		s.heuristics = append(s.heuristics, h)
	}
	return nil
}

func indexFeature(fs []model.FeatureDefinition, name string) int {
	for i, f := range fs {
		if f.Name == name {
			return i
		}
	}
	return -1
}

func indexHeuristic(hs []model.HeuristicRule, name string) int {
	for i, h := range hs {
		if h.Name == name {
			return i
		}
	}
	return -1
}

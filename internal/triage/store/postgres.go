package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/jmerrifield20/SecretTriage/internal/triage/model"
)

// PostgresStore persists rules and classifications in PostgreSQL.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore creates a PostgresStore backed by the given connection pool.
func NewPostgresStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, logger: logger}
}

// ListActiveFeatureDefinitions implements RuleStore.
func (s *PostgresStore) ListActiveFeatureDefinitions(ctx context.Context) ([]model.FeatureDefinition, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, description, kind, config, enabled
		 FROM features WHERE enabled ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list features: %w", err)
	}
	defer rows.Close()

	var out []model.FeatureDefinition
	for rows.Next() {
		var (
			d    model.FeatureDefinition
			kind string
			cfg  []byte
		)
		if err := rows.Scan(&d.ID, &d.Name, &d.Description, &kind, &cfg, &d.Enabled); err != nil {
			return nil, fmt.Errorf("scan feature: %w", err)
		}
		d.Kind = model.FeatureKind(kind)
		d.Config = json.RawMessage(cfg)
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListActiveHeuristicRules implements RuleStore. A row whose condition cannot
// be decoded is skipped and logged.
func (s *PostgresStore) ListActiveHeuristicRules(ctx context.Context) ([]model.HeuristicRule, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, description, condition, weight, enabled
		 FROM heuristics WHERE enabled ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list heuristics: %w", err)
	}
	defer rows.Close()

	var out []model.HeuristicRule
	for rows.Next() {
		var (
			h    model.HeuristicRule
			cond []byte
		)
		if err := rows.Scan(&h.ID, &h.Name, &h.Description, &cond, &h.Weight, &h.Enabled); err != nil {
			return nil, fmt.Errorf("scan heuristic: %w", err)
		}
		if err := json.Unmarshal(cond, &h.Condition); err != nil {
			s.logger.Warn("heuristic skipped: bad condition", zap.String("rule", h.Name), zap.Error(err))
			continue
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// Record implements ResultSink.
func (s *PostgresStore) Record(ctx context.Context, rec *model.ClassificationRecord) error {
	finding, err := json.Marshal(rec.Finding)
	if err != nil {
		return fmt.Errorf("marshal finding: %w", err)
	}
	features, err := json.Marshal(rec.Features)
	if err != nil {
		return fmt.Errorf("marshal features: %w", err)
	}
	decision, err := json.Marshal(rec.Decision)
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}
	var external []byte
	if rec.External != nil {
		if external, err = json.Marshal(rec.External); err != nil {
			return fmt.Errorf("marshal external verdict: %w", err)
		}
	}

	matched := rec.Outcome.Matched
	if matched == nil {
		matched = []string{}
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO classifications
		   (id, report_id, rule_id, filepath, finding, features, score, heuristic_verdict,
		    matched_heuristics, description, verdict, confidence, method, decision, external, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		rec.ID, rec.Finding.ReportID, rec.Finding.RuleID, rec.Finding.FilePath,
		finding, features, rec.Outcome.Score, string(rec.Outcome.Verdict),
		matched, rec.Outcome.Description, string(rec.Decision.FinalVerdict),
		rec.Decision.FinalConfidence, string(rec.Decision.Method), decision, external, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert classification: %w", err)
	}
	return nil
}

// GetClassification implements RecordReader.
func (s *PostgresStore) GetClassification(ctx context.Context, id uuid.UUID) (*model.ClassificationRecord, error) {
	var (
		rec                         model.ClassificationRecord
		finding, features, decision []byte
		external                    []byte
		heuristicVerdict            string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, finding, features, score, heuristic_verdict, matched_heuristics,
		        description, decision, external, created_at
		 FROM classifications WHERE id = $1`, id,
	).Scan(&rec.ID, &finding, &features, &rec.Outcome.Score, &heuristicVerdict,
		&rec.Outcome.Matched, &rec.Outcome.Description, &decision, &external, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get classification: %w", err)
	}

	rec.Outcome.Verdict = model.Verdict(heuristicVerdict)
	if err := json.Unmarshal(finding, &rec.Finding); err != nil {
		return nil, fmt.Errorf("unmarshal finding: %w", err)
	}
	if err := json.Unmarshal(features, &rec.Features); err != nil {
		return nil, fmt.Errorf("unmarshal features: %w", err)
	}
	if err := json.Unmarshal(decision, &rec.Decision); err != nil {
		return nil, fmt.Errorf("unmarshal decision: %w", err)
	}
	if len(external) > 0 {
		rec.External = &model.ExternalVerdict{}
		if err := json.Unmarshal(external, rec.External); err != nil {
			return nil, fmt.Errorf("unmarshal external verdict: %w", err)
		}
	}
	return &rec, nil
}

// ApplyRulePack implements Store. Running it twice is safe: rows are matched
// by name and updated in place, so evaluation order is preserved.
func (s *PostgresStore) ApplyRulePack(ctx context.Context, pack *RulePack) error {
	defs, err := pack.Definitions()
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, d := range defs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO features (name, description, kind, config, enabled)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (name) DO UPDATE SET
			   description = EXCLUDED.description,
			   kind        = EXCLUDED.kind,
			   config      = EXCLUDED.config,
			   enabled     = EXCLUDED.enabled,
			   updated_at  = now()`,
			d.Name, d.Description, string(d.Kind), []byte(d.Config), d.Enabled,
		); err != nil {
			return fmt.Errorf("upsert feature %q: %w", d.Name, err)
		}
	}

	for _, h := range pack.Heuristics {
		cond, err := json.Marshal(h.Condition)
		if err != nil {
			return fmt.Errorf("marshal condition %q: %w", h.Name, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO heuristics (name, description, condition, weight, enabled)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (name) DO UPDATE SET
			   description = EXCLUDED.description,
			   condition   = EXCLUDED.condition,
			   weight      = EXCLUDED.weight,
			   enabled     = EXCLUDED.enabled,
			   updated_at  = now()`,
			h.Name, h.Description, cond, h.Weight, h.Enabled,
		); err != nil {
			return fmt.Errorf("upsert heuristic %q: %w", h.Name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit rule pack: %w", err)
	}
	s.logger.Info("rule pack applied",
		zap.Int("features", len(defs)),
		zap.Int("heuristics", len(pack.Heuristics)),
	)
	return nil
}

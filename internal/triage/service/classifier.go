// Package service orchestrates batch classification: feature extraction,
// heuristic scoring, the judgment gate, the external judge and the arbiter.
package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jmerrifield20/SecretTriage/internal/audit"
	"github.com/jmerrifield20/SecretTriage/internal/features"
	"github.com/jmerrifield20/SecretTriage/internal/fusion"
	"github.com/jmerrifield20/SecretTriage/internal/heuristic"
	"github.com/jmerrifield20/SecretTriage/internal/judge"
	"github.com/jmerrifield20/SecretTriage/internal/notify"
	"github.com/jmerrifield20/SecretTriage/internal/triage/model"
	"github.com/jmerrifield20/SecretTriage/internal/triage/store"
)

// JudgeTarget is the health checker target name of the external judge.
const JudgeTarget = "judge"

// degradedDescription is used for a finding whose classification panicked.
const degradedDescription = "classification failed; manual review required"

// Config tunes batch processing.
type Config struct {
	Concurrency      int           // findings classified in parallel
	JudgeConcurrency int           // judge calls in flight per service
	BatchTimeout     time.Duration // 0 = no deadline beyond the caller's
	MaxBatch         int           // 0 = unlimited
	FPThreshold      float64
	Gate             fusion.GateConfig // zero value = fusion.DefaultGateConfig()
}

// DefaultConfig returns the stock service configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency:      8,
		JudgeConcurrency: 4,
		BatchTimeout:     2 * time.Minute,
		MaxBatch:         500,
		FPThreshold:      heuristic.DefaultFPThreshold,
		Gate:             fusion.DefaultGateConfig(),
	}
}

// Judge returns a second opinion on one finding. It never fails; errors come
// back as a fallback verdict. *judge.Adapter satisfies this interface.
type Judge interface {
	Judge(ctx context.Context, req judge.Request) model.ExternalVerdict
}

// HealthReporter reports whether a dependency is currently usable.
// *health.Checker satisfies this interface.
type HealthReporter interface {
	Healthy(target string) bool
}

// Notifier dispatches events about classified findings.
// *notify.Dispatcher satisfies this interface.
type Notifier interface {
	Dispatch(ctx context.Context, eventType string, payload map[string]string)
}

// Auditor records security-relevant decisions. audit.Ledger satisfies this
// interface.
type Auditor interface {
	Append(ctx context.Context, action, actor, subject string, payload any) (*audit.Entry, error)
}

// MetricsFunc is called once per classified finding.
type MetricsFunc func(verdict model.Verdict, method model.Method)

// Snapshot is the immutable rule configuration for one batch.
type Snapshot struct {
	Features  []model.FeatureDefinition
	Rules     []model.HeuristicRule
	Extractor *features.Extractor
	Scorer    *heuristic.Scorer
}

// ClassifierService classifies batches of findings.
type ClassifierService struct {
	rules    store.RuleStore
	sink     store.ResultSink // nil = results are not persisted
	judge    Judge            // nil = heuristics only
	health   HealthReporter   // nil = judge always considered reachable
	notifier Notifier         // nil = no notifications
	auditor  Auditor          // nil = overrides are not audited
	metrics  MetricsFunc
	judgeSem chan struct{}
	cfg      Config
	logger   *zap.Logger
}

// NewClassifierService creates a ClassifierService reading rules from rules.
func NewClassifierService(rules store.RuleStore, cfg Config, logger *zap.Logger) *ClassifierService {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.JudgeConcurrency <= 0 {
		cfg.JudgeConcurrency = 1
	}
	if cfg.FPThreshold <= 0 {
		cfg.FPThreshold = heuristic.DefaultFPThreshold
	}
	if cfg.Gate.Threshold == 0 && cfg.Gate.EntropyFeature == "" {
		cfg.Gate = fusion.DefaultGateConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassifierService{
		rules:    rules,
		cfg:      cfg,
		judgeSem: make(chan struct{}, cfg.JudgeConcurrency),
		logger:   logger,
	}
}

// SetResultSink configures where classifications are recorded.
func (s *ClassifierService) SetResultSink(sink store.ResultSink) { s.sink = sink }

// SetJudge enables the external judge for gated findings.
func (s *ClassifierService) SetJudge(j Judge) { s.judge = j }

// SetHealth makes judge calls conditional on the JudgeTarget health status.
func (s *ClassifierService) SetHealth(h HealthReporter) { s.health = h }

// SetNotifier configures the event dispatcher.
func (s *ClassifierService) SetNotifier(n Notifier) { s.notifier = n }

// SetAuditor records every judge override in the audit log.
func (s *ClassifierService) SetAuditor(a Auditor) { s.auditor = a }

// SetMetrics configures the per-finding metrics callback.
func (s *ClassifierService) SetMetrics(fn MetricsFunc) { s.metrics = fn }

// Config returns the effective configuration.
func (s *ClassifierService) Config() Config { return s.cfg }

// LoadSnapshot reads the active rules and compiles them.
func (s *ClassifierService) LoadSnapshot(ctx context.Context) (*Snapshot, error) {
	defs, err := s.rules.ListActiveFeatureDefinitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load feature definitions: %w", err)
	}
	rules, err := s.rules.ListActiveHeuristicRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("load heuristic rules: %w", err)
	}
	return &Snapshot{
		Features:  defs,
		Rules:     rules,
		Extractor: features.Compile(defs, s.logger),
		Scorer:    heuristic.NewScorer(rules, heuristic.Options{FPThreshold: s.cfg.FPThreshold, Logger: s.logger}),
	}, nil
}

// Classify returns one result per finding, in input order. A failure on one
// finding never fails the batch; only an empty or oversized batch, or an
// unreadable rule store, returns an error.
func (s *ClassifierService) Classify(ctx context.Context, findings []model.Finding) ([]model.ClassificationResult, error) {
	if len(findings) == 0 {
		return nil, &model.ErrValidation{Msg: "findings must not be empty"}
	}
	if s.cfg.MaxBatch > 0 && len(findings) > s.cfg.MaxBatch {
		return nil, &model.ErrValidation{Msg: fmt.Sprintf("at most %d findings per request", s.cfg.MaxBatch)}
	}

	snap, err := s.LoadSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	if s.cfg.BatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.BatchTimeout)
		defer cancel()
	}

	results := make([]model.ClassificationResult, len(findings))
	sem := make(chan struct{}, s.cfg.Concurrency)
	var wg sync.WaitGroup
	for i, f := range findings {
		wg.Add(1)
		go func(i int, f model.Finding) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = s.classifyOne(ctx, snap, f)
		}(i, f)
	}
	wg.Wait()

	s.logger.Info("batch classified",
		zap.Int("findings", len(findings)),
		zap.Int("features", len(snap.Features)),
		zap.Int("heuristics", len(snap.Scorer.Rules())),
	)
	return results, nil
}

func (s *ClassifierService) classifyOne(ctx context.Context, snap *Snapshot, f model.Finding) (res model.ClassificationResult) {
	id := uuid.New()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("classification panicked",
				zap.String("rule_id", f.RuleID),
				zap.String("secret", model.Preview(f.Secret, 8)),
				zap.Any("panic", r),
			)
			res = degradedResult(id, f)
			s.report(res.Verdict, res.Method)
		}
	}()

	fs := snap.Extractor.Extract(f)
	outcome := snap.Scorer.Score(fs)

	reason := fusion.Gate(outcome, fs, s.cfg.Gate)
	var ext *model.ExternalVerdict
	if reason != fusion.ReasonNone {
		ext = s.consult(ctx, judge.Request{Finding: f, Features: fs, Outcome: outcome})
		if ext == nil {
			reason = fusion.ReasonNone
		}
	}
	decision := fusion.Arbitrate(outcome, ext)

	res = model.ClassificationResult{
		ID:                id,
		Secret:            f.Secret,
		Entropy:           round2(fs.Get("entropy").Float()),
		Features:          fs,
		Score:             round2(outcome.Score),
		HeuristicVerdict:  outcome.Verdict,
		Verdict:           decision.FinalVerdict,
		Confidence:        decision.FinalConfidence,
		Method:            decision.Method,
		MatchedHeuristics: outcome.Matched,
		Description:       outcome.Description,
		JudgeUsed:         decision.UsedExternal,
		JudgeReason:       string(reason),
		Agreement:         decision.Agreement,
	}

	s.record(ctx, &model.ClassificationRecord{
		ID:        id,
		Finding:   f,
		Features:  fs,
		Outcome:   outcome,
		Decision:  decision,
		External:  ext,
		CreatedAt: time.Now().UTC(),
	})
	if decision.Method == model.MethodExternalOverride {
		s.auditOverride(ctx, res)
	}
	s.notify(ctx, res, f)
	s.report(res.Verdict, res.Method)
	return res
}

// consult asks the judge, or returns nil when no judge is usable.
func (s *ClassifierService) consult(ctx context.Context, req judge.Request) *model.ExternalVerdict {
	if s.judge == nil {
		return nil
	}
	if s.health != nil && !s.health.Healthy(JudgeTarget) {
		s.logger.Debug("judge degraded, using heuristics only", zap.String("rule_id", req.Finding.RuleID))
		return nil
	}

	select {
	case s.judgeSem <- struct{}{}:
	case <-ctx.Done():
		v := judge.Fallback(ctx.Err())
		return &v
	}
	defer func() { <-s.judgeSem }()

	v := s.judge.Judge(ctx, req)
	return &v
}

// record persists rec. A failed write is logged and never fails the finding.
func (s *ClassifierService) record(ctx context.Context, rec *model.ClassificationRecord) {
	if s.sink == nil {
		return
	}
	if err := s.sink.Record(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Warn("record classification",
			zap.String("id", rec.ID.String()),
			zap.Error(err),
		)
	}
}

// auditOverride logs a judge override. Like record, failure is logged and ignored.
func (s *ClassifierService) auditOverride(ctx context.Context, res model.ClassificationResult) {
	if s.auditor == nil {
		return
	}
	_, err := s.auditor.Append(context.WithoutCancel(ctx), audit.ActionJudgeOverride, audit.SystemActor, res.ID.String(), map[string]any{
		"heuristic_verdict": res.HeuristicVerdict,
		"verdict":           res.Verdict,
		"confidence":        res.Confidence,
		"score":             res.Score,
	})
	if err != nil {
		s.logger.Warn("audit judge override", zap.String("id", res.ID.String()), zap.Error(err))
	}
}

func (s *ClassifierService) notify(ctx context.Context, res model.ClassificationResult, f model.Finding) {
	if s.notifier == nil {
		return
	}
	var event string
	switch res.Verdict {
	case model.VerdictTruePositive:
		event = notify.EventTruePositive
	case model.VerdictNeedsReview:
		event = notify.EventNeedsReview
	default:
		return
	}
	s.notifier.Dispatch(ctx, event, map[string]string{
		"id":          res.ID.String(),
		"report_id":   f.ReportID,
		"rule_id":     f.RuleID,
		"filepath":    f.FilePath,
		"line_number": strconv.Itoa(f.LineNumber),
		"secret":      model.Preview(f.Secret, 8),
		"verdict":     string(res.Verdict),
		"method":      string(res.Method),
		"confidence":  strconv.FormatFloat(res.Confidence, 'f', 2, 64),
	})
}

func (s *ClassifierService) report(v model.Verdict, m model.Method) {
	if s.metrics != nil {
		s.metrics(v, m)
	}
}

func degradedResult(id uuid.UUID, f model.Finding) model.ClassificationResult {
	return model.ClassificationResult{
		ID:                id,
		Secret:            f.Secret,
		Features:          model.FeatureSet{},
		HeuristicVerdict:  model.VerdictNeedsReview,
		Verdict:           model.VerdictNeedsReview,
		Method:            model.MethodHeuristicsOnly,
		MatchedHeuristics: []string{},
		Description:       degradedDescription,
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

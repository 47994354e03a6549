// Package features turns a Finding into a FeatureSet using stored feature
// definitions.
package features

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/jmerrifield20/SecretTriage/internal/expr"
	"github.com/jmerrifield20/SecretTriage/internal/triage/model"
	"github.com/jmerrifield20/SecretTriage/internal/value"
)

type evalFunc func(f model.Finding) (value.Value, error)

type feature struct {
	name string
	kind model.FeatureKind
	eval evalFunc
	// err is set when the definition failed to compile; the feature then
	// always extracts as null.
	err error
}

// Extractor computes a FeatureSet for findings. It is built once per batch
// snapshot and is safe for concurrent use.
type Extractor struct {
	feats  []feature
	logger *zap.Logger
}

// Compile prepares defs for extraction. Disabled definitions are dropped.
// Definitions that fail to compile are kept and yield null.
func Compile(defs []model.FeatureDefinition, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Extractor{logger: logger}
	seen := make(map[string]bool, len(defs))
	for _, d := range defs {
		if !d.Enabled {
			continue
		}
		if seen[d.Name] {
			logger.Warn("duplicate feature name ignored", zap.String("feature", d.Name))
			continue
		}
		seen[d.Name] = true

		fn, err := compileOne(d)
		if err != nil {
			logger.Warn("feature definition rejected",
				zap.String("feature", d.Name),
				zap.String("kind", string(d.Kind)),
				zap.Error(err),
			)
		}
		e.feats = append(e.feats, feature{name: d.Name, kind: d.Kind, eval: fn, err: err})
	}
	return e
}

// Names returns the feature names in definition order.
func (e *Extractor) Names() []string {
	out := make([]string, len(e.feats))
	for i, f := range e.feats {
		out[i] = f.name
	}
	return out
}

// Errors returns the compile error of every rejected definition.
func (e *Extractor) Errors() map[string]error {
	out := map[string]error{}
	for _, f := range e.feats {
		if f.err != nil {
			out[f.name] = f.err
		}
	}
	return out
}

// Extract computes every feature for f. It never panics; a failing feature
// is recorded as null and the rest continue.
func (e *Extractor) Extract(f model.Finding) model.FeatureSet {
	fs := make(model.FeatureSet, len(e.feats))
	for _, ft := range e.feats {
		fs[ft.name] = e.run(ft, f)
	}
	return fs
}

func (e *Extractor) run(ft feature, f model.Finding) (v value.Value) {
	if ft.err != nil {
		return value.Null()
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("feature panicked", zap.String("feature", ft.name), zap.Any("panic", r))
			v = value.Null()
		}
	}()
	out, err := ft.eval(f)
	if err != nil {
		e.logger.Debug("feature evaluation failed", zap.String("feature", ft.name), zap.Error(err))
		return value.Null()
	}
	return out
}

func compileOne(d model.FeatureDefinition) (evalFunc, error) {
	cfg, err := d.DecodeConfig()
	if err != nil {
		return nil, err
	}
	switch c := cfg.(type) {
	case model.BuiltinConfig:
		return compileBuiltin(c)
	case model.KeywordConfig:
		return compileKeyword(c)
	case model.RegexConfig:
		return compileRegex(c)
	case model.ExprConfig:
		return compileExpr(c)
	}
	return nil, fmt.Errorf("unsupported config %T", cfg)
}

var builtins = map[string]func(string) value.Value{
	"shannon_entropy": func(s string) value.Value { return value.Number(ShannonEntropy(s)) },
	"len":             func(s string) value.Value { return value.Int(utf8.RuneCountInString(s)) },
	"unique_chars":    func(s string) value.Value { return value.Int(UniqueChars(s)) },
}

func compileBuiltin(c model.BuiltinConfig) (evalFunc, error) {
	fn, ok := builtins[c.Function]
	if !ok {
		return nil, fmt.Errorf("unknown builtin function %q", c.Function)
	}
	if !c.Target.Valid() {
		return nil, fmt.Errorf("unknown target %q", c.Target)
	}
	return func(f model.Finding) (value.Value, error) {
		s, _ := f.Field(c.Target)
		return fn(s), nil
	}, nil
}

func compileKeyword(c model.KeywordConfig) (evalFunc, error) {
	if !c.Target.Valid() {
		return nil, fmt.Errorf("unknown target %q", c.Target)
	}
	fold := !c.IsCaseSensitive()
	keywords := make([]string, 0, len(c.Keywords))
	for _, kw := range c.Keywords {
		if fold {
			kw = strings.ToLower(kw)
		}
		if c.MatchGlob && !doublestar.ValidatePattern(kw) {
			return nil, fmt.Errorf("invalid glob %q", kw)
		}
		keywords = append(keywords, kw)
	}

	var match func(text, kw string) bool
	switch {
	case c.MatchGlob:
		match = func(text, kw string) bool {
			ok, _ := doublestar.Match(kw, text)
			return ok
		}
	case c.IsSubstring():
		match = strings.Contains
	default:
		match = func(text, kw string) bool { return text == kw }
	}

	return func(f model.Finding) (value.Value, error) {
		text, _ := f.Field(c.Target)
		if fold {
			text = strings.ToLower(text)
		}
		for _, kw := range keywords {
			if match(text, kw) {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil
	}, nil
}

// compileRegex searches the secret whatever target is configured.
func compileRegex(c model.RegexConfig) (evalFunc, error) {
	if c.Pattern == "" {
		return nil, errors.New("empty pattern")
	}
	re, err := regexp.Compile(c.Pattern)
	if err != nil {
		return nil, fmt.Errorf("compile pattern: %w", err)
	}
	return func(f model.Finding) (value.Value, error) {
		return value.Bool(re.MatchString(f.Secret)), nil
	}, nil
}

func compileExpr(c model.ExprConfig) (evalFunc, error) {
	target := c.Target
	if target == "" {
		target = model.TargetSecret
	}
	if !target.Valid() {
		return nil, fmt.Errorf("unknown target %q", target)
	}
	prog, err := expr.Compile(c.Expr, string(target))
	if err != nil {
		return nil, err
	}
	return func(f model.Finding) (value.Value, error) {
		s, _ := f.Field(target)
		v, err := prog.Eval(value.String(s))
		if err != nil {
			return value.Null(), err
		}
		if n, ok := v.AsNumber(); ok && (math.IsNaN(n) || math.IsInf(n, 0)) {
			return value.Null(), fmt.Errorf("non-finite result %v", n)
		}
		return v, nil
	}, nil
}

package model

import (
	"encoding/json"
	"fmt"

	"github.com/jmerrifield20/SecretTriage/internal/value"
)

// FeatureKind selects how a feature is computed.
type FeatureKind string

const (
	KindBuiltin    FeatureKind = "builtin"
	KindKeyword    FeatureKind = "keyword"
	KindRegex      FeatureKind = "regex"
	KindCustomExpr FeatureKind = "custom_expr"
)

// Valid reports whether k is one of the supported kinds.
func (k FeatureKind) Valid() bool {
	switch k {
	case KindBuiltin, KindKeyword, KindRegex, KindCustomExpr:
		return true
	}
	return false
}

// FeatureDefinition is stored configuration describing how to compute one
// named feature. Config holds the variant payload for Kind.
type FeatureDefinition struct {
	ID          int64           `json:"id,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Kind        FeatureKind     `json:"kind"`
	Config      json.RawMessage `json:"config"`
	Enabled     bool            `json:"enabled"`
}

// BuiltinConfig configures a builtin feature.
type BuiltinConfig struct {
	Function string `json:"function"`
	Target   Target `json:"target"`
}

// KeywordConfig configures a keyword feature. Pointer fields distinguish an
// omitted option from an explicit false.
type KeywordConfig struct {
	Keywords       []string `json:"keywords"`
	Target         Target   `json:"target"`
	CaseSensitive  *bool    `json:"case_sensitive,omitempty"`
	MatchSubstring *bool    `json:"match_substring,omitempty"`
	MatchGlob      bool     `json:"match_glob,omitempty"`
}

// IsCaseSensitive defaults to false.
func (c KeywordConfig) IsCaseSensitive() bool {
	return c.CaseSensitive != nil && *c.CaseSensitive
}

// IsSubstring defaults to true.
func (c KeywordConfig) IsSubstring() bool {
	return c.MatchSubstring == nil || *c.MatchSubstring
}

// RegexConfig configures a regex feature. Target is accepted for symmetry with
// the other kinds but the pattern is always searched in the secret.
type RegexConfig struct {
	Pattern string `json:"pattern"`
	Target  Target `json:"target,omitempty"`
}

// ExprConfig configures a custom_expr feature.
type ExprConfig struct {
	Expr   string `json:"expr"`
	Target Target `json:"target,omitempty"`
}

// DecodeConfig decodes d.Config into the variant struct for d.Kind and
// returns it. Unknown kinds and malformed payloads are errors.
func (d FeatureDefinition) DecodeConfig() (any, error) {
	var (
		out any
		err error
	)
	switch d.Kind {
	case KindBuiltin:
		var c BuiltinConfig
		err = decodeStrict(d.Config, &c)
		out = c
	case KindKeyword:
		var c KeywordConfig
		err = decodeStrict(d.Config, &c)
		out = c
	case KindRegex:
		var c RegexConfig
		err = decodeStrict(d.Config, &c)
		out = c
	case KindCustomExpr:
		var c ExprConfig
		err = decodeStrict(d.Config, &c)
		out = c
	default:
		return nil, fmt.Errorf("feature %q: unknown kind %q", d.Name, d.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("feature %q: config: %w", d.Name, err)
	}
	return out, nil
}

func decodeStrict(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return fmt.Errorf("missing config")
	}
	return json.Unmarshal(raw, dst)
}

// FeatureSet maps feature names to values. It holds exactly one entry per
// active definition; failed features are present with a null value.
type FeatureSet map[string]value.Value

// Get returns the named value, or null when absent.
func (fs FeatureSet) Get(name string) value.Value {
	if fs == nil {
		return value.Null()
	}
	return fs[name]
}

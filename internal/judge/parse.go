package judge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/jmerrifield20/SecretTriage/internal/triage/model"
)

var (
	errNoJSON         = errors.New("reply does not contain a JSON object")
	jsonObjectRe      = regexp.MustCompile(`(?s)\{.*\}`)
	defaultConfidence = 0.5
)

// generation is one element of a text-generation reply.
type generation struct {
	GeneratedText string `json:"generated_text"`
}

// extractText pulls the generated text out of a reply body. The endpoint may
// answer with a list of generations, a single generation object or a bare
// JSON string; a body that is not JSON at all is taken as the text itself.
func extractText(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}
	switch trimmed[0] {
	case '[':
		var gens []generation
		if err := json.Unmarshal(trimmed, &gens); err == nil {
			if len(gens) == 0 {
				return ""
			}
			return gens[0].GeneratedText
		}
	case '{':
		var g generation
		if err := json.Unmarshal(trimmed, &g); err == nil {
			return g.GeneratedText
		}
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	return string(trimmed)
}

// locateJSON returns text if it already starts with an object, otherwise the
// widest {...} span inside it.
func locateJSON(text string) (string, error) {
	t := strings.TrimSpace(text)
	if strings.HasPrefix(t, "{") {
		return t, nil
	}
	m := jsonObjectRe.FindString(t)
	if m == "" {
		return "", fmt.Errorf("%w: %q", errNoJSON, model.Preview(t, 200))
	}
	return m, nil
}

// reply is the JSON object the prompt asks for.
type reply struct {
	Verdict            string          `json:"verdict"`
	Confidence         json.RawMessage `json:"confidence"`
	Reasoning          string          `json:"reasoning"`
	KeyFactors         json.RawMessage `json:"key_factors"`
	Agrees             json.RawMessage `json:"agrees_with_heuristics"`
	AdditionalEvidence string          `json:"additional_evidence"`
	Recommendation     string          `json:"recommendation_for_dev"`
}

// parseReply converts generated text into a genuine ExternalVerdict.
func parseReply(text string, h model.HeuristicOutcome) (model.ExternalVerdict, error) {
	obj, err := locateJSON(text)
	if err != nil {
		return model.ExternalVerdict{}, err
	}
	var r reply
	if err := json.Unmarshal([]byte(obj), &r); err != nil {
		return model.ExternalVerdict{}, fmt.Errorf("decode reply: %w", err)
	}
	conf, err := parseConfidence(r.Confidence)
	if err != nil {
		return model.ExternalVerdict{}, err
	}

	var v model.Verdict
	switch strings.ToLower(strings.TrimSpace(r.Verdict)) {
	case "tp":
		v = model.VerdictTruePositive
	case "fp":
		v = model.VerdictFalsePositive
	default:
		v = h.Verdict
	}

	return model.ExternalVerdict{
		Verdict:             v,
		Confidence:          conf,
		Explanation:         r.Reasoning,
		KeyFactors:          parseKeyFactors(r.KeyFactors),
		AgreesWithHeuristic: parseAgrees(r.Agrees, model.SamePolarity(v, h.Verdict)),
		AdditionalEvidence:  r.AdditionalEvidence,
		Recommendation:      r.Recommendation,
	}, nil
}

// parseConfidence accepts a number or a numeric string, defaults to 0.5 when
// omitted and clamps to [0,1].
func parseConfidence(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return defaultConfidence, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return 0, fmt.Errorf("confidence: unsupported value %s", raw)
		}
		f, err = strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, fmt.Errorf("confidence: %w", err)
		}
	}
	switch {
	case math.IsNaN(f):
		return 0, errors.New("confidence: NaN")
	case f < 0:
		f = 0
	case f > 1:
		f = 1
	}
	return f, nil
}

// parseKeyFactors accepts a list of strings, a list of objects naming the
// factor, or a single string. Anything unreadable yields an empty list.
func parseKeyFactors(raw json.RawMessage) []string {
	out := []string{}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		var s string
		if json.Unmarshal(raw, &s) == nil && strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
		return out
	}
	for _, item := range items {
		if f := factorText(item); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func factorText(item json.RawMessage) string {
	var s string
	if json.Unmarshal(item, &s) == nil {
		return s
	}
	var obj map[string]json.RawMessage
	if json.Unmarshal(item, &obj) == nil {
		for _, k := range []string{"name", "factor", "description"} {
			if json.Unmarshal(obj[k], &s) == nil && s != "" {
				return s
			}
		}
	}
	item = bytes.TrimSpace(item)
	if bytes.Equal(item, []byte("null")) {
		return ""
	}
	var buf bytes.Buffer
	if json.Compact(&buf, item) != nil {
		return ""
	}
	return buf.String()
}

// parseAgrees accepts a bool, a boolean string or a 0/1 number. Omitted or
// unreadable values fall back to def.
func parseAgrees(raw json.RawMessage, def bool) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return def
	}
	var b bool
	if json.Unmarshal(raw, &b) == nil {
		return b
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "yes", "1":
			return true
		case "false", "no", "0":
			return false
		}
		return def
	}
	var f float64
	if json.Unmarshal(raw, &f) == nil {
		return f != 0
	}
	return def
}

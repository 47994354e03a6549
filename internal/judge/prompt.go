package judge

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jmerrifield20/SecretTriage/internal/triage/model"
)

const (
	previewLen      = 50
	contextMax      = 500
	contextHeadTail = 250
)

// Request carries everything the judge is told about one finding.
type Request struct {
	Finding  model.Finding
	Features model.FeatureSet
	Outcome  model.HeuristicOutcome
}

// promptFeatures are the features quoted in the prompt, in order.
var promptFeatures = []string{"entropy", "length", "has_placeholder", "in_test_path", "has_dev_comment", "is_url"}

const answerFormat = `{
    "verdict": "tp" or "fp",
    "confidence": number from 0 to 1,
    "reasoning": "why this verdict was reached",
    "key_factors": ["factors", "that", "drove", "the", "decision"],
    "agrees_with_heuristics": true or false,
    "additional_evidence": "other observations",
    "recommendation_for_dev": "what the developer should do"
}`

const answerExample = `{"verdict":"fp","confidence":0.85,"reasoning":"Low entropy string inside a test fixture","key_factors":["low_entropy","test_file"],"agrees_with_heuristics":true,"additional_evidence":"","recommendation_for_dev":"Keep mock credentials in test fixtures only"}`

// BuildPrompt renders the judge prompt for req.
func BuildPrompt(req Request) string {
	f, h, fs := req.Finding, req.Outcome, req.Features

	var b strings.Builder
	b.WriteString("You are a code security analyst. Assess whether the candidate secret below is a real credential. ")
	b.WriteString("Reply with a single valid JSON object and nothing else, using exactly the format shown.\n\n")

	b.WriteString("HEURISTIC ASSESSMENT:\n")
	fmt.Fprintf(&b, "- Secret: %s\n", model.Preview(f.Secret, previewLen))
	fmt.Fprintf(&b, "- Length: %d\n", utf8.RuneCountInString(f.Secret))
	fmt.Fprintf(&b, "- Heuristic verdict: %s\n", h.Verdict)
	fmt.Fprintf(&b, "- Score: %g\n", h.Score)
	fmt.Fprintf(&b, "- Description: %s\n\n", h.Description)

	b.WriteString("FEATURES:\n")
	for _, name := range promptFeatures {
		fmt.Fprintf(&b, "- %s: %s\n", name, fs.Get(name))
	}

	if extra := contextBlock(f); extra != "" {
		b.WriteString("\nADDITIONAL CONTEXT:\n")
		b.WriteString(extra)
	}

	b.WriteString("\nGUIDANCE:\n")
	if e, ok := fs.Get("entropy").Numeric(); ok {
		level := "HIGH (likely a real secret)"
		if e < 3.0 {
			level = "LOW (likely a false positive)"
		}
		fmt.Fprintf(&b, "- Entropy %g is %s\n", e, level)
	}
	b.WriteString("- With entropy below 3.0 and no other sign of a real secret, lean towards fp\n")
	b.WriteString("- If the context mentions test, mock or example, lean towards fp\n\n")

	b.WriteString("ANSWER FORMAT (JSON):\n")
	b.WriteString(answerFormat)
	b.WriteString("\n\nExample of a well-formed answer (do not copy it):\n")
	b.WriteString(answerExample)
	return b.String()
}

func contextBlock(f model.Finding) string {
	var b strings.Builder
	if f.FilePath != "" {
		fmt.Fprintf(&b, "- File: %s\n", f.FilePath)
	}
	if f.LineNumber > 0 {
		fmt.Fprintf(&b, "- Line: %d\n", f.LineNumber)
	}
	if f.Context != "" {
		fmt.Fprintf(&b, "- Code context: %s\n", TruncateContext(f.Context))
	}
	if f.RuleID != "" {
		fmt.Fprintf(&b, "- Rule: %s\n", f.RuleID)
	}
	return b.String()
}

// TruncateContext keeps the first and last 250 characters of a context
// longer than 500.
func TruncateContext(s string) string {
	r := []rune(s)
	if len(r) <= contextMax {
		return s
	}
	return string(r[:contextHeadTail]) + "..." + string(r[len(r)-contextHeadTail:])
}


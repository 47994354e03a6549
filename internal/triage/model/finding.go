package model

// Finding is one candidate secret occurrence reported by an upstream scanner.
// It is read-only for the classifier.
type Finding struct {
	ReportID   string         `json:"report_id"`
	RuleID     string         `json:"rule_id"`
	Secret     string         `json:"secret"`
	FilePath   string         `json:"filepath"`
	LineNumber int            `json:"line_number"`
	Context    string         `json:"context"`
	Raw        map[string]any `json:"raw,omitempty"`
}

// Target names one of the Finding text fields a feature can read.
type Target string

const (
	TargetSecret   Target = "secret"
	TargetFilePath Target = "filepath"
	TargetContext  Target = "context"
	TargetRuleID   Target = "rule_id"
)

// Valid reports whether t names a known Finding field.
func (t Target) Valid() bool {
	switch t {
	case TargetSecret, TargetFilePath, TargetContext, TargetRuleID:
		return true
	}
	return false
}

// Field returns the text of the named field.
func (f Finding) Field(t Target) (string, bool) {
	switch t {
	case TargetSecret:
		return f.Secret, true
	case TargetFilePath:
		return f.FilePath, true
	case TargetContext:
		return f.Context, true
	case TargetRuleID:
		return f.RuleID, true
	}
	return "", false
}

// Preview truncates a secret for log lines and prompts.
func Preview(secret string, n int) string {
	r := []rune(secret)
	if len(r) <= n {
		return secret
	}
	return string(r[:n]) + "..."
}

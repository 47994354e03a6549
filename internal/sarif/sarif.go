// Package sarif converts SARIF 2.1.0 scanner reports into findings.
package sarif

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jmerrifield20/SecretTriage/internal/triage/model"
)

// Log is the subset of a SARIF log the classifier reads.
type Log struct {
	Version string `json:"version"`
	Runs    []Run  `json:"runs"`
}

type Run struct {
	Tool              Tool               `json:"tool"`
	AutomationDetails *AutomationDetails `json:"automationDetails,omitempty"`
	Results           []Result           `json:"results"`
}

type Tool struct {
	Driver Driver `json:"driver"`
}

type Driver struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

type AutomationDetails struct {
	ID string `json:"id"`
}

type Result struct {
	RuleID     string         `json:"ruleId"`
	Level      string         `json:"level,omitempty"`
	Message    Message        `json:"message"`
	Locations  []Location     `json:"locations"`
	Properties map[string]any `json:"properties,omitempty"`
}

type Message struct {
	Text string `json:"text"`
}

type Location struct {
	PhysicalLocation PhysicalLocation `json:"physicalLocation"`
}

type PhysicalLocation struct {
	ArtifactLocation ArtifactLocation `json:"artifactLocation"`
	Region           Region           `json:"region"`
	ContextRegion    *Region          `json:"contextRegion,omitempty"`
}

type ArtifactLocation struct {
	URI string `json:"uri"`
}

type Region struct {
	StartLine int      `json:"startLine"`
	Snippet   *Snippet `json:"snippet,omitempty"`
}

type Snippet struct {
	Text string `json:"text"`
}

// Decode reads a SARIF log from r.
func Decode(r io.Reader) (*Log, error) {
	var log Log
	if err := json.NewDecoder(r).Decode(&log); err != nil {
		return nil, fmt.Errorf("decode sarif: %w", err)
	}
	if log.Version != "" && log.Version != "2.1.0" {
		return nil, fmt.Errorf("unsupported sarif version %q", log.Version)
	}
	return &log, nil
}

// Findings flattens every result with a secret into a Finding. The secret is
// properties.secret when the scanner provides it, otherwise the region
// snippet. Results with neither are skipped. reportID is used for runs that
// carry no automationDetails.id.
func (l *Log) Findings(reportID string) []model.Finding {
	var out []model.Finding
	for _, run := range l.Runs {
		id := reportID
		if run.AutomationDetails != nil && run.AutomationDetails.ID != "" {
			id = run.AutomationDetails.ID
		}
		for _, res := range run.Results {
			if f, ok := toFinding(id, res); ok {
				out = append(out, f)
			}
		}
	}
	return out
}

func toFinding(reportID string, res Result) (model.Finding, bool) {
	f := model.Finding{ReportID: reportID, RuleID: res.RuleID, Raw: res.Properties}

	var snippet string
	if len(res.Locations) > 0 {
		pl := res.Locations[0].PhysicalLocation
		f.FilePath = pl.ArtifactLocation.URI
		f.LineNumber = pl.Region.StartLine
		if pl.Region.Snippet != nil {
			snippet = pl.Region.Snippet.Text
		}
		f.Context = snippet
		if pl.ContextRegion != nil && pl.ContextRegion.Snippet != nil {
			f.Context = pl.ContextRegion.Snippet.Text
		}
	}

	if s, ok := res.Properties["secret"].(string); ok && s != "" {
		f.Secret = s
	} else {
		f.Secret = snippet
	}
	if f.Secret == "" {
		return model.Finding{}, false
	}
	return f, true
}

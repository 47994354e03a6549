package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxResponseBytes bounds a response body; a full batch of results fits well inside.
const maxResponseBytes = 16 << 20

// Finding is one candidate secret reported by a scanner.
type Finding struct {
	ReportID   string         `json:"report_id,omitempty"`
	RuleID     string         `json:"rule_id"`
	Secret     string         `json:"secret"`
	FilePath   string         `json:"filepath"`
	LineNumber int            `json:"line_number,omitempty"`
	Context    string         `json:"context,omitempty"`
	Raw        map[string]any `json:"raw,omitempty"`
}

// Result is the classification of one finding.
type Result struct {
	ID                string         `json:"id"`
	Secret            string         `json:"secret"`
	Entropy           float64        `json:"entropy"`
	Features          map[string]any `json:"features"`
	Score             float64        `json:"score"`
	HeuristicVerdict  string         `json:"heuristic_verdict"`
	Verdict           string         `json:"verdict"`
	Confidence        float64        `json:"confidence"`
	Method            string         `json:"method"`
	MatchedHeuristics []string       `json:"matched_heuristics"`
	Description       string         `json:"description"`
	JudgeUsed         bool           `json:"judge_used"`
	JudgeReason       string         `json:"judge_reason,omitempty"`
	Agreement         *bool          `json:"agreement,omitempty"`
}

// Feature is an active feature definition as reported by the admin API.
type Feature struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Kind        string          `json:"kind"`
	Config      json.RawMessage `json:"config"`
	Error       string          `json:"error,omitempty"`
}

// Heuristic is an active heuristic rule as reported by the admin API.
type Heuristic struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Condition   struct {
		Feature  string `json:"feature"`
		Operator string `json:"operator"`
		Value    any    `json:"value"`
	} `json:"condition"`
	Weight float64 `json:"weight"`
}

// ExpressionCheck is the result of CheckExpression.
type ExpressionCheck struct {
	Valid     bool   `json:"valid"`
	Error     string `json:"error,omitempty"`
	Target    string `json:"target,omitempty"`
	Result    any    `json:"result,omitempty"`
	EvalError string `json:"eval_error,omitempty"`
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client talks to a triage server.
type Client struct {
	base        string
	httpClient  *http.Client
	bearerToken string
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client, overriding any TLS options.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = hc
		return nil
	}
}

// WithBearerToken attaches an admin token to every request.
func WithBearerToken(token string) Option {
	return func(c *Client) error {
		c.bearerToken = token
		return nil
	}
}

// WithTimeout sets the per-request timeout. Large batches wait on the
// external judge, so the default is generous.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		c.httpClient.Timeout = d
		return nil
	}
}

// WithInsecureSkipVerify disables TLS certificate verification.
// Only use this in development against a self-signed server.
func WithInsecureSkipVerify() Option {
	return func(c *Client) error {
		c.httpClient = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
			},
			Timeout: c.httpClient.Timeout,
		}
		return nil
	}
}

// New creates a Client for the server at base.
func New(base string, opts ...Option) (*Client, error) {
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q", base)
	}
	c := &Client{
		base:       strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: 3 * time.Minute},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Classify submits a batch of findings and returns one result per finding,
// in input order.
func (c *Client) Classify(ctx context.Context, findings []Finding) ([]Result, error) {
	var out []Result
	err := c.call(ctx, http.MethodPost, "/api/v1/classify", map[string]any{"findings": findings}, &out)
	return out, err
}

// GetClassification fetches a stored classification record as raw JSON.
func (c *Client) GetClassification(ctx context.Context, id string) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.call(ctx, http.MethodGet, "/api/v1/classifications/"+url.PathEscape(id), nil, &out)
	return out, err
}

// ListFeatures returns the active feature definitions.
func (c *Client) ListFeatures(ctx context.Context) ([]Feature, error) {
	var out struct {
		Features []Feature `json:"features"`
	}
	err := c.call(ctx, http.MethodGet, "/api/v1/admin/features", nil, &out)
	return out.Features, err
}

// ListHeuristics returns the active heuristic rules and the fp threshold.
func (c *Client) ListHeuristics(ctx context.Context) ([]Heuristic, float64, error) {
	var out struct {
		Heuristics  []Heuristic `json:"heuristics"`
		FPThreshold float64     `json:"fp_threshold"`
	}
	err := c.call(ctx, http.MethodGet, "/api/v1/admin/heuristics", nil, &out)
	return out.Heuristics, out.FPThreshold, err
}

// CheckExpression compiles src against target on the server and, when sample
// is non-nil, evaluates it.
func (c *Client) CheckExpression(ctx context.Context, src, target string, sample *string) (*ExpressionCheck, error) {
	body := map[string]any{"expr": src, "target": target}
	if sample != nil {
		body["sample"] = *sample
	}
	var out ExpressionCheck
	if err := c.call(ctx, http.MethodPost, "/api/v1/admin/expressions/check", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Healthz reports whether the server answers its health endpoint.
func (c *Client) Healthz(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "/healthz", nil, nil)
}

func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	raw, err := c.do(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// do executes an HTTP request, attaching the Bearer token if present.
func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}
	return body, nil
}

// errorMessage extracts {"error": "..."} or falls back to the raw body.
func errorMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(body))
}

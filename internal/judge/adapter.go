// Package judge asks an external text-generation endpoint for a second
// opinion on a finding. Every failure is folded into a fallback verdict so
// callers never see an error from it.
package judge

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/jmerrifield20/SecretTriage/internal/triage/model"
)

const maxReplyBytes = 1 << 20

// Call outcomes reported to the metrics callback.
const (
	OutcomeOK        = "ok"
	OutcomeCached    = "cached"
	OutcomeTransport = "transport_error"
	OutcomeStatus    = "bad_status"
	OutcomeParse     = "parse_error"
	OutcomeTimeout   = "timeout"
)

// Adapter calls the judge endpoint. It is safe for concurrent use.
type Adapter struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	cache   *verdictCache
	logger  *zap.Logger

	onCall func(outcome string)
}

// New builds an Adapter for cfg. Fields left zero take DefaultConfig values.
func New(cfg Config, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	if cfg.URL == "" {
		return nil, errors.New("judge: url is required")
	}
	if _, err := url.ParseRequestURI(cfg.URL); err != nil {
		return nil, fmt.Errorf("judge: invalid url: %w", err)
	}
	if cfg.InsecureSkipVerify {
		logger.Warn("judge TLS certificate verification is disabled", zap.String("url", cfg.URL))
	}

	a := &Adapter{
		cfg:    cfg,
		http:   newHTTPClient(cfg),
		logger: logger,
	}
	if cfg.RatePerSecond > 0 {
		a.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst)
	}
	if cfg.CacheTTL > 0 {
		a.cache = newVerdictCache(cfg.CacheTTL)
	}
	return a, nil
}

func newHTTPClient(cfg Config) *http.Client {
	var rt http.RoundTripper = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec
		},
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     90 * time.Second,
	}
	if cfg.Token != "" {
		rt = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"}),
			Base:   rt,
		}
	}
	return &http.Client{Transport: rt, Timeout: cfg.Timeout}
}

// SetMetrics registers a callback invoked with the outcome of every Judge call.
func (a *Adapter) SetMetrics(fn func(outcome string)) {
	a.onCall = fn
}

func (a *Adapter) report(outcome string) {
	if a.onCall != nil {
		a.onCall(outcome)
	}
}

// Judge asks the endpoint about req. It never fails: transport errors, bad
// status codes, timeouts and unparseable replies all yield Fallback.
func (a *Adapter) Judge(ctx context.Context, req Request) model.ExternalVerdict {
	prompt := BuildPrompt(req)

	var key uint64
	if a.cache != nil {
		key = cacheKey(prompt)
		if v, ok := a.cache.get(key); ok {
			a.report(OutcomeCached)
			return v
		}
	}

	v, outcome, err := a.call(ctx, prompt, req.Outcome)
	a.report(outcome)
	if err != nil {
		a.logger.Warn("judge call failed, using heuristic verdict",
			zap.String("secret", model.Preview(req.Finding.Secret, 10)),
			zap.String("outcome", outcome),
			zap.Error(err),
		)
		return Fallback(err)
	}
	if a.cache != nil {
		a.cache.set(key, v)
	}
	a.logger.Info("judge verdict",
		zap.String("secret", model.Preview(req.Finding.Secret, 10)),
		zap.String("verdict", string(v.Verdict)),
		zap.Float64("confidence", v.Confidence),
	)
	return v
}

type generateRequest struct {
	Inputs     string         `json:"inputs"`
	Parameters generateParams `json:"parameters"`
}

type generateParams struct {
	MaxNewTokens   int     `json:"max_new_tokens"`
	Temperature    float64 `json:"temperature"`
	TopP           float64 `json:"top_p"`
	DoSample       bool    `json:"do_sample"`
	ReturnFullText bool    `json:"return_full_text"`
}

func (a *Adapter) call(ctx context.Context, prompt string, h model.HeuristicOutcome) (model.ExternalVerdict, string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return model.ExternalVerdict{}, OutcomeTimeout, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	body, err := json.Marshal(generateRequest{
		Inputs: prompt,
		Parameters: generateParams{
			MaxNewTokens: a.cfg.MaxNewTokens,
			Temperature:  a.cfg.Temperature,
			TopP:         a.cfg.TopP,
			DoSample:     a.cfg.DoSample,
		},
	})
	if err != nil {
		return model.ExternalVerdict{}, OutcomeTransport, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return model.ExternalVerdict{}, OutcomeTransport, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := a.http.Do(httpReq)
	if err != nil {
		var netErr net.Error
		if ctx.Err() != nil || (errors.As(err, &netErr) && netErr.Timeout()) {
			return model.ExternalVerdict{}, OutcomeTimeout, fmt.Errorf("judge request: %w", err)
		}
		return model.ExternalVerdict{}, OutcomeTransport, fmt.Errorf("judge request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return model.ExternalVerdict{}, OutcomeTransport, fmt.Errorf("read reply: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return model.ExternalVerdict{}, OutcomeStatus,
			fmt.Errorf("judge returned status %d: %s", resp.StatusCode, model.Preview(string(raw), 200))
	}

	v, err := parseReply(extractText(raw), h)
	if err != nil {
		return model.ExternalVerdict{}, OutcomeParse, err
	}
	return v, OutcomeOK, nil
}

// Ping checks that the judge endpoint answers at all. Any response below 500
// counts as reachable.
func (a *Adapter) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.HealthURL, nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("ping %s: %w", a.cfg.HealthURL, err)
	}
	defer resp.Body.Close() //nolint:errcheck
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 500 {
		return fmt.Errorf("ping %s: status %d", a.cfg.HealthURL, resp.StatusCode)
	}
	return nil
}

// EvictExpired drops expired cache entries. It is a no-op when caching is off.
func (a *Adapter) EvictExpired() int {
	if a.cache == nil {
		return 0
	}
	return a.cache.evict()
}

// Fallback is the verdict used whenever the judge cannot give a genuine
// answer. It agrees with the heuristic so the arbiter keeps the heuristic
// verdict.
func Fallback(err error) model.ExternalVerdict {
	msg := "judge unavailable"
	if err != nil {
		msg = fmt.Sprintf("judge unavailable: %v", err)
	}
	return model.ExternalVerdict{
		Verdict:             model.VerdictUncertain,
		Confidence:          0,
		Explanation:         msg + ". Heuristic verdict used.",
		KeyFactors:          []string{"error_fallback"},
		AgreesWithHeuristic: true,
		Recommendation:      "Review manually",
		IsFallback:          true,
	}
}

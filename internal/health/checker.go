// Package health tracks whether the external dependencies of the classifier
// are reachable. A target that fails FailThreshold probes in a row is marked
// degraded until a probe succeeds again.
package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config holds health check configuration.
type Config struct {
	CheckInterval time.Duration
	ProbeTimeout  time.Duration
	FailThreshold int
}

// Pinger is anything that can be probed for reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Target is a named dependency to probe.
type Target struct {
	Name   string
	Pinger Pinger
}

// EventDispatchFunc is an optional callback for degraded/recovered events.
type EventDispatchFunc func(ctx context.Context, eventType string, payload map[string]string)

// MetricsRecordFunc is an optional callback for recording probe results.
type MetricsRecordFunc func(target string, success bool)

// StatusChangeFunc is called whenever a target flips between healthy and degraded.
type StatusChangeFunc func(target string, healthy bool)

// Checker runs periodic probes against its targets.
type Checker struct {
	targets    []Target
	failCounts map[string]int
	degraded   map[string]bool
	mu         sync.RWMutex
	cfg        Config
	onEvent    EventDispatchFunc
	onMetrics  MetricsRecordFunc
	onChange   StatusChangeFunc
	logger     *zap.Logger
}

// New creates a Checker. Every target starts healthy.
func New(targets []Target, cfg Config, logger *zap.Logger) *Checker {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = time.Minute
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Checker{
		targets:    targets,
		failCounts: make(map[string]int),
		degraded:   make(map[string]bool),
		cfg:        cfg,
		logger:     logger,
	}
}

// SetEventDispatch configures the event dispatch callback.
func (h *Checker) SetEventDispatch(fn EventDispatchFunc) {
	h.onEvent = fn
}

// SetMetricsRecord configures the metrics recording callback.
func (h *Checker) SetMetricsRecord(fn MetricsRecordFunc) {
	h.onMetrics = fn
}

// SetStatusChange configures the status transition callback.
func (h *Checker) SetStatusChange(fn StatusChangeFunc) {
	h.onChange = fn
}

// Healthy reports whether target is currently usable. Unknown targets are healthy.
func (h *Checker) Healthy(target string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return !h.degraded[target]
}

// Start probes immediately and then on every interval until done is closed.
func (h *Checker) Start(done <-chan struct{}) {
	ticker := time.NewTicker(h.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.ProbeTimeout)
		h.CheckAll(ctx)
		cancel()

		select {
		case <-ticker.C:
		case <-done:
			return
		}
	}
}

// CheckAll probes all targets with bounded concurrency.
func (h *Checker) CheckAll(ctx context.Context) {
	sem := make(chan struct{}, 10)
	var wg sync.WaitGroup

	for _, t := range h.targets {
		wg.Add(1)
		go func(target Target) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			err := target.Pinger.Ping(ctx)
			success := err == nil

			if h.onMetrics != nil {
				h.onMetrics(target.Name, success)
			}

			h.mu.Lock()
			if success {
				h.failCounts[target.Name] = 0
			} else {
				h.failCounts[target.Name]++
			}
			count := h.failCounts[target.Name]
			wasDegraded := h.degraded[target.Name]
			nowDegraded := wasDegraded
			if success {
				nowDegraded = false
			} else if count >= h.cfg.FailThreshold {
				nowDegraded = true
			}
			h.degraded[target.Name] = nowDegraded
			h.mu.Unlock()

			switch {
			case wasDegraded && !nowDegraded:
				h.logger.Info("health: recovered", zap.String("target", target.Name))
				h.transition(ctx, target.Name, true, "dependency.recovered")
			case !wasDegraded && nowDegraded:
				h.logger.Warn("health: degraded",
					zap.String("target", target.Name),
					zap.Int("fail_count", count),
					zap.Error(err),
				)
				h.transition(ctx, target.Name, false, "dependency.degraded")
			case !success:
				h.logger.Debug("health: probe failed", zap.String("target", target.Name), zap.Error(err))
			}
		}(t)
	}

	wg.Wait()
}

func (h *Checker) transition(ctx context.Context, target string, healthy bool, event string) {
	if h.onChange != nil {
		h.onChange(target, healthy)
	}
	if h.onEvent != nil {
		h.onEvent(ctx, event, map[string]string{"target": target})
	}
}

package health

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// ── Stubs ────────────────────────────────────────────────────────────────

type stubPinger struct {
	mu  sync.Mutex
	err error
}

func (s *stubPinger) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *stubPinger) set(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

type recorder struct {
	mu      sync.Mutex
	changes []bool
	events  []string
	metrics []bool
}

func (r *recorder) attach(h *Checker) {
	h.SetStatusChange(func(_ string, healthy bool) {
		r.mu.Lock()
		r.changes = append(r.changes, healthy)
		r.mu.Unlock()
	})
	h.SetEventDispatch(func(_ context.Context, event string, _ map[string]string) {
		r.mu.Lock()
		r.events = append(r.events, event)
		r.mu.Unlock()
	})
	h.SetMetricsRecord(func(_ string, success bool) {
		r.mu.Lock()
		r.metrics = append(r.metrics, success)
		r.mu.Unlock()
	})
}

// ── Tests ────────────────────────────────────────────────────────────────

func TestCheckAll_degradesAfterThreshold(t *testing.T) {
	p := &stubPinger{err: errors.New("connection refused")}
	h := New([]Target{{Name: "judge", Pinger: p}}, Config{FailThreshold: 3}, zap.NewNop())
	rec := &recorder{}
	rec.attach(h)

	for i := 0; i < 2; i++ {
		h.CheckAll(context.Background())
		if !h.Healthy("judge") {
			t.Fatalf("degraded after %d failures, want threshold 3", i+1)
		}
	}
	h.CheckAll(context.Background())
	if h.Healthy("judge") {
		t.Fatal("expected judge to be degraded after 3 failures")
	}
	h.CheckAll(context.Background())

	if len(rec.changes) != 1 || rec.changes[0] {
		t.Errorf("changes = %v, want a single degraded transition", rec.changes)
	}
	if len(rec.events) != 1 || rec.events[0] != "dependency.degraded" {
		t.Errorf("events = %v", rec.events)
	}
	if len(rec.metrics) != 4 {
		t.Errorf("metrics calls = %d, want 4", len(rec.metrics))
	}
}

func TestCheckAll_recoversOnSuccess(t *testing.T) {
	p := &stubPinger{err: errors.New("timeout")}
	h := New([]Target{{Name: "judge", Pinger: p}}, Config{FailThreshold: 1}, zap.NewNop())
	rec := &recorder{}
	rec.attach(h)

	h.CheckAll(context.Background())
	if h.Healthy("judge") {
		t.Fatal("expected degraded")
	}

	p.set(nil)
	h.CheckAll(context.Background())
	if !h.Healthy("judge") {
		t.Fatal("expected recovered")
	}
	if len(rec.events) != 2 || rec.events[1] != "dependency.recovered" {
		t.Errorf("events = %v", rec.events)
	}
}

func TestHealthy_unknownTarget(t *testing.T) {
	h := New(nil, Config{}, nil)
	if !h.Healthy("nothing") {
		t.Error("unknown targets should report healthy")
	}
}

func TestStart_stopsOnDone(t *testing.T) {
	p := &stubPinger{}
	h := New([]Target{{Name: "judge", Pinger: p}}, Config{CheckInterval: time.Hour}, zap.NewNop())
	rec := &recorder{}
	rec.attach(h)

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		h.Start(done)
		close(stopped)
	}()
	close(done)

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after done was closed")
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.metrics) != 1 {
		t.Errorf("expected one immediate probe, got %d", len(rec.metrics))
	}
}

package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestDispatch_signsAndFilters(t *testing.T) {
	var (
		mu       sync.Mutex
		received []Event
		sigOK    = true
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var ev Event
		_ = json.Unmarshal(body, &ev)
		mu.Lock()
		received = append(received, ev)
		if !Verify(body, "shh", r.Header.Get(SignatureHeader)) {
			sigOK = false
		}
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDispatcher([]Subscription{
		{URL: srv.URL, Secret: "shh", Events: []string{EventTruePositive}},
	}, zap.NewNop())

	d.Dispatch(context.Background(), EventNeedsReview, map[string]string{"id": "1"})
	d.Dispatch(context.Background(), EventTruePositive, map[string]string{"id": "2"})
	d.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("received %d events, want 1", len(received))
	}
	if received[0].Type != EventTruePositive || received[0].Payload["id"] != "2" {
		t.Errorf("unexpected event %+v", received[0])
	}
	if !sigOK {
		t.Error("signature did not verify")
	}
}

func TestDispatch_retriesUntilSuccess(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher([]Subscription{{URL: srv.URL}}, zap.NewNop())
	d.delays = []time.Duration{0, time.Millisecond, time.Millisecond}

	var outcomes []bool
	var mu sync.Mutex
	d.SetMetricsRecorder(func(ok bool) {
		mu.Lock()
		outcomes = append(outcomes, ok)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	d.Dispatch(ctx, EventNeedsReview, nil)
	cancel()
	d.Wait()

	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
	if len(outcomes) != 3 || !outcomes[2] {
		t.Errorf("outcomes = %v", outcomes)
	}
}

func TestDispatch_nilAndEmpty(t *testing.T) {
	var d *Dispatcher
	d.Dispatch(context.Background(), EventNeedsReview, nil)
	d.Wait()

	NewDispatcher(nil, nil).Dispatch(context.Background(), EventNeedsReview, nil)
}

func TestVerify(t *testing.T) {
	body := []byte(`{"a":1}`)
	sig := signPayload(body, "k")
	if !Verify(body, "k", sig) {
		t.Error("expected valid signature")
	}
	if Verify(body, "other", sig) {
		t.Error("expected invalid signature")
	}
}

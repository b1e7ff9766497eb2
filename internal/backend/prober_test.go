package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Lingualink-VRChat/Lingualink-Server/internal/config"
)

func TestProbeNowMarksUnreachableBackendUnhealthy(t *testing.T) {
	r := NewRegistry([]config.BackendConfig{
		{Name: "dead", URL: "http://127.0.0.1:1", Weight: 1},
	})
	p := NewProber(r, time.Hour, 1)

	p.ProbeNow(context.Background())

	status, ok := r.Status("dead")
	if !ok || status != StatusUnhealthy {
		t.Fatalf("status = %v, want unhealthy", status)
	}
}

func TestProbeNowMarksReachableBackendHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewRegistry([]config.BackendConfig{{Name: "up", URL: srv.URL, Weight: 1}})
	p := NewProber(r, time.Hour, 1)

	p.ProbeNow(context.Background())

	status, ok := r.Status("up")
	if !ok || status != StatusHealthy {
		t.Fatalf("status = %v, want healthy", status)
	}
}

func TestProbeNowRecordsProbeLatency(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewRegistry([]config.BackendConfig{{Name: "up", URL: srv.URL, Weight: 1}})
	p := NewProber(r, time.Hour, 1)

	p.ProbeNow(context.Background())

	avg, ok := r.AverageResponseTime("up")
	if !ok {
		t.Fatal("expected AverageResponseTime to find backend up")
	}
	if avg <= 0 {
		t.Fatalf("expected a successful probe to record a positive latency, got %s", avg)
	}
}

func TestProbeLeavesDisabledBackendsDisabled(t *testing.T) {
	r := NewRegistry([]config.BackendConfig{{Name: "off", URL: "http://127.0.0.1:1", Weight: 1}})
	r.Disable("off")
	p := NewProber(r, time.Hour, 1)

	p.ProbeNow(context.Background())

	status, _ := r.Status("off")
	if status != StatusDisabled {
		t.Fatalf("status = %v, want still disabled", status)
	}
}

func TestStartStopIsIdempotentAndStoppable(t *testing.T) {
	r := newTestRegistry()
	p := NewProber(r, time.Millisecond, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p.Start(ctx)
	p.Start(ctx) // no-op, must not deadlock or spawn a second loop
	if !p.Running() {
		t.Fatal("expected prober to be running")
	}

	time.Sleep(20 * time.Millisecond)
	p.Stop()
	if p.Running() {
		t.Fatal("expected prober to be stopped")
	}
	p.Stop() // no-op, must not panic on double close
}

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func healthyPing(context.Context) error { return nil }

func TestHandler_Healthy(t *testing.T) {
	handler := NewHandler("fms", "v1.0.0")
	handler.Register("postgres", NewPingChecker("postgres", time.Second, healthyPing))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var report Report
	if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
		t.Fatalf("failed to decode report: %v", err)
	}

	if report.Status != StatusHealthy {
		t.Errorf("expected healthy, got %s", report.Status)
	}
	if report.Service != "fms" {
		t.Errorf("expected service fms, got %s", report.Service)
	}
	if report.Build != "v1.0.0" {
		t.Errorf("expected build v1.0.0, got %s", report.Build)
	}
	if len(report.Components) != 1 {
		t.Errorf("expected 1 component, got %d", len(report.Components))
	}
}

func TestHandler_UnhealthyDependency(t *testing.T) {
	handler := NewHandler("fms", "v1.0.0")
	handler.Register("postgres", NewPingChecker("postgres", time.Second, healthyPing))
	handler.Register("kafka", NewPingChecker("kafka", time.Second, func(context.Context) error {
		return errors.New("broker unavailable")
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}

	var report Report
	if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
		t.Fatalf("failed to decode report: %v", err)
	}

	if report.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy, got %s", report.Status)
	}
	if report.Components["kafka"].Error != "broker unavailable" {
		t.Errorf("expected error from kafka check, got %q", report.Components["kafka"].Error)
	}
}

func TestLivenessHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	w := httptest.NewRecorder()

	LivenessHandler(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if w.Body.String() != "ok" {
		t.Errorf("expected body 'ok', got %s", w.Body.String())
	}
}

func TestReadinessHandler(t *testing.T) {
	handler := NewHandler("fms", "v1.0.0")
	handler.Register("postgres", NewPingChecker("postgres", time.Second, healthyPing))

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()
	handler.ReadinessHandler(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if w.Body.String() != "ready" {
		t.Errorf("expected body 'ready', got %s", w.Body.String())
	}
}

func TestReadinessHandler_NotReady(t *testing.T) {
	handler := NewHandler("fms", "v1.0.0")
	handler.Register("postgres", NewPingChecker("postgres", time.Second, func(context.Context) error {
		return errors.New("connection refused")
	}))

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()
	handler.ReadinessHandler(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}
	if w.Body.String() != "not ready" {
		t.Errorf("expected body 'not ready', got %s", w.Body.String())
	}
}

func TestPingChecker_AppliesTimeout(t *testing.T) {
	checker := NewPingChecker("slow", 20*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	check := checker.Check(context.Background())

	if check.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy on timeout, got %s", check.Status)
	}
	if check.Error == "" {
		t.Error("expected timeout error message")
	}
}

func TestPingChecker_ReportsLatency(t *testing.T) {
	checker := NewPingChecker("postgres", time.Second, func(context.Context) error {
		time.Sleep(10 * time.Millisecond)
		return nil
	})

	check := checker.Check(context.Background())

	if check.Status != StatusHealthy {
		t.Errorf("expected healthy, got %s", check.Status)
	}
	if check.Component != "postgres" {
		t.Errorf("expected component postgres, got %s", check.Component)
	}
	if check.LatencyMs < 10 {
		t.Errorf("expected latency >= 10ms, got %d", check.LatencyMs)
	}
}

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthzAlwaysOK(t *testing.T) {
	t.Parallel()

	h := NewHandler()
	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()

	h.Healthz(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Healthz status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["uptime"] == "" {
		t.Error("uptime missing from healthz response")
	}
}

func TestReadyzAllProbesPass(t *testing.T) {
	t.Parallel()

	h := NewHandler()
	h.AddProbe("discord", func(context.Context) error { return nil })
	h.AddProbe("providers", func(context.Context) error { return nil })

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Readyz status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body status
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
	if body.Probes["discord"] != "ok" || body.Probes["providers"] != "ok" {
		t.Errorf("probes = %v, want all ok", body.Probes)
	}
}

func TestReadyzFailingProbe(t *testing.T) {
	t.Parallel()

	h := NewHandler()
	h.AddProbe("discord", func(context.Context) error { return nil })
	h.AddProbe("providers", func(context.Context) error {
		return errors.New("llm provider not configured")
	})

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("Readyz status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}

	var body status
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body.Status != "fail" {
		t.Errorf("status = %q, want fail", body.Status)
	}
	if body.Probes["discord"] != "ok" {
		t.Errorf("discord probe = %q, want ok", body.Probes["discord"])
	}
	if body.Probes["providers"] != "fail: llm provider not configured" {
		t.Errorf("providers probe = %q", body.Probes["providers"])
	}
}

func TestRegisterRoutes(t *testing.T) {
	t.Parallel()

	h := NewHandler()
	mux := http.NewServeMux()
	h.Register(mux)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want %d", path, rec.Code, http.StatusOK)
		}
	}
}

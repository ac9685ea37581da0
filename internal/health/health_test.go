package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHealthHandler(t *testing.T) {
	handler := NewHandler("v1.0.0")

	// Добавляем здоровую проверку
	handler.RegisterChecker("test-healthy", NewSimpleChecker("test", func() error {
		return nil
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var response Response
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.Status != StatusHealthy {
		t.Errorf("expected status healthy, got %s", response.Status)
	}

	if response.Version != "v1.0.0" {
		t.Errorf("expected version v1.0.0, got %s", response.Version)
	}

	if len(response.Checks) != 1 {
		t.Errorf("expected 1 check, got %d", len(response.Checks))
	}
}

func TestHealthHandler_Unhealthy(t *testing.T) {
	handler := NewHandler("v1.0.0")

	// Добавляем нездоровую проверку
	handler.RegisterChecker("test-unhealthy", NewSimpleChecker("test", func() error {
		return errors.New("service unavailable")
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}

	var response Response
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.Status != StatusUnhealthy {
		t.Errorf("expected status unhealthy, got %s", response.Status)
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
	handler := NewHandler("v1.0.0")

	// Добавляем здоровую проверку
	handler.RegisterChecker("test", NewSimpleChecker("test", func() error {
		return nil
	}))

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
	handler := NewHandler("v1.0.0")

	// Добавляем нездоровую проверку
	handler.RegisterChecker("test", NewSimpleChecker("test", func() error {
		return errors.New("not ready")
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

func TestSimpleChecker(t *testing.T) {
	checker := NewSimpleChecker("test", func() error {
		time.Sleep(10 * time.Millisecond)
		return nil
	})

	check := checker.Check()

	if check.Status != StatusHealthy {
		t.Errorf("expected status healthy, got %s", check.Status)
	}

	if check.DurationMs < 10 {
		t.Errorf("expected duration >= 10ms, got %dms", check.DurationMs)
	}
}

func TestSimpleChecker_Error(t *testing.T) {
	checker := NewSimpleChecker("test", func() error {
		return errors.New("test error")
	})

	check := checker.Check()

	if check.Status != StatusUnhealthy {
		t.Errorf("expected status unhealthy, got %s", check.Status)
	}

	if check.Message != "test error" {
		t.Errorf("expected message 'test error', got %s", check.Message)
	}
}

func TestBacklogChecker(t *testing.T) {
	t.Run("empty backlog is healthy", func(t *testing.T) {
		checker := NewBacklogChecker("outbox", time.Minute, 100, func() (int, time.Time, error) {
			return 0, time.Time{}, nil
		})
		if got := checker.Check(); got.Status != StatusHealthy {
			t.Errorf("expected healthy, got %s", got.Status)
		}
	})

	t.Run("fresh backlog is healthy", func(t *testing.T) {
		checker := NewBacklogChecker("outbox", time.Minute, 100, func() (int, time.Time, error) {
			return 3, time.Now().Add(-time.Second), nil
		})
		if got := checker.Check(); got.Status != StatusHealthy {
			t.Errorf("expected healthy, got %s", got.Status)
		}
	})

	t.Run("stale backlog is degraded", func(t *testing.T) {
		checker := NewBacklogChecker("outbox", time.Minute, 100, func() (int, time.Time, error) {
			return 10, time.Now().Add(-5*time.Minute), nil
		})
		got := checker.Check()
		if got.Status != StatusDegraded {
			t.Errorf("expected degraded, got %s", got.Status)
		}
		if got.Message == "" {
			t.Error("degraded check should carry a message")
		}
	})

	t.Run("overgrown backlog is degraded even when fresh", func(t *testing.T) {
		checker := NewBacklogChecker("outbox", time.Minute, 100, func() (int, time.Time, error) {
			return 101, time.Now().Add(-time.Second), nil
		})
		got := checker.Check()
		if got.Status != StatusDegraded {
			t.Errorf("expected degraded, got %s", got.Status)
		}
		if got.Message == "" {
			t.Error("degraded check should carry a message")
		}
	})

	t.Run("zero threshold disables pending limit", func(t *testing.T) {
		checker := NewBacklogChecker("outbox", time.Minute, 0, func() (int, time.Time, error) {
			return 100000, time.Now().Add(-time.Second), nil
		})
		if got := checker.Check(); got.Status != StatusHealthy {
			t.Errorf("expected healthy, got %s", got.Status)
		}
	})

	t.Run("stats error is unhealthy", func(t *testing.T) {
		checker := NewBacklogChecker("outbox", time.Minute, 0, func() (int, time.Time, error) {
			return 0, time.Time{}, errors.New("stats unavailable")
		})
		if got := checker.Check(); got.Status != StatusUnhealthy {
			t.Errorf("expected unhealthy, got %s", got.Status)
		}
	})
}

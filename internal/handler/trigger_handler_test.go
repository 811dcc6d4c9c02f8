package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// mockScanner はScanRunnerのモック実装。
type mockScanner struct {
	called bool
	err    error
}

func (m *mockScanner) RunOnce(ctx context.Context) error {
	m.called = true
	return m.err
}

func TestTriggerScan_RunsScanWithValidToken(t *testing.T) {
	scanner := &mockScanner{}
	h := NewTriggerHandler(scanner, "secret-token", discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/internal/scan", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	w := httptest.NewRecorder()

	h.TriggerScan(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusAccepted)
	}
	if !scanner.called {
		t.Error("expected scanner to be invoked")
	}
}

func TestTriggerScan_RejectsMissingToken(t *testing.T) {
	scanner := &mockScanner{}
	h := NewTriggerHandler(scanner, "secret-token", discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/internal/scan", nil)
	w := httptest.NewRecorder()

	h.TriggerScan(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if scanner.called {
		t.Error("scanner should not run without authentication")
	}
}

func TestTriggerScan_RejectsWrongToken(t *testing.T) {
	scanner := &mockScanner{}
	h := NewTriggerHandler(scanner, "secret-token", discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/internal/scan", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")
	w := httptest.NewRecorder()

	h.TriggerScan(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if scanner.called {
		t.Error("scanner should not run with wrong token")
	}
}

func TestTriggerScan_RejectsNonBearerAuthorization(t *testing.T) {
	scanner := &mockScanner{}
	h := NewTriggerHandler(scanner, "secret-token", discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/internal/scan", nil)
	req.Header.Set("Authorization", "Basic secret-token")
	w := httptest.NewRecorder()

	h.TriggerScan(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestTriggerScan_Returns500OnScanFailure(t *testing.T) {
	scanner := &mockScanner{err: errors.New("db down")}
	h := NewTriggerHandler(scanner, "secret-token", discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/internal/scan", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	w := httptest.NewRecorder()

	h.TriggerScan(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/schoolhealth/nurse-console/internal/platform/auth"
)

func TestAudit_RecordsTransition(t *testing.T) {
	var entries []AuditEntry
	recorder := AuditRecorderFunc(func(entry AuditEntry) error {
		entries = append(entries, entry)
		return nil
	})

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/inventory/8f14e45f-ceea-4d4b-9a0c-3f1e2d6b7a11/approve", nil)
	req = req.WithContext(auth.WithIdentity(context.Background(), "nurse-1", []string{auth.RoleNurse}))
	c := e.NewContext(req, httptest.NewRecorder())
	c.Set("request_id", "req-123")

	if err := Audit(zerolog.Nop(), recorder)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	got := entries[0]
	if got.UserID != "nurse-1" || got.Kind != "inventory" || got.Action != "approve" ||
		got.RecordID != "8f14e45f-ceea-4d4b-9a0c-3f1e2d6b7a11" || got.RequestID != "req-123" || got.StatusCode != http.StatusOK {
		t.Errorf("unexpected entry: %+v", got)
	}
}

func TestAudit_SkipsReads(t *testing.T) {
	called := false
	recorder := AuditRecorderFunc(func(AuditEntry) error {
		called = true
		return nil
	})

	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/inventory", nil), httptest.NewRecorder())
	_ = Audit(zerolog.Nop(), recorder)(okHandler)(c)

	c = e.NewContext(httptest.NewRequest(http.MethodPost, "/auth/token", nil), httptest.NewRecorder())
	_ = Audit(zerolog.Nop(), recorder)(okHandler)(c)

	if called {
		t.Error("reads and non-API paths must not be audited")
	}
}

func TestParseAuditPath(t *testing.T) {
	tests := []struct {
		method string
		path   string
		kind   string
		action string
	}{
		{http.MethodPost, "/api/v1/medication-requests", "medication-requests", "create"},
		{http.MethodPut, "/api/v1/inventory/abc", "inventory", "update"},
		{http.MethodDelete, "/api/v1/medication-requests/abc", "medication-requests", "delete"},
		{http.MethodPost, "/api/v1/vaccination-sessions/abc/finalize", "vaccination-sessions", "finalize"},
	}
	for _, tt := range tests {
		got := parseAuditPath(tt.method, tt.path)
		if got.Kind != tt.kind || got.Action != tt.action {
			t.Errorf("parseAuditPath(%s %s) = %s/%s, want %s/%s", tt.method, tt.path, got.Kind, got.Action, tt.kind, tt.action)
		}
	}
}

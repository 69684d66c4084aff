package medrequest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/schoolhealth/nurse-console/internal/console"
	"github.com/schoolhealth/nurse-console/internal/platform/auth"
)

func newTestHandler() (*Handler, *echo.Echo) {
	return NewHandler(newTestService()), echo.New()
}

func newRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	return req.WithContext(auth.WithIdentity(context.Background(), "nurse-1", []string{auth.RoleNurse}))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestHandler_CreateRequest(t *testing.T) {
	h, e := newTestHandler()
	body := `{"studentId":"7f9c24e2-1c5a-4a43-9a3e-5f1d2f8b6c11","studentName":"Mai Tran",` +
		`"parentId":"0b8e3c55-7d4e-4b8f-a2a6-1d3c9e7f0a22","parentName":"Linh Tran",` +
		`"lines":[{"name":"Cetirizine","dosage":"10mg","quantitySent":5,"frequency":"daily"}]}`
	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodPost, "/", body), rec)

	if err := h.CreateRequest(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	data, _ := decode(t, rec)["data"].(map[string]interface{})
	if data["status"] != string(StatusPendingApproval) || data["code"] != "MR-00001" {
		t.Errorf("unexpected data: %v", data)
	}
}

func TestHandler_CreateRequest_Invalid(t *testing.T) {
	h, e := newTestHandler()
	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodPost, "/", `{"studentName":"nobody"}`), rec)

	if err := h.CreateRequest(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if decode(t, rec)["success"] != false {
		t.Error("expected failure envelope")
	}
}

func TestHandler_ListRequests(t *testing.T) {
	h, e := newTestHandler()
	createRequests(t, h.svc, 12, nil)

	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodGet, "/?pageIndex=2&pageSize=5", ""), rec)
	if err := h.ListRequests(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := decode(t, rec)
	data, _ := got["data"].([]interface{})
	if got["totalCount"] != float64(12) || got["totalPages"] != float64(3) || len(data) != 5 {
		t.Errorf("unexpected page: %v", got)
	}
}

func TestHandler_TransitionRequest(t *testing.T) {
	h, e := newTestHandler()
	r := createRequests(t, h.svc, 1, nil)[0]

	tests := []struct {
		name   string
		action string
		body   string
		want   int
	}{
		{"reject without reason", "reject", `{"reason":"  "}`, http.StatusBadRequest},
		{"unknown action", "activate", `{}`, http.StatusConflict},
		{"approve", "approve", `{"notes":"label matches"}`, http.StatusOK},
		{"approve twice", "approve", `{"notes":"again"}`, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := e.NewContext(newRequest(http.MethodPost, "/", tt.body), rec)
			c.SetParamNames("id", "action")
			c.SetParamValues(r.ID.String(), tt.action)

			if err := h.TransitionRequest(c); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}

	got, _ := h.svc.GetRequest(context.Background(), r.ID)
	if got.ApprovedBy != "nurse-1" {
		t.Errorf("expected approver from identity, got %q", got.ApprovedBy)
	}
}

func TestHandler_CancelRequest(t *testing.T) {
	h, e := newTestHandler()
	reqs := createRequests(t, h.svc, 2, nil)
	if _, err := h.svc.Transition(context.Background(), reqs[1].ID, console.ActionReject, console.TransitionPayload{Reason: "duplicate"}, "nurse-1"); err != nil {
		t.Fatalf("reject: %v", err)
	}

	tests := []struct {
		name string
		id   string
		want int
	}{
		{"pending", reqs[0].ID.String(), http.StatusOK},
		{"already cancelled", reqs[0].ID.String(), http.StatusNotFound},
		{"rejected", reqs[1].ID.String(), http.StatusConflict},
		{"bad id", "not-a-uuid", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := e.NewContext(newRequest(http.MethodDelete, "/", ""), rec)
			c.SetParamNames("id")
			c.SetParamValues(tt.id)

			if err := h.CancelRequest(c); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestHandler_UpdateRequest_NotEditable(t *testing.T) {
	h, e := newTestHandler()
	r := createRequests(t, h.svc, 1, nil)[0]
	if _, err := h.svc.Transition(context.Background(), r.ID, console.ActionApprove, console.TransitionPayload{Notes: "ok"}, "nurse-1"); err != nil {
		t.Fatalf("approve: %v", err)
	}

	body, _ := json.Marshal(r)
	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodPut, "/", string(body)), rec)
	c.SetParamNames("id")
	c.SetParamValues(r.ID.String())

	if err := h.UpdateRequest(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
}

type unreachableRepo struct {
	RequestRepository
}

func (unreachableRepo) GetByID(context.Context, uuid.UUID) (*Request, error) {
	return nil, errors.New("dial tcp 10.0.0.5:5432: connection refused")
}

func TestHandler_GetRequest_StoreFailure(t *testing.T) {
	h := NewHandler(NewService(unreachableRepo{NewMemoryRepo()}))
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodGet, "/api/v1/medication-requests/:id", ""), rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	if err := h.GetRequest(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "connection refused") {
		t.Errorf("store error leaked into response: %s", rec.Body.String())
	}
}

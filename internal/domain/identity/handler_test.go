package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/barangay/bhc/internal/platform/auth"
	"github.com/barangay/bhc/internal/platform/validation"
)

func newTestHandler() (*Handler, *echo.Echo) {
	svc, _, _ := newTestService()
	e := echo.New()
	e.Validator = validation.New()
	return NewHandler(svc), e
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func httpCode(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T (%v)", err, err)
	}
	return he.Code
}

const patientJSON = `{"first_name":"Juan","last_name":"Dela Cruz","birth_date":"1990-05-14","sex":"male","purok":"Purok 3"}`

func TestHandler_RegisterPatient(t *testing.T) {
	h, e := newTestHandler()
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/v1/patients", patientJSON), rec)

	if err := h.RegisterPatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var p Patient
	json.Unmarshal(rec.Body.Bytes(), &p)
	if p.PatientNumber == "" || p.FirstName != "Juan" {
		t.Errorf("unexpected patient %+v", p)
	}
	if p.Purok == nil || *p.Purok != "Purok 3" {
		t.Errorf("purok not stored: %+v", p.Purok)
	}
	if p.MiddleName != nil {
		t.Errorf("empty middle name should be omitted, got %q", *p.MiddleName)
	}
	if !strings.Contains(rec.Body.String(), `"birth_date":"1990-05-14"`) {
		t.Errorf("unexpected birth date encoding: %s", rec.Body.String())
	}
}

func TestHandler_RegisterPatient_BadRequest(t *testing.T) {
	h, e := newTestHandler()
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing first name", `{"last_name":"Doe","birth_date":"1990-01-01","sex":"male"}`, "first_name is required"},
		{"bad sex", `{"first_name":"A","last_name":"B","birth_date":"1990-01-01","sex":"x"}`, "sex must be one of"},
		{"bad date", `{"first_name":"A","last_name":"B","birth_date":"01/02/1990","sex":"female"}`, "birth_date must be a date"},
		{"bad email", `{"first_name":"A","last_name":"B","birth_date":"1990-01-01","sex":"female","email":"nope"}`, "email must be a valid email"},
		{"future birth", `{"first_name":"A","last_name":"B","birth_date":"2030-01-01","sex":"female"}`, "future"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := e.NewContext(jsonRequest(http.MethodPost, "/api/v1/patients", tt.body), httptest.NewRecorder())
			err := h.RegisterPatient(c)
			if code := httpCode(t, err); code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", code)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected %q in %v", tt.want, err)
			}
		})
	}
}

func register(t *testing.T, h *Handler, e *echo.Echo) Patient {
	t.Helper()
	rec := httptest.NewRecorder()
	if err := h.RegisterPatient(e.NewContext(jsonRequest(http.MethodPost, "/api/v1/patients", patientJSON), rec)); err != nil {
		t.Fatalf("register: %v", err)
	}
	var p Patient
	json.Unmarshal(rec.Body.Bytes(), &p)
	return p
}

func TestHandler_GetPatient(t *testing.T) {
	h, e := newTestHandler()
	p := register(t, h, e)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())
	if err := h.GetPatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())
	if code := httpCode(t, h.GetPatient(c)); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")
	if code := httpCode(t, h.GetPatient(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_UpdateAndDeactivatePatient(t *testing.T) {
	h, e := newTestHandler()
	p := register(t, h, e)

	body := strings.Replace(patientJSON, `"Purok 3"`, `"Purok 7"`, 1)
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPut, "/", body), rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())
	if err := h.UpdatePatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "Purok 7") || !strings.Contains(rec.Body.String(), p.PatientNumber) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())
	if err := h.DeactivatePatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestHandler_ListPatients(t *testing.T) {
	h, e := newTestHandler()
	register(t, h, e)
	register(t, h, e)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/patients?q=juan&limit=1", nil), rec)
	if err := h.ListPatients(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"total":2`) || !strings.Contains(body, `"has_more":true`) {
		t.Errorf("unexpected body %s", body)
	}
}

func TestHandler_CreateStaffAndMe(t *testing.T) {
	h, e := newTestHandler()

	body := `{"user_id":"kc-9","role":"doctor","first_name":"Maria","last_name":"Santos","license_number":"PRC-1"}`
	rec := httptest.NewRecorder()
	if err := h.CreateStaff(e.NewContext(jsonRequest(http.MethodPost, "/api/v1/staff", body), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	if err := h.CreateStaff(e.NewContext(jsonRequest(http.MethodPost, "/api/v1/staff", body), rec)); httpCode(t, err) != http.StatusConflict {
		t.Errorf("expected 409 for duplicate user id, got %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/staff/me", nil)
	req = req.WithContext(context.WithValue(req.Context(), auth.UserIDKey, "kc-9"))
	rec = httptest.NewRecorder()
	if err := h.GetMe(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"license_number":"PRC-1"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/staff/me", nil)
	if code := httpCode(t, h.GetMe(e.NewContext(req, httptest.NewRecorder()))); code != http.StatusNotFound {
		t.Errorf("expected 404 without a subject, got %d", code)
	}
}

func TestHandler_CreateStaff_InvalidRole(t *testing.T) {
	h, e := newTestHandler()
	body := `{"role":"surgeon","first_name":"A","last_name":"B"}`
	err := h.CreateStaff(e.NewContext(jsonRequest(http.MethodPost, "/api/v1/staff", body), httptest.NewRecorder()))
	if code := httpCode(t, err); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

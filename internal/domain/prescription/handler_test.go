package prescription

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

func newTestHandler() (*Handler, *fixture, *echo.Echo) {
	f := newFixture()
	e := echo.New()
	e.Validator = validation.New()
	return NewHandler(f.svc), f, e
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

func withParam(c echo.Context, id string) echo.Context {
	c.SetParamNames("id")
	c.SetParamValues(id)
	return c
}

func (f *fixture) createBody() string {
	return `{"patient_id":"` + f.patient.ID.String() + `","diagnosis":"URTI","items":[` +
		`{"medicine":"Cetirizine","strength":"10 mg","dosage":"1 tablet","frequency":"once a day","quantity":7}]}`
}

func TestHandler_Create_DefaultsDoctorToCaller(t *testing.T) {
	h, f, e := newTestHandler()
	req := jsonRequest(http.MethodPost, "/api/v1/prescriptions", f.createBody())
	req = req.WithContext(context.WithValue(req.Context(), auth.StaffIDKey, f.doctor.ID.String()))
	rec := httptest.NewRecorder()

	if err := h.Create(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var p Prescription
	json.Unmarshal(rec.Body.Bytes(), &p)
	if p.DoctorID != f.doctor.ID {
		t.Errorf("expected doctor %s, got %s", f.doctor.ID, p.DoctorID)
	}
	if len(p.Items) != 1 || p.Items[0].LineNo != 1 || p.Items[0].Strength == nil {
		t.Errorf("unexpected items %+v", p.Items)
	}
}

func TestHandler_Create_BadRequest(t *testing.T) {
	h, f, e := newTestHandler()
	patient := f.patient.ID.String()
	tests := []struct {
		name string
		body string
	}{
		{"missing patient", `{"doctor_id":"` + f.doctor.ID.String() + `","items":[{"medicine":"x","dosage":"y"}]}`},
		{"no items", `{"patient_id":"` + patient + `","doctor_id":"` + f.doctor.ID.String() + `","items":[]}`},
		{"item without dosage", `{"patient_id":"` + patient + `","doctor_id":"` + f.doctor.ID.String() + `","items":[{"medicine":"x"}]}`},
		{"no doctor on caller", `{"patient_id":"` + patient + `","items":[{"medicine":"x","dosage":"y"}]}`},
		{"malformed json", `{"patient_id":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.Create(e.NewContext(jsonRequest(http.MethodPost, "/", tt.body), httptest.NewRecorder()))
			if code := httpCode(t, err); code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", code)
			}
		})
	}
}

func TestHandler_DispenseAndConflict(t *testing.T) {
	h, f, e := newTestHandler()
	p := f.newPrescription()
	f.svc.Create(context.Background(), p)

	rec := httptest.NewRecorder()
	c := withParam(e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec), p.ID.String())
	if err := h.Dispense(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"status":"dispensed"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	c = withParam(e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), httptest.NewRecorder()), p.ID.String())
	if code := httpCode(t, h.Cancel(c)); code != http.StatusConflict {
		t.Errorf("expected 409, got %d", code)
	}
}

func TestHandler_Get(t *testing.T) {
	h, f, e := newTestHandler()
	p := f.newPrescription()
	f.svc.Create(context.Background(), p)

	rec := httptest.NewRecorder()
	c := withParam(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec), p.ID.String())
	if err := h.Get(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"medicine":"Amoxicillin"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	c = withParam(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder()), uuid.NewString())
	if code := httpCode(t, h.Get(c)); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
	c = withParam(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder()), "abc")
	if code := httpCode(t, h.Get(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_ListByPatient(t *testing.T) {
	h, f, e := newTestHandler()
	f.svc.Create(context.Background(), f.newPrescription())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients/"+f.patient.ID.String()+"/prescriptions", nil)
	c := withParam(e.NewContext(req, rec), f.patient.ID.String())
	if err := h.ListByPatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_PDF(t *testing.T) {
	h, f, e := newTestHandler()
	p := f.newPrescription()
	f.svc.Create(context.Background(), p)

	rec := httptest.NewRecorder()
	c := withParam(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec), p.ID.String())
	if err := h.PDF(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "application/pdf" {
		t.Errorf("expected application/pdf, got %q", ct)
	}
	if cd := rec.Header().Get(echo.HeaderContentDisposition); !strings.Contains(cd, "rx-BHC-2026-000042-20260302.pdf") {
		t.Errorf("unexpected content disposition %q", cd)
	}
	if !strings.HasPrefix(rec.Body.String(), "%PDF") {
		t.Error("expected a PDF body")
	}
}

package assessment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/barangay/bhc/internal/domain/scheduling"
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

func TestHandler_RecordVitals(t *testing.T) {
	h, _, e := newTestHandler()
	patient := uuid.New()
	body := `{"patient_id":"` + patient.String() + `","systolic":130,"diastolic":85,"weight_kg":80,"height_cm":175}`
	req := jsonRequest(http.MethodPost, "/api/v1/vitals", body)
	req = req.WithContext(context.WithValue(req.Context(), auth.UserIDKey, "nurse-1"))
	rec := httptest.NewRecorder()

	if err := h.RecordVitals(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var v VitalSigns
	json.Unmarshal(rec.Body.Bytes(), &v)
	if v.BMI == nil || *v.BMI != 26.12 {
		t.Errorf("expected BMI 26.12, got %v", v.BMI)
	}
	if v.RecordedBy == nil || *v.RecordedBy != "nurse-1" {
		t.Errorf("expected recorded_by nurse-1, got %v", v.RecordedBy)
	}

	rec = httptest.NewRecorder()
	c := withParam(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec), patient.String())
	if err := h.LatestVitals(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"systolic":130`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_RecordVitals_Implausible(t *testing.T) {
	h, _, e := newTestHandler()
	body := `{"patient_id":"` + uuid.NewString() + `","temperature_c":98.6}`
	err := h.RecordVitals(e.NewContext(jsonRequest(http.MethodPost, "/", body), httptest.NewRecorder()))
	if code := httpCode(t, err); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_LatestVitals_NotFound(t *testing.T) {
	h, _, e := newTestHandler()
	c := withParam(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder()), uuid.NewString())
	if code := httpCode(t, h.LatestVitals(c)); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}

func TestHandler_AssessmentFlow(t *testing.T) {
	h, f, e := newTestHandler()
	doctor := uuid.New()
	appointment := uuid.New()
	body := `{"patient_id":"` + uuid.NewString() + `","appointment_id":"` + appointment.String() + `","chief_complaint":"Fever"}`
	req := jsonRequest(http.MethodPost, "/api/v1/assessments", body)
	req = req.WithContext(context.WithValue(req.Context(), auth.StaffIDKey, doctor.String()))
	rec := httptest.NewRecorder()
	if err := h.CreateAssessment(e.NewContext(req, rec)); err != nil {
		t.Fatalf("create: %v", err)
	}
	var a Assessment
	json.Unmarshal(rec.Body.Bytes(), &a)
	if a.DoctorID != doctor {
		t.Errorf("doctor should come from the token, got %s", a.DoctorID)
	}

	rec = httptest.NewRecorder()
	c := withParam(e.NewContext(jsonRequest(http.MethodPut, "/", `{"diagnosis":"Dengue fever, suspected","plan":"CBC, hydrate"}`), rec), a.ID.String())
	if err := h.UpdateAssessment(c); err != nil {
		t.Fatalf("update: %v", err)
	}

	rec = httptest.NewRecorder()
	c = withParam(e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec), a.ID.String())
	if err := h.CompleteAssessment(c); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"status":"completed"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
	if len(f.completer.completed) != 1 {
		t.Errorf("expected the appointment to be completed")
	}

	c = withParam(e.NewContext(jsonRequest(http.MethodPut, "/", `{"plan":"late edit"}`), httptest.NewRecorder()), a.ID.String())
	if code := httpCode(t, h.UpdateAssessment(c)); code != http.StatusConflict {
		t.Errorf("expected 409 editing a completed assessment, got %d", code)
	}
}

func TestHandler_CreateAssessment_NoDoctor(t *testing.T) {
	h, _, e := newTestHandler()
	body := `{"patient_id":"` + uuid.NewString() + `","chief_complaint":"Headache"}`
	err := h.CreateAssessment(e.NewContext(jsonRequest(http.MethodPost, "/", body), httptest.NewRecorder()))
	if code := httpCode(t, err); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_CompleteAssessment_CancelledAppointment(t *testing.T) {
	h, f, e := newTestHandler()
	a := f.draft(t, idPtr(uuid.New()))
	f.svc.UpdateAssessment(context.Background(), &Assessment{ID: a.ID, Diagnosis: strPtr("URTI")})
	f.completer.err = scheduling.ErrInvalidTransition

	c := withParam(e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), httptest.NewRecorder()), a.ID.String())
	if code := httpCode(t, h.CompleteAssessment(c)); code != http.StatusConflict {
		t.Errorf("expected 409, got %d", code)
	}
}

func TestHandler_ListAssessments(t *testing.T) {
	h, f, e := newTestHandler()
	a := f.draft(t, nil)
	rec := httptest.NewRecorder()
	c := withParam(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec), a.PatientID.String())
	if err := h.ListAssessments(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

package scheduling

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

func TestHandler_AvailableSlots(t *testing.T) {
	h, _, e := newTestHandler()
	doctor := uuid.New()
	req := httptest.NewRequest(http.MethodGet,
		"/slots/available?doctor_id="+doctor.String()+"&date=2026-03-03&consultation_type=dental", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.AvailableSlots(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body SlotResult
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.DurationMinutes != 45 || len(body.Slots) != 5 {
		t.Errorf("unexpected body %+v", body)
	}
	if body.Slots[1].Time != "08:45" || body.Slots[1].Display != "8:45 AM" {
		t.Errorf("unexpected slot %+v", body.Slots[1])
	}
}

func TestHandler_AvailableSlots_NotOfferedIsOK(t *testing.T) {
	h, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet,
		"/slots/available?doctor_id="+uuid.New().String()+"&date=2026-03-02&consultation_type=dental", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.AvailableSlots(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"slots":[]`) || !strings.Contains(rec.Body.String(), "Tuesday and Thursday") {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_AvailableSlots_BadParams(t *testing.T) {
	h, _, e := newTestHandler()
	for _, q := range []string{
		"doctor_id=nope&date=2026-03-02",
		"doctor_id=" + uuid.New().String() + "&date=March",
		"doctor_id=" + uuid.New().String() + "&date=2026-03-02",
	} {
		req := httptest.NewRequest(http.MethodGet, "/slots/available?"+q, nil)
		c := e.NewContext(req, httptest.NewRecorder())
		if code := httpCode(t, h.AvailableSlots(c)); code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, code)
		}
	}
}

func TestHandler_BookAppointment(t *testing.T) {
	h, f, e := newTestHandler()
	body := `{"patient_id":"` + uuid.New().String() + `","doctor_id":"` + uuid.New().String() +
		`","date":"2026-03-02","time":"08:30","consultation_type":"general_consult","reason":"cough"}`
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/appointments", body), rec)

	if err := h.BookAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var a Appointment
	if err := json.Unmarshal(rec.Body.Bytes(), &a); err != nil {
		t.Fatal(err)
	}
	if a.Status != StatusDraft || a.AppointmentTime != tod("08:30") || a.AppointmentDate.String() != "2026-03-02" {
		t.Errorf("unexpected appointment %+v", a)
	}
	if len(f.appts.items) != 1 {
		t.Error("expected appointment to be stored")
	}
}

func TestHandler_BookAppointment_Conflict(t *testing.T) {
	h, f, e := newTestHandler()
	doctor := uuid.New()
	f.book(t, doctor, monday, "08:30", "general_consult")

	body := `{"patient_id":"` + uuid.New().String() + `","doctor_id":"` + doctor.String() +
		`","date":"2026-03-02","time":"08:30","consultation_type":"general_consult"}`
	c := e.NewContext(jsonRequest(http.MethodPost, "/appointments", body), httptest.NewRecorder())

	if code := httpCode(t, h.BookAppointment(c)); code != http.StatusConflict {
		t.Errorf("expected 409, got %d", code)
	}
}

func TestHandler_BookAppointment_Invalid(t *testing.T) {
	h, _, e := newTestHandler()
	body := `{"patient_id":"x","date":"02/03/2026","time":"8:30 AM"}`
	c := e.NewContext(jsonRequest(http.MethodPost, "/appointments", body), httptest.NewRecorder())

	err := h.BookAppointment(c)
	if code := httpCode(t, err); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
	msg := err.(*echo.HTTPError).Message.(string)
	for _, want := range []string{"patient_id", "doctor_id is required", "date must be a date", "consultation_type is required"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in %q", want, msg)
		}
	}
}

func TestHandler_HoldAndRelease(t *testing.T) {
	h, f, e := newTestHandler()
	body := `{"doctor_id":"` + uuid.New().String() + `","date":"2026-03-04","time":"08:20","consultation_type":"immunization"}`
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/slot-holds", body), rec)

	if err := h.HoldSlot(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var hold ConsultationTimeSlot
	_ = json.Unmarshal(rec.Body.Bytes(), &hold)

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(hold.ID.String())
	if err := h.ReleaseHold(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent || len(f.holds.items) != 0 {
		t.Errorf("expected hold to be released, code %d", rec.Code)
	}
}

func TestHandler_ReleaseHold_OtherUser(t *testing.T) {
	h, f, e := newTestHandler()
	hold, err := f.svc.HoldSlot(context.Background(), HoldRequest{
		DoctorID: uuid.New(), Date: monday, Time: tod("08:00"), ConsultationType: "general_consult", HeldBy: "alice",
	})
	if err != nil {
		t.Fatal(err)
	}

	release := func(userID string, roles ...string) error {
		req := httptest.NewRequest(http.MethodDelete, "/", nil)
		ctx := context.WithValue(req.Context(), auth.UserIDKey, userID)
		ctx = context.WithValue(ctx, auth.UserRolesKey, roles)
		c := e.NewContext(req.WithContext(ctx), httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues(hold.ID.String())
		return h.ReleaseHold(c)
	}

	if code := httpCode(t, release("bob", auth.RoleStaff)); code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", code)
	}
	if err := release("admin-1", auth.RoleAdmin); err != nil {
		t.Fatalf("admin release: %v", err)
	}
	if len(f.holds.items) != 0 {
		t.Error("expected the hold to be released")
	}
}

func TestHandler_BookAppointment_UnknownParty(t *testing.T) {
	h, f, e := newTestHandler()
	f.appts.createErr = ErrUnknownParty
	body := `{"patient_id":"` + uuid.New().String() + `","doctor_id":"` + uuid.New().String() +
		`","date":"2026-03-02","time":"08:30","consultation_type":"general_consult"}`
	c := e.NewContext(jsonRequest(http.MethodPost, "/appointments", body), httptest.NewRecorder())

	if code := httpCode(t, h.BookAppointment(c)); code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", code)
	}
}

func TestHandler_GetAppointment_NotFound(t *testing.T) {
	h, _, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	if code := httpCode(t, h.GetAppointment(c)); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}

func TestHandler_GetAppointment_InvalidID(t *testing.T) {
	h, _, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	if code := httpCode(t, h.GetAppointment(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_CancelAndConfirm(t *testing.T) {
	h, f, e := newTestHandler()
	a := f.book(t, uuid.New(), monday, "08:00", "general_consult")

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/", `{"reason":"rescheduled"}`), rec)
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())
	if err := h.CancelAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"status":"Cancelled"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	c = e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())
	if code := httpCode(t, h.ConfirmAppointment(c)); code != http.StatusConflict {
		t.Errorf("expected 409 confirming a cancelled appointment, got %d", code)
	}
}

func TestHandler_UpdateStatus_Invalid(t *testing.T) {
	h, f, e := newTestHandler()
	a := f.book(t, uuid.New(), monday, "08:00", "general_consult")

	c := e.NewContext(jsonRequest(http.MethodPut, "/", `{"status":"booked"}`), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())
	if code := httpCode(t, h.UpdateStatus(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_ListAppointments(t *testing.T) {
	h, f, e := newTestHandler()
	doctor := uuid.New()
	f.book(t, doctor, monday, "08:00", "general_consult")

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/appointments?doctor_id="+doctor.String()+"&date=2026-03-02", nil), rec)
	if err := h.ListAppointments(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/appointments?from=yesterday", nil), httptest.NewRecorder())
	if code := httpCode(t, h.ListAppointments(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_SetAvailability(t *testing.T) {
	h, f, e := newTestHandler()
	doctor := uuid.New()
	body := `{"monday":true,"tuesday":true,"wednesday":true,"thursday":true,"friday":true,
		"saturday":false,"sunday":false,"start_time":"07:30","end_time":"15:00","is_available":true}`
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPut, "/", body), rec)
	c.SetParamNames("id")
	c.SetParamValues(doctor.String())

	if err := h.SetAvailability(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored := f.avail.items[doctor]
	if stored == nil || stored.StartTime != tod("07:30") || stored.Saturday {
		t.Errorf("unexpected stored availability %+v", stored)
	}

	c = e.NewContext(jsonRequest(http.MethodPut, "/", `{"start_time":"17:00","end_time":"08:00"}`), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(doctor.String())
	if code := httpCode(t, h.SetAvailability(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_FixWeekend(t *testing.T) {
	h, f, e := newTestHandler()
	doctor := uuid.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/", `{"saturday":true}`), rec)
	c.SetParamNames("id")
	c.SetParamValues(doctor.String())

	if err := h.FixWeekend(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a := f.avail.items[doctor]; !a.Saturday || a.Sunday {
		t.Errorf("unexpected availability %+v", a)
	}
}

func TestHandler_FixAllWeekends(t *testing.T) {
	h, f, e := newTestHandler()
	f.avail.doctors = []uuid.UUID{uuid.New()}
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/", `{}`), rec)

	if err := h.FixAllWeekends(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"updated":1`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_ConsultationTypes(t *testing.T) {
	h, _, e := newTestHandler()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/consultation-types", nil), rec)
	if err := h.ListConsultationTypes(c); err != nil {
		t.Fatal(err)
	}
	var items []ConsultationType
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 5 {
		t.Errorf("expected 5 types, got %d", len(items))
	}

	body := `{"name":"TB DOTS","duration_minutes":15,"allowed_days":[1,3,5],"windows":[{"start":"07:00","end":"08:00"}],"active":true}`
	rec = httptest.NewRecorder()
	c = e.NewContext(jsonRequest(http.MethodPut, "/", body), rec)
	c.SetParamNames("code")
	c.SetParamValues("tb_dots")
	if err := h.UpsertConsultationType(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("code")
	c.SetParamValues("tb_dots")
	if err := h.GetConsultationType(c); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(rec.Body.String(), `"duration_minutes":15`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

package assessment

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"github.com/barangay/bhc/internal/domain/scheduling"
	"github.com/barangay/bhc/internal/platform/auth"
	"github.com/barangay/bhc/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Triage and chart reads – nurses and doctors
	clinical := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse))
	clinical.POST("/vitals", h.RecordVitals)
	clinical.GET("/patients/:id/vitals", h.ListVitals)
	clinical.GET("/patients/:id/vitals/latest", h.LatestVitals)
	clinical.GET("/patients/:id/assessments", h.ListAssessments)
	clinical.GET("/assessments/:id", h.GetAssessment)

	// Consultation notes – doctors
	doctor := api.Group("", auth.RequireRole(auth.RoleDoctor))
	doctor.POST("/assessments", h.CreateAssessment)
	doctor.PUT("/assessments/:id", h.UpdateAssessment)
	doctor.POST("/assessments/:id/complete", h.CompleteAssessment)
}

func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, scheduling.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, ErrAlreadyCompleted), errors.Is(err, scheduling.ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrStorage), errors.Is(err, scheduling.ErrStorage):
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}

func bindAndValidate(c echo.Context, v interface{}) error {
	if err := c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(v); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func optionalID(s string) *uuid.UUID {
	if s == "" {
		return nil
	}
	id := uuid.MustParse(s)
	return &id
}

func optional(s string) *string {
	return lo.EmptyableToPtr(strings.TrimSpace(s))
}

// -- Vital signs --

type vitalsBody struct {
	PatientID        string   `json:"patient_id" validate:"required,uuid"`
	AppointmentID    string   `json:"appointment_id" validate:"omitempty,uuid"`
	Systolic         *int     `json:"systolic"`
	Diastolic        *int     `json:"diastolic"`
	TemperatureC     *float64 `json:"temperature_c"`
	PulseRate        *int     `json:"pulse_rate"`
	RespiratoryRate  *int     `json:"respiratory_rate"`
	OxygenSaturation *int     `json:"oxygen_saturation"`
	WeightKg         *float64 `json:"weight_kg"`
	HeightCm         *float64 `json:"height_cm"`
	Notes            string   `json:"notes" validate:"max=2000"`
}

func (h *Handler) RecordVitals(c echo.Context) error {
	var body vitalsBody
	if err := bindAndValidate(c, &body); err != nil {
		return err
	}
	ctx := c.Request().Context()
	v := &VitalSigns{
		PatientID:        uuid.MustParse(body.PatientID),
		AppointmentID:    optionalID(body.AppointmentID),
		RecordedBy:       optional(auth.UserIDFromContext(ctx)),
		Systolic:         body.Systolic,
		Diastolic:        body.Diastolic,
		TemperatureC:     body.TemperatureC,
		PulseRate:        body.PulseRate,
		RespiratoryRate:  body.RespiratoryRate,
		OxygenSaturation: body.OxygenSaturation,
		WeightKg:         body.WeightKg,
		HeightCm:         body.HeightCm,
		Notes:            optional(body.Notes),
	}
	if err := h.svc.RecordVitals(ctx, v); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) ListVitals(c echo.Context) error {
	patientID, err := parseID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListVitals(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithLinks(c))
}

func (h *Handler) LatestVitals(c echo.Context) error {
	patientID, err := parseID(c)
	if err != nil {
		return err
	}
	v, err := h.svc.LatestVitals(c.Request().Context(), patientID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

// -- Assessments --

type assessmentBody struct {
	PatientID      string `json:"patient_id" validate:"required,uuid"`
	AppointmentID  string `json:"appointment_id" validate:"omitempty,uuid"`
	DoctorID       string `json:"doctor_id" validate:"omitempty,uuid"`
	ChiefComplaint string `json:"chief_complaint" validate:"required,max=2000"`
	History        string `json:"history"`
	Findings       string `json:"findings"`
	Diagnosis      string `json:"diagnosis"`
	Plan           string `json:"plan"`
}

// CreateAssessment opens a draft note. The doctor defaults to the caller's
// staff record.
func (h *Handler) CreateAssessment(c echo.Context) error {
	var body assessmentBody
	if err := bindAndValidate(c, &body); err != nil {
		return err
	}
	ctx := c.Request().Context()
	doctor := body.DoctorID
	if doctor == "" {
		doctor = auth.StaffIDFromContext(ctx)
	}
	doctorID, err := uuid.Parse(doctor)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "doctor_id is required")
	}
	a := &Assessment{
		PatientID:      uuid.MustParse(body.PatientID),
		AppointmentID:  optionalID(body.AppointmentID),
		DoctorID:       doctorID,
		ChiefComplaint: body.ChiefComplaint,
		History:        optional(body.History),
		Findings:       optional(body.Findings),
		Diagnosis:      optional(body.Diagnosis),
		Plan:           optional(body.Plan),
	}
	if err := h.svc.CreateAssessment(ctx, a); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

type assessmentUpdateBody struct {
	ChiefComplaint string `json:"chief_complaint" validate:"max=2000"`
	History        string `json:"history"`
	Findings       string `json:"findings"`
	Diagnosis      string `json:"diagnosis"`
	Plan           string `json:"plan"`
}

func (h *Handler) UpdateAssessment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var body assessmentUpdateBody
	if err := bindAndValidate(c, &body); err != nil {
		return err
	}
	a, err := h.svc.UpdateAssessment(c.Request().Context(), &Assessment{
		ID:             id,
		ChiefComplaint: body.ChiefComplaint,
		History:        optional(body.History),
		Findings:       optional(body.Findings),
		Diagnosis:      optional(body.Diagnosis),
		Plan:           optional(body.Plan),
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) CompleteAssessment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.CompleteAssessment(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) GetAssessment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.GetAssessment(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListAssessments(c echo.Context) error {
	patientID, err := parseID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListAssessments(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithLinks(c))
}

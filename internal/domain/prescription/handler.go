package prescription

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"github.com/barangay/bhc/internal/domain/identity"
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
	// Reads and printing – clinical staff and front desk
	read := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse, auth.RoleStaff))
	read.GET("/prescriptions/:id", h.Get)
	read.GET("/prescriptions/:id/pdf", h.PDF)
	read.GET("/patients/:id/prescriptions", h.ListByPatient)

	// Dispensing – nurses and front desk
	dispense := api.Group("", auth.RequireRole(auth.RoleNurse, auth.RoleStaff))
	dispense.POST("/prescriptions/:id/dispense", h.Dispense)

	// Prescribing – doctors
	doctor := api.Group("", auth.RequireRole(auth.RoleDoctor))
	doctor.POST("/prescriptions", h.Create)
	doctor.POST("/prescriptions/:id/cancel", h.Cancel)
}

func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, identity.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrStorage), errors.Is(err, identity.ErrStorage):
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

func optional(s string) *string {
	return lo.EmptyableToPtr(strings.TrimSpace(s))
}

func optionalID(s string) *uuid.UUID {
	if s == "" {
		return nil
	}
	id := uuid.MustParse(s)
	return &id
}

type itemBody struct {
	Medicine     string `json:"medicine" validate:"required,max=200"`
	Strength     string `json:"strength" validate:"max=50"`
	Dosage       string `json:"dosage" validate:"required,max=100"`
	Frequency    string `json:"frequency" validate:"max=100"`
	Duration     string `json:"duration" validate:"max=100"`
	Quantity     *int   `json:"quantity" validate:"omitempty,min=1"`
	Instructions string `json:"instructions" validate:"max=500"`
}

type prescriptionBody struct {
	PatientID     string     `json:"patient_id" validate:"required,uuid"`
	DoctorID      string     `json:"doctor_id" validate:"omitempty,uuid"`
	AppointmentID string     `json:"appointment_id" validate:"omitempty,uuid"`
	AssessmentID  string     `json:"assessment_id" validate:"omitempty,uuid"`
	Diagnosis     string     `json:"diagnosis" validate:"max=2000"`
	Notes         string     `json:"notes" validate:"max=2000"`
	Items         []itemBody `json:"items" validate:"required,min=1,dive"`
}

// Create issues a prescription. The doctor defaults to the caller's staff
// record.
func (h *Handler) Create(c echo.Context) error {
	var body prescriptionBody
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
	p := &Prescription{
		PatientID:     uuid.MustParse(body.PatientID),
		DoctorID:      doctorID,
		AppointmentID: optionalID(body.AppointmentID),
		AssessmentID:  optionalID(body.AssessmentID),
		Diagnosis:     optional(body.Diagnosis),
		Notes:         optional(body.Notes),
		Items: lo.Map(body.Items, func(it itemBody, _ int) Item {
			return Item{
				Medicine:     it.Medicine,
				Strength:     optional(it.Strength),
				Dosage:       it.Dosage,
				Frequency:    optional(it.Frequency),
				Duration:     optional(it.Duration),
				Quantity:     it.Quantity,
				Instructions: optional(it.Instructions),
			}
		}),
	}
	if err := h.svc.Create(ctx, p); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListByPatient(c echo.Context) error {
	patientID, err := parseID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithLinks(c))
}

func (h *Handler) Dispense(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Dispense(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Cancel(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) PDF(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	out, name, err := h.svc.PDF(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", name))
	return c.Blob(http.StatusOK, "application/pdf", out)
}

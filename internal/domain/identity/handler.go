package identity

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
	// Read endpoints – clinical staff and front desk
	read := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse, auth.RoleStaff))
	read.GET("/patients", h.ListPatients)
	read.GET("/patients/:id", h.GetPatient)
	read.GET("/staff", h.ListStaff)
	read.GET("/staff/me", h.GetMe)
	read.GET("/staff/:id", h.GetStaff)

	// Registration – front desk and nurses
	write := api.Group("", auth.RequireRole(auth.RoleStaff, auth.RoleNurse))
	write.POST("/patients", h.RegisterPatient)
	write.PUT("/patients/:id", h.UpdatePatient)

	// Administration
	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.DELETE("/patients/:id", h.DeactivatePatient)
	admin.POST("/staff", h.CreateStaff)
	admin.PUT("/staff/:id", h.UpdateStaff)
}

func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, ErrDuplicate):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrStorage):
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

// -- Patients --

type patientBody struct {
	PatientNumber          string `json:"patient_number" validate:"max=20"`
	FirstName              string `json:"first_name" validate:"required,max=100"`
	MiddleName             string `json:"middle_name" validate:"max=100"`
	LastName               string `json:"last_name" validate:"required,max=100"`
	Suffix                 string `json:"suffix" validate:"max=20"`
	BirthDate              string `json:"birth_date" validate:"required,date"`
	Sex                    string `json:"sex" validate:"required,oneof=male female"`
	CivilStatus            string `json:"civil_status" validate:"omitempty,oneof=single married widowed separated live_in"`
	ContactNumber          string `json:"contact_number" validate:"max=30"`
	Email                  string `json:"email" validate:"omitempty,email,max=255"`
	AddressLine            string `json:"address_line" validate:"max=255"`
	Purok                  string `json:"purok" validate:"max=100"`
	Barangay               string `json:"barangay" validate:"max=100"`
	Municipality           string `json:"municipality" validate:"max=100"`
	Province               string `json:"province" validate:"max=100"`
	PhilHealthNumber       string `json:"philhealth_number" validate:"max=20"`
	HouseholdNumber        string `json:"household_number" validate:"max=30"`
	BloodType              string `json:"blood_type" validate:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	Allergies              string `json:"allergies"`
	EmergencyContactName   string `json:"emergency_contact_name" validate:"max=200"`
	EmergencyContactNumber string `json:"emergency_contact_number" validate:"max=30"`
}

func (b *patientBody) patient() *Patient {
	birth, _ := scheduling.ParseDate(b.BirthDate)
	return &Patient{
		PatientNumber:          b.PatientNumber,
		FirstName:              b.FirstName,
		MiddleName:             optional(b.MiddleName),
		LastName:               b.LastName,
		Suffix:                 optional(b.Suffix),
		BirthDate:              birth,
		Sex:                    b.Sex,
		CivilStatus:            optional(b.CivilStatus),
		ContactNumber:          optional(b.ContactNumber),
		Email:                  optional(b.Email),
		AddressLine:            optional(b.AddressLine),
		Purok:                  optional(b.Purok),
		Barangay:               optional(b.Barangay),
		Municipality:           optional(b.Municipality),
		Province:               optional(b.Province),
		PhilHealthNumber:       optional(b.PhilHealthNumber),
		HouseholdNumber:        optional(b.HouseholdNumber),
		BloodType:              optional(b.BloodType),
		Allergies:              optional(b.Allergies),
		EmergencyContactName:   optional(b.EmergencyContactName),
		EmergencyContactNumber: optional(b.EmergencyContactNumber),
	}
}

func (h *Handler) RegisterPatient(c echo.Context) error {
	var body patientBody
	if err := bindAndValidate(c, &body); err != nil {
		return err
	}
	p := body.patient()
	if err := h.svc.RegisterPatient(c.Request().Context(), p); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetPatient(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var body patientBody
	if err := bindAndValidate(c, &body); err != nil {
		return err
	}
	p := body.patient()
	p.ID = id
	if err := h.svc.UpdatePatient(c.Request().Context(), p); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeactivatePatient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeactivatePatient(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListPatients searches by name or patient number (q), purok and PhilHealth
// number. Inactive patients are included with inactive=true.
func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := PatientFilter{
		Query:           c.QueryParam("q"),
		Purok:           c.QueryParam("purok"),
		PhilHealth:      c.QueryParam("philhealth_number"),
		IncludeInactive: c.QueryParam("inactive") == "true",
		Sort:            c.QueryParam("sort"),
	}
	items, total, err := h.svc.ListPatients(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithLinks(c))
}

// -- Staff --

type staffBody struct {
	UserID         string `json:"user_id" validate:"max=255"`
	Role           string `json:"role" validate:"required,oneof=doctor nurse admin staff"`
	FirstName      string `json:"first_name" validate:"required,max=100"`
	LastName       string `json:"last_name" validate:"required,max=100"`
	Specialization string `json:"specialization" validate:"max=100"`
	LicenseNumber  string `json:"license_number" validate:"max=50"`
	ContactNumber  string `json:"contact_number" validate:"max=30"`
	Email          string `json:"email" validate:"omitempty,email,max=255"`
	Active         *bool  `json:"active"`
}

func (b *staffBody) staff() *Staff {
	return &Staff{
		UserID:         optional(b.UserID),
		Role:           b.Role,
		FirstName:      b.FirstName,
		LastName:       b.LastName,
		Specialization: optional(b.Specialization),
		LicenseNumber:  optional(b.LicenseNumber),
		ContactNumber:  optional(b.ContactNumber),
		Email:          optional(b.Email),
		Active:         lo.FromPtrOr(b.Active, true),
	}
}

func (h *Handler) CreateStaff(c echo.Context) error {
	var body staffBody
	if err := bindAndValidate(c, &body); err != nil {
		return err
	}
	st := body.staff()
	if err := h.svc.CreateStaff(c.Request().Context(), st); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, st)
}

func (h *Handler) GetStaff(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	st, err := h.svc.GetStaff(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, st)
}

// GetMe returns the staff record linked to the caller's token subject.
func (h *Handler) GetMe(c echo.Context) error {
	ctx := c.Request().Context()
	st, err := h.svc.GetStaffByUserID(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) UpdateStaff(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var body staffBody
	if err := bindAndValidate(c, &body); err != nil {
		return err
	}
	st := body.staff()
	st.ID = id
	if err := h.svc.UpdateStaff(c.Request().Context(), st); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) ListStaff(c echo.Context) error {
	pg := pagination.FromContext(c)
	activeOnly := c.QueryParam("inactive") != "true"
	items, total, err := h.svc.ListStaff(c.Request().Context(), c.QueryParam("role"), activeOnly, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithLinks(c))
}

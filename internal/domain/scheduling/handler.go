package scheduling

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

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
	// Lookups – every signed-in role, patients included
	lookup := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse, auth.RoleStaff, auth.RolePatient))
	lookup.GET("/slots/available", h.AvailableSlots)
	lookup.GET("/consultation-types", h.ListConsultationTypes)
	lookup.GET("/consultation-types/:code", h.GetConsultationType)
	lookup.GET("/doctors/:id/availability", h.GetAvailability)

	// Holds – front desk and patients booking for themselves
	holds := api.Group("", auth.RequireRole(auth.RoleStaff, auth.RolePatient))
	holds.POST("/slot-holds", h.HoldSlot)
	holds.DELETE("/slot-holds/:id", h.ReleaseHold)

	// Appointment reads – clinical staff and front desk
	read := api.Group("", auth.RequireRole(auth.RoleStaff, auth.RoleDoctor, auth.RoleNurse))
	read.GET("/appointments", h.ListAppointments)
	read.GET("/appointments/:id", h.GetAppointment)

	// Appointment writes – front desk
	write := api.Group("", auth.RequireRole(auth.RoleStaff))
	write.POST("/appointments", h.BookAppointment)
	write.POST("/appointments/:id/confirm", h.ConfirmAppointment)
	write.POST("/appointments/:id/cancel", h.CancelAppointment)
	write.PUT("/appointments/:id/status", h.UpdateStatus)

	// Clinic configuration – admin only
	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.PUT("/doctors/:id/availability", h.SetAvailability)
	admin.POST("/doctors/:id/availability/fix-weekend", h.FixWeekend)
	admin.POST("/admin/availability/fix-weekends", h.FixAllWeekends)
	admin.PUT("/consultation-types/:code", h.UpsertConsultationType)
}

func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, ErrUnknownParty):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrHoldNotOwned):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrSlotUnavailable), errors.Is(err, ErrBookingBusy), errors.Is(err, ErrInvalidTransition):
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

// -- Slots --

func (h *Handler) AvailableSlots(c echo.Context) error {
	doctorID, err := uuid.Parse(c.QueryParam("doctor_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
	}
	date, err := ParseDate(c.QueryParam("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	typeCode := c.QueryParam("consultation_type")
	if typeCode == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "consultation_type is required")
	}
	result, err := h.svc.AvailableSlots(c.Request().Context(), doctorID, date, typeCode)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

type holdBody struct {
	DoctorID         string `json:"doctor_id" validate:"required,uuid"`
	Date             string `json:"date" validate:"required,date"`
	Time             string `json:"time" validate:"required,timeofday"`
	ConsultationType string `json:"consultation_type" validate:"required"`
}

func (h *Handler) HoldSlot(c echo.Context) error {
	var body holdBody
	if err := bindAndValidate(c, &body); err != nil {
		return err
	}
	date, _ := ParseDate(body.Date)
	t, err := ParseTimeOfDay(body.Time)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	hold, err := h.svc.HoldSlot(c.Request().Context(), HoldRequest{
		DoctorID:         uuid.MustParse(body.DoctorID),
		Date:             date,
		Time:             t,
		ConsultationType: body.ConsultationType,
		HeldBy:           auth.UserIDFromContext(c.Request().Context()),
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, hold)
}

func (h *Handler) ReleaseHold(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	releasedBy := auth.UserIDFromContext(ctx)
	if auth.HasRole(ctx, auth.RoleAdmin) {
		releasedBy = ""
	}
	if err := h.svc.ReleaseHold(ctx, id, releasedBy); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Appointments --

type bookingBody struct {
	PatientID        string `json:"patient_id" validate:"required,uuid"`
	DoctorID         string `json:"doctor_id" validate:"required,uuid"`
	Date             string `json:"date" validate:"required,date"`
	Time             string `json:"time" validate:"required,timeofday"`
	ConsultationType string `json:"consultation_type" validate:"required"`
	HoldID           string `json:"hold_id" validate:"omitempty,uuid"`
	Reason           string `json:"reason" validate:"max=500"`
	Notes            string `json:"notes" validate:"max=2000"`
}

func (h *Handler) BookAppointment(c echo.Context) error {
	var body bookingBody
	if err := bindAndValidate(c, &body); err != nil {
		return err
	}
	date, _ := ParseDate(body.Date)
	t, err := ParseTimeOfDay(body.Time)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req := BookingRequest{
		PatientID:        uuid.MustParse(body.PatientID),
		DoctorID:         uuid.MustParse(body.DoctorID),
		Date:             date,
		Time:             t,
		ConsultationType: body.ConsultationType,
		Reason:           body.Reason,
		Notes:            body.Notes,
		CreatedBy:        auth.UserIDFromContext(c.Request().Context()),
	}
	if body.HoldID != "" {
		req.HoldID = uuid.MustParse(body.HoldID)
	}
	a, err := h.svc.BookAppointment(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	pg := pagination.FromContext(c)
	var f AppointmentFilter
	for _, p := range []struct {
		name string
		dst  **uuid.UUID
	}{{"patient_id", &f.PatientID}, {"doctor_id", &f.DoctorID}} {
		if v := c.QueryParam(p.name); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid "+p.name)
			}
			*p.dst = &id
		}
	}
	for _, p := range []struct {
		name string
		dst  **Date
	}{{"date", &f.Date}, {"from", &f.From}, {"to", &f.To}} {
		if v := c.QueryParam(p.name); v != "" {
			d, err := ParseDate(v)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, err.Error())
			}
			*p.dst = &d
		}
	}
	f.Status = c.QueryParam("status")

	items, total, err := h.svc.ListAppointments(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithLinks(c))
}

func (h *Handler) ConfirmAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.ConfirmAppointment(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

type cancelBody struct {
	Reason string `json:"reason" validate:"max=500"`
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var body cancelBody
	if err := bindAndValidate(c, &body); err != nil {
		return err
	}
	a, err := h.svc.CancelAppointment(c.Request().Context(), id, body.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

type statusBody struct {
	Status string `json:"status" validate:"required,oneof=Draft Pending Completed Cancelled"`
	Reason string `json:"reason" validate:"max=500"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var body statusBody
	if err := bindAndValidate(c, &body); err != nil {
		return err
	}
	a, err := h.svc.UpdateStatus(c.Request().Context(), id, body.Status, body.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

// -- Doctor availability --

func (h *Handler) GetAvailability(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.GetAvailability(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) SetAvailability(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var a DoctorAvailability
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a.DoctorID = id
	if err := h.svc.SetAvailability(c.Request().Context(), &a); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

type weekendBody struct {
	Saturday bool `json:"saturday"`
	Sunday   bool `json:"sunday"`
}

// FixWeekend sets the doctor's weekend flags. An empty body closes both days.
func (h *Handler) FixWeekend(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var body weekendBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.FixWeekend(c.Request().Context(), id, body.Saturday, body.Sunday)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) FixAllWeekends(c echo.Context) error {
	var body weekendBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	n, err := h.svc.FixAllWeekends(c.Request().Context(), body.Saturday, body.Sunday)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"updated":  n,
		"saturday": body.Saturday,
		"sunday":   body.Sunday,
	})
}

// -- Consultation types --

func (h *Handler) ListConsultationTypes(c echo.Context) error {
	activeOnly := c.QueryParam("all") != "true"
	items, err := h.svc.ListConsultationTypes(c.Request().Context(), activeOnly)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetConsultationType(c echo.Context) error {
	ct, err := h.svc.GetConsultationType(c.Request().Context(), c.Param("code"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ct)
}

func (h *Handler) UpsertConsultationType(c echo.Context) error {
	var ct ConsultationType
	if err := c.Bind(&ct); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ct.Code = c.Param("code")
	if err := h.svc.UpsertConsultationType(c.Request().Context(), &ct); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ct)
}

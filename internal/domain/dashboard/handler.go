package dashboard

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/barangay/bhc/internal/domain/scheduling"
	"github.com/barangay/bhc/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/dashboard")
	g.GET("/doctor", h.Doctor, auth.RequireRole(auth.RoleDoctor))
	g.GET("/nurse", h.Nurse, auth.RequireRole(auth.RoleNurse, auth.RoleStaff))
	g.GET("/admin", h.Admin, auth.RequireRole(auth.RoleAdmin))
}

func httpError(err error) *echo.HTTPError {
	if errors.Is(err, ErrStorage) {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return echo.NewHTTPError(http.StatusBadRequest, err.Error())
}

// queryDate reads an optional YYYY-MM-DD query parameter.
func queryDate(c echo.Context, name string) (scheduling.Date, error) {
	v := c.QueryParam(name)
	if v == "" {
		return scheduling.Date{}, nil
	}
	d, err := scheduling.ParseDate(v)
	if err != nil {
		return scheduling.Date{}, echo.NewHTTPError(http.StatusBadRequest, name+" must be a date (YYYY-MM-DD)")
	}
	return d, nil
}

// Doctor serves the calling doctor's day. Admins may look at any doctor
// through ?doctor_id=.
func (h *Handler) Doctor(c echo.Context) error {
	ctx := c.Request().Context()
	raw := auth.StaffIDFromContext(ctx)
	if q := c.QueryParam("doctor_id"); q != "" && auth.HasRole(ctx, auth.RoleAdmin) {
		raw = q
	}
	if raw == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "doctor_id is required")
	}
	doctorID, err := uuid.Parse(raw)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "doctor_id must be a valid id")
	}
	date, err := queryDate(c, "date")
	if err != nil {
		return err
	}
	out, err := h.svc.Doctor(ctx, doctorID, date)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Nurse(c echo.Context) error {
	date, err := queryDate(c, "date")
	if err != nil {
		return err
	}
	out, err := h.svc.Nurse(c.Request().Context(), date)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Admin(c echo.Context) error {
	from, err := queryDate(c, "from")
	if err != nil {
		return err
	}
	to, err := queryDate(c, "to")
	if err != nil {
		return err
	}
	out, err := h.svc.Admin(c.Request().Context(), from, to)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

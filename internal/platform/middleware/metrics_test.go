package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

type observation struct {
	method, route string
	status        int
}

type fakeObserver struct{ seen []observation }

func (f *fakeObserver) ObserveHTTP(method, route string, status int, _ time.Duration) {
	f.seen = append(f.seen, observation{method, route, status})
}

func TestMetrics_RecordsRoutePattern(t *testing.T) {
	obs := &fakeObserver{}
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/appointments/abc", nil), httptest.NewRecorder())
	c.SetPath("/api/v1/appointments/:id")

	err := Metrics(obs)(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(obs.seen) != 1 {
		t.Fatalf("expected one observation, got %d", len(obs.seen))
	}
	if got := obs.seen[0]; got.route != "/api/v1/appointments/:id" || got.status != http.StatusOK {
		t.Errorf("unexpected observation %+v", got)
	}
}

func TestMetrics_UsesErrorStatus(t *testing.T) {
	obs := &fakeObserver{}
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/api/v1/appointments", nil), httptest.NewRecorder())
	c.SetPath("/api/v1/appointments")

	_ = Metrics(obs)(func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusConflict, "slot no longer available")
	})(c)
	if obs.seen[0].status != http.StatusConflict {
		t.Errorf("expected 409, got %d", obs.seen[0].status)
	}

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/nowhere", nil), httptest.NewRecorder())
	_ = Metrics(obs)(func(c echo.Context) error { return errors.New("boom") })(c)
	if got := obs.seen[1]; got.route != "unmatched" || got.status != http.StatusInternalServerError {
		t.Errorf("unexpected observation %+v", got)
	}
}

package scheduling

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func postJSON(e *echo.Echo, body string) echo.Context {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return e.NewContext(req, httptest.NewRecorder())
}

func wantHTTPStatus(t *testing.T, err error, want int) {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("got %v, want *echo.HTTPError with code %d", err, want)
	}
	if he.Code != want {
		t.Errorf("status = %d, want %d", he.Code, want)
	}
}

func TestCreateHandler_MissingReferencesAre404(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)
	e := echo.New()

	body := fmt.Sprintf(`{"patientId":%q,"doctorId":%q,"startTime":"2026-09-02T09:00:00Z","reason":"checkup"}`,
		uuid.New(), f.doctor)
	wantHTTPStatus(t, h.Create(postJSON(e, body)), http.StatusNotFound)

	body = fmt.Sprintf(`{"patientId":%q,"doctorId":%q,"startTime":"2026-09-02T09:00:00Z","reason":"checkup"}`,
		f.patient, uuid.New())
	wantHTTPStatus(t, h.Create(postJSON(e, body)), http.StatusNotFound)
}

func TestCreateHandler_ValidationIs400(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)
	e := echo.New()

	// Known references, missing reason.
	body := fmt.Sprintf(`{"patientId":%q,"doctorId":%q,"startTime":"2026-09-02T09:00:00Z"}`,
		f.patient, f.doctor)
	wantHTTPStatus(t, h.Create(postJSON(e, body)), http.StatusBadRequest)
}

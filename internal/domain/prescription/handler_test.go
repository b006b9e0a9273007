package prescription

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

	body := fmt.Sprintf(`{"patientId":%q,"medications":[{"medicineId":%q,"quantity":3}]}`,
		uuid.New(), f.amoxID)
	wantHTTPStatus(t, h.Create(postJSON(e, body)), http.StatusNotFound)

	body = fmt.Sprintf(`{"patientId":%q,"medications":[{"medicineId":%q,"quantity":3}]}`,
		f.patient, uuid.New())
	wantHTTPStatus(t, h.Create(postJSON(e, body)), http.StatusNotFound)
}

func TestCreateHandler_ValidationIs400(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)
	e := echo.New()

	// Known patient, no medication lines.
	body := fmt.Sprintf(`{"patientId":%q,"medications":[]}`, f.patient)
	wantHTTPStatus(t, h.Create(postJSON(e, body)), http.StatusBadRequest)
}

func TestDispenseHandler_UnknownPrescriptionIs404(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)
	e := echo.New()

	c := postJSON(e, `{}`)
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())
	wantHTTPStatus(t, h.Dispense(c), http.StatusNotFound)
}

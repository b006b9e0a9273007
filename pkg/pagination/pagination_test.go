package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(t *testing.T, query string) Params {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?"+query, nil)
	c := e.NewContext(req, httptest.NewRecorder())
	return FromContext(c)
}

func TestFromContext_Defaults(t *testing.T) {
	p := paramsFor(t, "")
	if p.Page != 1 || p.Limit != DefaultLimit {
		t.Errorf("got page=%d limit=%d, want 1 and %d", p.Page, p.Limit, DefaultLimit)
	}
}

func TestFromContext_ClampsLimit(t *testing.T) {
	p := paramsFor(t, "page=3&limit=5000")
	if p.Limit != MaxLimit {
		t.Errorf("limit = %d, want %d", p.Limit, MaxLimit)
	}
	if p.Page != 3 {
		t.Errorf("page = %d, want 3", p.Page)
	}
}

func TestFromContext_RejectsNegative(t *testing.T) {
	p := paramsFor(t, "page=-2&limit=-10")
	if p.Page != 1 || p.Limit != DefaultLimit {
		t.Errorf("got page=%d limit=%d, want defaults", p.Page, p.Limit)
	}
}

func TestOffset(t *testing.T) {
	p := Params{Page: 3, Limit: 20}
	if got := p.Offset(); got != 40 {
		t.Errorf("Offset() = %d, want 40", got)
	}
}

func TestTotalPages(t *testing.T) {
	cases := []struct {
		total, limit, want int
	}{
		{0, 20, 0},
		{19, 20, 1},
		{20, 20, 1},
		{21, 20, 2},
		{100, 25, 4},
	}
	for _, tc := range cases {
		p := Params{Page: 1, Limit: tc.limit}
		if got := p.TotalPages(tc.total); got != tc.want {
			t.Errorf("TotalPages(%d) with limit %d = %d, want %d", tc.total, tc.limit, got, tc.want)
		}
	}
}

package dashboard

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinichub/clinic/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/dashboard")
	g.GET("/overview", h.Overview)
	g.GET("/appointments/daily", h.DailyAppointments)
	g.GET("/revenue/monthly", h.MonthlyRevenue)
	g.GET("/appointments/upcoming", h.UpcomingAppointments)
}

func (h *Handler) Overview(c echo.Context) error {
	ctx := c.Request().Context()
	overview, err := h.svc.Overview(ctx, auth.UserIDFromContext(ctx), auth.RoleFromContext(ctx))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, overview)
}

func (h *Handler) DailyAppointments(c echo.Context) error {
	to := time.Now()
	from := to.AddDate(0, 0, -6)
	if v := c.QueryParam("from"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid from date, want YYYY-MM-DD")
		}
		from = parsed
	}
	if v := c.QueryParam("to"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid to date, want YYYY-MM-DD")
		}
		to = parsed
	}

	ctx := c.Request().Context()
	counts, err := h.svc.DailyAppointments(ctx, from, to, auth.UserIDFromContext(ctx), auth.RoleFromContext(ctx))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, counts)
}

func (h *Handler) MonthlyRevenue(c echo.Context) error {
	ctx := c.Request().Context()
	revenue, err := h.svc.MonthlyRevenue(ctx, auth.UserIDFromContext(ctx), auth.RoleFromContext(ctx))
	if err != nil {
		if errors.Is(err, ErrAccessDenied) {
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, revenue)
}

func (h *Handler) UpcomingAppointments(c echo.Context) error {
	limit := 10
	if v := c.QueryParam("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = parsed
	}
	ctx := c.Request().Context()
	items, err := h.svc.UpcomingAppointments(ctx, limit, auth.UserIDFromContext(ctx), auth.RoleFromContext(ctx))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

package scheduling

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinichub/clinic/internal/platform/auth"
	"github.com/clinichub/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/appointments")

	g.GET("", h.List)
	g.GET("/calendar/view", h.Calendar)
	g.GET("/check-availability", h.CheckAvailability)
	g.GET("/stats/overview", h.Stats)
	g.GET("/:id", h.Get)
	g.POST("", h.Create)
	g.PUT("/:id", h.Update)
	g.PATCH("/:id/status", h.UpdateStatus)
}

// conflictResponse maps a ConflictError to the 409 payload.
func conflictResponse(c echo.Context, err *ConflictError) error {
	return c.JSON(http.StatusConflict, map[string]interface{}{
		"success":   false,
		"message":   err.Error(),
		"conflicts": err.Conflicts,
	})
}

// writeError maps service sentinels: missing references are 404, ownership
// violations 403, anything else a validation 400.
func writeError(err error) error {
	switch {
	case errors.Is(err, ErrAccessDenied):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrPatientNotFound), errors.Is(err, ErrDoctorNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}

func (h *Handler) Create(c echo.Context) error {
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	if uid := auth.UserIDFromContext(ctx); uid != uuid.Nil {
		a.CreatedBy = &uid
	}
	if err := h.svc.Create(ctx, &a); err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			return conflictResponse(c, conflict)
		}
		return writeError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	a, err := h.svc.Get(ctx, id, auth.UserIDFromContext(ctx), auth.RoleFromContext(ctx))
	if err != nil {
		if errors.Is(err, ErrAccessDenied) {
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		}
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{}
	for _, key := range []string{"status", "doctor", "patient", "priority", "type", "date", "from", "to"} {
		if v := c.QueryParam(key); v != "" {
			params[key] = v
		}
	}
	ctx := c.Request().Context()
	items, total, err := h.svc.Search(ctx, params, auth.UserIDFromContext(ctx), auth.RoleFromContext(ctx), pg.Limit, pg.Offset())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, pg, total))
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a.ID = id
	ctx := c.Request().Context()
	if uid := auth.UserIDFromContext(ctx); uid != uuid.Nil {
		a.UpdatedBy = &uid
	}
	if err := h.svc.Update(ctx, &a); err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			return conflictResponse(c, conflict)
		}
		return writeError(err)
	}
	return c.JSON(http.StatusOK, a)
}

type statusRequest struct {
	Status       string `json:"status"`
	CancelReason string `json:"cancelReason"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	a, err := h.svc.UpdateStatus(ctx, id, req.Status, req.CancelReason, auth.UserIDFromContext(ctx))
	if err != nil {
		return writeError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Calendar(c echo.Context) error {
	day := time.Now()
	if d := c.QueryParam("date"); d != "" {
		parsed, err := time.Parse("2006-01-02", d)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		}
		day = parsed
	}
	doctorFilter := uuid.Nil
	if d := c.QueryParam("doctor"); d != "" {
		parsed, err := uuid.Parse(d)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
		}
		doctorFilter = parsed
	}
	ctx := c.Request().Context()
	items, err := h.svc.CalendarView(ctx, day, auth.UserIDFromContext(ctx), auth.RoleFromContext(ctx), doctorFilter)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) CheckAvailability(c echo.Context) error {
	doctorID, err := uuid.Parse(c.QueryParam("doctor"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	start, err := time.Parse(time.RFC3339, c.QueryParam("start"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid start, expected RFC3339")
	}
	duration := 0
	if d := c.QueryParam("duration"); d != "" {
		duration, err = strconv.Atoi(d)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid duration")
		}
	}
	exclude := uuid.Nil
	if e := c.QueryParam("exclude"); e != "" {
		exclude, err = uuid.Parse(e)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid exclude id")
		}
	}
	result, err := h.svc.CheckAvailability(c.Request().Context(), doctorID, start, duration, exclude)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) Stats(c echo.Context) error {
	ctx := c.Request().Context()
	stats, err := h.svc.Stats(ctx, auth.UserIDFromContext(ctx), auth.RoleFromContext(ctx))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}

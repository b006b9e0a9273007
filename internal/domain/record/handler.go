package record

import (
	"errors"
	"net/http"

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
	g := api.Group("/medical-records")

	g.GET("", h.List)
	g.GET("/stats/overview", h.Stats)
	g.GET("/patient/:patientID/history", h.PatientHistory)
	g.GET("/:id", h.Get)

	doctor := g.Group("", auth.RequireRole(auth.RoleDoctor))
	doctor.POST("", h.Create)
	doctor.PUT("/:id", h.Update)
	doctor.PATCH("/:id/status", h.UpdateStatus)
	doctor.POST("/:id/investigations", h.AddInvestigation)
	doctor.DELETE("/:id", h.SoftDelete)

	// The patient chart view uses the same history lookup. The param name
	// matches the other /patients/:id routes so the router trees merge.
	api.GET("/patients/:id/medical-history", h.PatientHistory)
}

// writeError maps service sentinels: missing references are 404, ownership
// violations 403, anything else a validation 400.
func writeError(err error) error {
	switch {
	case errors.Is(err, ErrAccessDenied):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrPatientNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}

func (h *Handler) Create(c echo.Context) error {
	var r MedicalRecord
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	doctorID := auth.UserIDFromContext(ctx)
	r.CreatedBy = &doctorID
	if err := h.svc.Create(ctx, &r, doctorID); err != nil {
		return writeError(err)
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	r, err := h.svc.Get(ctx, id, auth.UserIDFromContext(ctx), auth.RoleFromContext(ctx))
	if err != nil {
		return writeError(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{}
	for _, key := range []string{"status", "doctor", "patient", "date"} {
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
	var r MedicalRecord
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r.ID = id
	ctx := c.Request().Context()
	if err := h.svc.Update(ctx, &r, auth.UserIDFromContext(ctx), auth.RoleFromContext(ctx)); err != nil {
		return writeError(err)
	}
	return c.JSON(http.StatusOK, r)
}

type statusRequest struct {
	Status string `json:"status"`
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
	r, err := h.svc.UpdateStatus(ctx, id, req.Status, auth.UserIDFromContext(ctx), auth.RoleFromContext(ctx))
	if err != nil {
		return writeError(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) AddInvestigation(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var inv Investigation
	if err := c.Bind(&inv); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	if err := h.svc.AddInvestigation(ctx, id, &inv, auth.UserIDFromContext(ctx), auth.RoleFromContext(ctx)); err != nil {
		return writeError(err)
	}
	return c.JSON(http.StatusCreated, inv)
}

func (h *Handler) PatientHistory(c echo.Context) error {
	raw := c.Param("patientID")
	if raw == "" {
		raw = c.Param("id")
	}
	patientID, err := uuid.Parse(raw)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.PatientHistory(c.Request().Context(), patientID, pg.Limit, pg.Offset())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, pg, total))
}

func (h *Handler) SoftDelete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	if err := h.svc.SoftDelete(ctx, id, auth.UserIDFromContext(ctx), auth.RoleFromContext(ctx)); err != nil {
		return writeError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Stats(c echo.Context) error {
	ctx := c.Request().Context()
	stats, err := h.svc.Stats(ctx, auth.UserIDFromContext(ctx), auth.RoleFromContext(ctx))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}

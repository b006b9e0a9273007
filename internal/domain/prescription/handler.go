package prescription

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
	g := api.Group("/prescriptions")

	g.GET("", h.List)
	g.GET("/stats/overview", h.Stats)
	g.GET("/patient/:patientID/history", h.PatientHistory)
	g.GET("/:id", h.Get)

	doctor := g.Group("", auth.RequireRole(auth.RoleDoctor))
	doctor.POST("", h.Create)
	doctor.PUT("/:id", h.Update)
	doctor.PATCH("/:id/status", h.UpdateStatus)
	doctor.DELETE("/:id", h.SoftDelete)

	// Dispensing is a pharmacy-desk action.
	g.PATCH("/:id/dispense", h.Dispense, auth.RequireRole(auth.RoleReceptionist))
}

func stockResponse(c echo.Context, stockErr *StockError) error {
	return c.JSON(http.StatusConflict, map[string]interface{}{
		"success":   false,
		"message":   stockErr.Error(),
		"shortages": stockErr.Shortages,
	})
}

// writeError maps service sentinels: missing references are 404, ownership
// violations 403, anything else a validation 400.
func writeError(err error) error {
	switch {
	case errors.Is(err, ErrAccessDenied):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrPatientNotFound), errors.Is(err, ErrMedicineNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}

func (h *Handler) Create(c echo.Context) error {
	var p Prescription
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	doctorID := auth.UserIDFromContext(ctx)
	p.CreatedBy = &doctorID
	if err := h.svc.Create(ctx, &p, doctorID); err != nil {
		var stockErr *StockError
		if errors.As(err, &stockErr) {
			return stockResponse(c, stockErr)
		}
		return writeError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	p, err := h.svc.Get(ctx, id, auth.UserIDFromContext(ctx), auth.RoleFromContext(ctx))
	if err != nil {
		return writeError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{}
	for _, key := range []string{"status", "doctor", "patient", "priority", "date"} {
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
	var p Prescription
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.ID = id
	ctx := c.Request().Context()
	if err := h.svc.Update(ctx, &p, auth.UserIDFromContext(ctx), auth.RoleFromContext(ctx)); err != nil {
		var stockErr *StockError
		if errors.As(err, &stockErr) {
			return stockResponse(c, stockErr)
		}
		return writeError(err)
	}
	return c.JSON(http.StatusOK, p)
}

type statusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
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
	p, err := h.svc.UpdateStatus(ctx, id, req.Status, req.Reason, auth.UserIDFromContext(ctx), auth.RoleFromContext(ctx))
	if err != nil {
		return writeError(err)
	}
	return c.JSON(http.StatusOK, p)
}

type dispenseRequest struct {
	MedicationIDs []uuid.UUID `json:"medicationIds"`
	PharmacyNotes *string     `json:"pharmacyNotes"`
}

func (h *Handler) Dispense(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req dispenseRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	result, err := h.svc.Dispense(ctx, id, req.MedicationIDs, req.PharmacyNotes, auth.UserIDFromContext(ctx))
	if err != nil {
		return writeError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) PatientHistory(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patientID"))
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

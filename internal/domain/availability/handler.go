package availability

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/smiledesk/dental/internal/platform/api"
	"github.com/smiledesk/dental/internal/platform/auth"
	"github.com/smiledesk/dental/pkg/apperr"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints – any authenticated caller
	api.GET("/availability/dentist/:userId", h.GetDentistAvailability)
	api.GET("/availability/dentist/:userId/effective", h.GetEffectiveAvailability)

	// Write endpoints – the dentist themself or an administrator
	w := api.Group("/availability", auth.RequireRole(auth.RoleDentist))
	w.POST("/rules", h.CreateRule)
	w.PUT("/rules/:id", h.UpdateRule)
	w.DELETE("/rules/:id", h.DeleteRule)
	w.POST("/overrides", h.CreateOverride)
	w.PUT("/overrides/:id", h.UpdateOverride)
	w.DELETE("/overrides/:id", h.DeleteOverride)
	w.POST("/leaves", h.CreateLeave)
	w.PUT("/leaves/:id", h.UpdateLeave)
	w.DELETE("/leaves/:id", h.DeleteLeave)
}

func dentistParam(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		return uuid.Nil, apperr.NotFound("Dentist")
	}
	return id, nil
}

func idParam(c echo.Context, entity string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.NotFound(entity)
	}
	return id, nil
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return apperr.Validation("malformed request body")
	}
	return c.Validate(req)
}

// -- Queries --

func (h *Handler) GetDentistAvailability(c echo.Context) error {
	id, err := dentistParam(c)
	if err != nil {
		return err
	}
	sched, err := h.svc.GetSchedule(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return api.OKMessage(c, sched, "Availability retrieved successfully")
}

func (h *Handler) GetEffectiveAvailability(c echo.Context) error {
	id, err := dentistParam(c)
	if err != nil {
		return err
	}
	date := c.QueryParam("date")
	if date == "" {
		return apperr.Validation("date is required")
	}
	windows, err := h.svc.EffectiveWindows(c.Request().Context(), id, date)
	if err != nil {
		return err
	}
	return api.OK(c, windows)
}

// -- Rules --

func (h *Handler) CreateRule(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}
	var req RuleRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	rule, err := h.svc.AddRule(c.Request().Context(), actor, req)
	if err != nil {
		return err
	}
	return api.Created(c, rule)
}

func (h *Handler) UpdateRule(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "Availability rule")
	if err != nil {
		return err
	}
	var req RuleRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	rule, err := h.svc.UpdateRule(c.Request().Context(), actor, id, req)
	if err != nil {
		return err
	}
	return api.OK(c, rule)
}

func (h *Handler) DeleteRule(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "Availability rule")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteRule(c.Request().Context(), actor, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Overrides --

func (h *Handler) CreateOverride(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}
	var req OverrideRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	o, err := h.svc.AddOverride(c.Request().Context(), actor, req)
	if err != nil {
		return err
	}
	return api.Created(c, o)
}

func (h *Handler) UpdateOverride(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "Availability override")
	if err != nil {
		return err
	}
	var req OverrideRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	o, err := h.svc.UpdateOverride(c.Request().Context(), actor, id, req)
	if err != nil {
		return err
	}
	return api.OK(c, o)
}

func (h *Handler) DeleteOverride(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "Availability override")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteOverride(c.Request().Context(), actor, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Leaves --

func (h *Handler) CreateLeave(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}
	var req LeaveRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	l, err := h.svc.AddLeave(c.Request().Context(), actor, req)
	if err != nil {
		return err
	}
	return api.Created(c, l)
}

func (h *Handler) UpdateLeave(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "Leave")
	if err != nil {
		return err
	}
	var req LeaveRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	l, err := h.svc.UpdateLeave(c.Request().Context(), actor, id, req)
	if err != nil {
		return err
	}
	return api.OK(c, l)
}

func (h *Handler) DeleteLeave(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "Leave")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteLeave(c.Request().Context(), actor, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

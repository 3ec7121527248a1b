package clinic

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/smiledesk/dental/internal/platform/api"
	"github.com/smiledesk/dental/internal/platform/auth"
	"github.com/smiledesk/dental/pkg/apperr"
	"github.com/smiledesk/dental/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/clinics", h.ListClinics)
	api.GET("/clinics/:id", h.GetClinic)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/clinics", h.CreateClinic)
	admin.PUT("/clinics/:id", h.UpdateClinic)
	admin.DELETE("/clinics/:id", h.DeleteClinic)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.NotFound("Clinic")
	}
	return id, nil
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return apperr.Validation("malformed request body")
	}
	return c.Validate(req)
}

func (h *Handler) CreateClinic(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}
	var req ClinicRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	cl, err := h.svc.CreateClinic(c.Request().Context(), actor, req)
	if err != nil {
		return err
	}
	return api.Created(c, cl)
}

func (h *Handler) GetClinic(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	cl, err := h.svc.GetClinic(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return api.OK(c, cl)
}

func (h *Handler) ListClinics(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListClinics(c.Request().Context(), actor, pg)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Clinic{}
	}
	return api.OK(c, pagination.NewPage(items, total, pg))
}

func (h *Handler) UpdateClinic(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req ClinicRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	cl, err := h.svc.UpdateClinic(c.Request().Context(), actor, id, req)
	if err != nil {
		return err
	}
	return api.OK(c, cl)
}

func (h *Handler) DeleteClinic(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteClinic(c.Request().Context(), actor, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

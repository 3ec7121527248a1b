package identity

import (
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
	// Public
	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)

	// Any authenticated caller
	api.GET("/me", h.Me)
	api.GET("/dentists", h.ListDentists)
	api.GET("/dentists/:userId", h.GetDentist)

	// Admin
	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/users", h.CreateUser)
	admin.PUT("/dentists/:userId", h.UpsertDentist)
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return apperr.Validation("malformed request body")
	}
	return c.Validate(req)
}

func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	u, err := h.svc.Register(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return api.Created(c, u)
}

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	tok, err := h.svc.Login(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return api.OK(c, tok)
}

func (h *Handler) Me(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}
	u, err := h.svc.Me(c.Request().Context(), actor)
	if err != nil {
		return err
	}
	return api.OK(c, u)
}

func (h *Handler) CreateUser(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}
	var req CreateUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	u, err := h.svc.CreateUser(c.Request().Context(), actor, req)
	if err != nil {
		return err
	}
	return api.Created(c, u)
}

func (h *Handler) ListDentists(c echo.Context) error {
	var clinicID *uuid.UUID
	if raw := c.QueryParam("clinicId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return apperr.Validation("invalid clinicId")
		}
		clinicID = &id
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListDentists(c.Request().Context(), clinicID, pg)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Dentist{}
	}
	return api.OK(c, pagination.NewPage(items, total, pg))
}

func (h *Handler) GetDentist(c echo.Context) error {
	id, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		return apperr.NotFound("Dentist")
	}
	d, err := h.svc.GetDentist(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return api.OK(c, d)
}

func (h *Handler) UpsertDentist(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		return apperr.NotFound("Dentist")
	}
	var req DentistProfileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	d, err := h.svc.UpsertDentistProfile(c.Request().Context(), actor, id, req)
	if err != nil {
		return err
	}
	return api.OK(c, d)
}

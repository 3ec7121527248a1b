package notification

import (
	"fmt"

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
	api.GET("/notifications", h.List)
	api.GET("/notifications/unread-count", h.UnreadCount)
	api.PUT("/notifications/:id/read", h.MarkRead)
	api.POST("/notifications/read-all", h.MarkAllRead)

	staff := api.Group("", auth.RequireRole(auth.RoleSecretary))
	staff.POST("/notifications", h.Create)
}

func (h *Handler) List(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), actor, c.QueryParam("unread") == "true", pg)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Notification{}
	}
	return api.OK(c, pagination.NewPage(items, total, pg))
}

func (h *Handler) UnreadCount(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}
	n, err := h.svc.UnreadCount(c.Request().Context(), actor)
	if err != nil {
		return err
	}
	return api.OK(c, UnreadCount{Count: n})
}

func (h *Handler) MarkRead(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.NotFound("Notification")
	}
	var req ReadRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("malformed request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	n, err := h.svc.MarkRead(c.Request().Context(), actor, id, *req.IsRead)
	if err != nil {
		return err
	}
	return api.OK(c, n)
}

func (h *Handler) MarkAllRead(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}
	n, err := h.svc.MarkAllRead(c.Request().Context(), actor)
	if err != nil {
		return err
	}
	return api.OKMessage(c, UnreadCount{Count: 0}, fmt.Sprintf("%d notifications marked as read", n))
}

func (h *Handler) Create(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("malformed request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	n, err := h.svc.Send(c.Request().Context(), actor, req)
	if err != nil {
		return err
	}
	return api.Created(c, n)
}

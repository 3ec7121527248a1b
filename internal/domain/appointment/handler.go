package appointment

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/smiledesk/dental/internal/platform/api"
	"github.com/smiledesk/dental/internal/platform/auth"
	"github.com/smiledesk/dental/pkg/apperr"
	"github.com/smiledesk/dental/pkg/pagination"
)

const defaultSlotMinutes = 30

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/appointments", h.List)
	api.GET("/appointments/:id", h.Get)
	api.POST("/appointments/:id/confirm", h.Confirm)
	api.POST("/appointments/:id/cancel", h.Cancel)
	api.GET("/availability/dentist/:userId/slots", h.FreeSlots)

	book := api.Group("", auth.RequireRole(auth.RolePatient, auth.RoleSecretary))
	book.POST("/appointments", h.Book)
}

func idParam(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.NotFound("Appointment")
	}
	return id, nil
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return apperr.Validation("malformed request body")
	}
	return c.Validate(req)
}

func (h *Handler) Book(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}
	var req BookingRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	a, err := h.svc.RequestBooking(c.Request().Context(), actor, req)
	if err != nil {
		return err
	}
	return api.Created(c, a)
}

func (h *Handler) Get(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}
	a, err := h.svc.GetAppointment(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}
	return api.OK(c, a)
}

func (h *Handler) List(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}

	var f Filter
	if v := c.QueryParam("status"); v != "" {
		st := Status(v)
		switch st {
		case StatusPending, StatusConfirmed, StatusCancelled:
		default:
			return apperr.Validation("status must be one of [pending confirmed cancelled]")
		}
		f.Status = &st
	}
	if v := c.QueryParam("date"); v != "" {
		f.Date = &v
	}
	if v := c.QueryParam("dentistId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return apperr.Validation("dentistId must be a valid UUID")
		}
		f.DentistID = &id
	}
	if v := c.QueryParam("patientId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return apperr.Validation("patientId must be a valid UUID")
		}
		f.PatientID = &id
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListAppointments(c.Request().Context(), actor, f, pg)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Appointment{}
	}
	return api.OK(c, pagination.NewPage(items, total, pg))
}

func (h *Handler) Confirm(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}
	a, err := h.svc.Confirm(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}
	return api.OKMessage(c, a, "Appointment confirmed")
}

func (h *Handler) Cancel(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var req CancelRequest
	if c.Request().ContentLength != 0 {
		if err := bindAndValidate(c, &req); err != nil {
			return err
		}
	}
	a, err := h.svc.Cancel(c.Request().Context(), actor, id, req.Reason)
	if err != nil {
		return err
	}
	return api.OKMessage(c, a, "Appointment cancelled")
}

func (h *Handler) FreeSlots(c echo.Context) error {
	dentistID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		return apperr.NotFound("Dentist")
	}
	date := c.QueryParam("date")
	if date == "" {
		return apperr.Validation("date is required")
	}
	minutes := defaultSlotMinutes
	if v := c.QueryParam("duration"); v != "" {
		if minutes, err = strconv.Atoi(v); err != nil {
			return apperr.Validation("duration must be a number of minutes")
		}
	}
	slots, err := h.svc.FreeSlots(c.Request().Context(), dentistID, date, time.Duration(minutes)*time.Minute)
	if err != nil {
		return err
	}
	return api.OK(c, slots)
}

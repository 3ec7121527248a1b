package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/smiledesk/dental/internal/domain/identity"
	"github.com/smiledesk/dental/internal/domain/notification"
	"github.com/smiledesk/dental/internal/platform/auth"
	"github.com/smiledesk/dental/internal/platform/db"
	notify "github.com/smiledesk/dental/internal/platform/notification"
	"github.com/smiledesk/dental/pkg/apperr"
	"github.com/smiledesk/dental/pkg/pagination"
	"github.com/smiledesk/dental/pkg/timerange"
)

// Availability yields a dentist's effective working windows for a day.
type Availability interface {
	EffectiveAvailability(ctx context.Context, dentistID uuid.UUID, date time.Time) ([]timerange.TimeRange, error)
}

// Directory resolves the people an appointment refers to.
type Directory interface {
	GetUser(ctx context.Context, id uuid.UUID) (*identity.User, error)
	GetDentist(ctx context.Context, userID uuid.UUID) (*identity.Dentist, error)
}

// Notifier persists notifications inside the caller's transaction and
// delivers them once it has committed.
type Notifier interface {
	DispatchTemplate(ctx context.Context, userID uuid.UUID, templateID string, data map[string]string, appointmentID *uuid.UUID) (*notification.Notification, error)
	Deliver(ctx context.Context, ns ...*notification.Notification)
}

// Service books appointments and drives them through their lifecycle.
type Service struct {
	repo      Repository
	avail     Availability
	directory Directory
	notifier  Notifier
	tx        db.TxRunner
	loc       *time.Location
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(repo Repository, avail Availability, directory Directory, notifier Notifier,
	tx db.TxRunner, loc *time.Location, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		avail:     avail,
		directory: directory,
		notifier:  notifier,
		tx:        tx,
		loc:       loc,
		logger:    logger,
		now:       time.Now,
	}
}

// -- Booking --

// bookingPatient decides who an appointment is booked for. Patients book
// for themselves; clinic staff must name the patient.
func bookingPatient(actor auth.Actor, requested *uuid.UUID) (uuid.UUID, error) {
	switch {
	case actor.Role == auth.RolePatient:
		if requested != nil && *requested != actor.UserID {
			return uuid.Nil, apperr.New(apperr.KindForbidden, "patients may only book for themselves")
		}
		return actor.UserID, nil
	case actor.Role == auth.RoleSecretary || actor.Role.IsAdmin():
		if requested == nil || *requested == uuid.Nil {
			return uuid.Nil, apperr.Validation("patientId is required")
		}
		return *requested, nil
	default:
		return uuid.Nil, apperr.Newf(apperr.KindForbidden, "a %s may not book appointments", actor.Role)
	}
}

// RequestBooking validates the requested range against the dentist's
// effective availability and creates a pending appointment when no active
// appointment overlaps it. Concurrent requests for the same slot are
// serialized by the repository; losers get apperr.ErrSlotConflict.
func (s *Service) RequestBooking(ctx context.Context, actor auth.Actor, req BookingRequest) (*Appointment, error) {
	r, err := timerange.Parse(req.AppointmentDate, req.StartTime, req.EndTime, s.loc)
	if err != nil {
		return nil, err
	}

	patientID, err := bookingPatient(actor, req.PatientID)
	if err != nil {
		return nil, err
	}

	dentist, err := s.directory.GetDentist(ctx, req.DentistID)
	if err != nil {
		return nil, err
	}
	if !dentist.Active {
		return nil, apperr.Validation("%s is not accepting appointments", dentist.DisplayName())
	}
	if actor.Role == auth.RoleSecretary && !actor.InClinic(dentist.ClinicID) {
		return nil, apperr.New(apperr.KindForbidden, "secretaries may only book for dentists of their clinic")
	}

	if r.Start.Before(s.now()) {
		return nil, apperr.Validation("appointments cannot be booked in the past")
	}

	patient, err := s.directory.GetUser(ctx, patientID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.NotFound("Patient")
		}
		return nil, err
	}

	windows, err := s.avail.EffectiveAvailability(ctx, dentist.UserID, r.Start)
	if err != nil {
		return nil, err
	}
	if !timerange.AnyContains(windows, r) {
		return nil, apperr.ErrOutsideAvailability
	}

	a := &Appointment{
		DentistID:        dentist.UserID,
		PatientID:        patient.ID,
		ClinicID:         dentist.ClinicID,
		AppointmentDate:  r.Start.In(s.loc).Format(timerange.DateLayout),
		Start:            r.Start,
		End:              r.End,
		Status:           StatusPending,
		Notes:            req.Notes,
		TreatmentOptions: req.TreatmentOptions,
	}

	var sent []*notification.Notification
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.CreateIfFree(ctx, a); err != nil {
			return err
		}
		a.localize(s.loc)
		sent, err = s.notifyBooked(ctx, a, patient, dentist)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("appointment_id", a.ID.String()).
		Str("dentist_id", a.DentistID.String()).
		Str("patient_id", a.PatientID.String()).
		Str("date", a.AppointmentDate).
		Str("start", a.StartTime).
		Msg("appointment requested")

	s.notifier.Deliver(ctx, sent...)
	return a, nil
}

func (s *Service) notifyBooked(ctx context.Context, a *Appointment, patient *identity.User, dentist *identity.Dentist) ([]*notification.Notification, error) {
	data := s.templateData(a, patient.Name, dentist.DisplayName())
	toDentist, err := s.notifier.DispatchTemplate(ctx, a.DentistID, notify.TemplateAppointmentRequested, data, &a.ID)
	if err != nil {
		return nil, err
	}
	toPatient, err := s.notifier.DispatchTemplate(ctx, a.PatientID, notify.TemplateBookingReceived, data, &a.ID)
	if err != nil {
		return nil, err
	}
	return []*notification.Notification{toDentist, toPatient}, nil
}

func (s *Service) templateData(a *Appointment, patientName, dentistName string) map[string]string {
	return map[string]string{
		"patient_name": patientName,
		"dentist_name": dentistName,
		"date":         a.AppointmentDate,
		"start":        a.StartTime,
		"end":          a.EndTime,
	}
}

// -- Transitions --

// Confirm moves a pending appointment to confirmed.
func (s *Service) Confirm(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, actor, id, ActionConfirm, nil)
}

// Cancel moves a pending or confirmed appointment to cancelled, releasing
// its slot.
func (s *Service) Cancel(ctx context.Context, actor auth.Actor, id uuid.UUID, reason *string) (*Appointment, error) {
	return s.transition(ctx, actor, id, ActionCancel, reason)
}

func (s *Service) transition(ctx context.Context, actor auth.Actor, id uuid.UUID, action Action, reason *string) (*Appointment, error) {
	var (
		a    *Appointment
		from Status
		sent []*notification.Notification
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		a, err = s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := Authorize(actor, action, a); err != nil {
			return err
		}
		from = a.Status
		to, err := Next(from, action)
		if err != nil {
			return err
		}
		if err := a.moveTo(to); err != nil {
			return err
		}
		if to == StatusCancelled {
			by := actor.UserID
			a.CancelledBy = &by
			a.CancellationReason = reason
		}
		if err := s.repo.UpdateStatus(ctx, a); err != nil {
			return err
		}
		a.localize(s.loc)

		sent, err = s.notifyTransition(ctx, actor, a)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("appointment_id", a.ID.String()).
		Str("actor_id", actor.UserID.String()).
		Str("from", string(from)).
		Str("to", string(a.Status)).
		Msg("appointment status changed")

	s.notifier.Deliver(ctx, sent...)
	return a, nil
}

func (s *Service) notifyTransition(ctx context.Context, actor auth.Actor, a *Appointment) ([]*notification.Notification, error) {
	patient, err := s.directory.GetUser(ctx, a.PatientID)
	if err != nil {
		return nil, err
	}
	dentist, err := s.directory.GetDentist(ctx, a.DentistID)
	if err != nil {
		return nil, err
	}
	data := s.templateData(a, patient.Name, dentist.DisplayName())

	switch a.Status {
	case StatusConfirmed:
		n, err := s.notifier.DispatchTemplate(ctx, a.PatientID, notify.TemplateAppointmentConfirmed, data, &a.ID)
		if err != nil {
			return nil, err
		}
		return []*notification.Notification{n}, nil

	case StatusCancelled:
		switch actor.UserID {
		case a.PatientID:
			data["cancelled_by"] = patient.Name
		case a.DentistID:
			data["cancelled_by"] = dentist.DisplayName()
		default:
			data["cancelled_by"] = "the clinic"
		}
		data["reason_note"] = ""
		if a.CancellationReason != nil && *a.CancellationReason != "" {
			data["reason_note"] = " Reason: " + *a.CancellationReason
		}

		var sent []*notification.Notification
		for _, recipient := range []uuid.UUID{a.PatientID, a.DentistID} {
			if recipient == actor.UserID {
				continue
			}
			n, err := s.notifier.DispatchTemplate(ctx, recipient, notify.TemplateAppointmentCancelled, data, &a.ID)
			if err != nil {
				return nil, err
			}
			sent = append(sent, n)
		}
		return sent, nil
	}
	return nil, nil
}

// -- Reads --

// GetAppointment returns an appointment the actor may see. Appointments
// outside the actor's scope are reported as missing.
func (s *Service) GetAppointment(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, a) {
		return nil, apperr.NotFound("Appointment")
	}
	a.localize(s.loc)
	return a, nil
}

// ListAppointments narrows f to the actor's scope before listing.
func (s *Service) ListAppointments(ctx context.Context, actor auth.Actor, f Filter, p pagination.Params) ([]*Appointment, int, error) {
	self := actor.UserID
	switch actor.Role {
	case auth.RolePatient:
		f.PatientID = &self
	case auth.RoleDentist:
		f.DentistID = &self
	case auth.RoleSecretary:
		if actor.ClinicID == nil {
			return nil, 0, apperr.New(apperr.KindForbidden, "secretary is not attached to a clinic")
		}
		f.ClinicID = actor.ClinicID
	case auth.RoleAdmin, auth.RoleSuperAdmin:
	default:
		return nil, 0, apperr.ErrForbidden
	}
	if f.Date != nil {
		if _, err := timerange.ParseDate(*f.Date, s.loc); err != nil {
			return nil, 0, err
		}
	}

	items, total, err := s.repo.List(ctx, f, p.Limit, p.Offset)
	if err != nil {
		return nil, 0, err
	}
	for _, a := range items {
		a.localize(s.loc)
	}
	return items, total, nil
}

// FreeSlots cuts the dentist's effective windows on date, minus active
// appointments, into bookable slots of the given length. Slots that have
// already started are omitted.
func (s *Service) FreeSlots(ctx context.Context, dentistID uuid.UUID, date string, length time.Duration) ([]Slot, error) {
	if length < 5*time.Minute || length > 8*time.Hour {
		return nil, apperr.Validation("duration must be between 5 and 480 minutes")
	}
	day, err := timerange.ParseDate(date, s.loc)
	if err != nil {
		return nil, err
	}
	windows, err := s.avail.EffectiveAvailability(ctx, dentistID, day)
	if err != nil {
		return nil, err
	}
	booked, err := s.repo.ListActiveForDentist(ctx, dentistID, day.Format(timerange.DateLayout))
	if err != nil {
		return nil, err
	}
	busy := make([]timerange.TimeRange, len(booked))
	for i, a := range booked {
		busy[i] = a.Range()
	}

	now := s.now()
	slots := []Slot{}
	for _, free := range timerange.Subtract(windows, busy) {
		for _, r := range timerange.Split(free, length) {
			if r.Start.Before(now) {
				continue
			}
			start, end := r.Clocks(s.loc)
			slots = append(slots, Slot{StartTime: start.String(), EndTime: end.String(), Start: r.Start, End: r.End})
		}
	}
	return slots, nil
}

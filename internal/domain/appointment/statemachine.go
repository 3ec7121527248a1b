package appointment

import (
	"github.com/smiledesk/dental/internal/platform/auth"
	"github.com/smiledesk/dental/pkg/apperr"
)

// Action is a status-changing operation on an appointment.
type Action string

const (
	ActionConfirm Action = "confirm"
	ActionCancel  Action = "cancel"
)

// transitions lists every legal move. Cancelled is terminal.
var transitions = map[Status]map[Action]Status{
	StatusPending: {
		ActionConfirm: StatusConfirmed,
		ActionCancel:  StatusCancelled,
	},
	StatusConfirmed: {
		ActionCancel: StatusCancelled,
	},
}

// Next returns the status action leads to from from.
func Next(from Status, action Action) (Status, error) {
	if to, ok := transitions[from][action]; ok {
		return to, nil
	}
	return "", apperr.Newf(apperr.KindInvalidTransition, "cannot %s an appointment that is %s", action, from)
}

// checkTransition validates a move expressed as a target status.
func checkTransition(from, to Status) error {
	for _, next := range transitions[from] {
		if next == to {
			return nil
		}
	}
	return apperr.Newf(apperr.KindInvalidTransition, "cannot move an appointment from %s to %s", from, to)
}

// moveTo sets the status of a, failing when the move is not in the table.
func (a *Appointment) moveTo(to Status) error {
	if err := checkTransition(a.Status, to); err != nil {
		return err
	}
	a.Status = to
	return nil
}

// scope decides whether an actor of an allowed role may act on a.
type scope func(actor auth.Actor, a *Appointment) bool

func anyAppointment(auth.Actor, *Appointment) bool { return true }

func assignedDentist(actor auth.Actor, a *Appointment) bool { return actor.UserID == a.DentistID }

func owningPatient(actor auth.Actor, a *Appointment) bool { return actor.UserID == a.PatientID }

func clinicStaff(actor auth.Actor, a *Appointment) bool { return actor.InClinic(a.ClinicID) }

// capabilities is the guard table: which roles may perform an action, and
// on which appointments. A role absent from an action's row may never
// perform it.
var capabilities = map[Action]map[auth.Role]scope{
	ActionConfirm: {
		auth.RoleDentist:    assignedDentist,
		auth.RoleSecretary:  clinicStaff,
		auth.RoleAdmin:      anyAppointment,
		auth.RoleSuperAdmin: anyAppointment,
	},
	ActionCancel: {
		auth.RolePatient:    owningPatient,
		auth.RoleDentist:    assignedDentist,
		auth.RoleSecretary:  clinicStaff,
		auth.RoleAdmin:      anyAppointment,
		auth.RoleSuperAdmin: anyAppointment,
	},
}

// Authorize checks the guard table for actor performing action on a. A
// guard failure is a disallowed transition like any other.
func Authorize(actor auth.Actor, action Action, a *Appointment) error {
	inScope, ok := capabilities[action][actor.Role]
	if !ok {
		return apperr.Newf(apperr.KindInvalidTransition, "a %s may not %s appointments", actor.Role, action)
	}
	if !inScope(actor, a) {
		return apperr.Newf(apperr.KindInvalidTransition, "not allowed to %s this appointment", action)
	}
	return nil
}

// canView reports whether actor may read a.
func canView(actor auth.Actor, a *Appointment) bool {
	switch actor.Role {
	case auth.RoleAdmin, auth.RoleSuperAdmin:
		return true
	case auth.RoleSecretary:
		return clinicStaff(actor, a)
	case auth.RoleDentist:
		return assignedDentist(actor, a)
	case auth.RolePatient:
		return owningPatient(actor, a)
	}
	return false
}

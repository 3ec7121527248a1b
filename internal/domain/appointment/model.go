package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/smiledesk/dental/pkg/timerange"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Active reports whether the appointment still holds its time slot.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Appointment is a booking of one dentist's time by one patient.
//
// Start and End are the authoritative UTC instants. AppointmentDate,
// StartTime and EndTime repeat them as clinic wall-clock values.
type Appointment struct {
	ID                 uuid.UUID  `json:"appointmentId"`
	DentistID          uuid.UUID  `json:"dentistId"`
	PatientID          uuid.UUID  `json:"patientId"`
	ClinicID           *uuid.UUID `json:"clinicId,omitempty"`
	AppointmentDate    string     `json:"appointmentDate"`
	StartTime          string     `json:"startTime"`
	EndTime            string     `json:"endTime"`
	Start              time.Time  `json:"start"`
	End                time.Time  `json:"end"`
	Status             Status     `json:"status"`
	Notes              *string    `json:"notes,omitempty"`
	TreatmentOptions   []string   `json:"treatmentOptions"`
	CancellationReason *string    `json:"cancellationReason,omitempty"`
	CancelledBy        *uuid.UUID `json:"cancelledBy,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// Range returns the booked interval.
func (a *Appointment) Range() timerange.TimeRange {
	return timerange.TimeRange{Start: a.Start, End: a.End}
}

// localize fills the wall-clock fields from Start and End.
func (a *Appointment) localize(loc *time.Location) {
	a.AppointmentDate = a.Start.In(loc).Format(timerange.DateLayout)
	s, e := a.Range().Clocks(loc)
	a.StartTime, a.EndTime = s.String(), e.String()
	if a.TreatmentOptions == nil {
		a.TreatmentOptions = []string{}
	}
}

// Filter narrows a listing. Nil fields are unconstrained.
type Filter struct {
	DentistID *uuid.UUID
	PatientID *uuid.UUID
	ClinicID  *uuid.UUID
	Status    *Status
	Date      *string
}

// Slot is a bookable free interval.
type Slot struct {
	StartTime string    `json:"startTime"`
	EndTime   string    `json:"endTime"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}

// -- Requests --

type BookingRequest struct {
	DentistID        uuid.UUID  `json:"dentistId" validate:"required"`
	PatientID        *uuid.UUID `json:"patientId"`
	AppointmentDate  string     `json:"appointmentDate" validate:"required,isodate"`
	StartTime        string     `json:"startTime" validate:"required,clock"`
	EndTime          string     `json:"endTime" validate:"required,clock"`
	Notes            *string    `json:"notes" validate:"omitempty,max=2000"`
	TreatmentOptions []string   `json:"treatmentOptions" validate:"omitempty,max=20,dive,required,max=100"`
}

type CancelRequest struct {
	Reason *string `json:"reason" validate:"omitempty,max=500"`
}

package availability

import (
	"time"

	"github.com/google/uuid"

	"github.com/smiledesk/dental/pkg/timerange"
)

// Rule is a recurring weekly working window. DayOfWeek follows time.Weekday
// (0 = Sunday). Times are clinic wall-clock "HH:MM".
type Rule struct {
	ID        uuid.UUID `json:"id"`
	DentistID uuid.UUID `json:"dentistId"`
	DayOfWeek int       `json:"dayOfWeek"`
	StartTime string    `json:"startTime"`
	EndTime   string    `json:"endTime"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Override is a working window for one calendar date. Any override on a
// date replaces every rule for that weekday.
type Override struct {
	ID        uuid.UUID `json:"id"`
	DentistID uuid.UUID `json:"dentistId"`
	Date      string    `json:"date"`
	StartTime string    `json:"startTime"`
	EndTime   string    `json:"endTime"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Leave blanks out an inclusive range of dates.
type Leave struct {
	ID        uuid.UUID `json:"id"`
	DentistID uuid.UUID `json:"dentistId"`
	StartDate string    `json:"startDate"`
	EndDate   string    `json:"endDate"`
	Reason    *string   `json:"reason,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Covers reports whether date (YYYY-MM-DD) falls inside the leave.
func (l *Leave) Covers(date string) bool {
	return l.StartDate <= date && date <= l.EndDate
}

// Schedule is everything configured for one dentist.
type Schedule struct {
	DentistID uuid.UUID   `json:"dentistId"`
	Rules     []*Rule     `json:"rules"`
	Overrides []*Override `json:"overrides"`
	Leaves    []*Leave    `json:"leaves"`
}

// Window is one effective working window on a date.
type Window struct {
	StartTime string    `json:"startTime"`
	EndTime   string    `json:"endTime"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}

func NewWindow(r timerange.TimeRange, loc *time.Location) Window {
	s, e := r.Clocks(loc)
	return Window{StartTime: s.String(), EndTime: e.String(), Start: r.Start, End: r.End}
}

// -- Requests --

type RuleRequest struct {
	DentistID *uuid.UUID `json:"dentistId"`
	DayOfWeek *int       `json:"dayOfWeek" validate:"required,min=0,max=6"`
	StartTime string     `json:"startTime" validate:"required,clock"`
	EndTime   string     `json:"endTime" validate:"required,clock"`
}

type OverrideRequest struct {
	DentistID *uuid.UUID `json:"dentistId"`
	Date      string     `json:"date" validate:"required,isodate"`
	StartTime string     `json:"startTime" validate:"required,clock"`
	EndTime   string     `json:"endTime" validate:"required,clock"`
}

type LeaveRequest struct {
	DentistID *uuid.UUID `json:"dentistId"`
	StartDate string     `json:"startDate" validate:"required,isodate"`
	EndDate   string     `json:"endDate" validate:"required,isodate"`
	Reason    *string    `json:"reason" validate:"omitempty,max=500"`
}

package availability

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/smiledesk/dental/internal/domain/identity"
	"github.com/smiledesk/dental/internal/platform/auth"
	"github.com/smiledesk/dental/internal/platform/db"
	"github.com/smiledesk/dental/pkg/apperr"
	"github.com/smiledesk/dental/pkg/timerange"
)

// DentistDirectory resolves dentist profiles.
type DentistDirectory interface {
	GetDentist(ctx context.Context, userID uuid.UUID) (*identity.Dentist, error)
}

// Service owns the weekly rules, date overrides and leaves of every dentist
// and derives effective working windows from them. It knows nothing about
// appointments.
type Service struct {
	rules     RuleRepository
	overrides OverrideRepository
	leaves    LeaveRepository
	locker    Locker
	tx        db.TxRunner
	dentists  DentistDirectory
	loc       *time.Location
	logger    zerolog.Logger
}

func NewService(rules RuleRepository, overrides OverrideRepository, leaves LeaveRepository,
	locker Locker, tx db.TxRunner, dentists DentistDirectory, loc *time.Location, logger zerolog.Logger) *Service {
	return &Service{
		rules:     rules,
		overrides: overrides,
		leaves:    leaves,
		locker:    locker,
		tx:        tx,
		dentists:  dentists,
		loc:       loc,
		logger:    logger,
	}
}

// Location is the clinic timezone wall-clock values are read in.
func (s *Service) Location() *time.Location { return s.loc }

// -- Authorization --

func authorize(actor auth.Actor, dentistID uuid.UUID) error {
	if actor.Role.IsAdmin() {
		return nil
	}
	if actor.Role == auth.RoleDentist {
		if actor.UserID == dentistID {
			return nil
		}
		return apperr.New(apperr.KindForbidden, "dentists may only manage their own availability")
	}
	return apperr.New(apperr.KindForbidden, "only the dentist or an administrator may manage availability")
}

// targetDentist picks the dentist a create request is for: the explicit id,
// or the calling dentist.
func (s *Service) targetDentist(ctx context.Context, actor auth.Actor, requested *uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	switch {
	case requested != nil:
		id = *requested
	case actor.Role == auth.RoleDentist:
		id = actor.UserID
	default:
		return uuid.Nil, apperr.Validation("dentistId is required")
	}
	if err := authorize(actor, id); err != nil {
		return uuid.Nil, err
	}
	if _, err := s.dentists.GetDentist(ctx, id); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// mutate runs fn in a transaction holding the dentist's schedule lock.
func (s *Service) mutate(ctx context.Context, dentistID uuid.UUID, fn func(ctx context.Context) error) error {
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.locker.Lock(ctx, dentistID); err != nil {
			return err
		}
		return fn(ctx)
	})
}

func parseClocks(start, end string) (timerange.Clock, timerange.Clock, error) {
	s, err := timerange.ParseClock(start)
	if err != nil {
		return s, s, err
	}
	e, err := timerange.ParseClock(end)
	if err != nil {
		return s, e, err
	}
	return s, e, timerange.ValidateClocks(s, e)
}

// clocksOverlap compares two stored "HH:MM" windows, half-open.
func clocksOverlap(aStart, aEnd, bStart, bEnd string) bool {
	as, ae := timerange.MustClock(aStart), timerange.MustClock(aEnd)
	bs, be := timerange.MustClock(bStart), timerange.MustClock(bEnd)
	return as.Before(be) && bs.Before(ae)
}

// -- Rules --

func (s *Service) AddRule(ctx context.Context, actor auth.Actor, req RuleRequest) (*Rule, error) {
	start, end, err := parseClocks(req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	dentistID, err := s.targetDentist(ctx, actor, req.DentistID)
	if err != nil {
		return nil, err
	}
	rule := &Rule{DentistID: dentistID, DayOfWeek: *req.DayOfWeek, StartTime: start.String(), EndTime: end.String()}

	err = s.mutate(ctx, dentistID, func(ctx context.Context) error {
		if err := s.checkRuleOverlap(ctx, rule); err != nil {
			return err
		}
		return s.rules.Create(ctx, rule)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("dentist_id", dentistID.String()).Int("day_of_week", rule.DayOfWeek).
		Str("start", rule.StartTime).Str("end", rule.EndTime).Msg("availability rule added")
	return rule, nil
}

func (s *Service) UpdateRule(ctx context.Context, actor auth.Actor, id uuid.UUID, req RuleRequest) (*Rule, error) {
	start, end, err := parseClocks(req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, rule.DentistID); err != nil {
		return nil, err
	}
	rule.DayOfWeek, rule.StartTime, rule.EndTime = *req.DayOfWeek, start.String(), end.String()

	err = s.mutate(ctx, rule.DentistID, func(ctx context.Context) error {
		if err := s.checkRuleOverlap(ctx, rule); err != nil {
			return err
		}
		return s.rules.Update(ctx, rule)
	})
	if err != nil {
		return nil, err
	}
	return rule, nil
}

func (s *Service) DeleteRule(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := authorize(actor, rule.DentistID); err != nil {
		return err
	}
	return s.mutate(ctx, rule.DentistID, func(ctx context.Context) error {
		return s.rules.Delete(ctx, id)
	})
}

func (s *Service) checkRuleOverlap(ctx context.Context, rule *Rule) error {
	existing, err := s.rules.ListByDay(ctx, rule.DentistID, rule.DayOfWeek)
	if err != nil {
		return err
	}
	for _, r := range existing {
		if r.ID != rule.ID && clocksOverlap(r.StartTime, r.EndTime, rule.StartTime, rule.EndTime) {
			return apperr.Newf(apperr.KindOverlap, "rule overlaps existing %s %s-%s window",
				time.Weekday(r.DayOfWeek), r.StartTime, r.EndTime)
		}
	}
	return nil
}

// -- Overrides --

func (s *Service) AddOverride(ctx context.Context, actor auth.Actor, req OverrideRequest) (*Override, error) {
	date, start, end, err := s.parseOverride(req)
	if err != nil {
		return nil, err
	}
	dentistID, err := s.targetDentist(ctx, actor, req.DentistID)
	if err != nil {
		return nil, err
	}
	o := &Override{DentistID: dentistID, Date: date, StartTime: start, EndTime: end}

	err = s.mutate(ctx, dentistID, func(ctx context.Context) error {
		if err := s.checkOverrideOverlap(ctx, o); err != nil {
			return err
		}
		return s.overrides.Create(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("dentist_id", dentistID.String()).Str("date", o.Date).
		Str("start", o.StartTime).Str("end", o.EndTime).Msg("availability override added")
	return o, nil
}

func (s *Service) UpdateOverride(ctx context.Context, actor auth.Actor, id uuid.UUID, req OverrideRequest) (*Override, error) {
	date, start, end, err := s.parseOverride(req)
	if err != nil {
		return nil, err
	}
	o, err := s.overrides.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, o.DentistID); err != nil {
		return nil, err
	}
	o.Date, o.StartTime, o.EndTime = date, start, end

	err = s.mutate(ctx, o.DentistID, func(ctx context.Context) error {
		if err := s.checkOverrideOverlap(ctx, o); err != nil {
			return err
		}
		return s.overrides.Update(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) DeleteOverride(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	o, err := s.overrides.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := authorize(actor, o.DentistID); err != nil {
		return err
	}
	return s.mutate(ctx, o.DentistID, func(ctx context.Context) error {
		return s.overrides.Delete(ctx, id)
	})
}

func (s *Service) parseOverride(req OverrideRequest) (date, start, end string, err error) {
	d, err := timerange.ParseDate(req.Date, s.loc)
	if err != nil {
		return "", "", "", err
	}
	sc, ec, err := parseClocks(req.StartTime, req.EndTime)
	if err != nil {
		return "", "", "", err
	}
	return d.Format(timerange.DateLayout), sc.String(), ec.String(), nil
}

func (s *Service) checkOverrideOverlap(ctx context.Context, o *Override) error {
	existing, err := s.overrides.ListByDate(ctx, o.DentistID, o.Date)
	if err != nil {
		return err
	}
	for _, e := range existing {
		if e.ID != o.ID && clocksOverlap(e.StartTime, e.EndTime, o.StartTime, o.EndTime) {
			return apperr.Newf(apperr.KindOverlap, "override overlaps existing %s %s-%s window",
				e.Date, e.StartTime, e.EndTime)
		}
	}
	return nil
}

// -- Leaves --

func (s *Service) AddLeave(ctx context.Context, actor auth.Actor, req LeaveRequest) (*Leave, error) {
	start, end, err := s.parseLeave(req)
	if err != nil {
		return nil, err
	}
	dentistID, err := s.targetDentist(ctx, actor, req.DentistID)
	if err != nil {
		return nil, err
	}
	l := &Leave{DentistID: dentistID, StartDate: start, EndDate: end, Reason: req.Reason}

	err = s.mutate(ctx, dentistID, func(ctx context.Context) error {
		if err := s.checkLeaveOverlap(ctx, l); err != nil {
			return err
		}
		return s.leaves.Create(ctx, l)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("dentist_id", dentistID.String()).Str("start_date", l.StartDate).
		Str("end_date", l.EndDate).Msg("leave added")
	return l, nil
}

func (s *Service) UpdateLeave(ctx context.Context, actor auth.Actor, id uuid.UUID, req LeaveRequest) (*Leave, error) {
	start, end, err := s.parseLeave(req)
	if err != nil {
		return nil, err
	}
	l, err := s.leaves.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, l.DentistID); err != nil {
		return nil, err
	}
	l.StartDate, l.EndDate, l.Reason = start, end, req.Reason

	err = s.mutate(ctx, l.DentistID, func(ctx context.Context) error {
		if err := s.checkLeaveOverlap(ctx, l); err != nil {
			return err
		}
		return s.leaves.Update(ctx, l)
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (s *Service) DeleteLeave(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	l, err := s.leaves.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := authorize(actor, l.DentistID); err != nil {
		return err
	}
	return s.mutate(ctx, l.DentistID, func(ctx context.Context) error {
		return s.leaves.Delete(ctx, id)
	})
}

func (s *Service) parseLeave(req LeaveRequest) (string, string, error) {
	start, err := timerange.ParseDate(req.StartDate, s.loc)
	if err != nil {
		return "", "", err
	}
	end, err := timerange.ParseDate(req.EndDate, s.loc)
	if err != nil {
		return "", "", err
	}
	if end.Before(start) {
		return "", "", apperr.New(apperr.KindInvalidRange, "leave endDate must not be before startDate")
	}
	return start.Format(timerange.DateLayout), end.Format(timerange.DateLayout), nil
}

func (s *Service) checkLeaveOverlap(ctx context.Context, l *Leave) error {
	existing, err := s.leaves.ListByDentist(ctx, l.DentistID)
	if err != nil {
		return err
	}
	for _, e := range existing {
		if e.ID != l.ID && e.StartDate <= l.EndDate && l.StartDate <= e.EndDate {
			return apperr.Newf(apperr.KindOverlap, "leave overlaps existing leave %s to %s", e.StartDate, e.EndDate)
		}
	}
	return nil
}

// -- Queries --

// GetSchedule returns every rule, override and leave of a dentist.
func (s *Service) GetSchedule(ctx context.Context, dentistID uuid.UUID) (*Schedule, error) {
	if _, err := s.dentists.GetDentist(ctx, dentistID); err != nil {
		return nil, err
	}
	rules, err := s.rules.ListByDentist(ctx, dentistID)
	if err != nil {
		return nil, err
	}
	overrides, err := s.overrides.ListByDentist(ctx, dentistID)
	if err != nil {
		return nil, err
	}
	leaves, err := s.leaves.ListByDentist(ctx, dentistID)
	if err != nil {
		return nil, err
	}

	sched := &Schedule{DentistID: dentistID, Rules: rules, Overrides: overrides, Leaves: leaves}
	if sched.Rules == nil {
		sched.Rules = []*Rule{}
	}
	if sched.Overrides == nil {
		sched.Overrides = []*Override{}
	}
	if sched.Leaves == nil {
		sched.Leaves = []*Leave{}
	}
	return sched, nil
}

// EffectiveAvailability returns the dentist's working windows on the
// calendar day of date, ordered by start. A leave covering the day empties
// it; otherwise date overrides, when present, replace the weekday rules.
func (s *Service) EffectiveAvailability(ctx context.Context, dentistID uuid.UUID, date time.Time) ([]timerange.TimeRange, error) {
	if _, err := s.dentists.GetDentist(ctx, dentistID); err != nil {
		return nil, err
	}
	day := timerange.DateOf(date, s.loc)
	key := day.Format(timerange.DateLayout)

	leaves, err := s.leaves.ListCovering(ctx, dentistID, key)
	if err != nil {
		return nil, err
	}
	if len(leaves) > 0 {
		return []timerange.TimeRange{}, nil
	}

	type window struct{ start, end string }
	var windows []window

	overrides, err := s.overrides.ListByDate(ctx, dentistID, key)
	if err != nil {
		return nil, err
	}
	if len(overrides) > 0 {
		for _, o := range overrides {
			windows = append(windows, window{o.StartTime, o.EndTime})
		}
	} else {
		rules, err := s.rules.ListByDay(ctx, dentistID, int(day.Weekday()))
		if err != nil {
			return nil, err
		}
		for _, r := range rules {
			windows = append(windows, window{r.StartTime, r.EndTime})
		}
	}

	out := make([]timerange.TimeRange, 0, len(windows))
	for _, w := range windows {
		start, end, err := parseClocks(w.start, w.end)
		if err != nil {
			return nil, err
		}
		r, err := timerange.New(day, start, end, s.loc)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	timerange.Sort(out)
	return out, nil
}

// EffectiveWindows is EffectiveAvailability for a YYYY-MM-DD date, rendered
// with wall-clock times.
func (s *Service) EffectiveWindows(ctx context.Context, dentistID uuid.UUID, date string) ([]Window, error) {
	day, err := timerange.ParseDate(date, s.loc)
	if err != nil {
		return nil, err
	}
	ranges, err := s.EffectiveAvailability(ctx, dentistID, day)
	if err != nil {
		return nil, err
	}
	out := make([]Window, len(ranges))
	for i, r := range ranges {
		out[i] = NewWindow(r, s.loc)
	}
	return out, nil
}

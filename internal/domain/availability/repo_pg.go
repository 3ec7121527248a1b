package availability

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smiledesk/dental/internal/platform/db"
	"github.com/smiledesk/dental/pkg/apperr"
)

// Times and dates travel as text in the clinic's wall-clock form.
const (
	clockCol = `to_char(%s, 'HH24:MI')`
	dateCol  = `to_char(%s, 'YYYY-MM-DD')`
)

func col(format, name string) string { return fmt.Sprintf(format, name) }

func mapWriteErr(err error, entity, op string) error {
	switch {
	case err == nil:
		return nil
	case db.IsNoRows(err):
		return apperr.NotFound(entity)
	case db.IsExclusionViolation(err):
		return apperr.ErrOverlap
	case db.IsForeignKeyViolation(err):
		return apperr.NotFound("Dentist")
	default:
		return fmt.Errorf("%s %s: %w", op, entity, err)
	}
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]*T, error) {
	defer rows.Close()
	var items []*T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// =========== Rule Repository ===========

type ruleRepoPG struct{ pool *pgxpool.Pool }

func NewRuleRepoPG(pool *pgxpool.Pool) RuleRepository { return &ruleRepoPG{pool: pool} }

var ruleCols = `id, dentist_id, day_of_week, ` + col(clockCol, "start_time") + `, ` +
	col(clockCol, "end_time") + `, created_at, updated_at`

func scanRule(row pgx.Row) (*Rule, error) {
	var r Rule
	if err := row.Scan(&r.ID, &r.DentistID, &r.DayOfWeek, &r.StartTime, &r.EndTime, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *ruleRepoPG) Create(ctx context.Context, rule *Rule) error {
	rule.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO availability_rules (id, dentist_id, day_of_week, start_time, end_time)
		VALUES ($1, $2, $3, $4::time, $5::time)
		RETURNING created_at, updated_at`,
		rule.ID, rule.DentistID, rule.DayOfWeek, rule.StartTime, rule.EndTime,
	).Scan(&rule.CreatedAt, &rule.UpdatedAt)
	return mapWriteErr(err, "Availability rule", "insert")
}

func (r *ruleRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Rule, error) {
	rule, err := scanRule(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+ruleCols+` FROM availability_rules WHERE id = $1`, id))
	if err != nil {
		return nil, mapWriteErr(err, "Availability rule", "get")
	}
	return rule, nil
}

func (r *ruleRepoPG) Update(ctx context.Context, rule *Rule) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE availability_rules SET day_of_week=$2, start_time=$3::time, end_time=$4::time, updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		rule.ID, rule.DayOfWeek, rule.StartTime, rule.EndTime,
	).Scan(&rule.CreatedAt, &rule.UpdatedAt)
	return mapWriteErr(err, "Availability rule", "update")
}

func (r *ruleRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM availability_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete availability rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Availability rule")
	}
	return nil
}

func (r *ruleRepoPG) ListByDentist(ctx context.Context, dentistID uuid.UUID) ([]*Rule, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+ruleCols+` FROM availability_rules
		WHERE dentist_id = $1 ORDER BY day_of_week, start_time`, dentistID)
	if err != nil {
		return nil, fmt.Errorf("list availability rules: %w", err)
	}
	return collect(rows, scanRule)
}

func (r *ruleRepoPG) ListByDay(ctx context.Context, dentistID uuid.UUID, dayOfWeek int) ([]*Rule, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+ruleCols+` FROM availability_rules
		WHERE dentist_id = $1 AND day_of_week = $2 ORDER BY start_time`, dentistID, dayOfWeek)
	if err != nil {
		return nil, fmt.Errorf("list availability rules by day: %w", err)
	}
	return collect(rows, scanRule)
}

// =========== Override Repository ===========

type overrideRepoPG struct{ pool *pgxpool.Pool }

func NewOverrideRepoPG(pool *pgxpool.Pool) OverrideRepository { return &overrideRepoPG{pool: pool} }

var overrideCols = `id, dentist_id, ` + col(dateCol, "date") + `, ` + col(clockCol, "start_time") + `, ` +
	col(clockCol, "end_time") + `, created_at, updated_at`

func scanOverride(row pgx.Row) (*Override, error) {
	var o Override
	if err := row.Scan(&o.ID, &o.DentistID, &o.Date, &o.StartTime, &o.EndTime, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *overrideRepoPG) Create(ctx context.Context, o *Override) error {
	o.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO specific_availability (id, dentist_id, date, start_time, end_time)
		VALUES ($1, $2, $3::date, $4::time, $5::time)
		RETURNING created_at, updated_at`,
		o.ID, o.DentistID, o.Date, o.StartTime, o.EndTime,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	return mapWriteErr(err, "Availability override", "insert")
}

func (r *overrideRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Override, error) {
	o, err := scanOverride(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+overrideCols+` FROM specific_availability WHERE id = $1`, id))
	if err != nil {
		return nil, mapWriteErr(err, "Availability override", "get")
	}
	return o, nil
}

func (r *overrideRepoPG) Update(ctx context.Context, o *Override) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE specific_availability SET date=$2::date, start_time=$3::time, end_time=$4::time, updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		o.ID, o.Date, o.StartTime, o.EndTime,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	return mapWriteErr(err, "Availability override", "update")
}

func (r *overrideRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM specific_availability WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete availability override: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Availability override")
	}
	return nil
}

func (r *overrideRepoPG) ListByDentist(ctx context.Context, dentistID uuid.UUID) ([]*Override, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+overrideCols+` FROM specific_availability
		WHERE dentist_id = $1 ORDER BY date, start_time`, dentistID)
	if err != nil {
		return nil, fmt.Errorf("list availability overrides: %w", err)
	}
	return collect(rows, scanOverride)
}

func (r *overrideRepoPG) ListByDate(ctx context.Context, dentistID uuid.UUID, date string) ([]*Override, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+overrideCols+` FROM specific_availability
		WHERE dentist_id = $1 AND date = $2::date ORDER BY start_time`, dentistID, date)
	if err != nil {
		return nil, fmt.Errorf("list availability overrides by date: %w", err)
	}
	return collect(rows, scanOverride)
}

// =========== Leave Repository ===========

type leaveRepoPG struct{ pool *pgxpool.Pool }

func NewLeaveRepoPG(pool *pgxpool.Pool) LeaveRepository { return &leaveRepoPG{pool: pool} }

var leaveCols = `id, dentist_id, ` + col(dateCol, "start_date") + `, ` + col(dateCol, "end_date") +
	`, reason, created_at, updated_at`

func scanLeave(row pgx.Row) (*Leave, error) {
	var l Leave
	if err := row.Scan(&l.ID, &l.DentistID, &l.StartDate, &l.EndDate, &l.Reason, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *leaveRepoPG) Create(ctx context.Context, l *Leave) error {
	l.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO dentist_leaves (id, dentist_id, start_date, end_date, reason)
		VALUES ($1, $2, $3::date, $4::date, $5)
		RETURNING created_at, updated_at`,
		l.ID, l.DentistID, l.StartDate, l.EndDate, l.Reason,
	).Scan(&l.CreatedAt, &l.UpdatedAt)
	return mapWriteErr(err, "Leave", "insert")
}

func (r *leaveRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Leave, error) {
	l, err := scanLeave(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+leaveCols+` FROM dentist_leaves WHERE id = $1`, id))
	if err != nil {
		return nil, mapWriteErr(err, "Leave", "get")
	}
	return l, nil
}

func (r *leaveRepoPG) Update(ctx context.Context, l *Leave) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE dentist_leaves SET start_date=$2::date, end_date=$3::date, reason=$4, updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		l.ID, l.StartDate, l.EndDate, l.Reason,
	).Scan(&l.CreatedAt, &l.UpdatedAt)
	return mapWriteErr(err, "Leave", "update")
}

func (r *leaveRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM dentist_leaves WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete leave: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Leave")
	}
	return nil
}

func (r *leaveRepoPG) ListByDentist(ctx context.Context, dentistID uuid.UUID) ([]*Leave, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+leaveCols+` FROM dentist_leaves
		WHERE dentist_id = $1 ORDER BY start_date`, dentistID)
	if err != nil {
		return nil, fmt.Errorf("list leaves: %w", err)
	}
	return collect(rows, scanLeave)
}

func (r *leaveRepoPG) ListCovering(ctx context.Context, dentistID uuid.UUID, date string) ([]*Leave, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+leaveCols+` FROM dentist_leaves
		WHERE dentist_id = $1 AND start_date <= $2::date AND end_date >= $2::date`, dentistID, date)
	if err != nil {
		return nil, fmt.Errorf("list covering leaves: %w", err)
	}
	return collect(rows, scanLeave)
}

// =========== Locker ===========

type lockerPG struct{ pool *pgxpool.Pool }

func NewLockerPG(pool *pgxpool.Pool) Locker { return &lockerPG{pool: pool} }

func (l *lockerPG) Lock(ctx context.Context, dentistID uuid.UUID) error {
	return db.LockKey(ctx, db.Conn(ctx, l.pool), "availability:"+dentistID.String())
}

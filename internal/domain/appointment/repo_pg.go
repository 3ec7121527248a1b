package appointment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smiledesk/dental/internal/platform/db"
	"github.com/smiledesk/dental/pkg/apperr"
)

type appointmentRepoPG struct {
	pool *pgxpool.Pool
	tx   db.TxRunner
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &appointmentRepoPG{pool: pool, tx: db.NewTxRunner(pool)}
}

const apptCols = `id, dentist_id, patient_id, clinic_id, to_char(appointment_date, 'YYYY-MM-DD'),
	start_time, end_time, status, notes, treatment_options, cancellation_reason, cancelled_by,
	created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.DentistID, &a.PatientID, &a.ClinicID, &a.AppointmentDate,
		&a.Start, &a.End, &a.Status, &a.Notes, &a.TreatmentOptions, &a.CancellationReason, &a.CancelledBy,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Start, a.End = a.Start.UTC(), a.End.UTC()
	return &a, nil
}

// slotKey scopes the booking lock to one dentist's calendar day.
func slotKey(dentistID uuid.UUID, date string) string {
	return "appointment:" + dentistID.String() + ":" + date
}

func (r *appointmentRepoPG) CreateIfFree(ctx context.Context, a *Appointment) error {
	return r.tx.WithTx(ctx, func(ctx context.Context) error {
		q := db.Conn(ctx, r.pool)
		if err := db.LockKey(ctx, q, slotKey(a.DentistID, a.AppointmentDate)); err != nil {
			return err
		}

		var taken bool
		err := q.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM appointments
				WHERE dentist_id = $1 AND status IN ('pending', 'confirmed')
				  AND start_time < $3 AND end_time > $2
			)`, a.DentistID, a.Start, a.End).Scan(&taken)
		if err != nil {
			return fmt.Errorf("check slot: %w", err)
		}
		if taken {
			return apperr.ErrSlotConflict
		}

		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		if a.TreatmentOptions == nil {
			a.TreatmentOptions = []string{}
		}
		err = q.QueryRow(ctx, `
			INSERT INTO appointments (id, dentist_id, patient_id, clinic_id, appointment_date,
				start_time, end_time, status, notes, treatment_options)
			VALUES ($1, $2, $3, $4, $5::date, $6, $7, $8, $9, $10)
			RETURNING created_at, updated_at`,
			a.ID, a.DentistID, a.PatientID, a.ClinicID, a.AppointmentDate,
			a.Start, a.End, a.Status, a.Notes, a.TreatmentOptions,
		).Scan(&a.CreatedAt, &a.UpdatedAt)
		switch {
		case db.IsExclusionViolation(err):
			return apperr.ErrSlotConflict
		case db.IsForeignKeyViolation(err):
			return apperr.Validation("dentist, patient or clinic does not exist")
		case err != nil:
			return fmt.Errorf("insert appointment: %w", err)
		}
		return nil
	})
}

func (r *appointmentRepoPG) get(ctx context.Context, sql string, id uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(db.Conn(ctx, r.pool).QueryRow(ctx, sql, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("Appointment")
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return a, nil
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.get(ctx, `SELECT `+apptCols+` FROM appointments WHERE id = $1`, id)
}

func (r *appointmentRepoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.get(ctx, `SELECT `+apptCols+` FROM appointments WHERE id = $1 FOR UPDATE`, id)
}

func (r *appointmentRepoPG) UpdateStatus(ctx context.Context, a *Appointment) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE appointments SET status=$2, cancellation_reason=$3, cancelled_by=$4, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.Status, a.CancellationReason, a.CancelledBy,
	).Scan(&a.UpdatedAt)
	if db.IsNoRows(err) {
		return apperr.NotFound("Appointment")
	}
	if err != nil {
		return fmt.Errorf("update appointment status: %w", err)
	}
	return nil
}

func (r *appointmentRepoPG) ListActiveForDentist(ctx context.Context, dentistID uuid.UUID, date string) ([]*Appointment, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+apptCols+` FROM appointments
		WHERE dentist_id = $1 AND appointment_date = $2::date AND status IN ('pending', 'confirmed')
		ORDER BY start_time`, dentistID, date)
	if err != nil {
		return nil, fmt.Errorf("list dentist appointments: %w", err)
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *appointmentRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	add := func(clause string, v interface{}) {
		where += fmt.Sprintf(clause, idx)
		args = append(args, v)
		idx++
	}
	if f.DentistID != nil {
		add(` AND dentist_id = $%d`, *f.DentistID)
	}
	if f.PatientID != nil {
		add(` AND patient_id = $%d`, *f.PatientID)
	}
	if f.ClinicID != nil {
		add(` AND clinic_id = $%d`, *f.ClinicID)
	}
	if f.Status != nil {
		add(` AND status = $%d`, string(*f.Status))
	}
	if f.Date != nil {
		add(` AND appointment_date = $%d::date`, *f.Date)
	}

	q := db.Conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM appointments`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	query := `SELECT ` + apptCols + ` FROM appointments` + where +
		fmt.Sprintf(` ORDER BY start_time DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan appointment: %w", err)
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

package identity

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smiledesk/dental/internal/platform/db"
	"github.com/smiledesk/dental/pkg/apperr"
)

// =========== User Repository ===========

type userRepoPG struct{ pool *pgxpool.Pool }

func NewUserRepoPG(pool *pgxpool.Pool) UserRepository { return &userRepoPG{pool: pool} }

const userCols = `id, email, password_hash, name, phone, role, clinic_id, created_at, updated_at`

func (r *userRepoPG) scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Phone, &u.Role,
		&u.ClinicID, &u.CreatedAt, &u.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("User")
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash, name, phone, role, clinic_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		u.ID, u.Email, u.PasswordHash, u.Name, u.Phone, u.Role, u.ClinicID,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	switch {
	case db.IsUniqueViolation(err):
		return apperr.New(apperr.KindConflict, "email is already registered")
	case db.IsForeignKeyViolation(err):
		return apperr.NotFound("Clinic")
	case err != nil:
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.scanUser(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
}

func (r *userRepoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.scanUser(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE email = $1`, email))
}

// =========== Dentist Repository ===========

type dentistRepoPG struct{ pool *pgxpool.Pool }

func NewDentistRepoPG(pool *pgxpool.Pool) DentistRepository { return &dentistRepoPG{pool: pool} }

const dentistCols = `d.user_id, d.clinic_id, d.specialization, d.license_number, d.bio, d.active,
	u.name, u.email, d.created_at, d.updated_at`

func (r *dentistRepoPG) scanDentist(row pgx.Row) (*Dentist, error) {
	var d Dentist
	err := row.Scan(&d.UserID, &d.ClinicID, &d.Specialization, &d.LicenseNumber, &d.Bio, &d.Active,
		&d.Name, &d.Email, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *dentistRepoPG) Upsert(ctx context.Context, d *Dentist) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO dentists (user_id, clinic_id, specialization, license_number, bio, active)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (user_id) DO UPDATE SET
			clinic_id = EXCLUDED.clinic_id, specialization = EXCLUDED.specialization,
			license_number = EXCLUDED.license_number, bio = EXCLUDED.bio,
			active = EXCLUDED.active, updated_at = NOW()
		RETURNING created_at, updated_at`,
		d.UserID, d.ClinicID, d.Specialization, d.LicenseNumber, d.Bio, d.Active,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	switch {
	case db.IsForeignKeyViolation(err):
		return apperr.NotFound("Clinic")
	case err != nil:
		return fmt.Errorf("upsert dentist: %w", err)
	}
	return nil
}

func (r *dentistRepoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Dentist, error) {
	d, err := r.scanDentist(db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+dentistCols+`
		FROM dentists d JOIN users u ON u.id = d.user_id
		WHERE d.user_id = $1`, userID))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("Dentist")
	}
	if err != nil {
		return nil, fmt.Errorf("get dentist: %w", err)
	}
	return d, nil
}

func (r *dentistRepoPG) List(ctx context.Context, clinicID *uuid.UUID, limit, offset int) ([]*Dentist, int, error) {
	where := ` WHERE d.active`
	var args []interface{}
	if clinicID != nil {
		where += ` AND d.clinic_id = $1`
		args = append(args, *clinicID)
	}

	q := db.Conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM dentists d`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count dentists: %w", err)
	}

	args = append(args, limit, offset)
	rows, err := q.Query(ctx, fmt.Sprintf(`
		SELECT `+dentistCols+`
		FROM dentists d JOIN users u ON u.id = d.user_id`+where+`
		ORDER BY u.name LIMIT $%d OFFSET $%d`, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list dentists: %w", err)
	}
	defer rows.Close()

	var items []*Dentist
	for rows.Next() {
		d, err := r.scanDentist(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan dentist: %w", err)
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

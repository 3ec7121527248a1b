package clinic

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smiledesk/dental/internal/platform/db"
	"github.com/smiledesk/dental/pkg/apperr"
)

type clinicRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &clinicRepoPG{pool: pool} }

const clinicCols = `id, name, address, phone, email, active, created_at, updated_at`

var errInUse = apperr.Validation("clinic is still assigned to staff or dentists")

func (r *clinicRepoPG) scanClinic(row pgx.Row) (*Clinic, error) {
	var c Clinic
	err := row.Scan(&c.ID, &c.Name, &c.Address, &c.Phone, &c.Email, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *clinicRepoPG) Create(ctx context.Context, c *Clinic) error {
	c.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO clinics (id, name, address, phone, email, active)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at`,
		c.ID, c.Name, c.Address, c.Phone, c.Email, c.Active,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert clinic: %w", err)
	}
	return nil
}

func (r *clinicRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	c, err := r.scanClinic(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+clinicCols+` FROM clinics WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("Clinic")
	}
	if err != nil {
		return nil, fmt.Errorf("get clinic: %w", err)
	}
	return c, nil
}

func (r *clinicRepoPG) Update(ctx context.Context, c *Clinic) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE clinics SET name=$2, address=$3, phone=$4, email=$5, active=$6, updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		c.ID, c.Name, c.Address, c.Phone, c.Email, c.Active,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if db.IsNoRows(err) {
		return apperr.NotFound("Clinic")
	}
	if err != nil {
		return fmt.Errorf("update clinic: %w", err)
	}
	return nil
}

func (r *clinicRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM clinics WHERE id = $1`, id)
	if db.IsForeignKeyViolation(err) {
		return errInUse
	}
	if err != nil {
		return fmt.Errorf("delete clinic: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Clinic")
	}
	return nil
}

func (r *clinicRepoPG) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*Clinic, int, error) {
	where := ``
	if activeOnly {
		where = ` WHERE active`
	}
	q := db.Conn(ctx, r.pool)

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM clinics`+where).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count clinics: %w", err)
	}
	rows, err := q.Query(ctx, `SELECT `+clinicCols+` FROM clinics`+where+` ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list clinics: %w", err)
	}
	defer rows.Close()

	var items []*Clinic
	for rows.Next() {
		c, err := r.scanClinic(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan clinic: %w", err)
		}
		items = append(items, c)
	}
	return items, total, rows.Err()
}

func (r *clinicRepoPG) InUse(ctx context.Context, id uuid.UUID) (bool, error) {
	var used bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM users WHERE clinic_id = $1)
		    OR EXISTS (SELECT 1 FROM dentists WHERE clinic_id = $1)`, id).Scan(&used)
	if err != nil {
		return false, fmt.Errorf("clinic references: %w", err)
	}
	return used, nil
}

package identity

import (
	"context"

	"github.com/google/uuid"
)

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
}

type DentistRepository interface {
	Upsert(ctx context.Context, d *Dentist) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Dentist, error)
	List(ctx context.Context, clinicID *uuid.UUID, limit, offset int) ([]*Dentist, int, error)
}

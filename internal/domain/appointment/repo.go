package appointment

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// CreateIfFree inserts a when no active appointment of the same dentist
	// overlaps it, atomically with the check. It fails with
	// apperr.ErrSlotConflict otherwise.
	CreateIfFree(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// GetForUpdate reads a and locks its row until the surrounding
	// transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error)
	UpdateStatus(ctx context.Context, a *Appointment) error
	// ListActiveForDentist returns pending and confirmed appointments
	// starting on date (YYYY-MM-DD, clinic calendar), ordered by start.
	ListActiveForDentist(ctx context.Context, dentistID uuid.UUID, date string) ([]*Appointment, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error)
}

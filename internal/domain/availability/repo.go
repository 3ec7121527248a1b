package availability

import (
	"context"

	"github.com/google/uuid"
)

type RuleRepository interface {
	Create(ctx context.Context, r *Rule) error
	GetByID(ctx context.Context, id uuid.UUID) (*Rule, error)
	Update(ctx context.Context, r *Rule) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByDentist(ctx context.Context, dentistID uuid.UUID) ([]*Rule, error)
	ListByDay(ctx context.Context, dentistID uuid.UUID, dayOfWeek int) ([]*Rule, error)
}

type OverrideRepository interface {
	Create(ctx context.Context, o *Override) error
	GetByID(ctx context.Context, id uuid.UUID) (*Override, error)
	Update(ctx context.Context, o *Override) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByDentist(ctx context.Context, dentistID uuid.UUID) ([]*Override, error)
	ListByDate(ctx context.Context, dentistID uuid.UUID, date string) ([]*Override, error)
}

type LeaveRepository interface {
	Create(ctx context.Context, l *Leave) error
	GetByID(ctx context.Context, id uuid.UUID) (*Leave, error)
	Update(ctx context.Context, l *Leave) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByDentist(ctx context.Context, dentistID uuid.UUID) ([]*Leave, error)
	// ListCovering returns leaves whose date range includes date.
	ListCovering(ctx context.Context, dentistID uuid.UUID, date string) ([]*Leave, error)
}

// Locker serializes schedule mutations of one dentist. Lock must be called
// inside a transaction and holds until it ends.
type Locker interface {
	Lock(ctx context.Context, dentistID uuid.UUID) error
}

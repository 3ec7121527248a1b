package notification

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, n *Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*Notification, error)
	ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]*Notification, int, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	SetRead(ctx context.Context, id uuid.UUID, isRead bool) error
	// MarkAllRead marks every unread notification of userID and returns
	// how many changed.
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int, error)
}

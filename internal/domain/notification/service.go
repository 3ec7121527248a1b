package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/smiledesk/dental/internal/domain/identity"
	"github.com/smiledesk/dental/internal/platform/auth"
	notify "github.com/smiledesk/dental/internal/platform/notification"
	"github.com/smiledesk/dental/internal/platform/websocket"
	"github.com/smiledesk/dental/pkg/apperr"
	"github.com/smiledesk/dental/pkg/pagination"
)

// MessageType is the websocket frame type new notifications are pushed as.
const MessageType = "notification"

const deliveryTimeout = 30 * time.Second

// UserDirectory resolves recipients for email copies.
type UserDirectory interface {
	GetUser(ctx context.Context, id uuid.UUID) (*identity.User, error)
}

// Service is the notification dispatcher and the inbox behind it.
// Dispatch persists; Deliver pushes already persisted notifications to live
// sockets and email without blocking the caller.
type Service struct {
	repo      Repository
	templates *notify.TemplateEngine
	publisher notify.Publisher
	mailer    notify.Mailer
	users     UserDirectory
	logger    zerolog.Logger
	wg        sync.WaitGroup
}

func NewService(repo Repository, templates *notify.TemplateEngine, publisher notify.Publisher,
	users UserDirectory, logger zerolog.Logger) *Service {
	return &Service{repo: repo, templates: templates, publisher: publisher, users: users, logger: logger}
}

// SetMailer enables email copies of delivered notifications.
func (s *Service) SetMailer(m notify.Mailer) {
	s.mailer = m
}

// Dispatch persists a notification for userID. An empty typ means info.
func (s *Service) Dispatch(ctx context.Context, userID uuid.UUID, title, message string, typ Type, appointmentID *uuid.UUID) (*Notification, error) {
	if typ == "" {
		typ = TypeInfo
	}
	if !typ.valid() {
		return nil, apperr.Validation("unknown notification type %q", typ)
	}
	n := &Notification{
		UserID:        userID,
		Title:         title,
		Message:       message,
		Type:          typ,
		AppointmentID: appointmentID,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// DispatchTemplate renders a template and persists the result.
func (s *Service) DispatchTemplate(ctx context.Context, userID uuid.UUID, templateID string, data map[string]string, appointmentID *uuid.UUID) (*Notification, error) {
	r, err := s.templates.Render(templateID, data)
	if err != nil {
		return nil, err
	}
	return s.Dispatch(ctx, userID, r.Title, r.Message, Type(r.Level), appointmentID)
}

// Deliver pushes ns in the background. Failures are logged, never retried.
func (s *Service) Deliver(ctx context.Context, ns ...*Notification) {
	if len(ns) == 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliveryTimeout)
		defer cancel()
		for _, n := range ns {
			s.deliver(ctx, n)
		}
	}()
}

// Wait blocks until pending deliveries finish.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) deliver(ctx context.Context, n *Notification) {
	log := s.logger.With().Str("notification_id", n.ID.String()).Str("user_id", n.UserID.String()).Logger()

	msg, err := websocket.NewMessage(MessageType, n)
	if err != nil {
		log.Error().Err(err).Msg("encode notification")
		return
	}
	if err := s.publisher.Publish(ctx, notify.Delivery{UserID: n.UserID, Message: msg}); err != nil {
		log.Warn().Err(err).Msg("live delivery failed")
	}

	if s.mailer == nil {
		return
	}
	u, err := s.users.GetUser(ctx, n.UserID)
	if err != nil {
		log.Warn().Err(err).Msg("email recipient lookup failed")
		return
	}
	if err := s.mailer.Send(ctx, u.Email, n.Title, n.Message); err != nil {
		log.Warn().Err(err).Msg("email delivery failed")
	}
}

// -- Inbox --

// Send lets clinic staff post a manual notice to a user.
func (s *Service) Send(ctx context.Context, actor auth.Actor, req CreateRequest) (*Notification, error) {
	if !actor.Role.IsAdmin() && actor.Role != auth.RoleSecretary {
		return nil, apperr.New(apperr.KindForbidden, "only clinic staff may send notifications")
	}
	if _, err := s.users.GetUser(ctx, req.UserID); err != nil {
		return nil, err
	}
	n, err := s.Dispatch(ctx, req.UserID, req.Title, req.Message, Type(req.Type), req.AppointmentID)
	if err != nil {
		return nil, err
	}
	s.Deliver(ctx, n)
	return n, nil
}

func (s *Service) List(ctx context.Context, actor auth.Actor, unreadOnly bool, p pagination.Params) ([]*Notification, int, error) {
	return s.repo.ListByUser(ctx, actor.UserID, unreadOnly, p.Limit, p.Offset)
}

func (s *Service) UnreadCount(ctx context.Context, actor auth.Actor) (int, error) {
	return s.repo.CountUnread(ctx, actor.UserID)
}

// MarkRead sets the read flag of one of the actor's own notifications.
// Other users' notifications are reported as missing.
func (s *Service) MarkRead(ctx context.Context, actor auth.Actor, id uuid.UUID, isRead bool) (*Notification, error) {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.UserID != actor.UserID {
		return nil, apperr.NotFound("Notification")
	}
	if n.IsRead == isRead {
		return n, nil
	}
	if err := s.repo.SetRead(ctx, id, isRead); err != nil {
		return nil, err
	}
	n.IsRead = isRead
	return n, nil
}

func (s *Service) MarkAllRead(ctx context.Context, actor auth.Actor) (int, error) {
	return s.repo.MarkAllRead(ctx, actor.UserID)
}

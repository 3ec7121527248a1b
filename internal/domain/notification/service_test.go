package notification

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/smiledesk/dental/internal/domain/identity"
	"github.com/smiledesk/dental/internal/platform/auth"
	notify "github.com/smiledesk/dental/internal/platform/notification"
	"github.com/smiledesk/dental/pkg/apperr"
	"github.com/smiledesk/dental/pkg/pagination"
)

// -- Mocks --

type mockRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*Notification
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*Notification)}
}

func (m *mockRepo) Create(_ context.Context, n *Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.ID = uuid.New()
	n.CreatedAt = time.Now()
	m.items[n.ID] = n
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.items[id]
	if !ok {
		return nil, apperr.NotFound("Notification")
	}
	cp := *n
	return &cp, nil
}

func (m *mockRepo) ListByUser(_ context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]*Notification, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Notification
	for _, n := range m.items {
		if n.UserID == userID && (!unreadOnly || !n.IsRead) {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	start, end := pagination.Params{Limit: limit, Offset: offset}.Window(len(out))
	return out[start:end], len(out), nil
}

func (m *mockRepo) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	_, total, err := m.ListByUser(ctx, userID, true, 1000, 0)
	return total, err
}

func (m *mockRepo) SetRead(_ context.Context, id uuid.UUID, isRead bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.items[id]
	if !ok {
		return apperr.NotFound("Notification")
	}
	n.IsRead = isRead
	return nil
}

func (m *mockRepo) MarkAllRead(_ context.Context, userID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, n := range m.items {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			count++
		}
	}
	return count, nil
}

type capturePublisher struct {
	mu         sync.Mutex
	deliveries []notify.Delivery
	err        error
}

func (p *capturePublisher) Publish(_ context.Context, d notify.Delivery) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deliveries = append(p.deliveries, d)
	return p.err
}

type sentMail struct{ to, subject, body string }

type captureMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *captureMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to, subject, body})
	return nil
}

type mockUsers struct{ users map[uuid.UUID]*identity.User }

func (m *mockUsers) GetUser(_ context.Context, id uuid.UUID) (*identity.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, apperr.NotFound("User")
	}
	return u, nil
}

type fixture struct {
	svc       *Service
	repo      *mockRepo
	publisher *capturePublisher
	users     *mockUsers
	patient   *identity.User
}

func newFixture() *fixture {
	patient := &identity.User{ID: uuid.New(), Email: "ana@example.com", Name: "Ana", Role: auth.RolePatient}
	f := &fixture{
		repo:      newMockRepo(),
		publisher: &capturePublisher{},
		users:     &mockUsers{users: map[uuid.UUID]*identity.User{patient.ID: patient}},
		patient:   patient,
	}
	f.svc = NewService(f.repo, notify.NewTemplateEngine(), f.publisher, f.users, zerolog.Nop())
	return f
}

// -- Dispatch --

func TestDispatch_Defaults(t *testing.T) {
	f := newFixture()
	n, err := f.svc.Dispatch(context.Background(), f.patient.ID, "Hello", "Welcome to the clinic", "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Type != TypeInfo {
		t.Errorf("expected default type info, got %s", n.Type)
	}
	if n.IsRead {
		t.Error("new notifications must be unread")
	}
	if _, ok := f.repo.items[n.ID]; !ok {
		t.Error("expected notification to be persisted")
	}
}

func TestDispatch_UnknownType(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Dispatch(context.Background(), f.patient.ID, "t", "m", Type("urgent"), nil)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestDispatchTemplate(t *testing.T) {
	f := newFixture()
	apptID := uuid.New()
	n, err := f.svc.DispatchTemplate(context.Background(), f.patient.ID, notify.TemplateAppointmentConfirmed,
		map[string]string{"dentist_name": "Dr. Reyes", "date": "2025-08-25", "start": "09:00"}, &apptID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Type != TypeSuccess {
		t.Errorf("expected success type from template, got %s", n.Type)
	}
	want := "Your appointment with Dr. Reyes on 2025-08-25 at 09:00 has been confirmed."
	if n.Message != want {
		t.Errorf("message = %q, want %q", n.Message, want)
	}
	if n.AppointmentID == nil || *n.AppointmentID != apptID {
		t.Error("expected appointment id to be kept")
	}

	if _, err := f.svc.DispatchTemplate(context.Background(), f.patient.ID, "no-such-template", nil, nil); err == nil {
		t.Error("expected error for unknown template")
	}
}

// -- Deliver --

func TestDeliver_PublishesAndEmails(t *testing.T) {
	f := newFixture()
	mailer := &captureMailer{}
	f.svc.SetMailer(mailer)

	n, _ := f.svc.Dispatch(context.Background(), f.patient.ID, "Reminder", "See you tomorrow", TypeInfo, nil)
	f.svc.Deliver(context.Background(), n)
	f.svc.Wait()

	if len(f.publisher.deliveries) != 1 {
		t.Fatalf("expected 1 live delivery, got %d", len(f.publisher.deliveries))
	}
	d := f.publisher.deliveries[0]
	if d.UserID != f.patient.ID || d.Message.Type != MessageType {
		t.Errorf("unexpected delivery %+v", d)
	}
	var payload Notification
	if err := json.Unmarshal(d.Message.Data, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.ID != n.ID {
		t.Error("expected the notification as message payload")
	}

	if len(mailer.sent) != 1 || mailer.sent[0].to != "ana@example.com" || mailer.sent[0].subject != "Reminder" {
		t.Errorf("unexpected mail %+v", mailer.sent)
	}
}

func TestDeliver_SurvivesCancelledRequest(t *testing.T) {
	f := newFixture()
	n, _ := f.svc.Dispatch(context.Background(), f.patient.ID, "t", "m", TypeInfo, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.svc.Deliver(ctx, n)
	f.svc.Wait()

	if len(f.publisher.deliveries) != 1 {
		t.Errorf("expected delivery despite cancelled request context, got %d", len(f.publisher.deliveries))
	}
}

func TestDeliver_PublishFailureIsSwallowed(t *testing.T) {
	f := newFixture()
	f.publisher.err = errors.New("redis down")
	n, _ := f.svc.Dispatch(context.Background(), f.patient.ID, "t", "m", TypeInfo, nil)
	f.svc.Deliver(context.Background(), n)
	f.svc.Wait()
	if len(f.publisher.deliveries) != 1 {
		t.Error("expected a publish attempt")
	}
}

// -- Inbox --

func TestSend_StaffOnly(t *testing.T) {
	f := newFixture()
	req := CreateRequest{UserID: f.patient.ID, Title: "Clinic closed", Message: "Closed on Friday"}

	patient := f.patient.Actor()
	if _, err := f.svc.Send(context.Background(), patient, req); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden for patient, got %v", err)
	}

	secretary := auth.Actor{UserID: uuid.New(), Role: auth.RoleSecretary}
	n, err := f.svc.Send(context.Background(), secretary, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.svc.Wait()
	if n.Type != TypeInfo {
		t.Errorf("expected default info, got %s", n.Type)
	}
	if len(f.publisher.deliveries) != 1 {
		t.Error("expected manual notice to be delivered")
	}

	req.UserID = uuid.New()
	if _, err := f.svc.Send(context.Background(), secretary, req); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found for unknown recipient, got %v", err)
	}
}

func TestMarkRead_OwnOnly(t *testing.T) {
	f := newFixture()
	n, _ := f.svc.Dispatch(context.Background(), f.patient.ID, "t", "m", TypeInfo, nil)

	stranger := auth.Actor{UserID: uuid.New(), Role: auth.RolePatient}
	if _, err := f.svc.MarkRead(context.Background(), stranger, n.ID, true); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found for stranger, got %v", err)
	}

	owner := f.patient.Actor()
	got, err := f.svc.MarkRead(context.Background(), owner, n.ID, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.IsRead || !f.repo.items[n.ID].IsRead {
		t.Error("expected notification to be read")
	}

	got, _ = f.svc.MarkRead(context.Background(), owner, n.ID, false)
	if got.IsRead {
		t.Error("expected toggle back to unread")
	}
}

func TestUnreadCountAndMarkAll(t *testing.T) {
	f := newFixture()
	owner := f.patient.Actor()
	for i := 0; i < 3; i++ {
		f.svc.Dispatch(context.Background(), f.patient.ID, "t", "m", TypeInfo, nil)
	}

	if n, _ := f.svc.UnreadCount(context.Background(), owner); n != 3 {
		t.Errorf("expected 3 unread, got %d", n)
	}
	changed, err := f.svc.MarkAllRead(context.Background(), owner)
	if err != nil || changed != 3 {
		t.Errorf("expected 3 marked, got %d (%v)", changed, err)
	}
	if n, _ := f.svc.UnreadCount(context.Background(), owner); n != 0 {
		t.Errorf("expected 0 unread, got %d", n)
	}
	items, total, _ := f.svc.List(context.Background(), owner, true, pagination.Params{Limit: 10})
	if total != 0 || len(items) != 0 {
		t.Errorf("expected empty unread listing, got %d", total)
	}
}

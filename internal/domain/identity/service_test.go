package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/smiledesk/dental/internal/platform/auth"
	"github.com/smiledesk/dental/pkg/apperr"
	"github.com/smiledesk/dental/pkg/pagination"
)

// -- Mock Repositories --

type mockUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[uuid.UUID]*User)}
}

func (m *mockUserRepo) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return apperr.New(apperr.KindConflict, "email is already registered")
		}
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	m.users[u.ID] = u
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperr.NotFound("User")
	}
	return u, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, apperr.NotFound("User")
}

type mockDentistRepo struct {
	users    *mockUserRepo
	dentists map[uuid.UUID]*Dentist
	failNext error
}

func newMockDentistRepo(users *mockUserRepo) *mockDentistRepo {
	return &mockDentistRepo{users: users, dentists: make(map[uuid.UUID]*Dentist)}
}

func (m *mockDentistRepo) Upsert(_ context.Context, d *Dentist) error {
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return err
	}
	d.UpdatedAt = time.Now()
	m.dentists[d.UserID] = d
	return nil
}

func (m *mockDentistRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*Dentist, error) {
	d, ok := m.dentists[userID]
	if !ok {
		return nil, apperr.NotFound("Dentist")
	}
	if u, err := m.users.GetByID(ctx, userID); err == nil {
		d.Name, d.Email = u.Name, u.Email
	}
	return d, nil
}

func (m *mockDentistRepo) List(_ context.Context, clinicID *uuid.UUID, limit, offset int) ([]*Dentist, int, error) {
	var out []*Dentist
	for _, d := range m.dentists {
		if clinicID != nil && (d.ClinicID == nil || *d.ClinicID != *clinicID) {
			continue
		}
		out = append(out, d)
	}
	total := len(out)
	start, end := pagination.Params{Limit: limit, Offset: offset}.Window(total)
	return out[start:end], total, nil
}

type passThroughTx struct{}

func (passThroughTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type stubIssuer struct{}

func (stubIssuer) Issue(a auth.Actor) (string, time.Time, error) {
	return "token-" + a.UserID.String(), time.Now().Add(time.Hour), nil
}

func newTestService() (*Service, *mockUserRepo, *mockDentistRepo) {
	users := newMockUserRepo()
	dentists := newMockDentistRepo(users)
	return NewService(users, dentists, passThroughTx{}, stubIssuer{}, zerolog.Nop()), users, dentists
}

var (
	superAdmin = auth.Actor{UserID: uuid.New(), Role: auth.RoleSuperAdmin}
	admin      = auth.Actor{UserID: uuid.New(), Role: auth.RoleAdmin}
)

// -- Register / Login --

func TestService_Register(t *testing.T) {
	svc, _, _ := newTestService()
	u, err := svc.Register(context.Background(), RegisterRequest{
		Email: "  Ana@Example.com ", Password: "s3cretpass", Name: "Ana Cruz",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Role != auth.RolePatient {
		t.Errorf("expected patient role, got %s", u.Role)
	}
	if u.Email != "ana@example.com" {
		t.Errorf("expected normalized email, got %q", u.Email)
	}
	if u.PasswordHash == "" || u.PasswordHash == "s3cretpass" {
		t.Error("expected password to be hashed")
	}
}

func TestService_Register_DuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService()
	req := RegisterRequest{Email: "ana@example.com", Password: "s3cretpass", Name: "Ana"}
	if _, err := svc.Register(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := svc.Register(context.Background(), req)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected conflict, got %v", err)
	}
}

func TestService_Login(t *testing.T) {
	svc, _, _ := newTestService()
	u, _ := svc.Register(context.Background(), RegisterRequest{Email: "ana@example.com", Password: "s3cretpass", Name: "Ana"})

	tok, err := svc.Login(context.Background(), LoginRequest{Email: "ANA@example.com", Password: "s3cretpass"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok.Token != "token-"+u.ID.String() {
		t.Errorf("unexpected token %q", tok.Token)
	}
	if tok.User.ID != u.ID {
		t.Error("expected token response to carry the user")
	}
}

func TestService_Login_BadCredentials(t *testing.T) {
	svc, _, _ := newTestService()
	svc.Register(context.Background(), RegisterRequest{Email: "ana@example.com", Password: "s3cretpass", Name: "Ana"})

	for _, req := range []LoginRequest{
		{Email: "ana@example.com", Password: "wrong-password"},
		{Email: "nobody@example.com", Password: "s3cretpass"},
	} {
		_, err := svc.Login(context.Background(), req)
		if !errors.Is(err, apperr.ErrUnauthorized) {
			t.Errorf("login %s: expected unauthorized, got %v", req.Email, err)
		}
	}
}

// -- CreateUser --

func TestService_CreateUser_DentistGetsProfile(t *testing.T) {
	svc, _, dentists := newTestService()
	clinicID := uuid.New()
	u, err := svc.CreateUser(context.Background(), admin, CreateUserRequest{
		Email: "dr.reyes@example.com", Password: "s3cretpass", Name: "Maria Reyes",
		Role: "dentist", ClinicID: &clinicID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d, ok := dentists.dentists[u.ID]
	if !ok {
		t.Fatal("expected dentist profile to be created")
	}
	if !d.Active || d.ClinicID == nil || *d.ClinicID != clinicID {
		t.Errorf("unexpected dentist profile %+v", d)
	}
}

func TestService_CreateUser_Permissions(t *testing.T) {
	tests := []struct {
		name  string
		actor auth.Actor
		role  string
		want  *apperr.Error
	}{
		{"patient cannot create", auth.Actor{UserID: uuid.New(), Role: auth.RolePatient}, "patient", apperr.ErrForbidden},
		{"secretary cannot create", auth.Actor{UserID: uuid.New(), Role: auth.RoleSecretary}, "patient", apperr.ErrForbidden},
		{"admin cannot create admin", admin, "admin", apperr.ErrForbidden},
		{"admin cannot create super admin", admin, "super_admin", apperr.ErrForbidden},
		{"super admin creates admin", superAdmin, "admin", nil},
		{"admin creates patient", admin, "patient", nil},
		{"unknown role", superAdmin, "janitor", apperr.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestService()
			_, err := svc.CreateUser(context.Background(), tt.actor, CreateUserRequest{
				Email: strings.ReplaceAll(tt.name, " ", ".") + "@example.com", Password: "s3cretpass",
				Name: "Someone", Role: tt.role,
			})
			if tt.want == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %s, got %v", tt.want.Kind, err)
			}
		})
	}
}

func TestService_CreateUser_SecretaryNeedsClinic(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.CreateUser(context.Background(), admin, CreateUserRequest{
		Email: "desk@example.com", Password: "s3cretpass", Name: "Front Desk", Role: "secretary",
	})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestService_CreateUser_ProfileFailurePropagates(t *testing.T) {
	svc, _, dentists := newTestService()
	dentists.failNext = apperr.NotFound("Clinic")
	clinicID := uuid.New()
	_, err := svc.CreateUser(context.Background(), admin, CreateUserRequest{
		Email: "dr.x@example.com", Password: "s3cretpass", Name: "X", Role: "dentist", ClinicID: &clinicID,
	})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

// -- Dentists --

func TestService_UpsertDentistProfile(t *testing.T) {
	svc, _, _ := newTestService()
	u, _ := svc.CreateUser(context.Background(), admin, CreateUserRequest{
		Email: "dr.lim@example.com", Password: "s3cretpass", Name: "Dr. Lim", Role: "dentist",
	})

	spec := "Orthodontics"
	inactive := false
	d, err := svc.UpsertDentistProfile(context.Background(), admin, u.ID, DentistProfileRequest{
		Specialization: &spec, Active: &inactive,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Active || d.Specialization == nil || *d.Specialization != spec {
		t.Errorf("unexpected profile %+v", d)
	}
	if d.Name != "Dr. Lim" || d.DisplayName() != "Dr. Lim" {
		t.Errorf("unexpected name %q / %q", d.Name, d.DisplayName())
	}
}

func TestService_UpsertDentistProfile_NotADentist(t *testing.T) {
	svc, _, _ := newTestService()
	u, _ := svc.Register(context.Background(), RegisterRequest{Email: "p@example.com", Password: "s3cretpass", Name: "P"})

	_, err := svc.UpsertDentistProfile(context.Background(), admin, u.ID, DentistProfileRequest{})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	_, err = svc.UpsertDentistProfile(context.Background(), admin, uuid.New(), DentistProfileRequest{})
	if err == nil || err.Error() != "Dentist not found" {
		t.Errorf("expected Dentist not found, got %v", err)
	}
}

func TestService_ListDentists_ByClinic(t *testing.T) {
	svc, _, _ := newTestService()
	north, south := uuid.New(), uuid.New()
	for i, c := range []uuid.UUID{north, north, south} {
		cid := c
		_, err := svc.CreateUser(context.Background(), admin, CreateUserRequest{
			Email: "dr" + string(rune('a'+i)) + "@example.com", Password: "s3cretpass",
			Name: "Dr", Role: "dentist", ClinicID: &cid,
		})
		if err != nil {
			t.Fatalf("create dentist: %v", err)
		}
	}

	_, total, err := svc.ListDentists(context.Background(), &north, pagination.Params{Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 {
		t.Errorf("expected 2 dentists in clinic, got %d", total)
	}
	_, total, _ = svc.ListDentists(context.Background(), nil, pagination.Params{Limit: 10})
	if total != 3 {
		t.Errorf("expected 3 dentists overall, got %d", total)
	}
}

func TestService_Me_Anonymous(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Me(context.Background(), auth.Actor{Role: auth.RoleAdmin})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found for anonymous actor, got %v", err)
	}
}

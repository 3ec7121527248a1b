package clinic

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/smiledesk/dental/internal/platform/auth"
	"github.com/smiledesk/dental/pkg/apperr"
	"github.com/smiledesk/dental/pkg/pagination"
)

type mockRepo struct {
	clinics map[uuid.UUID]*Clinic
	inUse   map[uuid.UUID]bool
}

func newMockRepo() *mockRepo {
	return &mockRepo{clinics: make(map[uuid.UUID]*Clinic), inUse: make(map[uuid.UUID]bool)}
}

func (m *mockRepo) Create(_ context.Context, c *Clinic) error {
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	m.clinics[c.ID] = c
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Clinic, error) {
	c, ok := m.clinics[id]
	if !ok {
		return nil, apperr.NotFound("Clinic")
	}
	cp := *c
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, c *Clinic) error {
	if _, ok := m.clinics[c.ID]; !ok {
		return apperr.NotFound("Clinic")
	}
	c.UpdatedAt = time.Now()
	m.clinics[c.ID] = c
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.clinics[id]; !ok {
		return apperr.NotFound("Clinic")
	}
	delete(m.clinics, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, activeOnly bool, limit, offset int) ([]*Clinic, int, error) {
	var out []*Clinic
	for _, c := range m.clinics {
		if activeOnly && !c.Active {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	start, end := pagination.Params{Limit: limit, Offset: offset}.Window(len(out))
	return out[start:end], len(out), nil
}

func (m *mockRepo) InUse(_ context.Context, id uuid.UUID) (bool, error) {
	return m.inUse[id], nil
}

var (
	admin     = auth.Actor{UserID: uuid.New(), Role: auth.RoleAdmin}
	secretary = auth.Actor{UserID: uuid.New(), Role: auth.RoleSecretary}
)

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	return NewService(repo, zerolog.Nop()), repo
}

func TestService_CreateClinic(t *testing.T) {
	svc, _ := newTestService()
	c, err := svc.CreateClinic(context.Background(), admin, ClinicRequest{Name: "Makati Branch", Address: "Ayala Ave"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.Active {
		t.Error("new clinics should be active")
	}
	if c.ID == uuid.Nil {
		t.Error("expected ID to be set")
	}
}

func TestService_CreateClinic_Forbidden(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.CreateClinic(context.Background(), secretary, ClinicRequest{Name: "X", Address: "Y"})
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}
}

func TestService_UpdateClinic(t *testing.T) {
	svc, _ := newTestService()
	c, _ := svc.CreateClinic(context.Background(), admin, ClinicRequest{Name: "Old", Address: "A"})
	inactive := false
	updated, err := svc.UpdateClinic(context.Background(), admin, c.ID, ClinicRequest{Name: "New", Address: "B", Active: &inactive})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Name != "New" || updated.Active {
		t.Errorf("unexpected clinic %+v", updated)
	}

	_, err = svc.UpdateClinic(context.Background(), admin, uuid.New(), ClinicRequest{Name: "N", Address: "A"})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestService_DeleteClinic_InUse(t *testing.T) {
	svc, repo := newTestService()
	c, _ := svc.CreateClinic(context.Background(), admin, ClinicRequest{Name: "Busy", Address: "A"})
	repo.inUse[c.ID] = true

	err := svc.DeleteClinic(context.Background(), admin, c.ID)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	if _, ok := repo.clinics[c.ID]; !ok {
		t.Error("clinic in use must not be deleted")
	}

	repo.inUse[c.ID] = false
	if err := svc.DeleteClinic(context.Background(), admin, c.ID); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestService_ListClinics_HidesInactiveFromStaff(t *testing.T) {
	svc, _ := newTestService()
	inactive := false
	svc.CreateClinic(context.Background(), admin, ClinicRequest{Name: "Open", Address: "A"})
	svc.CreateClinic(context.Background(), admin, ClinicRequest{Name: "Closed", Address: "B", Active: &inactive})

	_, total, _ := svc.ListClinics(context.Background(), secretary, pagination.Params{Limit: 10})
	if total != 1 {
		t.Errorf("expected 1 active clinic for staff, got %d", total)
	}
	_, total, _ = svc.ListClinics(context.Background(), admin, pagination.Params{Limit: 10})
	if total != 2 {
		t.Errorf("expected 2 clinics for admin, got %d", total)
	}
}

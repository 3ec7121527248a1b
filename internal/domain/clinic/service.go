package clinic

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/smiledesk/dental/internal/platform/auth"
	"github.com/smiledesk/dental/pkg/apperr"
	"github.com/smiledesk/dental/pkg/pagination"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func requireAdmin(actor auth.Actor) error {
	if !actor.Role.IsAdmin() {
		return apperr.New(apperr.KindForbidden, "only administrators may manage clinics")
	}
	return nil
}

func (s *Service) CreateClinic(ctx context.Context, actor auth.Actor, req ClinicRequest) (*Clinic, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	c := &Clinic{Active: true}
	req.apply(c)
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info().Str("clinic_id", c.ID.String()).Msg("clinic created")
	return c, nil
}

func (s *Service) GetClinic(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateClinic(ctx context.Context, actor auth.Actor, id uuid.UUID, req ClinicRequest) (*Clinic, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	req.apply(c)
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) DeleteClinic(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	used, err := s.repo.InUse(ctx, id)
	if err != nil {
		return err
	}
	if used {
		return apperr.Validation("clinic is still assigned to staff or dentists")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("clinic_id", id.String()).Msg("clinic deleted")
	return nil
}

// ListClinics lists clinics. Only administrators see inactive branches.
func (s *Service) ListClinics(ctx context.Context, actor auth.Actor, p pagination.Params) ([]*Clinic, int, error) {
	return s.repo.List(ctx, !actor.Role.IsAdmin(), p.Limit, p.Offset)
}

package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/smiledesk/dental/internal/platform/auth"
	"github.com/smiledesk/dental/internal/platform/db"
	"github.com/smiledesk/dental/pkg/apperr"
	"github.com/smiledesk/dental/pkg/pagination"
)

// TokenIssuer signs access tokens for an actor.
type TokenIssuer interface {
	Issue(a auth.Actor) (string, time.Time, error)
}

var errBadCredentials = apperr.New(apperr.KindUnauthorized, "invalid email or password")

type Service struct {
	users    UserRepository
	dentists DentistRepository
	tx       db.TxRunner
	tokens   TokenIssuer
	logger   zerolog.Logger
}

func NewService(users UserRepository, dentists DentistRepository, tx db.TxRunner, tokens TokenIssuer, logger zerolog.Logger) *Service {
	return &Service{users: users, dentists: dentists, tx: tx, tokens: tokens, logger: logger}
}

// Register creates a self-service patient account.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}
	u := &User{
		Email:        normalizeEmail(req.Email),
		PasswordHash: hash,
		Name:         req.Name,
		Phone:        req.Phone,
		Role:         auth.RolePatient,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", u.ID.String()).Msg("patient registered")
	return u, nil
}

// Login checks credentials and issues a token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, errBadCredentials
		}
		return nil, err
	}
	ok, err := auth.CheckPassword(u.PasswordHash, req.Password)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logger.Warn().Str("user_id", u.ID.String()).Msg("failed login")
		return nil, errBadCredentials
	}

	token, exp, err := s.tokens.Issue(u.Actor())
	if err != nil {
		return nil, err
	}
	return &TokenResponse{Token: token, ExpiresAt: exp, User: u}, nil
}

// CreateUser creates an account of any role. Only a super admin may create
// admins. Dentists get an active profile in the same transaction.
func (s *Service) CreateUser(ctx context.Context, actor auth.Actor, req CreateUserRequest) (*User, error) {
	if !actor.Role.IsAdmin() {
		return nil, apperr.New(apperr.KindForbidden, "only administrators may create users")
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}
	if role.IsAdmin() && actor.Role != auth.RoleSuperAdmin {
		return nil, apperr.New(apperr.KindForbidden, "only a super admin may create administrators")
	}
	if role == auth.RoleSecretary && req.ClinicID == nil {
		return nil, apperr.Validation("clinicId is required for secretaries")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}
	u := &User{
		Email:        normalizeEmail(req.Email),
		PasswordHash: hash,
		Name:         req.Name,
		Phone:        req.Phone,
		Role:         role,
		ClinicID:     req.ClinicID,
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, u); err != nil {
			return err
		}
		if role != auth.RoleDentist {
			return nil
		}
		return s.dentists.Upsert(ctx, &Dentist{UserID: u.ID, ClinicID: u.ClinicID, Active: true})
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", u.ID.String()).Str("role", string(role)).Msg("user created")
	return u, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

// Me returns the caller's own account.
func (s *Service) Me(ctx context.Context, actor auth.Actor) (*User, error) {
	if actor.UserID == uuid.Nil {
		return nil, apperr.NotFound("User")
	}
	return s.users.GetByID(ctx, actor.UserID)
}

// UpsertDentistProfile sets the profile of a dentist account.
func (s *Service) UpsertDentistProfile(ctx context.Context, actor auth.Actor, userID uuid.UUID, req DentistProfileRequest) (*Dentist, error) {
	if !actor.Role.IsAdmin() {
		return nil, apperr.New(apperr.KindForbidden, "only administrators may edit dentist profiles")
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.NotFound("Dentist")
		}
		return nil, err
	}
	if u.Role != auth.RoleDentist {
		return nil, apperr.Validation("user %s is not a dentist", userID)
	}

	d := &Dentist{UserID: userID, ClinicID: req.ClinicID, Specialization: req.Specialization,
		LicenseNumber: req.LicenseNumber, Bio: req.Bio, Active: true}
	if req.Active != nil {
		d.Active = *req.Active
	}
	if err := s.dentists.Upsert(ctx, d); err != nil {
		return nil, err
	}
	d.Name, d.Email = u.Name, u.Email
	return d, nil
}

func (s *Service) GetDentist(ctx context.Context, userID uuid.UUID) (*Dentist, error) {
	return s.dentists.GetByUserID(ctx, userID)
}

func (s *Service) ListDentists(ctx context.Context, clinicID *uuid.UUID, p pagination.Params) ([]*Dentist, int, error) {
	return s.dentists.List(ctx, clinicID, p.Limit, p.Offset)
}

package identity

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/smiledesk/dental/internal/platform/auth"
)

// User is an account of any role.
type User struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Name         string     `json:"name"`
	Phone        *string    `json:"phone,omitempty"`
	Role         auth.Role  `json:"role"`
	ClinicID     *uuid.UUID `json:"clinicId,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Actor returns the identity the user acts as.
func (u *User) Actor() auth.Actor {
	return auth.Actor{UserID: u.ID, Role: u.Role, ClinicID: u.ClinicID}
}

// Dentist is the bookable profile of a user with role dentist. Name and
// Email are read from the user row.
type Dentist struct {
	UserID         uuid.UUID  `json:"userId"`
	ClinicID       *uuid.UUID `json:"clinicId,omitempty"`
	Specialization *string    `json:"specialization,omitempty"`
	LicenseNumber  *string    `json:"licenseNumber,omitempty"`
	Bio            *string    `json:"bio,omitempty"`
	Active         bool       `json:"active"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// DisplayName is how the dentist is addressed in notices.
func (d *Dentist) DisplayName() string {
	if strings.HasPrefix(d.Name, "Dr.") {
		return d.Name
	}
	return "Dr. " + d.Name
}

type RegisterRequest struct {
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=8,max=72"`
	Name     string  `json:"name" validate:"required"`
	Phone    *string `json:"phone"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type CreateUserRequest struct {
	Email    string     `json:"email" validate:"required,email"`
	Password string     `json:"password" validate:"required,min=8,max=72"`
	Name     string     `json:"name" validate:"required"`
	Phone    *string    `json:"phone"`
	Role     string     `json:"role" validate:"required,oneof=patient dentist secretary admin super_admin"`
	ClinicID *uuid.UUID `json:"clinicId"`
}

type DentistProfileRequest struct {
	ClinicID       *uuid.UUID `json:"clinicId"`
	Specialization *string    `json:"specialization"`
	LicenseNumber  *string    `json:"licenseNumber"`
	Bio            *string    `json:"bio"`
	Active         *bool      `json:"active"`
}

// TokenResponse is returned by login.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      *User     `json:"user"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

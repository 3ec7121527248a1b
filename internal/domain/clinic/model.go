package clinic

import (
	"time"

	"github.com/google/uuid"
)

// Clinic is a branch where dentists practise and secretaries work.
type Clinic struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Phone     *string   `json:"phone,omitempty"`
	Email     *string   `json:"email,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ClinicRequest struct {
	Name    string  `json:"name" validate:"required,max=200"`
	Address string  `json:"address" validate:"required"`
	Phone   *string `json:"phone"`
	Email   *string `json:"email" validate:"omitempty,email"`
	Active  *bool   `json:"active"`
}

func (r ClinicRequest) apply(c *Clinic) {
	c.Name = r.Name
	c.Address = r.Address
	c.Phone = r.Phone
	c.Email = r.Email
	if r.Active != nil {
		c.Active = *r.Active
	}
}

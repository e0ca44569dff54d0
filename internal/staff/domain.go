// Package staff administers operator accounts stored in the users
// collection, the action history and the full data reset.
package staff

import (
	"time"

	"atlasgym/internal/auth"
)

// Employee is a user row without its credentials.
type Employee struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Username       string     `json:"username"`
	Role           auth.Role  `json:"role"`
	HiddenSections []string   `json:"hiddenSections"`
	LoggedOutAt    *time.Time `json:"loggedOutAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

func employeeOf(u auth.User) Employee {
	hidden := u.HiddenSections
	if hidden == nil {
		hidden = []string{}
	}
	e := Employee{
		ID:             u.ID,
		Name:           u.Name,
		Username:       u.Username,
		Role:           u.Role,
		HiddenSections: hidden,
		CreatedAt:      u.CreatedAt,
	}
	if !u.SessionsValidAfter.IsZero() {
		at := u.SessionsValidAfter
		e.LoggedOutAt = &at
	}
	return e
}

// NewEmployee is a registration request.
type NewEmployee struct {
	Name     string    `json:"name" validate:"required"`
	Username string    `json:"username" validate:"required"`
	Password string    `json:"password" validate:"required"`
	Role     auth.Role `json:"role" validate:"omitempty,oneof=admin dev staff"`
}

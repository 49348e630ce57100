package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleAdmin    = "Admin"
	RoleUser     = "User"
	RoleOperator = "Operator"
)

// AllRoles lists the roles seeded by the initial migration.
var AllRoles = []string{RoleAdmin, RoleUser, RoleOperator}

type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Role struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func IsKnownRole(name string) bool {
	for _, r := range AllRoles {
		if r == name {
			return true
		}
	}
	return false
}

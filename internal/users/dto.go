package users

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/ummati-backend/pkg/db/models"
	"github.com/angelmondragon/ummati-backend/pkg/types"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID             uuid.UUID  `json:"id"`
	Email          string     `json:"email"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	ProfilePicture *string    `json:"profile_picture,omitempty"`
	IsActive       bool       `json:"is_active"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Email          string
	PasswordHash   string
	FirstName      string
	LastName       string
	ProfilePicture *string
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:             u.ID,
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		ProfilePicture: u.ProfilePicture,
		IsActive:       u.IsActive,
		LastLoginAt:    u.LastLoginAt,
		CreatedAt:      u.CreatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	return &models.User{
		Email:          NormalizeEmail(c.Email),
		PasswordHash:   c.PasswordHash,
		FirstName:      c.FirstName,
		LastName:       c.LastName,
		ProfilePicture: c.ProfilePicture,
		IsActive:       true,
	}
}

// ProfilePatch carries the optional fields of a profile update. Omitted fields
// are left alone; an explicit null clears a nullable field.
type ProfilePatch struct {
	FirstName      types.Optional[string] `json:"first_name"`
	LastName       types.Optional[string] `json:"last_name"`
	ProfilePicture types.Optional[string] `json:"profile_picture"`
}

// Empty reports whether the patch changes nothing.
func (p ProfilePatch) Empty() bool {
	return !p.FirstName.Set && !p.LastName.Set && !p.ProfilePicture.Set
}

// Validate rejects clearing required names.
func (p ProfilePatch) Validate() error {
	if p.FirstName.Set && (p.FirstName.Value == nil || strings.TrimSpace(*p.FirstName.Value) == "") {
		return errors.New("first_name cannot be cleared")
	}
	if p.LastName.Set && (p.LastName.Value == nil || strings.TrimSpace(*p.LastName.Value) == "") {
		return errors.New("last_name cannot be cleared")
	}
	return nil
}

// Apply merges the patch into u.
func (p ProfilePatch) Apply(u *models.User) {
	if p.FirstName.Set && p.FirstName.Value != nil {
		u.FirstName = strings.TrimSpace(*p.FirstName.Value)
	}
	if p.LastName.Set && p.LastName.Value != nil {
		u.LastName = strings.TrimSpace(*p.LastName.Value)
	}
	if p.ProfilePicture.Set {
		u.ProfilePicture = p.ProfilePicture.Value
	}
}

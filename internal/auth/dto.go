package auth

import (
	"github.com/angelmondragon/ummati-backend/internal/memberships"
	"github.com/angelmondragon/ummati-backend/internal/users"
)

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse contains the token pair, the user and their current membership.
type LoginResponse struct {
	AccessToken  string                     `json:"access_token"`
	RefreshToken string                     `json:"refresh_token"`
	User         *users.UserDTO             `json:"user"`
	Membership   *memberships.MembershipDTO `json:"membership,omitempty"`
}

package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the JWT payload issued by the identity provider.
type JWTClaims struct {
	UserID          int64    `json:"user_id"`
	Role            UserRole `json:"role"`
	CanModifyEvents bool     `json:"can_modify_events"`
	Email           string   `json:"email"`
	FullName        string   `json:"full_name"`
	jwt.RegisteredClaims
}

// Identity converts the claims into the actor used by services.
func (c *JWTClaims) Identity() Identity {
	if c == nil {
		return Identity{}
	}
	return Identity{ID: c.UserID, Role: c.Role, CanModifyEvents: c.CanModifyEvents}
}

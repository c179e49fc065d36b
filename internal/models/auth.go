package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the roles carried by access tokens.
type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleManager UserRole = "manager"
	RoleStaff   UserRole = "staff"
)

// JWTClaims represents the access token payload issued by the identity service.
type JWTClaims struct {
	UserID  string   `json:"user_id"`
	StaffID string   `json:"staff_id,omitempty"`
	Role    UserRole `json:"role"`
	Name    string   `json:"name,omitempty"`
	jwt.RegisteredClaims
}

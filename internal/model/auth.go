package model

import "github.com/golang-jwt/jwt/v5"

type Role string

const (
	RoleStudent Role = "student"
	RoleParent  Role = "parent"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// User is the authenticated mock user
type User struct {
	Email string `json:"email"`
	Role  Role   `json:"role"`
	Name  string `json:"name,omitempty"`
}

// UserClaims are JWT claims for dashboard sessions
type UserClaims struct {
	Email string `json:"email"`
	Role  Role   `json:"role"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// User returns the identity carried by the claims
func (c *UserClaims) User() User {
	return User{Email: c.Email, Role: c.Role, Name: c.Name}
}

// LoginRequest is the request body for mock login
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	Role     Role   `json:"role" validate:"required,oneof=student parent teacher admin"`
}

// RegisterRequest is the request body for mock registration.
// Email and password rules are checked by the auth service so the reader
// gets its messages.
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Role        Role   `json:"role" validate:"required,oneof=student parent teacher"`
	DisplayName string `json:"displayName" validate:"max=100"`
}

// LoginResponse is returned after successful login
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
	Home  string `json:"home"`
}

package model

import "time"

// User represents a user in the database.
type User struct {
	ID               string
	FirstName        string
	LastName         string
	Email            string
	PasswordHash     string
	Role             Role
	BirthDate        time.Time
	CreatedAt        time.Time
	ResetTokenHash   *string
	ResetTokenExpiry *time.Time
}

// HasResetToken reports whether a reset token is currently stored for the user.
func (u *User) HasResetToken() bool {
	return u.ResetTokenHash != nil && u.ResetTokenExpiry != nil
}

// SetResetToken stores a token digest and its expiry together.
func (u *User) SetResetToken(digest string, expiry time.Time) {
	u.ResetTokenHash = &digest
	u.ResetTokenExpiry = &expiry
}

// ClearResetToken removes the token digest and its expiry together.
func (u *User) ClearResetToken() {
	u.ResetTokenHash = nil
	u.ResetTokenExpiry = nil
}

// RegisterRequest represents a user registration request.
type RegisterRequest struct {
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Email           string `json:"email"`
	BirthDate       Date   `json:"birth_date"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Role            Role   `json:"role"`
}

// LoginRequest represents a user login request.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the signed bearer token.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ForgotPasswordRequest represents a request for a password reset email.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest represents a password change authorised by a reset token.
type ResetPasswordRequest struct {
	Email              string `json:"email"`
	Token              string `json:"token"`
	NewPassword        string `json:"new_password"`
	ConfirmNewPassword string `json:"confirm_new_password"`
}

// UserResponse represents user data safe for API responses (no sensitive fields).
type UserResponse struct {
	ID        string    `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	BirthDate Date      `json:"birth_date"`
	CreatedAt time.Time `json:"created_at"`
}

// NewUserResponse strips credentials and reset state from u.
func NewUserResponse(u *User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Role:      u.Role,
		BirthDate: Date{Time: u.BirthDate},
		CreatedAt: u.CreatedAt,
	}
}

// ProfileResponse is the identity read back from a bearer token.
type ProfileResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// MessageResponse is a plain informational reply.
type MessageResponse struct {
	Message string `json:"message"`
}

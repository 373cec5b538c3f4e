package models

import "encoding/json"

// Envelope is the uniform response shape used by every backend endpoint:
// {success: boolean, data?, count?, error?}.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Count   int             `json:"count,omitempty"`
	Error   *APIError       `json:"error,omitempty"`
}

// APIError is the error payload inside a failed envelope.
type APIError struct {
	Message string          `json:"message"`
	Code    string          `json:"code,omitempty"`
	Field   string          `json:"field,omitempty"`
	Details json.RawMessage `json:"details,omitempty"`
}

// User is the authenticated account record returned by the auth endpoints.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// RegisterRequest is the payload for POST /api/auth/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the payload for POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse is the data payload of a successful register or login call.
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

package server

import (
	"github.com/quantfold/dealdesk/internal/partner"
	"github.com/quantfold/dealdesk/internal/store"
)

// HTTPError is the generic error envelope returned by the server.
type HTTPError struct {
	Error string `json:"error"`
}

// AuthLoginRequest is the application login payload.
type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthLoginResponse carries the bearer token and the authenticated user.
type AuthLoginResponse struct {
	Token string     `json:"token"`
	User  store.User `json:"user"`
}

// CreateUserRequest is the payload for creating an application user.
type CreateUserRequest struct {
	Name     string `json:"name"`
	LastName string `json:"last_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// UpdateUserRequest is a partial user update; absent fields are untouched.
type UpdateUserRequest struct {
	Name     *string `json:"name"`
	LastName *string `json:"last_name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
}

// UserListResponse wraps a list of users.
type UserListResponse struct {
	Users []store.User `json:"users"`
	Total int          `json:"total"`
}

// WebsiteListResponse wraps a list of websites.
type WebsiteListResponse struct {
	Websites []store.Website `json:"websites"`
	Total    int             `json:"total"`
}

// PartnerLoginRequest submits partner-site credentials for a website.
type PartnerLoginRequest struct {
	Website  string `json:"website"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// PartnerLoginResponse is the result of a successful credential exchange:
// an opaque handle for later downloads, the partner's user payload, and the
// normalized deal list.
type PartnerLoginResponse struct {
	Session   string                 `json:"session"`
	SessionID string                 `json:"session_id"`
	User      map[string]interface{} `json:"user"`
	Deals     []partner.Deal         `json:"deals"`
}

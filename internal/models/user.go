package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin UserRole = "admin"
	RoleUser  UserRole = "user"
)

// User is an office account. Accounts are provisioned elsewhere; this service only reads them.
type User struct {
	ID              int64     `db:"id" json:"id"`
	Email           string    `db:"email" json:"email"`
	FullName        string    `db:"full_name" json:"full_name"`
	Role            UserRole  `db:"role" json:"role"`
	CanModifyEvents bool      `db:"can_modify_events" json:"can_modify_events"`
	OfficeColor     *string   `db:"office_color" json:"office_color,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Identity is the resolved actor of a request.
type Identity struct {
	ID              int64    `json:"id"`
	Role            UserRole `json:"role"`
	CanModifyEvents bool     `json:"can_modify_events"`
}

// IsAdmin reports whether the identity holds the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// CanModify reports whether the identity may change the given event.
func (i Identity) CanModify(e *Event) bool {
	if e == nil {
		return false
	}
	if i.IsAdmin() {
		return true
	}
	return i.CanModifyEvents && e.CreatedBy == i.ID
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

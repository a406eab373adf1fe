package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleTeacher UserRole = "teacher"
	RoleParent  UserRole = "parent"
)

// Valid reports whether the role is one the platform knows about.
func (r UserRole) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleParent:
		return true
	}
	return false
}

// User represents an application user stored in the users table.
// Students may carry the e-mail of the parent account that follows them.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	ParentEmail  *string    `db:"parent_email" json:"parent_email,omitempty"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// UserProfile is the public shape of a user, including enrolled class ids for students.
type UserProfile struct {
	User
	ClassIDs []string `json:"class_ids,omitempty"`
}

// StudentSummary is the compact student listing used in class rosters and parent views.
type StudentSummary struct {
	ID       string    `db:"id" json:"id"`
	FullName string    `db:"full_name" json:"full_name"`
	Email    string    `db:"email" json:"email"`
	JoinedAt time.Time `db:"joined_at" json:"joined_at"`
}

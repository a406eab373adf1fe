package models

import "time"

// ClassCodeLength is the length of the join code handed out to students.
const ClassCodeLength = 6

// Class represents a teacher-owned class students join by code.
type Class struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Description  *string   `db:"description" json:"description,omitempty"`
	Subject      *string   `db:"subject" json:"subject,omitempty"`
	TeacherID    string    `db:"teacher_id" json:"teacher_id"`
	ClassCode    string    `db:"class_code" json:"class_code"`
	MaxStudents  int       `db:"max_students" json:"max_students"`
	StudentCount int       `db:"student_count" json:"student_count"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// HasCapacity reports whether another student can join.
func (c *Class) HasCapacity() bool {
	return c.MaxStudents <= 0 || c.StudentCount < c.MaxStudents
}

// ClassFilter defines filter criteria for listing classes.
type ClassFilter struct {
	TeacherID string
	StudentID string
	Search    string
	PageQuery
}

// CreateClassRequest is the teacher payload for a new class.
type CreateClassRequest struct {
	Name        string  `json:"name" validate:"required,min=2,max=120"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=1000"`
	Subject     *string `json:"subject,omitempty" validate:"omitempty,max=120"`
	MaxStudents int     `json:"max_students" validate:"omitempty,min=1,max=500"`
}

// UpdateClassRequest carries optional class changes.
type UpdateClassRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=2,max=120"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=1000"`
	Subject     *string `json:"subject,omitempty" validate:"omitempty,max=120"`
	MaxStudents *int    `json:"max_students,omitempty" validate:"omitempty,min=1,max=500"`
	Active      *bool   `json:"active,omitempty"`
}

// JoinClassRequest lets a student join with a class code.
type JoinClassRequest struct {
	ClassCode string `json:"class_code" validate:"required,len=6,alphanum"`
}

package models

import "time"

type Role string

const (
	RoleStudent Role = "student"
	RoleFaculty Role = "faculty"
)

type Account struct {
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	PasswordHash      string    `json:"-"` // never leaves the server
	Name              string    `json:"name"`
	Role              Role      `json:"role"`
	StudentDepartment string    `json:"studentDepartment,omitempty"`
	BatchNo           string    `json:"batchNo,omitempty"`
	FacultyProfileID  string    `json:"facultyId,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Summary is the public projection returned by auth and profile endpoints.
func (a *Account) Summary() AccountSummary {
	return AccountSummary{
		ID:                a.ID,
		Name:              a.Name,
		Email:             a.Email,
		Role:              a.Role,
		FacultyID:         a.FacultyProfileID,
		StudentDepartment: a.StudentDepartment,
		BatchNo:           a.BatchNo,
	}
}

type AccountSummary struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	Role              Role   `json:"role"`
	FacultyID         string `json:"facultyId,omitempty"`
	StudentDepartment string `json:"studentDepartment,omitempty"`
	BatchNo           string `json:"batchNo,omitempty"`
}

// RoleFields carries the registration fields that are valid for exactly one role.
// The set of implementations is closed: StudentFields and FacultyFields.
type RoleFields interface {
	Role() Role
	sealed()
}

type StudentFields struct {
	Department string
	BatchNo    string
}

func (StudentFields) Role() Role { return RoleStudent }
func (StudentFields) sealed()    {}

type FacultyFields struct {
	Department     string
	Title          string
	Bio            string
	AvailableSlots string
}

func (FacultyFields) Role() Role { return RoleFaculty }
func (FacultyFields) sealed()    {}

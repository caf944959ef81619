package models

import "time"

// Defaults applied to a faculty profile when registration leaves a field blank.
const (
	DefaultFacultyDepartment = "General"
	DefaultFacultyTitle      = "Lecturer"
	DefaultFacultyBio        = "No biography provided."
	DefaultAvailableSlots    = "Not specified"
)

type FacultyProfile struct {
	ID             string    `json:"id"`
	AccountID      string    `json:"userId"`
	Department     string    `json:"department"`
	Title          string    `json:"title"`
	Bio            string    `json:"bio"`
	AvailableSlots string    `json:"availableSlots"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// FacultyCard is the directory listing entry.
type FacultyCard struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Department string `json:"department"`
	Title      string `json:"title"`
	Bio        string `json:"bio"`
}

// FacultyDetail is a single directory entry including free-text availability.
type FacultyDetail struct {
	FacultyCard
	AvailableSlots string `json:"availableSlots"`
}

func NewFacultyCard(p *FacultyProfile, owner *Account) FacultyCard {
	return FacultyCard{
		ID:         p.ID,
		Name:       owner.Name,
		Email:      owner.Email,
		Department: p.Department,
		Title:      p.Title,
		Bio:        p.Bio,
	}
}

package models

import "time"

type BookingStatus string

const (
	BookingStatusPending    BookingStatus = "pending"
	BookingStatusApproved   BookingStatus = "approved"
	BookingStatusRejected   BookingStatus = "rejected"
	BookingStatusCompleted  BookingStatus = "completed" // reserved, no operation reaches it
	BookingStatusCancelled  BookingStatus = "cancelled"
	BookingStatusReschedule BookingStatus = "reschedule"
)

const (
	DefaultDurationMinutes = 30
	MaxTopicLength         = 150
	MaxStudentMessage      = 300
	MaxBioLength           = 500
)

// Booking is a consultation request from one student to one faculty profile.
//
// FinalDateTime and RoomNumber are set if and only if Status is approved.
// A reschedule keeps the faculty's suggested slot in the Proposed fields instead.
type Booking struct {
	ID                 string        `json:"id"`
	StudentID          string        `json:"studentId"`
	FacultyID          string        `json:"facultyId"`
	DateTime           time.Time     `json:"dateTime"`
	StudentMessage     string        `json:"studentMessage"`
	FinalDateTime      *time.Time    `json:"finalDateTime,omitempty"`
	RoomNumber         string        `json:"roomNumber,omitempty"`
	ProposedDateTime   *time.Time    `json:"proposedDateTime,omitempty"`
	ProposedRoomNumber string        `json:"proposedRoomNumber,omitempty"`
	DurationMinutes    int           `json:"durationMinutes"`
	Topic              string        `json:"topic"`
	Status             BookingStatus `json:"status"`
	CreatedAt          time.Time     `json:"createdAt"`
	UpdatedAt          time.Time     `json:"updatedAt"`
}

// HasSchedule reports whether the confirmed schedule fields are populated.
func (b *Booking) HasSchedule() bool {
	return b.FinalDateTime != nil && b.RoomNumber != ""
}

// ClearSchedule drops both confirmed and proposed schedule data.
func (b *Booking) ClearSchedule() {
	b.FinalDateTime = nil
	b.RoomNumber = ""
	b.ProposedDateTime = nil
	b.ProposedRoomNumber = ""
}

type StudentSummary struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	StudentDepartment string `json:"studentDepartment,omitempty"`
	BatchNo           string `json:"batchNo,omitempty"`
}

type FacultySummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// BookingView is a booking with the counterpart populated for the viewer's role:
// students see the faculty, faculty see the student.
type BookingView struct {
	Booking
	Student *StudentSummary `json:"student,omitempty"`
	Faculty *FacultySummary `json:"faculty,omitempty"`
}

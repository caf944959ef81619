package services

import (
	"time"

	"github.com/harentsoaR/consultation-api/internal/models"
)

// transitions lists the allowed outbound statuses per status. Statuses absent
// from the map are terminal.
var transitions = map[models.BookingStatus][]models.BookingStatus{
	models.BookingStatusPending: {
		models.BookingStatusApproved,
		models.BookingStatusRejected,
		models.BookingStatusReschedule,
		models.BookingStatusCancelled,
	},
	models.BookingStatusApproved: {
		models.BookingStatusReschedule,
		models.BookingStatusCancelled,
	},
	models.BookingStatusReschedule: {
		models.BookingStatusCancelled,
	},
}

func canTransition(from, to models.BookingStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// schedule is the optional slot a faculty member sends with a status change.
type schedule struct {
	at   *time.Time
	room string
}

// applyTransition moves b to status to and rewrites its schedule fields so that
// FinalDateTime and RoomNumber are populated only while b is approved.
func applyTransition(b *models.Booking, to models.BookingStatus, s schedule) error {
	if !canTransition(b.Status, to) {
		return newError(ErrInvalidTransition, "Cannot change a booking with status %s to %s.", b.Status, to)
	}

	switch to {
	case models.BookingStatusApproved:
		if s.at == nil || s.room == "" {
			return newError(ErrValidationFailed, "Final date/time and room number are required for approval.")
		}
		at := *s.at
		b.ClearSchedule()
		b.FinalDateTime = &at
		b.RoomNumber = s.room

	case models.BookingStatusReschedule:
		// Supplied fields replace the suggestion; missing ones keep whatever
		// slot was last on the table.
		at, room := b.ProposedDateTime, b.ProposedRoomNumber
		if b.Status == models.BookingStatusApproved {
			at, room = b.FinalDateTime, b.RoomNumber
		}
		if s.at != nil {
			t := *s.at
			at = &t
		}
		if s.room != "" {
			room = s.room
		}
		b.ClearSchedule()
		b.ProposedDateTime = at
		b.ProposedRoomNumber = room

	default:
		b.ClearSchedule()
	}

	b.Status = to
	return nil
}

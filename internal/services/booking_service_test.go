package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/harentsoaR/consultation-api/internal/models"
)

func TestBookingScenarioApproveThenCancel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	student := env.registerStudent(t, "Asha", "asha@sru.edu.in")
	faculty, profileID := env.registerFaculty(t, "Dr. Rao", "rao@sru.edu.in")

	b := env.book(t, student, profileID)
	if b.Status != models.BookingStatusPending || b.DurationMinutes != models.DefaultDurationMinutes {
		t.Fatalf("unexpected new booking %+v", b)
	}
	if len(env.notifier.newReqs) != 1 {
		t.Fatalf("expected one new-request notice, got %d", len(env.notifier.newReqs))
	}
	req := env.notifier.newReqs[0]
	if req.To != "rao@sru.edu.in" || req.StudentName != "Asha" || req.Topic != "Thesis review" {
		t.Fatalf("unexpected notice %+v", req)
	}
	if req.Meta.StudentDepartment != "CSE" || req.Meta.StudentBatchNo != "2022" {
		t.Fatalf("student details missing from notice: %+v", req.Meta)
	}

	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	approved, err := env.bookings.SetStatus(ctx, faculty, b.ID, StatusUpdate{
		Status:        models.BookingStatusApproved,
		FinalDateTime: &at,
		RoomNumber:    ptr("204"),
	})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != models.BookingStatusApproved || approved.RoomNumber != "204" || !approved.FinalDateTime.Equal(at) {
		t.Fatalf("unexpected approved booking %+v", approved)
	}
	sent := env.notifier.lastStatus(t)
	if sent.To != "asha@sru.edu.in" || sent.Status != models.BookingStatusApproved || sent.FacultyName != "Dr. Rao" {
		t.Fatalf("unexpected status notice %+v", sent)
	}
	if sent.Meta.RoomNumber != "204" || sent.Meta.FinalDateTime == nil {
		t.Fatalf("schedule missing from notice: %+v", sent.Meta)
	}

	cancelled, err := env.bookings.Cancel(ctx, student, b.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != models.BookingStatusCancelled || cancelled.FinalDateTime != nil || cancelled.RoomNumber != "" {
		t.Fatalf("cancel did not clear schedule: %+v", cancelled)
	}
	if got := env.notifier.lastStatus(t); got.Status != models.BookingStatusCancelled || got.FacultyName != "Dr. Rao" {
		t.Fatalf("unexpected cancel notice %+v", got)
	}

	stored, err := env.store.GetBooking(ctx, b.ID)
	if err != nil {
		t.Fatalf("booking must not be removed: %v", err)
	}
	if stored.Status != models.BookingStatusCancelled {
		t.Fatalf("stored status %s", stored.Status)
	}
}

func TestBookingScenarioRescheduleWithoutFields(t *testing.T) {
	env := newTestEnv(t)
	student := env.registerStudent(t, "Asha", "asha@sru.edu.in")
	faculty, profileID := env.registerFaculty(t, "Dr. Rao", "rao@sru.edu.in")
	b := env.book(t, student, profileID)

	got, err := env.bookings.SetStatus(context.Background(), faculty, b.ID, StatusUpdate{Status: models.BookingStatusReschedule})
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if got.Status != models.BookingStatusReschedule || got.FinalDateTime != nil || got.RoomNumber != "" {
		t.Fatalf("unexpected booking %+v", got)
	}
}

func TestBookingScenarioApproveRoomOnly(t *testing.T) {
	env := newTestEnv(t)
	student := env.registerStudent(t, "Asha", "asha@sru.edu.in")
	faculty, profileID := env.registerFaculty(t, "Dr. Rao", "rao@sru.edu.in")
	b := env.book(t, student, profileID)

	_, err := env.bookings.SetStatus(context.Background(), faculty, b.ID, StatusUpdate{
		Status:     models.BookingStatusApproved,
		RoomNumber: ptr("204"),
	})
	expectKind(t, err, ErrValidationFailed)

	stored, _ := env.store.GetBooking(context.Background(), b.ID)
	if stored.Status != models.BookingStatusPending {
		t.Fatalf("failed approval was persisted: %s", stored.Status)
	}
}

func TestSetStatusRejectsUnknownStatus(t *testing.T) {
	env := newTestEnv(t)
	student := env.registerStudent(t, "Asha", "asha@sru.edu.in")
	faculty, profileID := env.registerFaculty(t, "Dr. Rao", "rao@sru.edu.in")
	b := env.book(t, student, profileID)

	for _, status := range []models.BookingStatus{"completed", "cancelled", "pending", "bogus"} {
		_, err := env.bookings.SetStatus(context.Background(), faculty, b.ID, StatusUpdate{Status: status})
		expectKind(t, err, ErrValidationFailed)
	}
}

func TestOwnershipChecks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.registerStudent(t, "Asha", "asha@sru.edu.in")
	other := env.registerStudent(t, "Ben", "ben@sru.edu.in")
	faculty, profileID := env.registerFaculty(t, "Dr. Rao", "rao@sru.edu.in")
	otherFaculty, _ := env.registerFaculty(t, "Dr. Iyer", "iyer@gmail.com")
	b := env.book(t, owner, profileID)

	_, err := env.bookings.SetStatus(ctx, otherFaculty, b.ID, StatusUpdate{Status: models.BookingStatusRejected})
	expectKind(t, err, ErrNotAuthorized)

	_, err = env.bookings.SetStatus(ctx, owner, b.ID, StatusUpdate{Status: models.BookingStatusRejected})
	expectKind(t, err, ErrNotAuthorized)

	_, err = env.bookings.Cancel(ctx, other, b.ID)
	expectKind(t, err, ErrNotAuthorized)

	_, err = env.bookings.Cancel(ctx, faculty, b.ID)
	expectKind(t, err, ErrNotAuthorized)

	_, err = env.bookings.SetStatus(ctx, faculty, "no-such-booking", StatusUpdate{Status: models.BookingStatusRejected})
	expectKind(t, err, ErrNotFound)

	_, err = env.bookings.Cancel(ctx, owner, "no-such-booking")
	expectKind(t, err, ErrNotFound)

	stored, _ := env.store.GetBooking(ctx, b.ID)
	if stored.Status != models.BookingStatusPending {
		t.Fatalf("unauthorised call changed status to %s", stored.Status)
	}
}

func TestCancelTerminalBooking(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	student := env.registerStudent(t, "Asha", "asha@sru.edu.in")
	faculty, profileID := env.registerFaculty(t, "Dr. Rao", "rao@sru.edu.in")

	rejected := env.book(t, student, profileID)
	if _, err := env.bookings.SetStatus(ctx, faculty, rejected.ID, StatusUpdate{Status: models.BookingStatusRejected}); err != nil {
		t.Fatalf("reject: %v", err)
	}
	_, err := env.bookings.Cancel(ctx, student, rejected.ID)
	expectKind(t, err, ErrInvalidTransition)
	if !strings.Contains(Message(err), "rejected") {
		t.Fatalf("message should name current status: %q", Message(err))
	}

	cancelled := env.book(t, student, profileID)
	if _, err := env.bookings.Cancel(ctx, student, cancelled.ID); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	_, err = env.bookings.Cancel(ctx, student, cancelled.ID)
	expectKind(t, err, ErrInvalidTransition)
}

func TestCreateBookingValidation(t *testing.T) {
	env := newTestEnv(t)
	student := env.registerStudent(t, "Asha", "asha@sru.edu.in")
	faculty, profileID := env.registerFaculty(t, "Dr. Rao", "rao@sru.edu.in")
	when := time.Date(2024, 4, 28, 9, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		actor Actor
		in    CreateBookingInput
		kind  error
	}{
		{"faculty cannot book", faculty, CreateBookingInput{FacultyID: profileID, DateTime: when, Topic: "x"}, ErrNotAuthorized},
		{"missing topic", student, CreateBookingInput{FacultyID: profileID, DateTime: when}, ErrValidationFailed},
		{"topic too long", student, CreateBookingInput{FacultyID: profileID, DateTime: when, Topic: strings.Repeat("t", 151)}, ErrValidationFailed},
		{"message too long", student, CreateBookingInput{FacultyID: profileID, DateTime: when, Topic: "x", StudentMessage: strings.Repeat("m", 301)}, ErrValidationFailed},
		{"missing time", student, CreateBookingInput{FacultyID: profileID, Topic: "x"}, ErrValidationFailed},
		{"unknown faculty", student, CreateBookingInput{FacultyID: "nope", DateTime: when, Topic: "x"}, ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.bookings.Create(context.Background(), tc.actor, tc.in)
			expectKind(t, err, tc.kind)
		})
	}

	b, err := env.bookings.Create(context.Background(), student, CreateBookingInput{
		FacultyID: profileID, DateTime: when, Topic: strings.Repeat("t", 150), DurationMinutes: 45,
	})
	if err != nil {
		t.Fatalf("150 character topic rejected: %v", err)
	}
	if b.DurationMinutes != 45 {
		t.Fatalf("duration = %d", b.DurationMinutes)
	}
}

func TestNotifierFailureDoesNotFailTransition(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	student := env.registerStudent(t, "Asha", "asha@sru.edu.in")
	faculty, profileID := env.registerFaculty(t, "Dr. Rao", "rao@sru.edu.in")
	env.notifier.err = errors.New("smtp: connection refused")

	b := env.book(t, student, profileID)
	if _, err := env.bookings.SetStatus(ctx, faculty, b.ID, StatusUpdate{Status: models.BookingStatusRejected}); err != nil {
		t.Fatalf("reject with failing notifier: %v", err)
	}
	stored, _ := env.store.GetBooking(ctx, b.ID)
	if stored.Status != models.BookingStatusRejected {
		t.Fatalf("status = %s", stored.Status)
	}
}

func TestListMine(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	asha := env.registerStudent(t, "Asha", "asha@sru.edu.in")
	ben := env.registerStudent(t, "Ben", "ben@gmail.com")
	rao, raoProfile := env.registerFaculty(t, "Dr. Rao", "rao@sru.edu.in")
	_, iyerProfile := env.registerFaculty(t, "Dr. Iyer", "iyer@sru.edu.in")

	first := env.book(t, asha, raoProfile)
	second := env.book(t, asha, iyerProfile)
	third := env.book(t, ben, raoProfile)

	mine, err := env.bookings.ListMine(ctx, asha)
	if err != nil {
		t.Fatalf("student list: %v", err)
	}
	if len(mine) != 2 || mine[0].ID != second.ID || mine[1].ID != first.ID {
		t.Fatalf("student list not newest first: %+v", mine)
	}
	if mine[0].Faculty == nil || mine[0].Faculty.Name != "Dr. Iyer" || mine[0].Student != nil {
		t.Fatalf("student view should carry faculty only: %+v", mine[0])
	}

	inbox, err := env.bookings.ListMine(ctx, rao)
	if err != nil {
		t.Fatalf("faculty list: %v", err)
	}
	if len(inbox) != 2 || inbox[0].ID != third.ID || inbox[1].ID != first.ID {
		t.Fatalf("faculty list not newest first: %+v", inbox)
	}
	if inbox[0].Student == nil || inbox[0].Student.Email != "ben@gmail.com" || inbox[0].Student.BatchNo != "2022" {
		t.Fatalf("faculty view should carry student details: %+v", inbox[0])
	}

	empty, err := env.bookings.ListMine(ctx, env.registerStudent(t, "Cy", "cy@gmail.com"))
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil list, got %v, %v", empty, err)
	}

	unlinked := &models.Account{Email: "half@sru.edu.in", Name: "Half", Role: models.RoleFaculty}
	if err := env.store.CreateAccount(ctx, unlinked); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, err = env.bookings.ListMine(ctx, Actor{AccountID: unlinked.ID, Role: models.RoleFaculty})
	expectKind(t, err, ErrNotFound)
}

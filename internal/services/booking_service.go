package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/harentsoaR/consultation-api/internal/metrics"
	"github.com/harentsoaR/consultation-api/internal/models"
	"github.com/harentsoaR/consultation-api/internal/store"
)

type CreateBookingInput struct {
	FacultyID       string
	DateTime        time.Time
	DurationMinutes int
	Topic           string
	StudentMessage  string
}

// StatusUpdate is a faculty decision on a booking. FinalDateTime and RoomNumber
// are nil when not supplied.
type StatusUpdate struct {
	Status        models.BookingStatus
	FinalDateTime *time.Time
	RoomNumber    *string
}

// BookingService runs the booking lifecycle: it checks the actor against the
// booking, applies the transition, persists it and then notifies.
type BookingService struct {
	accounts store.AccountStore
	faculty  store.FacultyStore
	bookings store.BookingStore
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewBookingService(st store.Store, notifier Notifier, logger *zap.Logger) *BookingService {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &BookingService{
		accounts: st,
		faculty:  st,
		bookings: st,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *BookingService) Create(ctx context.Context, actor Actor, in CreateBookingInput) (*models.Booking, error) {
	if actor.Role != models.RoleStudent {
		return nil, newError(ErrNotAuthorized, "Only students can request consultations.")
	}
	topic := strings.TrimSpace(in.Topic)
	message := strings.TrimSpace(in.StudentMessage)
	switch {
	case in.FacultyID == "":
		return nil, newError(ErrValidationFailed, "facultyId is required.")
	case in.DateTime.IsZero():
		return nil, newError(ErrValidationFailed, "dateTime is required.")
	case topic == "":
		return nil, newError(ErrValidationFailed, "topic is required.")
	case utf8.RuneCountInString(topic) > models.MaxTopicLength:
		return nil, newError(ErrValidationFailed, "Topic cannot exceed %d characters.", models.MaxTopicLength)
	case utf8.RuneCountInString(message) > models.MaxStudentMessage:
		return nil, newError(ErrValidationFailed, "Message cannot exceed %d characters.", models.MaxStudentMessage)
	case in.DurationMinutes < 0:
		return nil, newError(ErrValidationFailed, "durationMinutes must be positive.")
	}
	duration := in.DurationMinutes
	if duration == 0 {
		duration = models.DefaultDurationMinutes
	}

	profile, err := s.faculty.GetFaculty(ctx, in.FacultyID)
	if err != nil {
		return nil, s.lookupError(err, "Faculty or student not found.")
	}
	student, err := s.accounts.GetAccount(ctx, actor.AccountID)
	if err != nil {
		return nil, s.lookupError(err, "Faculty or student not found.")
	}

	now := s.now()
	b := &models.Booking{
		StudentID:       student.ID,
		FacultyID:       profile.ID,
		DateTime:        in.DateTime.UTC(),
		StudentMessage:  message,
		DurationMinutes: duration,
		Topic:           topic,
		Status:          models.BookingStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.bookings.CreateBooking(ctx, b); err != nil {
		return nil, unavailable(err, "Server error creating booking request")
	}
	metrics.BookingTransitions.WithLabelValues("none", string(b.Status)).Inc()
	s.logger.Info("Booking created",
		zap.String("booking_id", b.ID),
		zap.String("student_id", b.StudentID),
		zap.String("faculty_id", b.FacultyID),
	)

	owner, err := s.accounts.GetAccount(ctx, profile.AccountID)
	if err != nil {
		s.logger.Warn("Faculty account missing, skipping notification",
			zap.String("faculty_id", profile.ID), zap.Error(err))
		return b, nil
	}
	s.notify(JobNewRequest, b.ID, func() error {
		return s.notifier.NotifyNewRequest(ctx, owner.Email, student.Name, b.Topic, NewRequestMeta{
			StudentEmail:      student.Email,
			StudentDepartment: student.StudentDepartment,
			StudentBatchNo:    student.BatchNo,
			StudentMessage:    b.StudentMessage,
		})
	})
	return b, nil
}

// SetStatus applies a faculty decision. Only the faculty member who owns the
// targeted profile may change it.
func (s *BookingService) SetStatus(ctx context.Context, actor Actor, bookingID string, upd StatusUpdate) (*models.Booking, error) {
	if actor.Role != models.RoleFaculty {
		return nil, newError(ErrNotAuthorized, "Not authorized to update this booking.")
	}
	switch upd.Status {
	case models.BookingStatusApproved, models.BookingStatusRejected, models.BookingStatusReschedule:
	default:
		return nil, newError(ErrValidationFailed, "Invalid status provided.")
	}

	b, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, s.lookupError(err, "Booking not found.")
	}
	profile, err := s.faculty.GetFacultyByAccount(ctx, actor.AccountID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, unavailable(err, "Failed to load faculty profile")
	}
	if profile == nil || profile.ID != b.FacultyID {
		return nil, newError(ErrNotAuthorized, "Not authorized to update this booking.")
	}

	sched := schedule{at: upd.FinalDateTime}
	if upd.RoomNumber != nil {
		sched.room = strings.TrimSpace(*upd.RoomNumber)
	}
	if sched.at != nil {
		t := sched.at.UTC()
		sched.at = &t
	}
	from := b.Status
	if err := applyTransition(b, upd.Status, sched); err != nil {
		return nil, err
	}
	if err := s.save(ctx, b, from); err != nil {
		return nil, err
	}

	student, err := s.accounts.GetAccount(ctx, b.StudentID)
	if err != nil {
		s.logger.Warn("Student account missing, skipping notification",
			zap.String("booking_id", b.ID), zap.Error(err))
		return b, nil
	}
	facultyName := ""
	if owner, err := s.accounts.GetAccount(ctx, actor.AccountID); err == nil {
		facultyName = owner.Name
	}
	meta := StatusMeta{
		FinalDateTime:      b.FinalDateTime,
		RoomNumber:         b.RoomNumber,
		ProposedDateTime:   b.ProposedDateTime,
		ProposedRoomNumber: b.ProposedRoomNumber,
	}
	s.notify(JobStatusChange, b.ID, func() error {
		return s.notifier.NotifyStatusChange(ctx, student.Email, b.Status, facultyName, meta)
	})
	return b, nil
}

// Cancel lets the requesting student withdraw a booking that is still open.
func (s *BookingService) Cancel(ctx context.Context, actor Actor, bookingID string) (*models.Booking, error) {
	if actor.Role != models.RoleStudent {
		return nil, newError(ErrNotAuthorized, "Not authorized to cancel this booking.")
	}
	b, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, s.lookupError(err, "Booking not found.")
	}
	if b.StudentID != actor.AccountID {
		return nil, newError(ErrNotAuthorized, "Not authorized to cancel this booking.")
	}

	from := b.Status
	if err := applyTransition(b, models.BookingStatusCancelled, schedule{}); err != nil {
		return nil, newError(ErrInvalidTransition, "Cannot cancel a booking with status: %s", from)
	}
	if err := s.save(ctx, b, from); err != nil {
		return nil, err
	}

	student, err := s.accounts.GetAccount(ctx, b.StudentID)
	if err != nil {
		s.logger.Warn("Student account missing, skipping notification",
			zap.String("booking_id", b.ID), zap.Error(err))
		return b, nil
	}
	facultyName := ""
	if profile, err := s.faculty.GetFaculty(ctx, b.FacultyID); err == nil {
		if owner, err := s.accounts.GetAccount(ctx, profile.AccountID); err == nil {
			facultyName = owner.Name
		}
	}
	s.notify(JobStatusChange, b.ID, func() error {
		return s.notifier.NotifyStatusChange(ctx, student.Email, b.Status, facultyName, StatusMeta{})
	})
	return b, nil
}

// ListMine returns the actor's bookings, newest first. Students see the faculty
// on each booking and faculty see the student.
func (s *BookingService) ListMine(ctx context.Context, actor Actor) ([]models.BookingView, error) {
	switch actor.Role {
	case models.RoleStudent:
		return s.listForStudent(ctx, actor.AccountID)
	case models.RoleFaculty:
		profile, err := s.faculty.GetFacultyByAccount(ctx, actor.AccountID)
		if err != nil {
			return nil, s.lookupError(err, "Faculty profile not linked.")
		}
		return s.listForFaculty(ctx, profile.ID)
	}
	return nil, newError(ErrNotAuthorized, "Unknown role.")
}

func (s *BookingService) listForStudent(ctx context.Context, studentID string) ([]models.BookingView, error) {
	bookings, err := s.bookings.ListBookingsByStudent(ctx, studentID)
	if err != nil {
		return nil, unavailable(err, "Server error fetching bookings")
	}
	profileIDs := make([]string, 0, len(bookings))
	for _, b := range bookings {
		profileIDs = append(profileIDs, b.FacultyID)
	}
	profiles, err := s.faculty.GetFaculties(ctx, profileIDs)
	if err != nil {
		return nil, unavailable(err, "Server error fetching bookings")
	}
	ownerIDs := make([]string, 0, len(profiles))
	for _, p := range profiles {
		ownerIDs = append(ownerIDs, p.AccountID)
	}
	owners, err := s.accounts.GetAccounts(ctx, ownerIDs)
	if err != nil {
		return nil, unavailable(err, "Server error fetching bookings")
	}

	views := make([]models.BookingView, 0, len(bookings))
	for _, b := range bookings {
		v := models.BookingView{Booking: *b}
		if p, ok := profiles[b.FacultyID]; ok {
			if owner, ok := owners[p.AccountID]; ok {
				v.Faculty = &models.FacultySummary{ID: p.ID, Name: owner.Name, Email: owner.Email}
			}
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *BookingService) listForFaculty(ctx context.Context, facultyID string) ([]models.BookingView, error) {
	bookings, err := s.bookings.ListBookingsByFaculty(ctx, facultyID)
	if err != nil {
		return nil, unavailable(err, "Server error fetching bookings")
	}
	studentIDs := make([]string, 0, len(bookings))
	for _, b := range bookings {
		studentIDs = append(studentIDs, b.StudentID)
	}
	students, err := s.accounts.GetAccounts(ctx, studentIDs)
	if err != nil {
		return nil, unavailable(err, "Server error fetching bookings")
	}

	views := make([]models.BookingView, 0, len(bookings))
	for _, b := range bookings {
		v := models.BookingView{Booking: *b}
		if st, ok := students[b.StudentID]; ok {
			v.Student = &models.StudentSummary{
				ID:                st.ID,
				Name:              st.Name,
				Email:             st.Email,
				StudentDepartment: st.StudentDepartment,
				BatchNo:           st.BatchNo,
			}
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *BookingService) save(ctx context.Context, b *models.Booking, from models.BookingStatus) error {
	b.UpdatedAt = s.now()
	if err := s.bookings.UpdateBooking(ctx, b); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return newError(ErrNotFound, "Booking not found.")
		}
		return unavailable(err, "Server error updating booking")
	}
	metrics.BookingTransitions.WithLabelValues(string(from), string(b.Status)).Inc()
	s.logger.Info("Booking status changed",
		zap.String("booking_id", b.ID),
		zap.String("from", string(from)),
		zap.String("to", string(b.Status)),
	)
	return nil
}

// notify runs after the change is committed. Its failure is logged and counted,
// never returned.
func (s *BookingService) notify(kind, bookingID string, send func() error) {
	if err := send(); err != nil {
		metrics.Notifications.WithLabelValues(kind, "failed").Inc()
		s.logger.Warn("Notification failed",
			zap.String("kind", kind),
			zap.String("booking_id", bookingID),
			zap.Error(err),
		)
		return
	}
	metrics.Notifications.WithLabelValues(kind, "sent").Inc()
}

func (s *BookingService) lookupError(err error, notFound string) error {
	if errors.Is(err, store.ErrNotFound) {
		return newError(ErrNotFound, "%s", notFound)
	}
	return unavailable(err, "Store lookup failed")
}

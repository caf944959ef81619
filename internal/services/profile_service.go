package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/harentsoaR/consultation-api/internal/models"
	"github.com/harentsoaR/consultation-api/internal/store"
)

// FacultyProfileUpdate changes only the non-nil fields.
type FacultyProfileUpdate struct {
	Department     *string
	Title          *string
	Bio            *string
	AvailableSlots *string
}

// StudentProfileUpdate changes only the non-empty fields.
type StudentProfileUpdate struct {
	Name              string
	StudentDepartment string
	BatchNo           string
}

// Me is the caller's own account, with the faculty profile for faculty.
type Me struct {
	Account models.AccountSummary  `json:"user"`
	Faculty *models.FacultyProfile `json:"faculty,omitempty"`
}

type ProfileService struct {
	accounts store.AccountStore
	faculty  store.FacultyStore
	auth     *AuthService
	logger   *zap.Logger
	now      func() time.Time
}

func NewProfileService(st store.Store, auth *AuthService, logger *zap.Logger) *ProfileService {
	return &ProfileService{
		accounts: st,
		faculty:  st,
		auth:     auth,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *ProfileService) UpdateFaculty(ctx context.Context, actor Actor, upd FacultyProfileUpdate) (*models.FacultyProfile, error) {
	if actor.Role != models.RoleFaculty {
		return nil, newError(ErrNotAuthorized, "Not authorized or user is not a faculty member.")
	}
	if upd.Bio != nil && utf8.RuneCountInString(*upd.Bio) > models.MaxBioLength {
		return nil, newError(ErrValidationFailed, "Bio cannot exceed %d characters.", models.MaxBioLength)
	}
	p, err := s.faculty.GetFacultyByAccount(ctx, actor.AccountID)
	if err != nil {
		if isNotFound(err) {
			return nil, newError(ErrNotFound, "Faculty profile not found.")
		}
		return nil, unavailable(err, "Server error updating profile")
	}

	if upd.Department != nil {
		p.Department = strings.TrimSpace(*upd.Department)
	}
	if upd.Title != nil {
		p.Title = strings.TrimSpace(*upd.Title)
	}
	if upd.Bio != nil {
		p.Bio = strings.TrimSpace(*upd.Bio)
	}
	if upd.AvailableSlots != nil {
		p.AvailableSlots = strings.TrimSpace(*upd.AvailableSlots)
	}
	p.UpdatedAt = s.now()
	if err := s.faculty.UpdateFaculty(ctx, p); err != nil {
		return nil, unavailable(err, "Server error updating profile")
	}
	s.logger.Info("Faculty profile updated", zap.String("faculty_id", p.ID))
	return p, nil
}

// UpdateStudent applies upd and issues a fresh credential carrying the new state.
func (s *ProfileService) UpdateStudent(ctx context.Context, actor Actor, upd StudentProfileUpdate) (*AuthResult, error) {
	if actor.Role != models.RoleStudent {
		return nil, newError(ErrNotAuthorized, "Not authorized or user is not a student.")
	}
	acct, err := s.accounts.GetAccount(ctx, actor.AccountID)
	if err != nil {
		if isNotFound(err) {
			return nil, newError(ErrNotAuthorized, "Not authorized or user is not a student.")
		}
		return nil, unavailable(err, "Server error updating student profile")
	}

	if v := strings.TrimSpace(upd.Name); v != "" {
		acct.Name = v
	}
	if v := strings.TrimSpace(upd.StudentDepartment); v != "" {
		acct.StudentDepartment = v
	}
	if v := strings.TrimSpace(upd.BatchNo); v != "" {
		acct.BatchNo = v
	}
	acct.UpdatedAt = s.now()
	if err := s.accounts.UpdateAccount(ctx, acct); err != nil {
		return nil, unavailable(err, "Server error updating student profile")
	}
	s.logger.Info("Student profile updated", zap.String("account_id", acct.ID))
	return s.auth.issue(acct)
}

func (s *ProfileService) Me(ctx context.Context, actor Actor) (*Me, error) {
	acct, err := s.accounts.GetAccount(ctx, actor.AccountID)
	if err != nil {
		if isNotFound(err) {
			return nil, newError(ErrNotFound, "User not found.")
		}
		return nil, unavailable(err, "Server error loading profile")
	}
	me := &Me{Account: acct.Summary()}
	if acct.Role == models.RoleFaculty {
		p, err := s.faculty.GetFacultyByAccount(ctx, acct.ID)
		switch {
		case err == nil:
			me.Faculty = p
		case !isNotFound(err):
			return nil, unavailable(err, "Server error loading profile")
		}
	}
	return me, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

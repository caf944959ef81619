package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/harentsoaR/consultation-api/internal/metrics"
	"github.com/harentsoaR/consultation-api/internal/models"
	"github.com/harentsoaR/consultation-api/internal/store"
	"github.com/harentsoaR/consultation-api/internal/utils"
)

const MinPasswordLength = 6

// Generic messages for authentication failures. They never say which check failed.
const (
	msgInvalidCredentials = "Invalid email or password."
	msgUnauthenticated    = "Not authorized, token failed."
)

// Actor is the identity resolved from a credential.
type Actor struct {
	AccountID string
	Role      models.Role
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Fields   models.RoleFields
}

// AuthResult is returned by register, login and student profile updates.
type AuthResult struct {
	Account models.AccountSummary
	Token   string
}

type AuthConfig struct {
	AllowedDomains []string
	BcryptCost     int
	// OrphanGrace is how old an unlinked faculty account must be before a new
	// registration for the same email may reclaim it.
	OrphanGrace time.Duration
}

// AuthService registers and authenticates accounts and resolves credentials.
type AuthService struct {
	accounts store.AccountStore
	faculty  store.FacultyStore
	tokens   *utils.TokenManager
	domains  []string
	cost     int
	grace    time.Duration
	logger   *zap.Logger
	now      func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(accounts store.AccountStore, faculty store.FacultyStore, tokens *utils.TokenManager, cfg AuthConfig, logger *zap.Logger) *AuthService {
	domains := make([]string, 0, len(cfg.AllowedDomains))
	for _, d := range cfg.AllowedDomains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			domains = append(domains, d)
		}
	}
	if cfg.OrphanGrace <= 0 {
		cfg.OrphanGrace = time.Minute
	}
	return &AuthService{
		accounts: accounts,
		faculty:  faculty,
		tokens:   tokens,
		domains:  domains,
		cost:     cfg.BcryptCost,
		grace:    cfg.OrphanGrace,
		logger:   logger,
		now:      time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// domainAllowed matches the part after the last "@" against the allow-list.
func (s *AuthService) domainAllowed(email string) bool {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	for _, d := range s.domains {
		if domain == d {
			return true
		}
	}
	return false
}

// Register creates an account. Faculty registration also creates the linked
// profile; if that fails the account is deleted again.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (res *AuthResult, err error) {
	if in.Fields == nil {
		return nil, newError(ErrValidationFailed, "Role must be student or faculty.")
	}
	role := in.Fields.Role()
	defer func() {
		metrics.Registrations.WithLabelValues(string(role), registrationResult(err)).Inc()
	}()

	email := normalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	switch {
	case name == "":
		return nil, newError(ErrValidationFailed, "Name is required.")
	case email == "":
		return nil, newError(ErrValidationFailed, "Email is required.")
	case utf8.RuneCountInString(in.Password) < MinPasswordLength:
		return nil, newError(ErrValidationFailed, "Password must be at least %d characters.", MinPasswordLength)
	}
	if !s.domainAllowed(email) {
		return nil, newError(ErrDomainRejected, "Registration is restricted to %s email addresses.", strings.Join(s.domains, ", "))
	}

	acct := &models.Account{Email: email, Name: name, Role: role}
	switch f := in.Fields.(type) {
	case models.StudentFields:
		acct.StudentDepartment = strings.TrimSpace(f.Department)
		acct.BatchNo = strings.TrimSpace(f.BatchNo)
		if acct.StudentDepartment == "" || acct.BatchNo == "" {
			return nil, newError(ErrValidationFailed, "Students must provide a department and batch number.")
		}
	case models.FacultyFields:
		if utf8.RuneCountInString(f.Bio) > models.MaxBioLength {
			return nil, newError(ErrValidationFailed, "Bio cannot exceed %d characters.", models.MaxBioLength)
		}
	}

	if err := s.ensureEmailFree(ctx, email); err != nil {
		return nil, err
	}

	hash, err := utils.HashPassword(in.Password, s.cost)
	if err != nil {
		return nil, &Error{Kind: ErrDependencyUnavailable, Msg: "Failed to hash password", Cause: err}
	}
	acct.PasswordHash = hash

	if err := s.accounts.CreateAccount(ctx, acct); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, newError(ErrDuplicateEmail, "User already exists.")
		}
		return nil, unavailable(err, "Failed to create account")
	}

	if f, ok := in.Fields.(models.FacultyFields); ok {
		if err := s.attachProfile(ctx, acct, f); err != nil {
			return nil, err
		}
	}

	s.logger.Info("Account registered",
		zap.String("account_id", acct.ID),
		zap.String("role", string(role)),
	)
	return s.issue(acct)
}

// ensureEmailFree rejects a taken email. A faculty account left without a
// profile by an interrupted registration is removed once it is older than the
// grace period, so the client can simply retry.
func (s *AuthService) ensureEmailFree(ctx context.Context, email string) error {
	existing, err := s.accounts.GetAccountByEmail(ctx, email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil
	case err != nil:
		return unavailable(err, "Failed to look up account")
	}
	if !s.isOrphan(existing) || s.now().Sub(existing.CreatedAt) < s.grace {
		return newError(ErrDuplicateEmail, "User already exists.")
	}
	s.logger.Warn("Reclaiming unlinked faculty account", zap.String("account_id", existing.ID))
	if err := s.rollback(ctx, existing.ID, ""); err != nil {
		return unavailable(err, "Failed to clean up previous registration")
	}
	return nil
}

func (s *AuthService) isOrphan(a *models.Account) bool {
	return a.Role == models.RoleFaculty && a.FacultyProfileID == ""
}

func withDefault(v, fallback string) string {
	if v = strings.TrimSpace(v); v == "" {
		return fallback
	}
	return v
}

// attachProfile is phases two and three of faculty registration: create the
// profile, then link it from the account.
func (s *AuthService) attachProfile(ctx context.Context, acct *models.Account, f models.FacultyFields) error {
	profile := &models.FacultyProfile{
		AccountID:      acct.ID,
		Department:     withDefault(f.Department, models.DefaultFacultyDepartment),
		Title:          withDefault(f.Title, models.DefaultFacultyTitle),
		Bio:            withDefault(f.Bio, models.DefaultFacultyBio),
		AvailableSlots: withDefault(f.AvailableSlots, models.DefaultAvailableSlots),
	}
	if err := s.faculty.CreateFaculty(ctx, profile); err != nil {
		s.compensate(ctx, acct.ID, "", err)
		return &Error{Kind: ErrProfileCreationFailed, Msg: "Failed to create faculty profile.", Cause: err}
	}

	acct.FacultyProfileID = profile.ID
	if err := s.accounts.UpdateAccount(ctx, acct); err != nil {
		acct.FacultyProfileID = ""
		s.compensate(ctx, acct.ID, profile.ID, err)
		return &Error{Kind: ErrProfileCreationFailed, Msg: "Failed to link faculty profile.", Cause: err}
	}
	return nil
}

func (s *AuthService) compensate(ctx context.Context, accountID, profileID string, cause error) {
	s.logger.Warn("Faculty registration failed, rolling back",
		zap.String("account_id", accountID),
		zap.Error(cause),
	)
	if err := s.rollback(ctx, accountID, profileID); err != nil {
		// left for ensureEmailFree to reclaim on the next attempt
		s.logger.Error("Rollback incomplete", zap.String("account_id", accountID), zap.Error(err))
	}
}

// rollback deletes the profile (looked up by owner when profileID is empty) and
// then the account. It runs detached from ctx so a cancelled request still
// cleans up.
func (s *AuthService) rollback(ctx context.Context, accountID, profileID string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if profileID == "" {
		p, err := s.faculty.GetFacultyByAccount(ctx, accountID)
		switch {
		case err == nil:
			profileID = p.ID
		case !errors.Is(err, store.ErrNotFound):
			return err
		}
	}
	if profileID != "" {
		if err := s.faculty.DeleteFaculty(ctx, profileID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
	}
	if err := s.accounts.DeleteAccount(ctx, accountID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}

// Authenticate checks an email and password. Every failure other than an
// unreachable store is the same InvalidCredentials error.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if !s.domainAllowed(email) {
		s.burn(password)
		return nil, newError(ErrInvalidCredentials, msgInvalidCredentials)
	}
	acct, err := s.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.burn(password)
			return nil, newError(ErrInvalidCredentials, msgInvalidCredentials)
		}
		return nil, unavailable(err, "Failed to look up account")
	}
	if !utils.CheckPasswordHash(password, acct.PasswordHash) || s.isOrphan(acct) {
		return nil, newError(ErrInvalidCredentials, msgInvalidCredentials)
	}
	return s.issue(acct)
}

// burn spends one bcrypt comparison so unknown emails take as long as wrong
// passwords.
func (s *AuthService) burn(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = utils.HashPassword("consultation-portal-dummy", s.cost)
	})
	utils.CheckPasswordHash(password, s.dummyHash)
}

func (s *AuthService) issue(acct *models.Account) (*AuthResult, error) {
	token, err := s.IssueToken(acct)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Account: acct.Summary(), Token: token}, nil
}

// IssueToken signs a credential for acct.
func (s *AuthService) IssueToken(acct *models.Account) (string, error) {
	token, err := s.tokens.GenerateJWT(acct.ID, string(acct.Role))
	if err != nil {
		return "", &Error{Kind: ErrDependencyUnavailable, Msg: "Could not generate token", Cause: err}
	}
	return token, nil
}

// ResolveCredential verifies token and reloads its account. The account must
// still exist and still hold the role named in the token.
func (s *AuthService) ResolveCredential(ctx context.Context, token string) (*Actor, error) {
	if token == "" {
		return nil, newError(ErrUnauthenticated, "Not authorized, no token.")
	}
	claims, err := s.tokens.ValidateJWT(token)
	if err != nil {
		return nil, &Error{Kind: ErrUnauthenticated, Msg: msgUnauthenticated, Cause: err}
	}
	acct, err := s.accounts.GetAccount(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, newError(ErrUnauthenticated, msgUnauthenticated)
		}
		return nil, unavailable(err, "Failed to load account")
	}
	if string(acct.Role) != claims.Role {
		return nil, newError(ErrUnauthenticated, msgUnauthenticated)
	}
	return &Actor{AccountID: acct.ID, Role: acct.Role}, nil
}

func registrationResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrProfileCreationFailed):
		return "rolled_back"
	case errors.Is(err, ErrDependencyUnavailable):
		return "error"
	default:
		return "rejected"
	}
}

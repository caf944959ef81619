package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/harentsoaR/consultation-api/internal/models"
	"github.com/harentsoaR/consultation-api/internal/store"
	"github.com/harentsoaR/consultation-api/internal/utils"
)

type newRequestCall struct {
	To, StudentName, Topic string
	Meta                   NewRequestMeta
}

type statusCall struct {
	To          string
	Status      models.BookingStatus
	FacultyName string
	Meta        StatusMeta
}

// recordingNotifier captures notices and optionally fails them.
type recordingNotifier struct {
	mu         sync.Mutex
	err        error
	newReqs    []newRequestCall
	statusMsgs []statusCall
}

func (n *recordingNotifier) NotifyNewRequest(_ context.Context, to, studentName, topic string, meta NewRequestMeta) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.newReqs = append(n.newReqs, newRequestCall{to, studentName, topic, meta})
	return n.err
}

func (n *recordingNotifier) NotifyStatusChange(_ context.Context, to string, status models.BookingStatus, facultyName string, meta StatusMeta) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statusMsgs = append(n.statusMsgs, statusCall{to, status, facultyName, meta})
	return n.err
}

func (n *recordingNotifier) lastStatus(t *testing.T) statusCall {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.statusMsgs) == 0 {
		t.Fatalf("no status notification recorded")
	}
	return n.statusMsgs[len(n.statusMsgs)-1]
}

// flakyFaculty fails profile creation.
type flakyFaculty struct {
	*store.Memory
	createErr error
}

func (f *flakyFaculty) CreateFaculty(ctx context.Context, p *models.FacultyProfile) error {
	if f.createErr != nil {
		return f.createErr
	}
	return f.Memory.CreateFaculty(ctx, p)
}

// flakyAccounts fails the update that links a profile to its account.
type flakyAccounts struct {
	*store.Memory
	updateErr error
}

func (f *flakyAccounts) UpdateAccount(ctx context.Context, a *models.Account) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	return f.Memory.UpdateAccount(ctx, a)
}

type testEnv struct {
	store    *store.Memory
	tokens   *utils.TokenManager
	auth     *AuthService
	bookings *BookingService
	profiles *ProfileService
	dir      *DirectoryService
	notifier *recordingNotifier
}

var testAuthConfig = AuthConfig{
	AllowedDomains: []string{"sru.edu.in", "gmail.com"},
	BcryptCost:     bcrypt.MinCost,
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := store.NewMemory()
	tokens := utils.NewTokenManager("test-secret", "consultation-test", time.Hour)
	auth := NewAuthService(st, st, tokens, testAuthConfig, zap.NewNop())
	notifier := &recordingNotifier{}
	return &testEnv{
		store:    st,
		tokens:   tokens,
		auth:     auth,
		bookings: NewBookingService(st, notifier, zap.NewNop()),
		profiles: NewProfileService(st, auth, zap.NewNop()),
		dir:      NewDirectoryService(st),
		notifier: notifier,
	}
}

func (e *testEnv) registerStudent(t *testing.T, name, email string) Actor {
	t.Helper()
	res, err := e.auth.Register(context.Background(), RegisterInput{
		Name:     name,
		Email:    email,
		Password: "secret123",
		Fields:   models.StudentFields{Department: "CSE", BatchNo: "2022"},
	})
	if err != nil {
		t.Fatalf("register student %s: %v", email, err)
	}
	return Actor{AccountID: res.Account.ID, Role: models.RoleStudent}
}

// registerFaculty returns the faculty actor and its profile id.
func (e *testEnv) registerFaculty(t *testing.T, name, email string) (Actor, string) {
	t.Helper()
	res, err := e.auth.Register(context.Background(), RegisterInput{
		Name:     name,
		Email:    email,
		Password: "secret123",
		Fields:   models.FacultyFields{Department: "CSE", Title: "Professor"},
	})
	if err != nil {
		t.Fatalf("register faculty %s: %v", email, err)
	}
	return Actor{AccountID: res.Account.ID, Role: models.RoleFaculty}, res.Account.FacultyID
}

func (e *testEnv) book(t *testing.T, student Actor, facultyID string) *models.Booking {
	t.Helper()
	b, err := e.bookings.Create(context.Background(), student, CreateBookingInput{
		FacultyID: facultyID,
		DateTime:  time.Date(2024, 4, 28, 9, 0, 0, 0, time.UTC),
		Topic:     "Thesis review",
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return b
}

func expectKind(t *testing.T, err, kind error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v, got nil", kind)
	}
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
}

func ptr[T any](v T) *T { return &v }

package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/harentsoaR/consultation-api/internal/app"
	"github.com/harentsoaR/consultation-api/internal/models"
)

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, NewMemory())
}

// TestMongoStore runs against a throwaway database when TEST_MONGO_URI is set.
func TestMongoStore(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	m, err := ConnectMongo(ctx, uri, fmt.Sprintf("consultation_test_%d", time.Now().UnixNano()))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer func() {
		_ = m.db.Drop(context.Background())
		_ = m.Close(context.Background())
	}()
	runStoreContract(t, m)

	if _, err := m.GetAccount(ctx, "not-an-object-id"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("malformed id should read as not found, got %v", err)
	}
}

// TestPostgresStore migrates and truncates the database at TEST_DATABASE_URL.
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pg, err := ConnectPostgres(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pg.Close(ctx)

	migrator, err := app.NewMigrator(pg.Pool(), Migrations, "migrations", zap.NewNop())
	if err != nil {
		t.Fatalf("migrator: %v", err)
	}
	defer migrator.Close()
	if err := migrator.Run(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := pg.Pool().Exec(ctx, `TRUNCATE bookings, faculty_profiles, accounts`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	runStoreContract(t, pg)
}

func runStoreContract(t *testing.T, st Store) {
	t.Helper()
	ctx := context.Background()

	if err := st.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	// accounts
	student := &models.Account{Email: "asha@sru.edu.in", PasswordHash: "h", Name: "Asha", Role: models.RoleStudent, StudentDepartment: "CSE", BatchNo: "2022"}
	if err := st.CreateAccount(ctx, student); err != nil {
		t.Fatalf("create student: %v", err)
	}
	if student.ID == "" || student.CreatedAt.IsZero() {
		t.Fatalf("create did not assign id and timestamps: %+v", student)
	}
	dup := &models.Account{Email: "asha@sru.edu.in", PasswordHash: "h", Name: "Other", Role: models.RoleStudent}
	if err := st.CreateAccount(ctx, dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate email: %v", err)
	}
	got, err := st.GetAccountByEmail(ctx, "asha@sru.edu.in")
	if err != nil || got.ID != student.ID || got.BatchNo != "2022" {
		t.Fatalf("by email: %+v, %v", got, err)
	}

	faculty := &models.Account{Email: "rao@sru.edu.in", PasswordHash: "h", Name: "Dr. Rao", Role: models.RoleFaculty}
	if err := st.CreateAccount(ctx, faculty); err != nil {
		t.Fatalf("create faculty account: %v", err)
	}

	// faculty profiles
	profile := &models.FacultyProfile{AccountID: faculty.ID, Department: "CSE", Title: "Professor", Bio: "b", AvailableSlots: "Mon"}
	if err := st.CreateFaculty(ctx, profile); err != nil {
		t.Fatalf("create profile: %v", err)
	}
	if err := st.CreateFaculty(ctx, &models.FacultyProfile{AccountID: faculty.ID}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second profile for one account: %v", err)
	}
	faculty.FacultyProfileID = profile.ID
	if err := st.UpdateAccount(ctx, faculty); err != nil {
		t.Fatalf("link profile: %v", err)
	}
	if got, _ := st.GetAccount(ctx, faculty.ID); got == nil || got.FacultyProfileID != profile.ID {
		t.Fatalf("profile link not stored: %+v", got)
	}
	if got, err := st.GetFacultyByAccount(ctx, faculty.ID); err != nil || got.ID != profile.ID {
		t.Fatalf("profile by account: %+v, %v", got, err)
	}
	profile.Bio = "updated"
	if err := st.UpdateFaculty(ctx, profile); err != nil {
		t.Fatalf("update profile: %v", err)
	}
	list, err := st.ListFaculty(ctx)
	if err != nil || len(list) != 1 || list[0].Bio != "updated" {
		t.Fatalf("list faculty: %+v, %v", list, err)
	}
	accounts, err := st.GetAccounts(ctx, []string{student.ID, faculty.ID, "ffffffffffffffffffffffff"})
	if err != nil || len(accounts) != 2 {
		t.Fatalf("batch accounts: %d, %v", len(accounts), err)
	}

	// bookings
	var ids []string
	for i := 0; i < 3; i++ {
		b := &models.Booking{
			StudentID:       student.ID,
			FacultyID:       profile.ID,
			DateTime:        time.Date(2024, 5, 1+i, 10, 0, 0, 0, time.UTC),
			DurationMinutes: 30,
			Topic:           fmt.Sprintf("topic %d", i),
			Status:          models.BookingStatusPending,
		}
		if err := st.CreateBooking(ctx, b); err != nil {
			t.Fatalf("create booking: %v", err)
		}
		ids = append(ids, b.ID)
	}
	byStudent, err := st.ListBookingsByStudent(ctx, student.ID)
	if err != nil || len(byStudent) != 3 || byStudent[0].ID != ids[2] || byStudent[2].ID != ids[0] {
		t.Fatalf("student bookings not newest first: %v", err)
	}
	byFaculty, err := st.ListBookingsByFaculty(ctx, profile.ID)
	if err != nil || len(byFaculty) != 3 || byFaculty[0].ID != ids[2] {
		t.Fatalf("faculty bookings not newest first: %v", err)
	}

	b, err := st.GetBooking(ctx, ids[0])
	if err != nil {
		t.Fatalf("get booking: %v", err)
	}
	at := time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC)
	b.Status = models.BookingStatusApproved
	b.FinalDateTime = &at
	b.RoomNumber = "204"
	if err := st.UpdateBooking(ctx, b); err != nil {
		t.Fatalf("approve: %v", err)
	}
	b, _ = st.GetBooking(ctx, ids[0])
	if b.FinalDateTime == nil || !b.FinalDateTime.Equal(at) || b.RoomNumber != "204" {
		t.Fatalf("schedule not stored: %+v", b)
	}
	b.Status = models.BookingStatusCancelled
	b.ClearSchedule()
	if err := st.UpdateBooking(ctx, b); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	b, _ = st.GetBooking(ctx, ids[0])
	if b.Status != models.BookingStatusCancelled || b.FinalDateTime != nil || b.RoomNumber != "" {
		t.Fatalf("schedule not cleared: %+v", b)
	}

	// not found
	if _, err := st.GetBooking(ctx, "ffffffffffffffffffffffff"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing booking: %v", err)
	}
	if _, err := st.GetFaculty(ctx, "ffffffffffffffffffffffff"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing profile: %v", err)
	}

	// rollback path: profile then account
	orphan := &models.Account{Email: "half@sru.edu.in", PasswordHash: "h", Name: "Half", Role: models.RoleFaculty}
	if err := st.CreateAccount(ctx, orphan); err != nil {
		t.Fatalf("create orphan: %v", err)
	}
	op := &models.FacultyProfile{AccountID: orphan.ID}
	if err := st.CreateFaculty(ctx, op); err != nil {
		t.Fatalf("create orphan profile: %v", err)
	}
	if err := st.DeleteFaculty(ctx, op.ID); err != nil {
		t.Fatalf("delete profile: %v", err)
	}
	if err := st.DeleteAccount(ctx, orphan.ID); err != nil {
		t.Fatalf("delete account: %v", err)
	}
	if _, err := st.GetAccount(ctx, orphan.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted account still readable: %v", err)
	}
	if err := st.DeleteAccount(ctx, orphan.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harentsoaR/consultation-api/internal/models"
)

var _ Store = (*Postgres)(nil)

const uniqueViolation = "23505"

// Postgres is the PostgreSQL backend. Each statement commits on its own, matching
// the independently-committed collections of the mongo backend.
type Postgres struct {
	pool *pgxpool.Pool
}

// ConnectPostgres opens a pgx pool and pings it.
func ConnectPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MaxConnLifetime = time.Hour
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Pool exposes the underlying pool for the migrator.
func (p *Postgres) Pool() *pgxpool.Pool {
	return p.pool
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close(context.Context) error {
	p.pool.Close()
	return nil
}

const accountColumns = `id, email, password_hash, name, role, student_department, batch_no, faculty_profile_id, created_at, updated_at`

func (p *Postgres) CreateAccount(ctx context.Context, a *models.Account) error {
	a.ID = uuid.NewString()
	err := p.pool.QueryRow(ctx, `
		INSERT INTO accounts (id, email, password_hash, name, role, student_department, batch_no, faculty_profile_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, a.ID, a.Email, a.PasswordHash, a.Name, string(a.Role), a.StudentDepartment, a.BatchNo, nullable(a.FacultyProfileID),
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		a.ID = ""
		return translatePg(err)
	}
	return nil
}

func (p *Postgres) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

func (p *Postgres) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
	return scanAccount(row)
}

func (p *Postgres) GetAccounts(ctx context.Context, ids []string) (map[string]*models.Account, error) {
	out := make(map[string]*models.Account, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := p.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get accounts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out[a.ID] = a
	}
	return out, rows.Err()
}

func (p *Postgres) UpdateAccount(ctx context.Context, a *models.Account) error {
	err := p.pool.QueryRow(ctx, `
		UPDATE accounts
		SET email = $2, password_hash = $3, name = $4, role = $5,
			student_department = $6, batch_no = $7, faculty_profile_id = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, a.ID, a.Email, a.PasswordHash, a.Name, string(a.Role), a.StudentDepartment, a.BatchNo, nullable(a.FacultyProfileID),
	).Scan(&a.UpdatedAt)
	return translatePg(err)
}

func (p *Postgres) DeleteAccount(ctx context.Context, id string) error {
	return p.execOne(ctx, `DELETE FROM accounts WHERE id = $1`, id)
}

const facultyColumns = `id, account_id, department, title, bio, available_slots, created_at, updated_at`

func (p *Postgres) CreateFaculty(ctx context.Context, f *models.FacultyProfile) error {
	f.ID = uuid.NewString()
	err := p.pool.QueryRow(ctx, `
		INSERT INTO faculty_profiles (id, account_id, department, title, bio, available_slots)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, f.ID, f.AccountID, f.Department, f.Title, f.Bio, f.AvailableSlots).Scan(&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		f.ID = ""
		return translatePg(err)
	}
	return nil
}

func (p *Postgres) GetFaculty(ctx context.Context, id string) (*models.FacultyProfile, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+facultyColumns+` FROM faculty_profiles WHERE id = $1`, id)
	return scanFaculty(row)
}

func (p *Postgres) GetFacultyByAccount(ctx context.Context, accountID string) (*models.FacultyProfile, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+facultyColumns+` FROM faculty_profiles WHERE account_id = $1`, accountID)
	return scanFaculty(row)
}

func (p *Postgres) GetFaculties(ctx context.Context, ids []string) (map[string]*models.FacultyProfile, error) {
	out := make(map[string]*models.FacultyProfile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	list, err := p.queryFaculty(ctx, `SELECT `+facultyColumns+` FROM faculty_profiles WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	for _, f := range list {
		out[f.ID] = f
	}
	return out, nil
}

func (p *Postgres) ListFaculty(ctx context.Context) ([]*models.FacultyProfile, error) {
	return p.queryFaculty(ctx, `SELECT `+facultyColumns+` FROM faculty_profiles ORDER BY created_at`)
}

func (p *Postgres) queryFaculty(ctx context.Context, query string, args ...any) ([]*models.FacultyProfile, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query faculty: %w", err)
	}
	defer rows.Close()
	out := make([]*models.FacultyProfile, 0)
	for rows.Next() {
		f, err := scanFaculty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (p *Postgres) UpdateFaculty(ctx context.Context, f *models.FacultyProfile) error {
	err := p.pool.QueryRow(ctx, `
		UPDATE faculty_profiles
		SET department = $2, title = $3, bio = $4, available_slots = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, f.ID, f.Department, f.Title, f.Bio, f.AvailableSlots).Scan(&f.UpdatedAt)
	return translatePg(err)
}

func (p *Postgres) DeleteFaculty(ctx context.Context, id string) error {
	return p.execOne(ctx, `DELETE FROM faculty_profiles WHERE id = $1`, id)
}

const bookingColumns = `id, student_id, faculty_id, date_time, student_message, final_date_time, room_number,
	proposed_date_time, proposed_room_number, duration_minutes, topic, status, created_at, updated_at`

func (p *Postgres) CreateBooking(ctx context.Context, b *models.Booking) error {
	b.ID = uuid.NewString()
	err := p.pool.QueryRow(ctx, `
		INSERT INTO bookings (id, student_id, faculty_id, date_time, student_message, final_date_time, room_number,
			proposed_date_time, proposed_room_number, duration_minutes, topic, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`, b.ID, b.StudentID, b.FacultyID, b.DateTime, b.StudentMessage, b.FinalDateTime, b.RoomNumber,
		b.ProposedDateTime, b.ProposedRoomNumber, b.DurationMinutes, b.Topic, string(b.Status),
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		b.ID = ""
		return translatePg(err)
	}
	return nil
}

func (p *Postgres) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	return scanBooking(row)
}

func (p *Postgres) UpdateBooking(ctx context.Context, b *models.Booking) error {
	err := p.pool.QueryRow(ctx, `
		UPDATE bookings
		SET date_time = $2, student_message = $3, final_date_time = $4, room_number = $5,
			proposed_date_time = $6, proposed_room_number = $7, duration_minutes = $8, topic = $9,
			status = $10, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, b.ID, b.DateTime, b.StudentMessage, b.FinalDateTime, b.RoomNumber,
		b.ProposedDateTime, b.ProposedRoomNumber, b.DurationMinutes, b.Topic, string(b.Status),
	).Scan(&b.UpdatedAt)
	return translatePg(err)
}

func (p *Postgres) ListBookingsByStudent(ctx context.Context, studentID string) ([]*models.Booking, error) {
	return p.queryBookings(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE student_id = $1 ORDER BY seq DESC`, studentID)
}

func (p *Postgres) ListBookingsByFaculty(ctx context.Context, facultyID string) ([]*models.Booking, error) {
	return p.queryBookings(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE faculty_id = $1 ORDER BY seq DESC`, facultyID)
}

func (p *Postgres) queryBookings(ctx context.Context, query string, args ...any) ([]*models.Booking, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()
	out := make([]*models.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (p *Postgres) execOne(ctx context.Context, query string, args ...any) error {
	tag, err := p.pool.Exec(ctx, query, args...)
	if err != nil {
		return translatePg(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var (
		a         models.Account
		role      string
		facultyID *string
	)
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Name, &role, &a.StudentDepartment, &a.BatchNo,
		&facultyID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, translatePg(err)
	}
	a.Role = models.Role(role)
	if facultyID != nil {
		a.FacultyProfileID = *facultyID
	}
	return &a, nil
}

func scanFaculty(row pgx.Row) (*models.FacultyProfile, error) {
	var f models.FacultyProfile
	err := row.Scan(&f.ID, &f.AccountID, &f.Department, &f.Title, &f.Bio, &f.AvailableSlots, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, translatePg(err)
	}
	return &f, nil
}

func scanBooking(row pgx.Row) (*models.Booking, error) {
	var (
		b      models.Booking
		status string
	)
	err := row.Scan(&b.ID, &b.StudentID, &b.FacultyID, &b.DateTime, &b.StudentMessage, &b.FinalDateTime, &b.RoomNumber,
		&b.ProposedDateTime, &b.ProposedRoomNumber, &b.DurationMinutes, &b.Topic, &status, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, translatePg(err)
	}
	b.Status = models.BookingStatus(status)
	return &b, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func translatePg(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}

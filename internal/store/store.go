// Package store defines persistence for accounts, faculty profiles and bookings,
// with MongoDB, PostgreSQL and in-memory backends.
package store

import (
	"context"
	"errors"

	"github.com/harentsoaR/consultation-api/internal/models"
)

var (
	ErrNotFound  = errors.New("store: not found")
	ErrDuplicate = errors.New("store: duplicate key")
)

// AccountStore persists user accounts. Create assigns ID and timestamps.
type AccountStore interface {
	CreateAccount(ctx context.Context, a *models.Account) error
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	GetAccounts(ctx context.Context, ids []string) (map[string]*models.Account, error)
	UpdateAccount(ctx context.Context, a *models.Account) error
	DeleteAccount(ctx context.Context, id string) error
}

// FacultyStore persists faculty profiles. AccountID is unique across profiles.
type FacultyStore interface {
	CreateFaculty(ctx context.Context, p *models.FacultyProfile) error
	GetFaculty(ctx context.Context, id string) (*models.FacultyProfile, error)
	GetFacultyByAccount(ctx context.Context, accountID string) (*models.FacultyProfile, error)
	GetFaculties(ctx context.Context, ids []string) (map[string]*models.FacultyProfile, error)
	ListFaculty(ctx context.Context) ([]*models.FacultyProfile, error)
	UpdateFaculty(ctx context.Context, p *models.FacultyProfile) error
	DeleteFaculty(ctx context.Context, id string) error
}

// BookingStore persists bookings. There is no delete; cancellation is a status.
// List methods return newest first.
type BookingStore interface {
	CreateBooking(ctx context.Context, b *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	UpdateBooking(ctx context.Context, b *models.Booking) error
	ListBookingsByStudent(ctx context.Context, studentID string) ([]*models.Booking, error)
	ListBookingsByFaculty(ctx context.Context, facultyID string) ([]*models.Booking, error)
}

// Store is a complete backend.
type Store interface {
	AccountStore
	FacultyStore
	BookingStore
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

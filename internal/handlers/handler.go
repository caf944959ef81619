package handlers

import (
	"context"

	"go.uber.org/zap"

	"github.com/harentsoaR/consultation-api/internal/services"
)

// CheckFunc reports whether a dependency is reachable.
type CheckFunc func(ctx context.Context) error

type Services struct {
	Auth      *services.AuthService
	Bookings  *services.BookingService
	Directory *services.DirectoryService
	Profiles  *services.ProfileService
}

type Handler struct {
	Auth      *services.AuthService
	Bookings  *services.BookingService
	Directory *services.DirectoryService
	Profiles  *services.ProfileService
	Checks    map[string]CheckFunc
	Logger    *zap.Logger
}

func NewHandler(svc Services, checks map[string]CheckFunc, logger *zap.Logger) *Handler {
	return &Handler{
		Auth:      svc.Auth,
		Bookings:  svc.Bookings,
		Directory: svc.Directory,
		Profiles:  svc.Profiles,
		Checks:    checks,
		Logger:    logger,
	}
}

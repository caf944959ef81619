package services

import (
	"context"

	"github.com/harentsoaR/consultation-api/internal/models"
	"github.com/harentsoaR/consultation-api/internal/store"
)

// DirectoryService is the public, read-only faculty listing.
type DirectoryService struct {
	accounts store.AccountStore
	faculty  store.FacultyStore
}

func NewDirectoryService(st store.Store) *DirectoryService {
	return &DirectoryService{accounts: st, faculty: st}
}

// List returns every faculty member with a linked account.
func (s *DirectoryService) List(ctx context.Context) ([]models.FacultyCard, error) {
	profiles, err := s.faculty.ListFaculty(ctx)
	if err != nil {
		return nil, unavailable(err, "Server error fetching faculty list")
	}
	ids := make([]string, 0, len(profiles))
	for _, p := range profiles {
		ids = append(ids, p.AccountID)
	}
	owners, err := s.accounts.GetAccounts(ctx, ids)
	if err != nil {
		return nil, unavailable(err, "Server error fetching faculty list")
	}

	cards := make([]models.FacultyCard, 0, len(profiles))
	for _, p := range profiles {
		owner, ok := owners[p.AccountID]
		if !ok {
			continue
		}
		cards = append(cards, models.NewFacultyCard(p, owner))
	}
	return cards, nil
}

func (s *DirectoryService) Get(ctx context.Context, id string) (*models.FacultyDetail, error) {
	p, err := s.faculty.GetFaculty(ctx, id)
	if err != nil {
		return nil, directoryLookupError(err)
	}
	owner, err := s.accounts.GetAccount(ctx, p.AccountID)
	if err != nil {
		return nil, directoryLookupError(err)
	}
	return &models.FacultyDetail{
		FacultyCard:    models.NewFacultyCard(p, owner),
		AvailableSlots: p.AvailableSlots,
	}, nil
}

func directoryLookupError(err error) error {
	if isNotFound(err) {
		return newError(ErrNotFound, "Faculty member not found.")
	}
	return unavailable(err, "Server error fetching faculty details")
}

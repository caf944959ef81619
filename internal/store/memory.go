package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harentsoaR/consultation-api/internal/models"
)

var _ Store = (*Memory)(nil)

// Memory is a process-local Store used by tests and STORE_BACKEND=memory.
// Records are copied on the way in and out so callers never share state.
type Memory struct {
	mu       sync.RWMutex
	accounts map[string]models.Account
	faculty  map[string]models.FacultyProfile
	bookings map[string]models.Booking
	seq      map[string]uint64 // insertion order, for newest-first listing
	next     uint64
	now      func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[string]models.Account),
		faculty:  make(map[string]models.FacultyProfile),
		bookings: make(map[string]models.Booking),
		seq:      make(map[string]uint64),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) Ping(context.Context) error  { return nil }
func (m *Memory) Close(context.Context) error { return nil }

func (m *Memory) CreateAccount(_ context.Context, a *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.accounts {
		if existing.Email == a.Email {
			return ErrDuplicate
		}
	}
	a.ID = uuid.NewString()
	a.CreatedAt = m.now()
	a.UpdatedAt = a.CreatedAt
	m.accounts[a.ID] = *a
	return nil
}

func (m *Memory) GetAccount(_ context.Context, id string) (*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (m *Memory) GetAccountByEmail(_ context.Context, email string) (*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.accounts {
		if a.Email == email {
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) GetAccounts(_ context.Context, ids []string) (map[string]*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*models.Account, len(ids))
	for _, id := range ids {
		if a, ok := m.accounts[id]; ok {
			out[id] = &a
		}
	}
	return out, nil
}

func (m *Memory) UpdateAccount(_ context.Context, a *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[a.ID]; !ok {
		return ErrNotFound
	}
	for id, existing := range m.accounts {
		if id != a.ID && existing.Email == a.Email {
			return ErrDuplicate
		}
	}
	a.UpdatedAt = m.now()
	m.accounts[a.ID] = *a
	return nil
}

func (m *Memory) DeleteAccount(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[id]; !ok {
		return ErrNotFound
	}
	delete(m.accounts, id)
	return nil
}

func (m *Memory) CreateFaculty(_ context.Context, p *models.FacultyProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.faculty {
		if existing.AccountID == p.AccountID {
			return ErrDuplicate
		}
	}
	p.ID = uuid.NewString()
	p.CreatedAt = m.now()
	p.UpdatedAt = p.CreatedAt
	m.faculty[p.ID] = *p
	return nil
}

func (m *Memory) GetFaculty(_ context.Context, id string) (*models.FacultyProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.faculty[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *Memory) GetFacultyByAccount(_ context.Context, accountID string) (*models.FacultyProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.faculty {
		if p.AccountID == accountID {
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) GetFaculties(_ context.Context, ids []string) (map[string]*models.FacultyProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*models.FacultyProfile, len(ids))
	for _, id := range ids {
		if p, ok := m.faculty[id]; ok {
			out[id] = &p
		}
	}
	return out, nil
}

func (m *Memory) ListFaculty(_ context.Context) ([]*models.FacultyProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.FacultyProfile, 0, len(m.faculty))
	for _, p := range m.faculty {
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) UpdateFaculty(_ context.Context, p *models.FacultyProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.faculty[p.ID]; !ok {
		return ErrNotFound
	}
	p.UpdatedAt = m.now()
	m.faculty[p.ID] = *p
	return nil
}

func (m *Memory) DeleteFaculty(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.faculty[id]; !ok {
		return ErrNotFound
	}
	delete(m.faculty, id)
	return nil
}

func (m *Memory) CreateBooking(_ context.Context, b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.ID = uuid.NewString()
	b.CreatedAt = m.now()
	b.UpdatedAt = b.CreatedAt
	m.bookings[b.ID] = cloneBooking(*b)
	m.next++
	m.seq[b.ID] = m.next
	return nil
}

func (m *Memory) GetBooking(_ context.Context, id string) (*models.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	b = cloneBooking(b)
	return &b, nil
}

func (m *Memory) UpdateBooking(_ context.Context, b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bookings[b.ID]; !ok {
		return ErrNotFound
	}
	b.UpdatedAt = m.now()
	m.bookings[b.ID] = cloneBooking(*b)
	return nil
}

func (m *Memory) ListBookingsByStudent(_ context.Context, studentID string) ([]*models.Booking, error) {
	return m.listBookings(func(b *models.Booking) bool { return b.StudentID == studentID }), nil
}

func (m *Memory) ListBookingsByFaculty(_ context.Context, facultyID string) ([]*models.Booking, error) {
	return m.listBookings(func(b *models.Booking) bool { return b.FacultyID == facultyID }), nil
}

func (m *Memory) listBookings(match func(*models.Booking) bool) []*models.Booking {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Booking, 0)
	for _, b := range m.bookings {
		if !match(&b) {
			continue
		}
		b = cloneBooking(b)
		out = append(out, &b)
	}
	sort.Slice(out, func(i, j int) bool { return m.seq[out[i].ID] > m.seq[out[j].ID] })
	return out
}

// cloneBooking detaches the time pointers so stored records are not aliased.
func cloneBooking(b models.Booking) models.Booking {
	if b.FinalDateTime != nil {
		t := *b.FinalDateTime
		b.FinalDateTime = &t
	}
	if b.ProposedDateTime != nil {
		t := *b.ProposedDateTime
		b.ProposedDateTime = &t
	}
	return b
}

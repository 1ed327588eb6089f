package auth

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryUsers is a Users store kept in process memory.
// Records are copied on the way in and out.
type MemoryUsers struct {
	mu        sync.RWMutex
	byID      map[uuid.UUID]*User
	byEmail   map[string]uuid.UUID
	carePlans map[uuid.UUID]int
	now       func() time.Time
}

var _ Users = (*MemoryUsers)(nil)

// NewMemoryUsers returns an empty MemoryUsers
func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{
		byID:      map[uuid.UUID]*User{},
		byEmail:   map[string]uuid.UUID{},
		carePlans: map[uuid.UUID]int{},
		now:       time.Now,
	}
}

func (m *MemoryUsers) FindByEmail(_ context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, ErrUserNotFound.WithMetadata(map[string]any{"email": email})
	}
	return m.copyOf(m.byID[id]), nil
}

func (m *MemoryUsers) FindByID(_ context.Context, id uuid.UUID) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.byID[id]
	if !ok {
		return nil, ErrUserNotFound.WithMetadata(map[string]any{"id": id.String()})
	}
	return m.copyOf(user), nil
}

func (m *MemoryUsers) InsertIfAbsent(_ context.Context, user *User) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	email := NormalizeEmail(user.Email)
	if _, exists := m.byEmail[email]; exists {
		return nil, ErrDuplicateEmail.WithMetadata(map[string]any{"email": email})
	}

	record := *user
	prepareUserDefaults(&record, m.now())
	m.byID[record.ID] = &record
	m.byEmail[record.Email] = record.ID

	return m.copyOf(&record), nil
}

func (m *MemoryUsers) Update(_ context.Context, user *User) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.byID[user.ID]
	if !ok {
		return nil, ErrUserNotFound.WithMetadata(map[string]any{"id": user.ID.String()})
	}

	now := m.now()
	current.FirstName = user.FirstName
	current.LastName = user.LastName
	current.Name = user.Name
	current.Role = user.Role
	current.Phone = user.Phone
	current.HasCompletedSurvey = user.HasCompletedSurvey
	current.UpdatedAt = &now

	return m.copyOf(current), nil
}

func (m *MemoryUsers) List(_ context.Context) ([]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*User, 0, len(m.byID))
	for _, u := range m.byID {
		out = append(out, m.copyOf(u))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(*out[j].CreatedAt)
	})
	return out, nil
}

// AddCarePlan records a care plan for the user so HasCarePlan reports true
func (m *MemoryUsers) AddCarePlan(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[id]; !ok {
		return ErrUserNotFound.WithMetadata(map[string]any{"id": id.String()})
	}
	m.carePlans[id]++
	return nil
}

func (m *MemoryUsers) copyOf(u *User) *User {
	c := *u
	c.CarePlanCount = m.carePlans[u.ID]
	return &c
}

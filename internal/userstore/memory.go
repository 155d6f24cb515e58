package userstore

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is a map-backed Store used when no database is configured and in
// tests.
type Memory struct {
	mu     sync.RWMutex
	byID   map[int64]*User
	nextID int64
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		byID:   make(map[int64]*User),
		nextID: 1,
	}
}

func (m *Memory) Create(_ context.Context, nu NewUser) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.byID {
		if u.Username == nu.Username || (nu.Email != "" && u.Email == nu.Email) {
			return nil, ErrDuplicate
		}
	}

	user := &User{
		ID:            m.nextID,
		Username:      nu.Username,
		Email:         nu.Email,
		CharacterName: nu.CharacterName,
		PasswordHash:  nu.PasswordHash,
		IsActive:      true,
		CreatedAt:     time.Now(),
	}
	m.nextID++
	m.byID[user.ID] = user

	out := *user
	return &out, nil
}

func (m *Memory) GetByID(_ context.Context, id int64) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *user
	return &out, nil
}

func (m *Memory) GetByUsername(_ context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.byID {
		if u.Username == username {
			out := *u
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) List(_ context.Context, limit, offset int) ([]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]int64, 0, len(m.byID))
	for id := range m.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	users := make([]*User, 0, len(ids))
	for _, id := range ids {
		out := *m.byID[id]
		users = append(users, &out)
	}

	if offset >= len(users) {
		return []*User{}, nil
	}
	users = users[offset:]
	if limit > 0 && limit < len(users) {
		users = users[:limit]
	}
	return users, nil
}

func (m *Memory) SetActive(_ context.Context, id int64, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	user.IsActive = active
	return nil
}

// Package userstore holds user accounts for registration, login, and token
// resolution.
package userstore

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("user not found")
	ErrDuplicate = errors.New("user already exists")
)

type User struct {
	ID            int64
	Username      string
	Email         string
	CharacterName string
	PasswordHash  string
	IsActive      bool
	CreatedAt     time.Time
}

type NewUser struct {
	Username      string
	Email         string
	CharacterName string
	PasswordHash  string
}

// Store is the user lookup collaborator consumed by the auth layer.
type Store interface {
	Create(ctx context.Context, nu NewUser) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context, limit, offset int) ([]*User, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

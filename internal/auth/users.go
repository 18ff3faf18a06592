package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailExists  = errors.New("email already exists")
)

// SessionRecord is one logged login, kept inside the owning user record.
// Insertion order is login order.
type SessionRecord struct {
	ID      string    `bson:"id" json:"id"`
	Token   string    `bson:"token" json:"token"`
	LoginAt time.Time `bson:"loginAt" json:"loginAt"`
}

type User struct {
	ID       string
	Name     string
	Email    string
	PassHash string
	Role     Role
	Sessions []SessionRecord
}

// UserStore is the durable user record plus its embedded session registry.
// Session operations on an unknown user return ErrUserNotFound; callers are
// expected to have authenticated the subject first.
type UserStore interface {
	Add(ctx context.Context, u *User) (string, error)
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	UpdatePassword(ctx context.Context, id, newHash string) error
	UpdateProfile(ctx context.Context, id, name, email string) error
	ListByRole(ctx context.Context, role Role) ([]*User, error)

	RecordLogin(ctx context.Context, userID, token string) error
	ListSessions(ctx context.Context, userID string) ([]SessionRecord, error)
	RevokeAll(ctx context.Context, userID string) error
	RevokeByToken(ctx context.Context, userID, token string) error
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// MemoryUserStore backs tests; the real deployment uses MongoUserStore.
type MemoryUserStore struct {
	byID    map[string]*User
	byEmail map[string]*User
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:    map[string]*User{},
		byEmail: map[string]*User{},
	}
}

func (s *MemoryUserStore) Add(_ context.Context, u *User) (string, error) {
	if u == nil {
		return "", errors.New("user is nil")
	}
	email := normalizeEmail(u.Email)
	if email == "" {
		return "", errors.New("email required")
	}
	if _, exists := s.byEmail[email]; exists {
		return "", ErrEmailExists
	}
	clone := *u
	clone.Email = email
	if clone.ID == "" {
		clone.ID = uuid.New().String()
	}
	clone.Sessions = append([]SessionRecord(nil), u.Sessions...)
	s.byID[clone.ID] = &clone
	s.byEmail[email] = &clone
	return clone.ID, nil
}

func (s *MemoryUserStore) FindByID(_ context.Context, id string) (*User, error) {
	if u, ok := s.byID[id]; ok {
		clone := *u
		clone.Sessions = append([]SessionRecord(nil), u.Sessions...)
		return &clone, nil
	}
	return nil, ErrUserNotFound
}

func (s *MemoryUserStore) FindByEmail(_ context.Context, email string) (*User, error) {
	if u, ok := s.byEmail[normalizeEmail(email)]; ok {
		clone := *u
		clone.Sessions = append([]SessionRecord(nil), u.Sessions...)
		return &clone, nil
	}
	return nil, ErrUserNotFound
}

func (s *MemoryUserStore) UpdatePassword(_ context.Context, id, newHash string) error {
	u, ok := s.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	u.PassHash = newHash
	return nil
}

// UpdateProfile changes name and email; empty arguments leave the field as
// is. A new email must not belong to another user.
func (s *MemoryUserStore) UpdateProfile(_ context.Context, id, name, email string) error {
	u, ok := s.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	if name != "" {
		u.Name = name
	}
	if email != "" {
		email = normalizeEmail(email)
		if other, exists := s.byEmail[email]; exists && other.ID != id {
			return ErrEmailExists
		}
		delete(s.byEmail, u.Email)
		u.Email = email
		s.byEmail[email] = u
	}
	return nil
}

func (s *MemoryUserStore) ListByRole(_ context.Context, role Role) ([]*User, error) {
	var out []*User
	for _, u := range s.byID {
		if u.Role == role {
			clone := *u
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (s *MemoryUserStore) RecordLogin(_ context.Context, userID, token string) error {
	u, ok := s.byID[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.Sessions = append(u.Sessions, SessionRecord{
		ID:      uuid.New().String(),
		Token:   token,
		LoginAt: time.Now(),
	})
	return nil
}

func (s *MemoryUserStore) ListSessions(_ context.Context, userID string) ([]SessionRecord, error) {
	u, ok := s.byID[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return append([]SessionRecord(nil), u.Sessions...), nil
}

func (s *MemoryUserStore) RevokeAll(_ context.Context, userID string) error {
	u, ok := s.byID[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.Sessions = nil
	return nil
}

func (s *MemoryUserStore) RevokeByToken(_ context.Context, userID, token string) error {
	u, ok := s.byID[userID]
	if !ok {
		return ErrUserNotFound
	}
	kept := u.Sessions[:0]
	for _, rec := range u.Sessions {
		if rec.Token != token {
			kept = append(kept, rec)
		}
	}
	u.Sessions = kept
	return nil
}

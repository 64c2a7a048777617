// Package memory is an in-process authcore.CredentialStore and
// authcore.RelationshipChecker for tests, demos and the load generator.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/heartnote/authcore"
	"github.com/heartnote/authcore/clock"
	"github.com/heartnote/authcore/internal/limiters"
	"github.com/heartnote/authcore/password"
)

// Store keeps users in maps guarded by one RWMutex. Emails are matched after
// trimming and lowercasing.
type Store struct {
	mu            sync.RWMutex
	byID          map[string]*authcore.UserCredential
	byEmail       map[string]string
	relationships map[string]bool

	hasher password.Hasher
	clock  clock.Clock
}

var (
	_ authcore.CredentialStore     = (*Store)(nil)
	_ authcore.RelationshipChecker = (*Store)(nil)
)

// New returns an empty store verifying passwords with hasher.
func New(hasher password.Hasher, clk clock.Clock) *Store {
	return &Store{
		byID:          make(map[string]*authcore.UserCredential),
		byEmail:       make(map[string]string),
		relationships: make(map[string]bool),
		hasher:        hasher,
		clock:         clock.OrSystem(clk),
	}
}

func (s *Store) FindActiveUserByEmail(ctx context.Context, email string) (*authcore.UserCredential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[limiters.NormalizeIdentity(email)]
	if !ok {
		return nil, authcore.ErrUserNotFound
	}
	return s.liveCopy(id)
}

func (s *Store) FindActiveUserByID(ctx context.Context, id string) (*authcore.UserCredential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.liveCopy(id)
}

// liveCopy returns a copy of a non-deleted user. Callers hold s.mu.
func (s *Store) liveCopy(id string) (*authcore.UserCredential, error) {
	u, ok := s.byID[id]
	if !ok || u.DeletedAt != nil {
		return nil, authcore.ErrUserNotFound
	}
	out := *u
	return &out, nil
}

// VerifyPassword checks password against the stored hash.
func (s *Store) VerifyPassword(ctx context.Context, user *authcore.UserCredential, password string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if user == nil {
		return false, nil
	}
	return s.hasher.Verify(password, user.PasswordHash)
}

// CreateUser inserts an active user with a random UUID.
func (s *Store) CreateUser(ctx context.Context, in authcore.NewCredential) (*authcore.UserCredential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	email := limiters.NormalizeIdentity(in.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[email]; taken {
		return nil, authcore.ErrEmailAlreadyInUse
	}

	u := &authcore.UserCredential{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: in.PasswordHash,
		Name:         in.Name,
		Nickname:     in.Nickname,
		IsActive:     true,
	}
	s.byID[u.ID] = u
	s.byEmail[email] = u.ID

	out := *u
	return &out, nil
}

// AddUser hashes plaintext and inserts the user.
func (s *Store) AddUser(ctx context.Context, email, plaintext, name, nickname string) (*authcore.UserCredential, error) {
	hash, err := s.hasher.Hash(plaintext)
	if err != nil {
		return nil, err
	}
	return s.CreateUser(ctx, authcore.NewCredential{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Nickname:     nickname,
	})
}

// SetActive flips the IsActive flag.
func (s *Store) SetActive(id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return authcore.ErrUserNotFound
	}
	u.IsActive = active
	return nil
}

// SoftDelete stamps DeletedAt. The email stays reserved.
func (s *Store) SoftDelete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return authcore.ErrUserNotFound
	}
	now := s.clock.Now().UTC().Truncate(time.Millisecond)
	u.DeletedAt = &now
	return nil
}

// SetRelationship marks whether userID has an active relationship.
func (s *Store) SetRelationship(userID string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if active {
		s.relationships[userID] = true
		return
	}
	delete(s.relationships, userID)
}

func (s *Store) HasActiveRelationship(ctx context.Context, userID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.relationships[userID], nil
}

// Len returns the number of stored users, deleted ones included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

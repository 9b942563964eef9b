// Package client is the Go client of the training-center API.
//
// It keeps the session (access token, refresh token and user) in a TokenStore,
// attaches the access token to every request and, when the server answers 401,
// refreshes the token once for all concurrent callers and replays their
// requests. A failed refresh ends the session: the store is cleared and the
// Redirector is sent to the login page.
package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// Store keys. They match the browser localStorage keys of the web client.
const (
	KeyUserToken    = "user_token"
	KeyRefreshToken = "refresh_token"
	KeyUser         = "user"
	KeyAdminToken   = "admin_token"
)

// Scope selects the key the access token lives under.
type Scope string

const (
	ScopeStudent Scope = "student"
	ScopeAdmin   Scope = "admin"
)

// TokenStore is a small key/value store. Writes are visible to the next read.
type TokenStore interface {
	// Get returns the value and whether the key is present.
	Get(key string) (string, bool, error)
	Set(key, value string) error
	// Delete removes keys; absent keys are ignored.
	Delete(keys ...string) error
}

// MemoryStore is an in-process TokenStore.
type MemoryStore struct {
	mu sync.RWMutex
	m  map[string]string
}

var _ TokenStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]string)}
}

func (s *MemoryStore) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.m[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.m[key] = value
	return nil
}

func (s *MemoryStore) Delete(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		delete(s.m, k)
	}
	return nil
}

// User is the identity returned by login and verify.
type User struct {
	ID          string `json:"id"`
	Role        string `json:"role"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// Session is the typed view of a TokenStore for one scope.
type Session struct {
	store TokenStore
	scope Scope
}

func NewSession(store TokenStore, scope Scope) *Session {
	if scope == "" {
		scope = ScopeStudent
	}
	return &Session{store: store, scope: scope}
}

// Scope returns the scope the session was created for.
func (s *Session) Scope() Scope { return s.scope }

func (s *Session) accessKey() string {
	if s.scope == ScopeAdmin {
		return KeyAdminToken
	}
	return KeyUserToken
}

// AccessToken returns the stored access token or "" when there is none.
func (s *Session) AccessToken() (string, error) {
	v, _, err := s.store.Get(s.accessKey())
	if err != nil {
		return "", fmt.Errorf("client.store.AccessToken: %w", err)
	}
	return v, nil
}

func (s *Session) SetAccessToken(token string) error {
	if err := s.store.Set(s.accessKey(), token); err != nil {
		return fmt.Errorf("client.store.SetAccessToken: %w", err)
	}
	return nil
}

// RefreshToken returns the stored refresh token or "" when there is none.
func (s *Session) RefreshToken() (string, error) {
	v, _, err := s.store.Get(KeyRefreshToken)
	if err != nil {
		return "", fmt.Errorf("client.store.RefreshToken: %w", err)
	}
	return v, nil
}

func (s *Session) SetRefreshToken(token string) error {
	if err := s.store.Set(KeyRefreshToken, token); err != nil {
		return fmt.Errorf("client.store.SetRefreshToken: %w", err)
	}
	return nil
}

// ErrNoUser is returned by Session.User when nobody is signed in.
var ErrNoUser = errors.New("no user in session")

func (s *Session) User() (*User, error) {
	const op = "client.store.User"

	raw, ok, err := s.store.Get(KeyUser)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ok || raw == "" {
		return nil, ErrNoUser
	}

	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &u, nil
}

func (s *Session) SetUser(u *User) error {
	const op = "client.store.SetUser"

	b, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.store.Set(KeyUser, string(b)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// save stores a fresh login result.
func (s *Session) save(access, refresh string, u *User) error {
	if err := s.SetAccessToken(access); err != nil {
		return err
	}
	if err := s.SetRefreshToken(refresh); err != nil {
		return err
	}
	if u != nil {
		return s.SetUser(u)
	}
	return nil
}

// Clear removes every session key, whatever the scope.
func (s *Session) Clear() error {
	if err := s.store.Delete(KeyUserToken, KeyAdminToken, KeyRefreshToken, KeyUser); err != nil {
		return fmt.Errorf("client.store.Clear: %w", err)
	}
	return nil
}

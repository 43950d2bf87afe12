// Package auth implements account registration and session-token
// authentication for the chatwire server.
//
// Accounts live in memory for the lifetime of the process. Passwords are
// stored as bcrypt hashes; session tokens are opaque UUIDs issued on
// registration and on every successful login, and remain valid until
// explicitly revoked by a logout.
package auth

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrNameTaken is returned when registering a name that already exists.
	ErrNameTaken = errors.New("name is already registered")
	// ErrEmptyCredentials is returned when the name or password is blank.
	ErrEmptyCredentials = errors.New("name and password must not be empty")
	// ErrBadCredentials is returned when the name or password does not match.
	ErrBadCredentials = errors.New("invalid name or password")
	// ErrUnknownToken is returned when no presented token resolves to an account.
	ErrUnknownToken = errors.New("unknown token")
)

type account struct {
	name   string
	hash   []byte
	tokens map[string]struct{}
}

// Store holds every registered account and the live session tokens that
// point at them. All methods are safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]*account
	tokens   map[string]string // token -> account name
}

// NewStore creates an empty account store.
func NewStore() *Store {
	return &Store{
		accounts: make(map[string]*account),
		tokens:   make(map[string]string),
	}
}

// Register creates a new account and returns its first session token.
func (s *Store) Register(name, password string) (string, error) {
	if name == "" || password == "" {
		return "", ErrEmptyCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[name]; exists {
		return "", ErrNameTaken
	}

	acct := &account{name: name, hash: hash, tokens: make(map[string]struct{})}
	s.accounts[name] = acct
	return s.issueLocked(acct), nil
}

// Login verifies the password for an existing account and issues a fresh
// session token. Every login gets its own token, so multiple devices can
// hold independent sessions.
func (s *Store) Login(name, password string) (string, error) {
	if name == "" || password == "" {
		return "", ErrEmptyCredentials
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, exists := s.accounts[name]
	if !exists {
		return "", ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acct.hash, []byte(password)); err != nil {
		return "", ErrBadCredentials
	}
	return s.issueLocked(acct), nil
}

// Logout revokes each presented token and reports how many were live.
// Revoking a token that is already gone is a no-op.
func (s *Store) Logout(tokens []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	revoked := 0
	for _, token := range tokens {
		name, exists := s.tokens[token]
		if !exists {
			continue
		}
		delete(s.tokens, token)
		if acct, ok := s.accounts[name]; ok {
			delete(acct.tokens, token)
		}
		revoked++
	}
	return revoked
}

// Resolve returns the account name the first valid presented token belongs
// to. When withAllTokens is set, every live token for that account is
// returned as well.
func (s *Store) Resolve(tokens []string, withAllTokens bool) (string, []string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, token := range tokens {
		name, exists := s.tokens[token]
		if !exists {
			continue
		}
		if !withAllTokens {
			return name, nil, nil
		}
		acct := s.accounts[name]
		all := make([]string, 0, len(acct.tokens))
		for t := range acct.tokens {
			all = append(all, t)
		}
		return name, all, nil
	}
	return "", nil, ErrUnknownToken
}

func (s *Store) issueLocked(acct *account) string {
	token := uuid.NewString()
	acct.tokens[token] = struct{}{}
	s.tokens[token] = acct.name
	return token
}

// Package credentials keeps the client's bearer token and session settings in a
// local pebble key-value store.
package credentials

import (
	stderrors "errors"
	"os"
	"strings"

	apperrors "dashchat/internal/errors"
	"dashchat/pkg/constants"

	"github.com/cockroachdb/pebble"
)

// Keys used by the CLI besides the token.
const (
	ServerKey = "server"
	UserKey   = "user"
)

// TokenSource yields the bearer token to attach to outgoing requests.
type TokenSource interface {
	Token() (string, error)
}

// Static is a fixed token, used when the token comes from a flag or environment.
type Static string

// Token returns the fixed token.
func (s Static) Token() (string, error) {
	return string(s), nil
}

// Store is a pebble backed key-value store.
type Store struct {
	db *pebble.DB
}

// Open opens (creating if needed) the store rooted at dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, constants.DefaultDirectoryPermissions); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInvalidConfig, "failed to create credential directory").
			WithContext("dir", dir)
	}
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseConnection, "failed to open credential store").
			WithContext("dir", dir)
	}
	return &Store{db: db}, nil
}

// Close releases the store.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the value stored under key. A missing key is "" with no error.
func (s *Store) Get(key string) (string, error) {
	v, closer, err := s.db.Get([]byte(key))
	if stderrors.Is(err, pebble.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeDatabaseQuery, "failed to read credential").
			WithContext("key", key)
	}
	defer func() { _ = closer.Close() }()
	// v is only valid until closer is closed
	return string(append([]byte(nil), v...)), nil
}

// Set stores value under key, syncing to disk.
func (s *Store) Set(key, value string) error {
	if err := s.db.Set([]byte(key), []byte(value), pebble.Sync); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseQuery, "failed to write credential").
			WithContext("key", key)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	if err := s.db.Delete([]byte(key), pebble.Sync); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseQuery, "failed to delete credential").
			WithContext("key", key)
	}
	return nil
}

// Token returns the stored bearer token, or "" when logged out.
func (s *Store) Token() (string, error) {
	return s.Get(constants.TokenKey)
}

// SetToken stores the bearer token.
func (s *Store) SetToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apperrors.NewValidationError(constants.TokenKey, "", "cannot be empty")
	}
	return s.Set(constants.TokenKey, token)
}

// Clear removes the token and the session settings stored with it.
func (s *Store) Clear() error {
	for _, key := range []string{constants.TokenKey, UserKey} {
		if err := s.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// Package credential persists the logged-in user's session credential.
//
// The credential lives as a single JSON record under a well-known key in the
// session database. The realtime connection and the presence publisher only
// read it; login and logout flows own writes.
package credential

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/matheus3301/tabsync/internal/store"
)

// Key is the local_state key holding the credential record.
const Key = "user"

// ErrNotFound is returned when no usable credential is stored.
var ErrNotFound = errors.New("no session credential")

// Credential is the authenticated user's identity and token.
type Credential struct {
	ID          string `json:"id"`
	Token       string `json:"token"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
}

// Source yields the current credential.
type Source interface {
	Load() (*Credential, error)
}

// Store reads and writes the credential record.
type Store struct {
	db *store.DB
}

// NewStore creates a credential store backed by db.
func NewStore(db *store.DB) *Store {
	return &Store{db: db}
}

// Load returns the stored credential. A missing record or an empty token is
// reported as ErrNotFound.
func (s *Store) Load() (*Credential, error) {
	raw, err := s.db.GetLocalState(Key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read credential: %w", err)
	}
	var c Credential
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("decode credential: %w", err)
	}
	if c.Token == "" {
		return nil, ErrNotFound
	}
	return &c, nil
}

// Save replaces the stored credential wholesale.
func (s *Store) Save(c *Credential) error {
	if c == nil || c.Token == "" {
		return fmt.Errorf("credential without token")
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}
	return s.db.SetLocalState(Key, string(data))
}

// Clear removes the stored credential.
func (s *Store) Clear() error {
	return s.db.DeleteLocalState(Key)
}

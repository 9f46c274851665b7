package token

import (
	"encoding/json"
	"fmt"

	"github.com/Klingon-tech/statetransfer/internal/storage"
	"github.com/Klingon-tech/statetransfer/pkg/types"
)

var (
	prefixToken    = []byte("t/") // t/<tokenID(32)> -> Token JSON
	prefixPending  = []byte("p/") // p/<tokenID(32)> -> encoded outgoing package
	prefixIncoming = []byte("i/") // i/<tokenID(32)> -> encoded received package
	prefixNametag  = []byte("n/") // n/<tokenID(32)> -> nametag Token JSON
)

// Store persists owned tokens, nametags and packages in flight.
type Store struct {
	db storage.DB
}

// NewStore creates a token store.
func NewStore(db storage.DB) *Store {
	return &Store{db: db}
}

// Put stores a token under its id, replacing any previous version.
func (s *Store) Put(t *Token) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("token marshal: %w", err)
	}
	return s.db.Put(key(prefixToken, t.ID()), data)
}

// Get retrieves a token.
func (s *Store) Get(id types.TokenID) (*Token, error) {
	data, err := s.db.Get(key(prefixToken, id))
	if err != nil {
		return nil, fmt.Errorf("token get: %w", err)
	}
	var t Token
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("token unmarshal: %w", err)
	}
	return &t, nil
}

// Has checks if a token is stored.
func (s *Store) Has(id types.TokenID) (bool, error) {
	return s.db.Has(key(prefixToken, id))
}

// Delete removes a token, for example after it was sent away.
func (s *Store) Delete(id types.TokenID) error {
	return s.db.Delete(key(prefixToken, id))
}

// ForEach iterates over all stored tokens.
// Return a non-nil error from fn to stop iteration early.
func (s *Store) ForEach(fn func(*Token) error) error {
	return s.db.ForEach(prefixToken, func(_, value []byte) error {
		var t Token
		if err := json.Unmarshal(value, &t); err != nil {
			return nil // Skip corrupt entries.
		}
		return fn(&t)
	})
}

// List returns all stored tokens.
func (s *Store) List() ([]*Token, error) {
	tokens := []*Token{}
	err := s.ForEach(func(t *Token) error {
		tokens = append(tokens, t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// PutPending records an outgoing package that has not been handed over yet.
func (s *Store) PutPending(id types.TokenID, pkg []byte) error {
	return s.db.Put(key(prefixPending, id), pkg)
}

// Pending returns a recorded outgoing package.
func (s *Store) Pending(id types.TokenID) ([]byte, error) {
	data, err := s.db.Get(key(prefixPending, id))
	if err != nil {
		return nil, fmt.Errorf("pending get: %w", err)
	}
	return data, nil
}

// DeletePending drops a recorded outgoing package.
func (s *Store) DeletePending(id types.TokenID) error {
	return s.db.Delete(key(prefixPending, id))
}

// ForEachPending iterates over recorded outgoing packages.
func (s *Store) ForEachPending(fn func(id types.TokenID, pkg []byte) error) error {
	return s.db.ForEach(prefixPending, func(k, value []byte) error {
		var id types.TokenID
		copy(id[:], k[len(prefixPending):])
		return fn(id, value)
	})
}

// PutIncoming records a received package before it is finalized, so an
// interrupted finalize can be retried.
func (s *Store) PutIncoming(id types.TokenID, pkg []byte) error {
	return s.db.Put(key(prefixIncoming, id), pkg)
}

// DeleteIncoming drops a received package once it is finalized.
func (s *Store) DeleteIncoming(id types.TokenID) error {
	return s.db.Delete(key(prefixIncoming, id))
}

// ForEachIncoming iterates over received packages not yet finalized.
func (s *Store) ForEachIncoming(fn func(id types.TokenID, pkg []byte) error) error {
	return s.db.ForEach(prefixIncoming, func(k, value []byte) error {
		var id types.TokenID
		copy(id[:], k[len(prefixIncoming):])
		return fn(id, value)
	})
}

// PutNametag stores a nametag token. Tokens that are not nametags are
// rejected.
func (s *Store) PutNametag(t *Token) error {
	if _, err := t.Nametag(); err != nil {
		return err
	}
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("nametag marshal: %w", err)
	}
	return s.db.Put(key(prefixNametag, t.ID()), data)
}

// GetNametag retrieves the nametag called name.
func (s *Store) GetNametag(name string) (*Token, error) {
	data, err := s.db.Get(key(prefixNametag, NametagID(name)))
	if err != nil {
		return nil, fmt.Errorf("nametag get: %w", err)
	}
	var t Token
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("nametag unmarshal: %w", err)
	}
	return &t, nil
}

// DeleteNametag removes the nametag called name.
func (s *Store) DeleteNametag(name string) error {
	return s.db.Delete(key(prefixNametag, NametagID(name)))
}

// Nametags returns all stored nametags.
func (s *Store) Nametags() ([]*Token, error) {
	tags := []*Token{}
	err := s.db.ForEach(prefixNametag, func(_, value []byte) error {
		var t Token
		if err := json.Unmarshal(value, &t); err != nil {
			return nil // Skip corrupt entries.
		}
		tags = append(tags, &t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tags, nil
}

func key(prefix []byte, id types.TokenID) []byte {
	k := make([]byte, len(prefix)+types.HashSize)
	copy(k, prefix)
	copy(k[len(prefix):], id[:])
	return k
}

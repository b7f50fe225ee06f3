package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/playperu/coopquest/internal/coopquest"
)

// Store persists one Session record per invite code, votes included.
//
// Modify re-reads the latest record, runs fn on it and writes the full
// result back atomically. When fn returns an error nothing is written.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, code string) (*Session, error)
	Modify(ctx context.Context, code string, fn func(*Session) error) (*Session, error)
	Delete(ctx context.Context, code string) error
}

// MemoryStore keeps encoded sessions in a map. Records round-trip through
// JSON so callers never share memory with the stored copy.
type MemoryStore struct {
	mu sync.RWMutex
	m  map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: map[string][]byte{}}
}

func (s *MemoryStore) Create(_ context.Context, sess *Session) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[sess.Code]; ok {
		return fmt.Errorf("%w: room %s exists", coopquest.ErrConflict, sess.Code)
	}
	s.m[sess.Code] = b
	return nil
}

func (s *MemoryStore) Get(_ context.Context, code string) (*Session, error) {
	s.mu.RLock()
	b, ok := s.m[code]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: room %s", coopquest.ErrNotFound, code)
	}
	return Decode(b)
}

func (s *MemoryStore) Modify(_ context.Context, code string, fn func(*Session) error) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.m[code]
	if !ok {
		return nil, fmt.Errorf("%w: room %s", coopquest.ErrNotFound, code)
	}
	sess, err := Decode(b)
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	Normalize(sess)
	out, err := json.Marshal(sess)
	if err != nil {
		return nil, err
	}
	s.m[code] = out
	return sess, nil
}

func (s *MemoryStore) Delete(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[code]; !ok {
		return fmt.Errorf("%w: room %s", coopquest.ErrNotFound, code)
	}
	delete(s.m, code)
	return nil
}

// Decode reads a persisted session and normalizes it.
func Decode(b []byte) (*Session, error) {
	var sess Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	Normalize(&sess)
	return &sess, nil
}

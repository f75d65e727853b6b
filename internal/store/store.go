// Package store persists the proxy records the backend serves. Records are
// append-only and addressed by insertion position.
package store

import (
	"context"
	"errors"
	"sync"

	"proxylog/internal/model"
)

var ErrClosed = errors.New("store closed")

type Store interface {
	// Append adds records in order and returns how many were new. Records
	// whose UUID is already stored are skipped. A zero Sequence is replaced
	// by the record's 1-based position.
	Append(ctx context.Context, recs ...model.Record) (int, error)
	// Scan calls fn for every record at position >= from, in order, until fn
	// returns false.
	Scan(ctx context.Context, from int, fn func(model.Record) bool) error
	Get(ctx context.Context, uuid string) (model.Record, bool, error)
	Len(ctx context.Context) (int, error)
	Close() error
}

// MemoryStore keeps everything in a slice.
type MemoryStore struct {
	mu     sync.RWMutex
	recs   []model.Record
	byUUID map[string]int
	closed bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byUUID: map[string]int{}}
}

func (s *MemoryStore) Append(ctx context.Context, recs ...model.Record) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	n := 0
	for _, r := range recs {
		if _, dup := s.byUUID[r.UUID]; dup {
			continue
		}
		if r.Sequence == 0 {
			r.Sequence = int64(len(s.recs) + 1)
		}
		s.byUUID[r.UUID] = len(s.recs)
		s.recs = append(s.recs, r)
		n++
	}
	return n, nil
}

func (s *MemoryStore) Scan(ctx context.Context, from int, fn func(model.Record) bool) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	if from < 0 {
		from = 0
	}
	var recs []model.Record
	if from < len(s.recs) {
		recs = s.recs[from:len(s.recs):len(s.recs)]
	}
	s.mu.RUnlock()
	for i, r := range recs {
		if i%1024 == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
		if !fn(r) {
			return nil
		}
	}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, uuid string) (model.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byUUID[uuid]
	if !ok {
		return model.Record{}, false, nil
	}
	return s.recs[i], true, nil
}

func (s *MemoryStore) Len(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.recs), nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

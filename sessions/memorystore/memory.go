// Package memorystore keeps session records in process memory. Sessions are
// lost on restart and are not shared between instances.
package memorystore

import (
	"context"
	"sync"
	"time"

	"github.com/ggoodman/headerauth-go/sessions"
)

type entry struct {
	rec       sessions.Record
	expiresAt time.Time
}

// Store is an in-memory sessions.Store.
type Store struct {
	mu      sync.RWMutex
	records map[string]entry
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

var _ sessions.Store = (*Store)(nil)

type Option func(*Store)

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// New returns an empty Store. Expired records are swept every interval; a
// non-positive interval disables the sweeper and expired records are
// dropped lazily on Get.
func New(interval time.Duration, opts ...Option) *Store {
	s := &Store{
		records: make(map[string]entry),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if interval > 0 {
		go s.sweep(interval)
	}
	return s
}

func (s *Store) Put(_ context.Context, rec *sessions.Record, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = entry{rec: *rec, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *Store) Get(_ context.Context, id string) (*sessions.Record, error) {
	s.mu.RLock()
	e, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if !s.now().Before(e.expiresAt) {
		s.mu.Lock()
		delete(s.records, id)
		s.mu.Unlock()
		return nil, nil
	}
	rec := e.rec
	return &rec, nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

// Len returns the number of stored records, expired or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Close stops the sweeper.
func (s *Store) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

func (s *Store) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.removeExpired()
		}
	}
}

func (s *Store) removeExpired() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.records {
		if !now.Before(e.expiresAt) {
			delete(s.records, id)
		}
	}
}

package eventstore

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/dgallion1/alexandria/internal/address"
	"github.com/dgallion1/alexandria/internal/event"
)

// ErrNotFound is returned when no event is stored at an address.
var ErrNotFound = errors.New("event not found")

// Store persists publication events keyed by their address. A Put replaces
// any event already stored at the same address.
type Store interface {
	Put(ctx context.Context, ev *event.Event) error
	Get(ctx context.Context, addr address.Address) (*event.Event, error)
	Delete(ctx context.Context, addr address.Address) error
	List(ctx context.Context, pubkey string) ([]*event.Event, error)
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[address.Address]*event.Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[address.Address]*event.Event)}
}

func (s *MemoryStore) Put(_ context.Context, ev *event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[ev.Address()] = ev
	return nil
}

func (s *MemoryStore) Get(_ context.Context, addr address.Address) (*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[addr]
	if !ok {
		return nil, ErrNotFound
	}
	return ev, nil
}

func (s *MemoryStore) Delete(_ context.Context, addr address.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[addr]; !ok {
		return ErrNotFound
	}
	delete(s.events, addr)
	return nil
}

// List returns the events authored by pubkey, sorted by address.
func (s *MemoryStore) List(_ context.Context, pubkey string) ([]*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*event.Event
	for _, ev := range s.events {
		if ev.Pubkey == pubkey {
			out = append(out, ev)
		}
	}
	slices.SortFunc(out, func(a, b *event.Event) int {
		return strings.Compare(string(a.Address()), string(b.Address()))
	})
	return out, nil
}

// Len returns the number of stored events.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

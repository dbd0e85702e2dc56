// Package cache provides a small in-process LRU cache with TTL used
// to keep hot dashboard reads off the database. Entries are scoped by
// string keys; user-scoped keys share a prefix so a write can drop
// every entry the write may have invalidated.
package cache

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

// Store is a bounded LRU cache with per-entry TTL. Safe for
// concurrent use.
type Store[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	order   *list.List
}

type entry[T any] struct {
	key       string
	value     T
	expiresAt time.Time
}

// New creates a Store holding at most maxSize entries, each living
// for ttl after its last Set.
func New[T any](maxSize int, ttl time.Duration) *Store[T] {
	return &Store[T]{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Get returns the cached value for key, if present and unexpired.
func (s *Store[T]) Get(key string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	elem, ok := s.items[key]
	if !ok {
		return zero, false
	}

	e := elem.Value.(*entry[T])
	if time.Now().After(e.expiresAt) {
		s.remove(elem)
		return zero, false
	}

	s.order.MoveToFront(elem)
	return e.value, true
}

// Set stores value under key, evicting the least recently used entry
// when the cache is full.
func (s *Store[T]) Set(key string, value T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := &entry[T]{key: key, value: value, expiresAt: time.Now().Add(s.ttl)}

	if elem, ok := s.items[key]; ok {
		elem.Value = e
		s.order.MoveToFront(elem)
		return
	}

	s.items[key] = s.order.PushFront(e)

	if s.order.Len() > s.maxSize {
		if oldest := s.order.Back(); oldest != nil {
			s.remove(oldest)
		}
	}
}

// Delete removes a single key.
func (s *Store[T]) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.items[key]; ok {
		s.remove(elem)
	}
}

// DeletePrefix removes every key starting with prefix and returns how
// many entries were dropped.
func (s *Store[T]) DeletePrefix(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var doomed []*list.Element
	for elem := s.order.Front(); elem != nil; elem = elem.Next() {
		if strings.HasPrefix(elem.Value.(*entry[T]).key, prefix) {
			doomed = append(doomed, elem)
		}
	}
	for _, elem := range doomed {
		s.remove(elem)
	}
	return len(doomed)
}

// CleanExpired drops expired entries and returns how many were removed.
func (s *Store[T]) CleanExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var doomed []*list.Element
	for elem := s.order.Front(); elem != nil; elem = elem.Next() {
		if now.After(elem.Value.(*entry[T]).expiresAt) {
			doomed = append(doomed, elem)
		}
	}
	for _, elem := range doomed {
		s.remove(elem)
	}
	return len(doomed)
}

// Size returns the current number of entries.
func (s *Store[T]) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Store[T]) remove(elem *list.Element) {
	delete(s.items, elem.Value.(*entry[T]).key)
	s.order.Remove(elem)
}

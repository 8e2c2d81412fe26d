package cache

import (
	"errors"
	"sort"
	"sync"
)

// ErrQuotaExceeded is returned by SetItem when the storage is full.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// Storage is a flat string key/value store owned by a single client tab.
type Storage interface {
	GetItem(key string) (string, bool)
	SetItem(key, value string) error
	RemoveItem(key string)
	Keys() []string
	Clear()
}

// MemoryStorage is an in-process Storage with an optional byte quota.
type MemoryStorage struct {
	mu    sync.Mutex
	quota int
	used  int
	items map[string]string
}

// NewMemoryStorage creates a storage. A quota <= 0 disables the limit.
func NewMemoryStorage(quota int) *MemoryStorage {
	return &MemoryStorage{
		quota: quota,
		items: make(map[string]string),
	}
}

func (s *MemoryStorage) GetItem(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[key]
	return v, ok
}

func (s *MemoryStorage) SetItem(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.used + len(key) + len(value)
	if old, ok := s.items[key]; ok {
		next -= len(key) + len(old)
	}
	if s.quota > 0 && next > s.quota {
		return ErrQuotaExceeded
	}
	s.items[key] = value
	s.used = next
	return nil
}

func (s *MemoryStorage) RemoveItem(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.items[key]; ok {
		s.used -= len(key) + len(old)
		delete(s.items, key)
	}
}

// Keys returns a sorted snapshot of the stored keys.
func (s *MemoryStorage) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *MemoryStorage) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]string)
	s.used = 0
}

// Size returns the number of stored bytes.
func (s *MemoryStorage) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used
}

// NopStorage stores nothing. The resource layer must stay correct on top of it.
type NopStorage struct{}

func (NopStorage) GetItem(string) (string, bool) { return "", false }
func (NopStorage) SetItem(string, string) error  { return ErrQuotaExceeded }
func (NopStorage) RemoveItem(string)             {}
func (NopStorage) Keys() []string                { return nil }
func (NopStorage) Clear()                        {}

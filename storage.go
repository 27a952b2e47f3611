package signup

import (
	"context"
	"sync"
)

// Persisted storage keys.
const (
	StorageKeyUser      = "user"
	StorageKeyTheme     = "theme"
	StorageKeyScenarios = "testing-scenarios"
)

// Storage is the device-scoped key/value store. Values are serialized
// records. Each call is treated as atomic.
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// MemoryStorage keeps entries in a map.
type MemoryStorage struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{entries: make(map[string]string)}
}

func (m *MemoryStorage) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *MemoryStorage) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

func (m *MemoryStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// ObservedStorage wraps a Storage and notifies per-key watchers after every
// successful Set or Delete.
type ObservedStorage struct {
	Storage

	mu       sync.Mutex
	nextID   int
	watchers map[string]map[int]func(key string)
}

// Observe wraps s unless it is already an *ObservedStorage.
func Observe(s Storage) *ObservedStorage {
	if o, ok := s.(*ObservedStorage); ok {
		return o
	}
	return &ObservedStorage{
		Storage:  s,
		watchers: make(map[string]map[int]func(string)),
	}
}

// Set writes the value and notifies watchers of key.
func (o *ObservedStorage) Set(ctx context.Context, key, value string) error {
	if err := o.Storage.Set(ctx, key, value); err != nil {
		return err
	}
	o.notify(key)
	return nil
}

// Delete removes the entry and notifies watchers of key.
func (o *ObservedStorage) Delete(ctx context.Context, key string) error {
	if err := o.Storage.Delete(ctx, key); err != nil {
		return err
	}
	o.notify(key)
	return nil
}

// Watch registers fn for changes to key and returns a cancel function.
func (o *ObservedStorage) Watch(key string, fn func(key string)) func() {
	if fn == nil {
		return func() {}
	}

	o.mu.Lock()
	if o.watchers[key] == nil {
		o.watchers[key] = make(map[int]func(string))
	}
	id := o.nextID
	o.nextID++
	o.watchers[key][id] = fn
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.watchers[key], id)
			o.mu.Unlock()
		})
	}
}

func (o *ObservedStorage) notify(key string) {
	o.mu.Lock()
	fns := make([]func(string), 0, len(o.watchers[key]))
	for _, fn := range o.watchers[key] {
		fns = append(fns, fn)
	}
	o.mu.Unlock()

	for _, fn := range fns {
		fn(key)
	}
}

package store

import (
	"container/list"
	"context"
	"sync"
)

// Memory keeps buckets in process memory. Contents are lost on exit.
type Memory struct {
	mutex   *sync.RWMutex
	buckets map[string]*memBucket
	closed  bool
}

type memBucket struct {
	provider *Memory
	name     string
	order    *list.List
	entries  map[string]*list.Element
}

type memEntry struct {
	key   string
	value []byte
}

func NewMemory() *Memory {
	return &Memory{
		mutex:   &sync.RWMutex{},
		buckets: make(map[string]*memBucket),
	}
}

func (m *Memory) Open(ctx context.Context, namespace string) (Bucket, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	return m.bucket(namespace), nil
}

// bucket returns the named bucket, creating it if it was deleted in the meantime.
// The caller must hold the write lock.
func (m *Memory) bucket(namespace string) *memBucket {
	b, ok := m.buckets[namespace]
	if !ok {
		b = &memBucket{
			provider: m,
			name:     namespace,
			order:    list.New(),
			entries:  make(map[string]*list.Element),
		}
		m.buckets[namespace] = b
	}
	return b
}

func (m *Memory) Delete(ctx context.Context, namespace string) (bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.closed {
		return false, ErrClosed
	}
	_, ok := m.buckets[namespace]
	delete(m.buckets, namespace)
	return ok, nil
}

func (m *Memory) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.closed = true
	m.buckets = make(map[string]*memBucket)
	return nil
}

// current returns the live bucket for b's name, or nil if it no longer exists.
// The caller must hold the lock.
func (b *memBucket) current() *memBucket {
	if live, ok := b.provider.buckets[b.name]; ok {
		return live
	}
	return nil
}

func (b *memBucket) Put(ctx context.Context, key string, value []byte) error {
	m := b.provider
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.closed {
		return ErrClosed
	}
	live := m.bucket(b.name)
	if el, ok := live.entries[key]; ok {
		live.order.Remove(el)
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	live.entries[key] = live.order.PushBack(&memEntry{key, stored})
	return nil
}

func (b *memBucket) Match(ctx context.Context, key string) ([]byte, bool, error) {
	m := b.provider
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if m.closed {
		return nil, false, ErrClosed
	}
	live := b.current()
	if live == nil {
		return nil, false, nil
	}
	el, ok := live.entries[key]
	if !ok {
		return nil, false, nil
	}
	return el.Value.(*memEntry).value, true, nil
}

func (b *memBucket) Keys(ctx context.Context) ([]string, error) {
	m := b.provider
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	live := b.current()
	if live == nil {
		return nil, nil
	}
	keys := make([]string, 0, live.order.Len())
	for el := live.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*memEntry).key)
	}
	return keys, nil
}

func (b *memBucket) Delete(ctx context.Context, key string) (bool, error) {
	m := b.provider
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.closed {
		return false, ErrClosed
	}
	live := b.current()
	if live == nil {
		return false, nil
	}
	el, ok := live.entries[key]
	if !ok {
		return false, nil
	}
	live.order.Remove(el)
	delete(live.entries, key)
	return true, nil
}

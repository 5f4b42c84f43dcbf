package flight

import (
	"sync"
	"sync/atomic"
	"time"
	"weak"
)

// Cache loads values by key, coalescing concurrent loads of the same key.
// A loaded value is held strongly for the expiry window and weakly afterwards,
// so it is reused for as long as anything else still references it.
type Cache[K comparable, V any] struct {
	mu       *sync.Mutex
	loaded   map[K]*slot[V]
	inflight map[K]*call[V]

	load func(K) (V, error)

	// hold is the strong-reference window in nanoseconds; 0 holds forever.
	hold *atomic.Int64
}

type slot[V any] struct {
	weak    weak.Pointer[V]
	strong  *V
	expires time.Time
}

type call[V any] struct {
	val  V
	err  error
	done chan struct{}
}

func NewCache[K comparable, V any](load func(K) (V, error)) Cache[K, V] {
	var hold atomic.Int64
	hold.Store(int64(time.Hour))
	return Cache[K, V]{
		mu:       new(sync.Mutex),
		loaded:   make(map[K]*slot[V]),
		inflight: make(map[K]*call[V]),
		load:     load,
		hold:     &hold,
	}
}

// Expiry sets the strong-hold window for values loaded from now on.
func (c *Cache[K, V]) Expiry(d time.Duration) {
	c.hold.Store(int64(max(d, 0)))
}

// Get returns the cached value for k or loads it. Failed loads are not cached.
func (c *Cache[K, V]) Get(k K) (V, error) {
	c.mu.Lock()
	if s, ok := c.loaded[k]; ok {
		if v, ok := s.value(time.Now()); ok {
			c.mu.Unlock()
			return v, nil
		}
		delete(c.loaded, k)
	}
	if pending, ok := c.inflight[k]; ok {
		c.mu.Unlock()
		<-pending.done
		return pending.val, pending.err
	}
	cl := &call[V]{done: make(chan struct{})}
	c.inflight[k] = cl
	c.mu.Unlock()

	cl.val, cl.err = c.load(k)

	c.mu.Lock()
	if cl.err == nil {
		c.loaded[k] = c.newSlot(cl.val)
	}
	delete(c.inflight, k)
	c.mu.Unlock()
	close(cl.done)

	return cl.val, cl.err
}

// Set stores v under k without running the loader.
func (c *Cache[K, V]) Set(k K, v V) {
	c.mu.Lock()
	c.loaded[k] = c.newSlot(v)
	c.mu.Unlock()
}

// Forget drops k so the next Get reloads it.
func (c *Cache[K, V]) Forget(k K) {
	c.mu.Lock()
	delete(c.loaded, k)
	c.mu.Unlock()
}

func (c *Cache[K, V]) newSlot(v V) *slot[V] {
	p := new(V)
	*p = v
	s := &slot[V]{weak: weak.Make(p), strong: p}
	if d := time.Duration(c.hold.Load()); d > 0 {
		s.expires = time.Now().Add(d)
	}
	return s
}

// value must be called with the cache lock held.
func (s *slot[V]) value(now time.Time) (V, bool) {
	if s.strong != nil && !s.expires.IsZero() && now.After(s.expires) {
		s.strong = nil
	}
	if p := s.weak.Value(); p != nil {
		return *p, true
	}
	var zero V
	return zero, false
}

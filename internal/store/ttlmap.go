package store

import (
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// Default retention for OAuth handshake state.
const DefaultStateTTL = 10 * time.Minute

type ttlEntry[V any] struct {
	val       V
	createdAt time.Time
}

// TTLMap is an in-memory key/value map where entries older than a fixed TTL are purged.
//
// Eviction is lazy: there is no background timer, and the whole map is swept only as a side effect of [TTLMap.Set]. A [TTLMap.Get] on an entry which has expired but not yet been swept still returns the stale value. Callers should not rely on expiry for correctness.
type TTLMap[V any] struct {
	TTL time.Duration

	// Clock used for entry timestamps. Defaults to [time.Now]; overridden in tests.
	Now func() time.Time

	entries *xsync.MapOf[string, ttlEntry[V]]
}

func NewTTLMap[V any](ttl time.Duration) *TTLMap[V] {
	return &TTLMap[V]{
		TTL:     ttl,
		Now:     time.Now,
		entries: xsync.NewMapOf[string, ttlEntry[V]](),
	}
}

func (m *TTLMap[V]) Get(key string) (V, bool) {
	e, ok := m.entries.Load(key)
	if !ok {
		var zero V
		return zero, false
	}
	return e.val, true
}

// Set stores the value with the current time, then purges every expired entry in the map (not only the one being written).
func (m *TTLMap[V]) Set(key string, val V) {
	now := m.Now()
	m.entries.Store(key, ttlEntry[V]{val: val, createdAt: now})
	m.sweep(now)
}

// Delete removes the entry if present.
func (m *TTLMap[V]) Delete(key string) {
	m.entries.Delete(key)
}

func (m *TTLMap[V]) Len() int {
	return m.entries.Size()
}

func (m *TTLMap[V]) sweep(now time.Time) {
	m.entries.Range(func(k string, e ttlEntry[V]) bool {
		if now.Sub(e.createdAt) > m.TTL {
			m.entries.Delete(k)
		}
		return true
	})
}

package store

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// RecordMap is an unbounded in-memory map of opaque records, with no expiry.
//
// Used for OAuth session data (keyed by account DID) and for the cached user profiles. Values are never interpreted.
type RecordMap[V any] struct {
	records *xsync.MapOf[string, V]
}

func NewRecordMap[V any]() *RecordMap[V] {
	return &RecordMap[V]{
		records: xsync.NewMapOf[string, V](),
	}
}

func (m *RecordMap[V]) Get(key string) (V, bool) {
	return m.records.Load(key)
}

func (m *RecordMap[V]) Set(key string, val V) {
	m.records.Store(key, val)
}

func (m *RecordMap[V]) Delete(key string) {
	m.records.Delete(key)
}

func (m *RecordMap[V]) Len() int {
	return m.records.Size()
}

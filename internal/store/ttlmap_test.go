package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func testTTLMap(clock *fakeClock) *TTLMap[string] {
	m := NewTTLMap[string](DefaultStateTTL)
	m.Now = clock.Now
	return m
}

func TestTTLMapBasics(t *testing.T) {
	assert := assert.New(t)
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	m := testTTLMap(clock)

	_, ok := m.Get("never-written")
	assert.False(ok)

	m.Set("state1", "blob1")
	val, ok := m.Get("state1")
	assert.True(ok)
	assert.Equal("blob1", val)

	m.Set("state1", "blob2")
	val, ok = m.Get("state1")
	assert.True(ok)
	assert.Equal("blob2", val)

	m.Delete("state1")
	_, ok = m.Get("state1")
	assert.False(ok)

	// deleting an absent key is a no-op
	m.Delete("state1")
	m.Delete("other")
	assert.Equal(0, m.Len())
}

func TestTTLMapLazySweep(t *testing.T) {
	assert := assert.New(t)
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	m := testTTLMap(clock)

	m.Set("old", "a")
	clock.Advance(DefaultStateTTL + time.Second)

	// expired but not swept yet: stale value still returned
	val, ok := m.Get("old")
	assert.True(ok)
	assert.Equal("a", val)

	// a write to any key sweeps the whole map
	m.Set("new", "b")
	_, ok = m.Get("old")
	assert.False(ok)
	val, ok = m.Get("new")
	assert.True(ok)
	assert.Equal("b", val)
	assert.Equal(1, m.Len())
}

func TestTTLMapBoundary(t *testing.T) {
	assert := assert.New(t)
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	m := testTTLMap(clock)

	m.Set("edge", "a")
	clock.Advance(DefaultStateTTL)

	// exactly at the TTL is not "older than" the TTL
	m.Set("other", "b")
	_, ok := m.Get("edge")
	assert.True(ok)

	clock.Advance(time.Millisecond)
	m.Set("other", "c")
	_, ok = m.Get("edge")
	assert.False(ok)
	_, ok = m.Get("other")
	assert.True(ok)
}

func TestTTLMapRewriteRefreshesTimestamp(t *testing.T) {
	assert := assert.New(t)
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	m := testTTLMap(clock)

	m.Set("k", "a")
	clock.Advance(DefaultStateTTL - time.Minute)
	m.Set("k", "b")
	clock.Advance(2 * time.Minute)
	m.Set("other", "c")

	val, ok := m.Get("k")
	assert.True(ok)
	assert.Equal("b", val)
}

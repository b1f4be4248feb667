// Package cache implements MemcStore, the command layer that composes
// store.MemoryStore's get/set/delete primitives into full Memcached command
// semantics: add, replace, append, prepend, increment, decrement, touch and
// flush.
package cache

import (
	"strconv"

	"github.com/agilira/memcrs-go/pkg/store"
)

// MemcStore wraps a store.MemoryStore and realizes the higher-level
// Memcached vocabulary on top of it.
type MemcStore struct {
	cache *store.MemoryStore
}

// New builds a MemcStore over cache.
func New(cache *store.MemoryStore) *MemcStore {
	return &MemcStore{cache: cache}
}

// Get returns the record stored under key.
func (m *MemcStore) Get(key []byte) (store.Record, error) {
	return m.cache.Get(key)
}

// Set stores value unconditionally (cas==0) or checks cas first (cas>0).
func (m *MemcStore) Set(key, value []byte, flags, ttl uint32, cas uint64) (store.SetStatus, error) {
	rec := store.Record{Header: store.Header{Cas: cas, Flags: flags, TTL: ttl}, Value: value}
	return m.cache.Set(key, rec)
}

// Add stores value only if key is currently absent.
func (m *MemcStore) Add(key, value []byte, flags, ttl uint32) (store.SetStatus, error) {
	if _, err := m.cache.Get(key); err == nil {
		return store.SetStatus{}, store.ErrKeyExists
	}
	return m.Set(key, value, flags, ttl, 0)
}

// Replace stores value only if key is currently present, preserving the
// caller's cas check semantics.
func (m *MemcStore) Replace(key, value []byte, flags, ttl uint32, cas uint64) (store.SetStatus, error) {
	if _, err := m.cache.Get(key); err != nil {
		return store.SetStatus{}, store.ErrNotFound
	}
	return m.Set(key, value, flags, ttl, cas)
}

// Delete removes key, honoring cas (0 means unconditional).
func (m *MemcStore) Delete(key []byte, cas uint64) (store.Record, error) {
	return m.cache.Delete(key, store.Header{Cas: cas})
}

// Touch updates only the TTL of an existing record, bumping its cas the
// same way any other mutation does.
func (m *MemcStore) Touch(key []byte, ttl uint32) (store.SetStatus, error) {
	existing, err := m.cache.Get(key)
	if err != nil {
		return store.SetStatus{}, store.ErrNotFound
	}
	return m.Set(key, existing.Value, existing.Header.Flags, ttl, 0)
}

// Append concatenates value onto the end of the existing record, carrying
// the caller's provided cas onto the rewritten record so the underlying Set
// still enforces optimistic concurrency when cas != 0.
func (m *MemcStore) Append(key, value []byte, cas uint64) (store.SetStatus, error) {
	return m.appendPrepend(key, value, cas, true)
}

// Prepend concatenates value onto the front of the existing record.
func (m *MemcStore) Prepend(key, value []byte, cas uint64) (store.SetStatus, error) {
	return m.appendPrepend(key, value, cas, false)
}

func (m *MemcStore) appendPrepend(key, value []byte, cas uint64, isAppend bool) (store.SetStatus, error) {
	existing, err := m.cache.Get(key)
	if err != nil {
		return store.SetStatus{}, store.ErrNotFound
	}
	var merged []byte
	if isAppend {
		merged = append(append([]byte{}, existing.Value...), value...)
	} else {
		merged = append(append([]byte{}, value...), existing.Value...)
	}
	return m.Set(key, merged, existing.Header.Flags, existing.Header.TTL, cas)
}

// Increment adds delta to the ASCII-decimal value stored under key.
// Decrement subtracts, saturating at zero on underflow. Both create the key
// with initial if it is absent, unless expiration is the "do not create"
// sentinel (store.NoCreateExpiration), in which case absence is ErrNotFound.
func (m *MemcStore) Increment(key []byte, delta, initial uint64, expiration uint32) (uint64, uint64, error) {
	return m.addDelta(key, delta, initial, expiration, true)
}

func (m *MemcStore) Decrement(key []byte, delta, initial uint64, expiration uint32) (uint64, uint64, error) {
	return m.addDelta(key, delta, initial, expiration, false)
}

func (m *MemcStore) addDelta(key []byte, delta, initial uint64, expiration uint32, positive bool) (uint64, uint64, error) {
	existing, err := m.cache.Get(key)
	if err != nil {
		if expiration == store.NoCreateExpiration {
			return 0, 0, store.ErrNotFound
		}
		status, setErr := m.Set(key, []byte(strconv.FormatUint(initial, 10)), 0, expiration, 0)
		if setErr != nil {
			return 0, 0, setErr
		}
		return initial, status.Cas, nil
	}

	value, parseErr := strconv.ParseUint(string(existing.Value), 10, 64)
	if parseErr != nil {
		return 0, 0, store.ErrNonNumeric
	}

	if positive {
		value += delta
	} else if delta > value {
		value = 0
	} else {
		value -= delta
	}

	status, err := m.Set(key, []byte(strconv.FormatUint(value, 10)), existing.Header.Flags, existing.Header.TTL, existing.Header.Cas)
	if err != nil {
		return 0, 0, err
	}
	return value, status.Cas, nil
}

// FlushAll invalidates every item, optionally after ttl seconds (0 means
// immediately).
func (m *MemcStore) FlushAll(ttl uint32) {
	m.cache.Flush(store.Header{TTL: ttl})
}

// Len reports the approximate live entry count.
func (m *MemcStore) Len() int {
	return m.cache.Len()
}

package store

// MemoryStore is the generic facade binding a Backend to a Peripherals,
// implementing the Cache contract with TTL-expiry on read. Backends already
// own the CAS state machine; MemoryStore never second-guesses a backend's
// cas decision, it only adds the one thing no backend is required to do on
// its own: treat an expired-but-not-yet-removed record as absent.
type MemoryStore struct {
	backend     Backend
	peripherals *Peripherals
}

// New binds backend to peripherals.
func New(backend Backend, peripherals *Peripherals) *MemoryStore {
	return &MemoryStore{backend: backend, peripherals: peripherals}
}

// Get delegates to the backend, then applies the lazy-expiry check. An
// expired record is opportunistically removed and reported as ErrNotFound.
func (m *MemoryStore) Get(key []byte) (Record, error) {
	rec, err := m.backend.Get(key)
	if err != nil {
		return Record{}, err
	}
	if rec.Header.Expired(m.peripherals.timestamp()) {
		m.backend.Remove(key)
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// Set delegates straight through; the backend already owns CAS semantics.
func (m *MemoryStore) Set(key []byte, rec Record) (SetStatus, error) {
	return m.backend.Set(key, rec, m.peripherals)
}

// Delete delegates straight through.
func (m *MemoryStore) Delete(key []byte, header Header) (Record, error) {
	return m.backend.Delete(key, header)
}

// Flush clears the backend (ttl==0) or rewrites every live record to
// expire ttl seconds from now. The delayed form needs the flush instant
// stamped here: backends copy header.Timestamp verbatim, and an unstamped
// header would read as "expired since the epoch".
func (m *MemoryStore) Flush(header Header) {
	if header.TTL > 0 {
		header.Timestamp = m.peripherals.timestamp()
	}
	m.backend.Flush(header)
}

// Len delegates straight through.
func (m *MemoryStore) Len() int {
	return m.backend.Len()
}

// RemoveIf asks the backend for every key matching pred, then issues a
// Remove per key. This offers only weak atomicity: a concurrent writer may
// add or modify entries during the scan, so pred must be idempotent.
func (m *MemoryStore) RemoveIf(pred func(key []byte, rec Record) bool) int {
	keys := m.backend.PredictKeys(pred)
	removed := 0
	for _, k := range keys {
		if _, ok := m.backend.Remove(k); ok {
			removed++
		}
	}
	return removed
}

// Peripherals exposes the bound Peripherals, e.g. for a command layer that
// needs the timer directly (touch/gat expiry math).
func (m *MemoryStore) Peripherals() *Peripherals {
	return m.peripherals
}

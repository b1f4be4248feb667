package backend

import (
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/agilira/memcrs-go/pkg/store"
)

// lockFreeEntry is one fixed slot in the LockFree table. Reads and writes
// never take a mutex: a SeqLock version counter (odd while a writer is
// active, even when stable) lets readers detect and retry a torn read,
// mirroring the entry/loadKey pattern used by wtinyLFU-style caches.
type lockFreeEntry struct {
	version uint64 // odd = writer active, even = stable
	valid   int32  // 0 empty, 1 valid, 2 deleted
	keyHash uint64
	key     atomic.Pointer[string]
	rec     atomic.Pointer[store.Record]
}

const (
	lfEmpty   = 0
	lfValid   = 1
	lfDeleted = 2
)

// LockFree is a fixed-capacity, open-addressed hash table with per-slot
// SeqLocks instead of a map-wide mutex. Capacity does not grow; once full,
// Set evicts a randomly sampled occupied slot, the one placeholder eviction
// policy this design ships (eviction-policy quality is explicitly out of
// scope).
type LockFree struct {
	entries  []lockFreeEntry
	mask     uint64
	rngState uint64
}

// NewLockFree builds a LockFree backend with capacity slots (rounded up to
// a power of two).
func NewLockFree(capacity int) *LockFree {
	if capacity < 16 {
		capacity = 16
	}
	capacity = nextPow2(capacity)
	return &LockFree{
		entries:  make([]lockFreeEntry, capacity),
		mask:     uint64(capacity - 1),
		rngState: 0x9e3779b97f4a7c15,
	}
}

func (b *LockFree) fastRand() uint64 {
	x := atomic.LoadUint64(&b.rngState)
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	atomic.StoreUint64(&b.rngState, x)
	return x
}

// find returns the slot index holding key, or -1 if absent. Linear probing
// over the whole table as a last resort keeps this correct even under heavy
// collision; callers needing a faithful record read still must validate via
// the SeqLock loop in loadSlot.
func (b *LockFree) find(key []byte, hash uint64) int {
	start := hash & b.mask
	n := uint64(len(b.entries))
	for i := uint64(0); i < n; i++ {
		idx := (start + i) & b.mask
		e := &b.entries[idx]
		if atomic.LoadInt32(&e.valid) == lfEmpty {
			return -1
		}
		if atomic.LoadInt32(&e.valid) == lfValid && atomic.LoadUint64(&e.keyHash) == hash {
			if kp := e.key.Load(); kp != nil && *kp == string(key) {
				return int(idx)
			}
		}
	}
	return -1
}

func (b *LockFree) loadSlot(idx int) (store.Record, bool) {
	e := &b.entries[idx]
	for retry := 0; retry < 100; retry++ {
		v1 := atomic.LoadUint64(&e.version)
		if v1&1 != 0 {
			continue
		}
		if atomic.LoadInt32(&e.valid) != lfValid {
			return store.Record{}, false
		}
		recPtr := e.rec.Load()
		v2 := atomic.LoadUint64(&e.version)
		if v1 == v2 && recPtr != nil {
			return *recPtr, true
		}
	}
	return store.Record{}, false
}

func (b *LockFree) storeSlot(idx int, key []byte, hash uint64, rec store.Record) {
	e := &b.entries[idx]
	atomic.AddUint64(&e.version, 1) // becomes odd: writer active
	k := string(key)
	e.key.Store(&k)
	atomic.StoreUint64(&e.keyHash, hash)
	r := rec
	e.rec.Store(&r)
	atomic.StoreInt32(&e.valid, lfValid)
	atomic.AddUint64(&e.version, 1) // back to even: stable
}

func (b *LockFree) clearSlot(idx int) store.Record {
	e := &b.entries[idx]
	atomic.AddUint64(&e.version, 1)
	rec, _ := b.loadSlotRaw(idx)
	atomic.StoreInt32(&e.valid, lfDeleted)
	atomic.AddUint64(&e.version, 1)
	return rec
}

func (b *LockFree) loadSlotRaw(idx int) (store.Record, bool) {
	e := &b.entries[idx]
	if recPtr := e.rec.Load(); recPtr != nil {
		return *recPtr, true
	}
	return store.Record{}, false
}

func (b *LockFree) Get(key []byte) (store.Record, error) {
	hash := xxhash.Sum64(key)
	idx := b.find(key, hash)
	if idx < 0 {
		return store.Record{}, store.ErrNotFound
	}
	rec, ok := b.loadSlot(idx)
	if !ok {
		return store.Record{}, store.ErrNotFound
	}
	return rec, nil
}

func (b *LockFree) Set(key []byte, rec store.Record, p *store.Peripherals) (store.SetStatus, error) {
	hash := xxhash.Sum64(key)
	idx := b.find(key, hash)

	var existing store.Record
	existed := false
	if idx >= 0 {
		existing, existed = b.loadSlot(idx)
	}

	status, err := store.ExecuteSet(&rec, p, func() (store.Record, bool) { return existing, existed })
	if err != nil {
		return store.SetStatus{}, err
	}

	if idx < 0 {
		idx = b.allocSlot(hash)
	}
	b.storeSlot(idx, key, hash, rec)
	return status, nil
}

// allocSlot finds a free slot for hash via linear probing, evicting a
// randomly sampled occupied slot if the whole probe sequence is full.
func (b *LockFree) allocSlot(hash uint64) int {
	start := hash & b.mask
	n := uint64(len(b.entries))
	for i := uint64(0); i < n; i++ {
		idx := (start + i) & b.mask
		if atomic.LoadInt32(&b.entries[idx].valid) != lfValid {
			return int(idx)
		}
	}
	victim := int(b.fastRand() & b.mask)
	return victim
}

func (b *LockFree) Delete(key []byte, header store.Header) (store.Record, error) {
	hash := xxhash.Sum64(key)
	idx := b.find(key, hash)
	return store.ExecuteDelete(header,
		func() (store.Record, bool) {
			if idx < 0 {
				return store.Record{}, false
			}
			return b.loadSlot(idx)
		},
		func() (store.Record, bool) {
			if idx < 0 {
				return store.Record{}, false
			}
			rec := b.clearSlot(idx)
			return rec, true
		},
	)
}

func (b *LockFree) Remove(key []byte) (store.Record, bool) {
	hash := xxhash.Sum64(key)
	idx := b.find(key, hash)
	if idx < 0 {
		return store.Record{}, false
	}
	rec, ok := b.loadSlot(idx)
	if !ok {
		return store.Record{}, false
	}
	b.clearSlot(idx)
	return rec, true
}

func (b *LockFree) Flush(header store.Header) {
	for idx := range b.entries {
		e := &b.entries[idx]
		if atomic.LoadInt32(&e.valid) != lfValid {
			continue
		}
		rec, ok := b.loadSlot(idx)
		if !ok {
			continue
		}
		if header.TTL == 0 {
			b.clearSlot(idx)
			continue
		}
		rec.Header.TTL = header.TTL
		rec.Header.Timestamp = header.Timestamp
		atomic.AddUint64(&e.version, 1)
		r := rec
		e.rec.Store(&r)
		atomic.AddUint64(&e.version, 1)
	}
}

func (b *LockFree) Len() int {
	count := 0
	for idx := range b.entries {
		if atomic.LoadInt32(&b.entries[idx].valid) == lfValid {
			count++
		}
	}
	return count
}

func (b *LockFree) PredictKeys(pred func(key []byte, rec store.Record) bool) [][]byte {
	var out [][]byte
	for idx := range b.entries {
		if atomic.LoadInt32(&b.entries[idx].valid) != lfValid {
			continue
		}
		rec, ok := b.loadSlot(idx)
		if !ok {
			continue
		}
		kp := b.entries[idx].key.Load()
		if kp == nil {
			continue
		}
		key := []byte(*kp)
		if pred(key, rec) {
			out = append(out, key)
		}
	}
	return out
}

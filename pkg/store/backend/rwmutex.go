package backend

import (
	"sync"

	"github.com/agilira/memcrs-go/pkg/store"
)

// RWMutex guards a single map with one sync.RWMutex: reads take the read
// lock, writes take the write lock, and the CAS decision is delegated to
// store.ExecuteSet/ExecuteDelete.
type RWMutex struct {
	mu sync.RWMutex
	m  map[string]store.Record
}

// NewRWMutex builds an RWMutex backend with a presized map.
func NewRWMutex(capacity int) *RWMutex {
	return &RWMutex{m: make(map[string]store.Record, capacity)}
}

func (b *RWMutex) Get(key []byte) (store.Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rec, ok := b.m[string(key)]
	if !ok {
		return store.Record{}, store.ErrNotFound
	}
	return rec, nil
}

func (b *RWMutex) Set(key []byte, rec store.Record, p *store.Peripherals) (store.SetStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	status, err := store.ExecuteSet(&rec, p, func() (store.Record, bool) {
		existing, ok := b.m[string(key)]
		return existing, ok
	})
	if err != nil {
		return store.SetStatus{}, err
	}
	b.m[string(key)] = rec
	return status, nil
}

func (b *RWMutex) Delete(key []byte, header store.Header) (store.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return store.ExecuteDelete(header,
		func() (store.Record, bool) {
			existing, ok := b.m[string(key)]
			return existing, ok
		},
		func() (store.Record, bool) {
			existing, ok := b.m[string(key)]
			if ok {
				delete(b.m, string(key))
			}
			return existing, ok
		},
	)
}

func (b *RWMutex) Remove(key []byte) (store.Record, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.m[string(key)]
	if ok {
		delete(b.m, string(key))
	}
	return rec, ok
}

func (b *RWMutex) Flush(header store.Header) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if header.TTL == 0 {
		b.m = make(map[string]store.Record, len(b.m))
		return
	}
	for k, rec := range b.m {
		rec.Header.TTL = header.TTL
		rec.Header.Timestamp = header.Timestamp
		b.m[k] = rec
	}
}

func (b *RWMutex) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.m)
}

func (b *RWMutex) PredictKeys(pred func(key []byte, rec store.Record) bool) [][]byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out [][]byte
	for k, rec := range b.m {
		if pred([]byte(k), rec) {
			out = append(out, []byte(k))
		}
	}
	return out
}

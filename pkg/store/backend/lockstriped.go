// Package backend ships the concurrent-map strategies that satisfy
// store.Backend: lock-striped, single RWMutex, lock-free, and a
// fixed-width inline layout, plus an optional btree-ordered variant.
package backend

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/agilira/memcrs-go/pkg/store"
)

type shard struct {
	mu sync.Mutex
	m  map[string]store.Record
}

// LockStriped shards the keyspace across N independently-locked maps,
// selecting the shard by xxhash of the key. Set and Delete are a couple of
// lines wrapped around store.ExecuteSet / store.ExecuteDelete.
type LockStriped struct {
	shards []*shard
	mask   uint64
}

// NewLockStriped builds a LockStriped backend with shardCount shards
// (rounded up to the next power of two; a count below 1 selects 16) and a capacity hint
// used to presize each shard's map.
func NewLockStriped(capacity, shardCount int) *LockStriped {
	if shardCount < 1 {
		shardCount = 16
	}
	shardCount = nextPow2(shardCount)
	perShard := capacity / shardCount
	shards := make([]*shard, shardCount)
	for i := range shards {
		shards[i] = &shard{m: make(map[string]store.Record, perShard)}
	}
	return &LockStriped{shards: shards, mask: uint64(shardCount - 1)}
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func (b *LockStriped) shardFor(key []byte) *shard {
	return b.shards[xxhash.Sum64(key)&b.mask]
}

func (b *LockStriped) Get(key []byte) (store.Record, error) {
	s := b.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.m[string(key)]
	if !ok {
		return store.Record{}, store.ErrNotFound
	}
	return rec, nil
}

func (b *LockStriped) Set(key []byte, rec store.Record, p *store.Peripherals) (store.SetStatus, error) {
	s := b.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	status, err := store.ExecuteSet(&rec, p, func() (store.Record, bool) {
		existing, ok := s.m[string(key)]
		return existing, ok
	})
	if err != nil {
		return store.SetStatus{}, err
	}
	s.m[string(key)] = rec
	return status, nil
}

func (b *LockStriped) Delete(key []byte, header store.Header) (store.Record, error) {
	s := b.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	return store.ExecuteDelete(header,
		func() (store.Record, bool) {
			existing, ok := s.m[string(key)]
			return existing, ok
		},
		func() (store.Record, bool) {
			existing, ok := s.m[string(key)]
			if ok {
				delete(s.m, string(key))
			}
			return existing, ok
		},
	)
}

func (b *LockStriped) Remove(key []byte) (store.Record, bool) {
	s := b.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.m[string(key)]
	if ok {
		delete(s.m, string(key))
	}
	return rec, ok
}

func (b *LockStriped) Flush(header store.Header) {
	for _, s := range b.shards {
		s.mu.Lock()
		if header.TTL == 0 {
			s.m = make(map[string]store.Record, len(s.m))
		} else {
			for k, rec := range s.m {
				rec.Header.TTL = header.TTL
				rec.Header.Timestamp = header.Timestamp
				s.m[k] = rec
			}
		}
		s.mu.Unlock()
	}
}

func (b *LockStriped) Len() int {
	total := 0
	for _, s := range b.shards {
		s.mu.Lock()
		total += len(s.m)
		s.mu.Unlock()
	}
	return total
}

func (b *LockStriped) PredictKeys(pred func(key []byte, rec store.Record) bool) [][]byte {
	var out [][]byte
	for _, s := range b.shards {
		s.mu.Lock()
		for k, rec := range s.m {
			if pred([]byte(k), rec) {
				out = append(out, []byte(k))
			}
		}
		s.mu.Unlock()
	}
	return out
}

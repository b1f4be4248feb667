package backend

import (
	"sync"

	"github.com/google/btree"

	"github.com/agilira/memcrs-go/pkg/store"
)

// orderedItem adapts a key/record pair to btree.Item, ordering purely by
// key bytes.
type orderedItem struct {
	key string
	rec store.Record
}

func (a orderedItem) Less(than btree.Item) bool {
	return a.key < than.(orderedItem).key
}

// Ordered keeps keys in a btree.BTree (degree 32), trading a coarser
// single mutex for the ability to enumerate keys in sorted order. It is
// an additive backend beyond the four baseline concurrency strategies,
// useful for range/prefix scans.
type Ordered struct {
	mu   sync.RWMutex
	tree *btree.BTree
}

// NewOrdered builds an Ordered backend.
func NewOrdered(capacity int) *Ordered {
	return &Ordered{tree: btree.New(32)}
}

func (b *Ordered) Get(key []byte) (store.Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	item := b.tree.Get(orderedItem{key: string(key)})
	if item == nil {
		return store.Record{}, store.ErrNotFound
	}
	return item.(orderedItem).rec, nil
}

func (b *Ordered) Set(key []byte, rec store.Record, p *store.Peripherals) (store.SetStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := string(key)
	status, err := store.ExecuteSet(&rec, p, func() (store.Record, bool) {
		item := b.tree.Get(orderedItem{key: k})
		if item == nil {
			return store.Record{}, false
		}
		return item.(orderedItem).rec, true
	})
	if err != nil {
		return store.SetStatus{}, err
	}
	b.tree.ReplaceOrInsert(orderedItem{key: k, rec: rec})
	return status, nil
}

func (b *Ordered) Delete(key []byte, header store.Header) (store.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := string(key)
	return store.ExecuteDelete(header,
		func() (store.Record, bool) {
			item := b.tree.Get(orderedItem{key: k})
			if item == nil {
				return store.Record{}, false
			}
			return item.(orderedItem).rec, true
		},
		func() (store.Record, bool) {
			item := b.tree.Delete(orderedItem{key: k})
			if item == nil {
				return store.Record{}, false
			}
			return item.(orderedItem).rec, true
		},
	)
}

func (b *Ordered) Remove(key []byte) (store.Record, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	item := b.tree.Delete(orderedItem{key: string(key)})
	if item == nil {
		return store.Record{}, false
	}
	return item.(orderedItem).rec, true
}

func (b *Ordered) Flush(header store.Header) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if header.TTL == 0 {
		b.tree = btree.New(32)
		return
	}
	var rewritten []orderedItem
	b.tree.Ascend(func(item btree.Item) bool {
		oi := item.(orderedItem)
		oi.rec.Header.TTL = header.TTL
		oi.rec.Header.Timestamp = header.Timestamp
		rewritten = append(rewritten, oi)
		return true
	})
	for _, oi := range rewritten {
		b.tree.ReplaceOrInsert(oi)
	}
}

func (b *Ordered) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.tree.Len()
}

func (b *Ordered) PredictKeys(pred func(key []byte, rec store.Record) bool) [][]byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out [][]byte
	b.tree.Ascend(func(item btree.Item) bool {
		oi := item.(orderedItem)
		if pred([]byte(oi.key), oi.rec) {
			out = append(out, []byte(oi.key))
		}
		return true
	})
	return out
}

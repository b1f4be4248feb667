package backend

import (
	"sync"

	"github.com/agilira/memcrs-go/pkg/store"
)

// inlineCap is the slot width in bytes for both key and value buffers: 31
// usable bytes plus a trailing length byte.
const (
	inlineCap    = 32
	inlineUsable = inlineCap - 1
)

func encodeInline(b []byte) [inlineCap]byte {
	var out [inlineCap]byte
	n := len(b)
	if n > inlineUsable {
		n = inlineUsable
	}
	copy(out[:n], b[:n])
	out[inlineCap-1] = byte(n)
	return out
}

func decodeInline(buf [inlineCap]byte) []byte {
	n := int(buf[inlineCap-1])
	if n > inlineUsable {
		n = inlineUsable
	}
	out := make([]byte, n)
	copy(out, buf[:n])
	return out
}

type inlineSlot struct {
	used   bool
	keyBuf [inlineCap]byte
	valBuf [inlineCap]byte
	header store.Header
}

// Inline packs small keys and small values into fixed-width slots,
// truncating anything over inlineUsable bytes rather than falling back to
// a heap buffer. It is a simple, single-mutex, linearly-scanned slot table
// with a free list for reused slots, trading lookup speed for density on
// small records. Keys and values longer than inlineUsable bytes are
// silently truncated to that length; callers needing large values must
// pick a different engine.
type Inline struct {
	mu    sync.Mutex
	slots []inlineSlot
	free  []int
}

// NewInline builds an Inline backend presized to capacity slots.
func NewInline(capacity int) *Inline {
	if capacity < 1 {
		capacity = 64
	}
	return &Inline{slots: make([]inlineSlot, 0, capacity)}
}

func (b *Inline) findLocked(key []byte) int {
	for i := range b.slots {
		if b.slots[i].used && string(decodeInline(b.slots[i].keyBuf)) == string(truncatedKey(key)) {
			return i
		}
	}
	return -1
}

func truncatedKey(key []byte) []byte {
	if len(key) > inlineUsable {
		return key[:inlineUsable]
	}
	return key
}

func (b *Inline) recordAt(i int) store.Record {
	s := &b.slots[i]
	return store.Record{Header: s.header, Value: decodeInline(s.valBuf)}
}

func (b *Inline) Get(key []byte) (store.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.findLocked(key)
	if i < 0 {
		return store.Record{}, store.ErrNotFound
	}
	return b.recordAt(i), nil
}

func (b *Inline) Set(key []byte, rec store.Record, p *store.Peripherals) (store.SetStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.findLocked(key)

	var existing store.Record
	existed := i >= 0
	if existed {
		existing = b.recordAt(i)
	}

	status, err := store.ExecuteSet(&rec, p, func() (store.Record, bool) { return existing, existed })
	if err != nil {
		return store.SetStatus{}, err
	}

	if i < 0 {
		i = b.allocLocked()
	}
	b.slots[i] = inlineSlot{
		used:   true,
		keyBuf: encodeInline(key),
		valBuf: encodeInline(rec.Value),
		header: rec.Header,
	}
	return status, nil
}

func (b *Inline) allocLocked() int {
	if n := len(b.free); n > 0 {
		i := b.free[n-1]
		b.free = b.free[:n-1]
		return i
	}
	b.slots = append(b.slots, inlineSlot{})
	return len(b.slots) - 1
}

func (b *Inline) Delete(key []byte, header store.Header) (store.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.findLocked(key)
	return store.ExecuteDelete(header,
		func() (store.Record, bool) {
			if i < 0 {
				return store.Record{}, false
			}
			return b.recordAt(i), true
		},
		func() (store.Record, bool) {
			if i < 0 {
				return store.Record{}, false
			}
			rec := b.recordAt(i)
			b.slots[i] = inlineSlot{}
			b.free = append(b.free, i)
			return rec, true
		},
	)
}

func (b *Inline) Remove(key []byte) (store.Record, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.findLocked(key)
	if i < 0 {
		return store.Record{}, false
	}
	rec := b.recordAt(i)
	b.slots[i] = inlineSlot{}
	b.free = append(b.free, i)
	return rec, true
}

func (b *Inline) Flush(header store.Header) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if header.TTL == 0 {
		b.slots = b.slots[:0]
		b.free = b.free[:0]
		return
	}
	for i := range b.slots {
		if !b.slots[i].used {
			continue
		}
		b.slots[i].header.TTL = header.TTL
		b.slots[i].header.Timestamp = header.Timestamp
	}
}

func (b *Inline) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for i := range b.slots {
		if b.slots[i].used {
			n++
		}
	}
	return n
}

func (b *Inline) PredictKeys(pred func(key []byte, rec store.Record) bool) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out [][]byte
	for i := range b.slots {
		if !b.slots[i].used {
			continue
		}
		key := decodeInline(b.slots[i].keyBuf)
		if pred(key, b.recordAt(i)) {
			out = append(out, key)
		}
	}
	return out
}

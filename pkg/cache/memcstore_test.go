package cache

import (
	"testing"

	"github.com/agilira/memcrs-go/pkg/store"
	"github.com/agilira/memcrs-go/pkg/store/backend"
)

type constTimer struct{ now uint32 }

func (c constTimer) Now() uint32 { return c.now }

func newTestMemcStore() *MemcStore {
	p := store.NewPeripherals(constTimer{now: 1000})
	return New(store.New(backend.NewRWMutex(16), p))
}

func TestAddFailsOnExistingKey(t *testing.T) {
	m := newTestMemcStore()
	if _, err := m.Add([]byte("k"), []byte("v"), 0, 0); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if _, err := m.Add([]byte("k"), []byte("v2"), 0, 0); !store.IsKeyExists(err) {
		t.Fatalf("expected KeyExists on second add, got %v", err)
	}
}

func TestReplaceFailsOnAbsentKey(t *testing.T) {
	m := newTestMemcStore()
	if _, err := m.Replace([]byte("missing"), []byte("v"), 0, 0, 0); !store.IsNotFound(err) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestAppendConcatenatesOntoExistingValue(t *testing.T) {
	m := newTestMemcStore()
	if _, err := m.Set([]byte("a"), []byte("hello"), 0, 0, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Append([]byte("a"), []byte(" world"), 0); err != nil {
		t.Fatalf("append: %v", err)
	}
	rec, err := m.Get([]byte("a"))
	if err != nil {
		t.Fatal(err)
	}
	if string(rec.Value) != "hello world" {
		t.Fatalf("expected %q, got %q", "hello world", rec.Value)
	}
}

func TestPrependConcatenatesOntoFront(t *testing.T) {
	m := newTestMemcStore()
	if _, err := m.Set([]byte("a"), []byte("world"), 0, 0, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Prepend([]byte("a"), []byte("hello "), 0); err != nil {
		t.Fatalf("prepend: %v", err)
	}
	rec, err := m.Get([]byte("a"))
	if err != nil {
		t.Fatal(err)
	}
	if string(rec.Value) != "hello world" {
		t.Fatalf("expected %q, got %q", "hello world", rec.Value)
	}
}

func TestIncrementCreatesWithInitialValue(t *testing.T) {
	m := newTestMemcStore()
	val, _, err := m.Increment([]byte("n"), 5, 10, 0)
	if err != nil {
		t.Fatalf("incr on absent key: %v", err)
	}
	if val != 10 {
		t.Fatalf("expected initial value 10, got %d", val)
	}

	val, _, err = m.Increment([]byte("n"), 3, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if val != 13 {
		t.Fatalf("expected 13, got %d", val)
	}
}

func TestIncrementOnNonNumericValueFails(t *testing.T) {
	m := newTestMemcStore()
	if _, err := m.Set([]byte("s"), []byte("abc"), 0, 0, 0); err != nil {
		t.Fatal(err)
	}
	if _, _, err := m.Increment([]byte("s"), 1, 0, 0); !store.IsNonNumeric(err) {
		t.Fatalf("expected NonNumeric, got %v", err)
	}
}

func TestIncrementAbsentKeyWithNoCreateSentinelFails(t *testing.T) {
	m := newTestMemcStore()
	if _, _, err := m.Increment([]byte("missing"), 1, 0, store.NoCreateExpiration); !store.IsNotFound(err) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestDecrementSaturatesAtZero(t *testing.T) {
	m := newTestMemcStore()
	if _, err := m.Set([]byte("n"), []byte("5"), 0, 0, 0); err != nil {
		t.Fatal(err)
	}
	val, _, err := m.Decrement([]byte("n"), 10, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if val != 0 {
		t.Fatalf("expected saturation at 0, got %d", val)
	}
}

type fakeTimer struct{ now uint32 }

func (f *fakeTimer) Now() uint32 { return f.now }

func TestFlushAllWithDelayKeepsItemsUntilDeadline(t *testing.T) {
	ft := &fakeTimer{now: 1000}
	m := New(store.New(backend.NewRWMutex(16), store.NewPeripherals(ft)))

	if _, err := m.Set([]byte("k"), []byte("v"), 0, 0, 0); err != nil {
		t.Fatal(err)
	}
	m.FlushAll(10)

	ft.now = 1009
	if _, err := m.Get([]byte("k")); err != nil {
		t.Fatalf("expected hit before the flush deadline, got %v", err)
	}
	ft.now = 1010
	if _, err := m.Get([]byte("k")); !store.IsNotFound(err) {
		t.Fatalf("expected NotFound at the flush deadline, got %v", err)
	}
}

func TestFlushAllClearsEveryKey(t *testing.T) {
	// Flush with ttl==0 must be visible to every subsequent get.
	m := newTestMemcStore()
	m.Set([]byte("a"), []byte("1"), 0, 0, 0)
	m.Set([]byte("b"), []byte("2"), 0, 0, 0)
	m.FlushAll(0)
	if _, err := m.Get([]byte("a")); !store.IsNotFound(err) {
		t.Fatalf("expected NotFound after flush, got %v", err)
	}
	if _, err := m.Get([]byte("b")); !store.IsNotFound(err) {
		t.Fatalf("expected NotFound after flush, got %v", err)
	}
}

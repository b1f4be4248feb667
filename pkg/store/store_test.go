package store_test

import (
	"testing"

	"github.com/agilira/memcrs-go/pkg/store"
	"github.com/agilira/memcrs-go/pkg/store/backend"
)

// fakeTimer lets tests advance the clock deterministically instead of
// depending on wall-clock time.
type fakeTimer struct{ now uint32 }

func (f *fakeTimer) Now() uint32 { return f.now }

func newTestStore(t *testing.T) (*store.MemoryStore, *fakeTimer) {
	t.Helper()
	ft := &fakeTimer{now: 100}
	p := store.NewPeripherals(ft)
	return store.New(backend.NewRWMutex(16), p), ft
}

func TestCasMonotonicallyIncreasesAcrossWrites(t *testing.T) {
	s, _ := newTestStore(t)
	key := []byte("k")

	var lastCas uint64
	for i := 0; i < 5; i++ {
		status, err := s.Set(key, store.Record{Value: []byte("v")})
		if err != nil {
			t.Fatalf("set #%d: %v", i, err)
		}
		if status.Cas <= lastCas {
			t.Fatalf("cas did not strictly increase: %d -> %d", lastCas, status.Cas)
		}
		lastCas = status.Cas
	}
}

func TestCasMismatchFailsSecondWrite(t *testing.T) {
	s, _ := newTestStore(t)
	key := []byte("k")

	first, err := s.Set(key, store.Record{Value: []byte("v1")})
	if err != nil {
		t.Fatalf("first set: %v", err)
	}
	if first.Cas == 0 {
		t.Fatal("expected a strictly positive initial cas")
	}

	if _, err := s.Set(key, store.Record{Header: store.Header{Cas: 999}, Value: []byte("v2")}); err == nil || !store.IsKeyExists(err) {
		t.Fatalf("expected KeyExists on cas mismatch, got %v", err)
	}

	second, err := s.Set(key, store.Record{Header: store.Header{Cas: first.Cas}, Value: []byte("v3")})
	if err != nil {
		t.Fatalf("set with correct cas: %v", err)
	}
	if second.Cas != first.Cas+1 {
		t.Fatalf("expected cas %d, got %d", first.Cas+1, second.Cas)
	}
}

func TestGetExpiresTTL(t *testing.T) {
	// SET at timer=100 expiration=2; GET at 101 still returns the value,
	// GET at 103 is NotFound.
	s, timer := newTestStore(t)
	key := []byte("t")

	if _, err := s.Set(key, store.Record{Header: store.Header{TTL: 2}, Value: []byte("x")}); err != nil {
		t.Fatalf("set: %v", err)
	}

	timer.now = 101
	rec, err := s.Get(key)
	if err != nil {
		t.Fatalf("expected hit before expiry, got %v", err)
	}
	if string(rec.Value) != "x" {
		t.Fatalf("unexpected value: %q", rec.Value)
	}

	timer.now = 103
	if _, err := s.Get(key); !store.IsNotFound(err) {
		t.Fatalf("expected NotFound after expiry, got %v", err)
	}
}

func TestGetNeverReturnsExpiredRecord(t *testing.T) {
	s, timer := newTestStore(t)
	key := []byte("q")
	if _, err := s.Set(key, store.Record{Header: store.Header{TTL: 1}, Value: []byte("v")}); err != nil {
		t.Fatal(err)
	}
	timer.now += 10
	if _, err := s.Get(key); !store.IsNotFound(err) {
		t.Fatalf("expired record should read as NotFound, got %v", err)
	}
	if n := s.Len(); n != 0 {
		t.Fatalf("expired record should be opportunistically removed, Len()=%d", n)
	}
}

func TestUnconditionalSetNeverExpires(t *testing.T) {
	s, timer := newTestStore(t)
	key := []byte("forever")
	if _, err := s.Set(key, store.Record{Value: []byte("v")}); err != nil {
		t.Fatal(err)
	}
	timer.now += 1_000_000
	if _, err := s.Get(key); err != nil {
		t.Fatalf("ttl=0 record should never expire, got %v", err)
	}
}

func TestFlushClearsEverything(t *testing.T) {
	s, _ := newTestStore(t)
	for _, k := range []string{"a", "b", "c"} {
		if _, err := s.Set([]byte(k), store.Record{Value: []byte("v")}); err != nil {
			t.Fatal(err)
		}
	}
	s.Flush(store.Header{})
	for _, k := range []string{"a", "b", "c"} {
		if _, err := s.Get([]byte(k)); !store.IsNotFound(err) {
			t.Fatalf("expected NotFound for %q after flush, got %v", k, err)
		}
	}
}

func TestFlushWithDelayExpiresAtFutureInstant(t *testing.T) {
	// FLUSH with ttl=30 at timer=100: records stay readable until
	// timer reaches 130, then all expire at once.
	s, timer := newTestStore(t)
	for _, k := range []string{"a", "b"} {
		if _, err := s.Set([]byte(k), store.Record{Value: []byte("v")}); err != nil {
			t.Fatal(err)
		}
	}

	s.Flush(store.Header{TTL: 30})

	timer.now = 129
	for _, k := range []string{"a", "b"} {
		if _, err := s.Get([]byte(k)); err != nil {
			t.Fatalf("expected %q alive before the flush deadline, got %v", k, err)
		}
	}

	timer.now = 130
	for _, k := range []string{"a", "b"} {
		if _, err := s.Get([]byte(k)); !store.IsNotFound(err) {
			t.Fatalf("expected %q expired at the flush deadline, got %v", k, err)
		}
	}
}

func TestDeleteAtomicWithGet(t *testing.T) {
	s, _ := newTestStore(t)
	key := []byte("d")
	if _, err := s.Set(key, store.Record{Value: []byte("v")}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Delete(key, store.Header{}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(key); !store.IsNotFound(err) {
		t.Fatalf("expected NotFound after delete, got %v", err)
	}
	if _, err := s.Delete(key, store.Header{}); !store.IsNotFound(err) {
		t.Fatalf("second delete should be NotFound, got %v", err)
	}
}

func TestRemoveIfScansAndRemoves(t *testing.T) {
	s, _ := newTestStore(t)
	s.Set([]byte("keep"), store.Record{Value: []byte("v")})
	s.Set([]byte("drop-1"), store.Record{Value: []byte("v")})
	s.Set([]byte("drop-2"), store.Record{Value: []byte("v")})

	removed := s.RemoveIf(func(key []byte, rec store.Record) bool {
		return len(key) > 5
	})
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if _, err := s.Get([]byte("keep")); err != nil {
		t.Fatalf("keep should survive, got %v", err)
	}
}

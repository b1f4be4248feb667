package playback

import (
	"testing"

	"github.com/agilira/memcrs-go/pkg/cache"
	"github.com/agilira/memcrs-go/pkg/protocol"
	"github.com/agilira/memcrs-go/pkg/recorder"
	"github.com/agilira/memcrs-go/pkg/server"
	"github.com/agilira/memcrs-go/pkg/store"
	"github.com/agilira/memcrs-go/pkg/store/backend"
)

type constTimer struct{ now uint32 }

func (c constTimer) Now() uint32 { return c.now }

func setRequest(key, value []byte) protocol.BinaryRequest {
	extras := make([]byte, 8)
	return protocol.BinaryRequest{
		Header: protocol.Header{Opcode: protocol.OpSet},
		Extras: extras,
		Key:    key,
		Value:  value,
	}
}

func TestPlayReplaysRecordedRequestsAndAggregates(t *testing.T) {
	dir := t.TempDir()

	m := recorder.NewMaster()
	m.Start()
	id := m.NextConnectionID()
	c := m.NewConnRecorder(id)
	for i := 0; i < 10; i++ {
		c.Push(setRequest([]byte("k"), []byte("v")))
	}
	c.Stop()
	if _, err := m.Dump(dir, "run"); err != nil {
		t.Fatalf("dump: %v", err)
	}

	p := store.NewPeripherals(constTimer{now: 1})
	memcStore := cache.New(store.New(backend.NewRWMutex(16), p))

	player := NewPlayer(dir, 4)
	report, err := player.Play("run", func() *server.Handler { return server.NewHandler(memcStore) })
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if report.Ops != 10 {
		t.Fatalf("expected 10 ops, got %d", report.Ops)
	}
	if report.Max < report.Min {
		t.Fatalf("max (%d) should be >= min (%d)", report.Max, report.Min)
	}
}

func TestStatusRefusesConcurrentPlayback(t *testing.T) {
	s := NewStatus()
	if !s.Start("a") {
		t.Fatal("first Start should succeed")
	}
	if s.Start("b") {
		t.Fatal("second Start should be refused while the first is running")
	}
	s.Stop(Report{Ops: 1})
	if !s.Start("c") {
		t.Fatal("Start after Stop should succeed")
	}
}

package recorder

import (
	"testing"

	"github.com/agilira/memcrs-go/pkg/protocol"
)

func sampleRequest(opaque uint32) protocol.BinaryRequest {
	return protocol.BinaryRequest{
		Header: protocol.Header{Opcode: protocol.OpGet, Opaque: opaque},
		Key:    []byte("k"),
	}
}

func TestConnRecorderNoopWhenDisabled(t *testing.T) {
	m := NewMaster() // not started
	c := m.NewConnRecorder(m.NextConnectionID())
	c.Push(sampleRequest(1))
	c.Stop()

	n, err := m.Dump(t.TempDir(), "noop")
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 dumped connections, got %d", n)
	}
}

func TestDumpAndLoadRoundTrip(t *testing.T) {
	m := NewMaster()
	m.Start()

	id := m.NextConnectionID()
	c := m.NewConnRecorder(id)
	reqs := []protocol.BinaryRequest{sampleRequest(1), sampleRequest(2), sampleRequest(3)}
	for _, r := range reqs {
		c.Push(r)
	}
	c.Stop()

	dir := t.TempDir()
	count, err := m.Dump(dir, "run1")
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 connection dumped, got %d", count)
	}
	if m.IsEnabled() {
		t.Fatal("Dump should disable recording")
	}

	path := dir + "/run1-" + itoa(id) + ".bin"
	loaded, err := LoadConnection(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != len(reqs) {
		t.Fatalf("expected %d requests, got %d", len(reqs), len(loaded))
	}
	for i, r := range loaded {
		if r.Header.Opaque != reqs[i].Header.Opaque {
			t.Fatalf("request %d: opaque mismatch %d != %d", i, r.Header.Opaque, reqs[i].Header.Opaque)
		}
	}
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

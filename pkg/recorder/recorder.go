// Package recorder captures per-connection request streams for later
// replay by pkg/playback. A MasterRecorder holds process-global state; each
// connection gets its own ConnRecorder that appends locally, lock-free,
// during the connection's lifetime and hands its buffer to the master only
// at connection close.
package recorder

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/klauspost/compress/zlib"

	"github.com/agilira/memcrs-go/pkg/protocol"
)

// magic identifies the on-disk recording format: MCRZ is always used by
// Dump (zlib-compressed); MCR1 (uncompressed) is accepted on read for
// forward compatibility with a future uncompressed writer.
var (
	magicCompressed   = [4]byte{'M', 'C', 'R', 'Z'}
	magicUncompressed = [4]byte{'M', 'C', 'R', '1'}
)

// gobRequest is the serializable mirror of protocol.BinaryRequest; gob
// cannot encode the Header's unexported layout concerns directly but the
// struct here is already all-exported, so it round-trips as-is.
type gobRequest struct {
	Header protocol.Header
	Extras []byte
	Key    []byte
	Value  []byte
}

func toGob(r protocol.BinaryRequest) gobRequest {
	return gobRequest{Header: r.Header, Extras: r.Extras, Key: r.Key, Value: r.Value}
}

func fromGob(g gobRequest) protocol.BinaryRequest {
	return protocol.BinaryRequest{Header: g.Header, Extras: g.Extras, Key: g.Key, Value: g.Value}
}

// MasterRecorder is the process-global recording coordinator.
type MasterRecorder struct {
	enabled    atomic.Bool
	connID     atomic.Uint64
	mu         sync.Mutex
	recordings map[uint64][]protocol.BinaryRequest
}

// NewMaster builds a disabled MasterRecorder.
func NewMaster() *MasterRecorder {
	return &MasterRecorder{recordings: make(map[uint64][]protocol.BinaryRequest)}
}

// Start enables recording; connections accepted from this point on receive
// an active ConnRecorder.
func (m *MasterRecorder) Start() {
	m.enabled.Store(true)
}

// IsEnabled reports whether recording is currently active.
func (m *MasterRecorder) IsEnabled() bool {
	return m.enabled.Load()
}

// NextConnectionID returns the next monotonically increasing connection id.
func (m *MasterRecorder) NextConnectionID() uint64 {
	return m.connID.Add(1)
}

// NewConnRecorder builds a per-connection recorder snapshotting whether
// recording is enabled right now; a connection's recorder never switches
// state mid-connection.
func (m *MasterRecorder) NewConnRecorder(id uint64) *ConnRecorder {
	return &ConnRecorder{connID: id, enabled: m.IsEnabled(), master: m}
}

func (m *MasterRecorder) adopt(id uint64, buf []protocol.BinaryRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordings[id] = buf
}

// Dump serializes every captured connection's request list to
// {name}-{connID}.bin under dir, clears the map, and disables recording.
// It returns the number of connections dumped.
func (m *MasterRecorder) Dump(dir, name string) (int, error) {
	m.mu.Lock()
	recordings := m.recordings
	m.recordings = make(map[uint64][]protocol.BinaryRequest)
	m.mu.Unlock()
	m.enabled.Store(false)

	count := 0
	for connID, reqs := range recordings {
		if err := dumpConnection(dir, name, connID, reqs); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func dumpConnection(dir, name string, connID uint64, reqs []protocol.BinaryRequest) error {
	path := fmt.Sprintf("%s/%s-%d.bin", dir, name, connID)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(magicCompressed[:]); err != nil {
		return err
	}
	zw := zlib.NewWriter(f)
	defer zw.Close()

	for _, r := range reqs {
		var body bytes.Buffer
		if err := gob.NewEncoder(&body).Encode(toGob(r)); err != nil {
			return err
		}
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(body.Len()))
		if _, err := zw.Write(lenBuf[:]); err != nil {
			return err
		}
		if _, err := zw.Write(body.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// LoadConnection reads back one recording file, tolerating both the
// compressed and uncompressed magics.
func LoadConnection(path string) ([]protocol.BinaryRequest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var magic [4]byte
	if _, err := f.Read(magic[:]); err != nil {
		return nil, err
	}

	var r io.Reader = f
	switch magic {
	case magicCompressed:
		zr, err := zlib.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	case magicUncompressed:
		// already plain
	default:
		return nil, fmt.Errorf("recorder: unrecognized magic in %s", path)
	}

	var out []protocol.BinaryRequest
	for {
		var lenBuf [4]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		n := binary.BigEndian.Uint32(lenBuf[:])
		body := make([]byte, n)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, err
		}
		var g gobRequest
		if err := gob.NewDecoder(bytes.NewReader(body)).Decode(&g); err != nil {
			return nil, err
		}
		out = append(out, fromGob(g))
	}
	return out, nil
}

// ConnRecorder appends requests for one connection with no locking at all;
// the list is handed to the master under a short critical section only at
// Stop, trading memory (proportional to the connection's request volume)
// for zero per-request contention.
type ConnRecorder struct {
	connID  uint64
	enabled bool
	master  *MasterRecorder
	buf     []protocol.BinaryRequest
}

// Push appends req if recording is active for this connection.
func (c *ConnRecorder) Push(req protocol.BinaryRequest) {
	if !c.enabled {
		return
	}
	c.buf = append(c.buf, req)
}

// Stop hands the buffered requests to the master recorder, if recording was
// active.
func (c *ConnRecorder) Stop() {
	if !c.enabled {
		return
	}
	c.master.adopt(c.connID, c.buf)
}

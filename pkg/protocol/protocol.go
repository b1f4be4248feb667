// Package protocol implements the Memcached binary wire codec: the 24-byte
// fixed header, the opcode and status catalogs, and pure decode/encode
// functions operating on byte buffers.
package protocol

import (
	"encoding/binary"
	"io"

	"github.com/agilira/memcrs-go/pkg/store"
)

const (
	ReqMagic byte = 0x80
	ResMagic byte = 0x81

	HeaderLen = 24
)

// Opcode identifies a binary protocol command.
type Opcode byte

const (
	OpGet       Opcode = 0x00
	OpSet       Opcode = 0x01
	OpAdd       Opcode = 0x02
	OpReplace   Opcode = 0x03
	OpDelete    Opcode = 0x04
	OpIncrement Opcode = 0x05
	OpDecrement Opcode = 0x06
	OpQuit      Opcode = 0x07
	OpFlush     Opcode = 0x08
	OpGetQ      Opcode = 0x09
	OpNoop      Opcode = 0x0A
	OpVersion   Opcode = 0x0B
	OpGetK      Opcode = 0x0C
	OpGetKQ     Opcode = 0x0D
	OpAppend    Opcode = 0x0E
	OpPrepend   Opcode = 0x0F

	OpSetQ       Opcode = 0x11
	OpAddQ       Opcode = 0x12
	OpReplaceQ   Opcode = 0x13
	OpDeleteQ    Opcode = 0x14
	OpIncrementQ Opcode = 0x15
	OpDecrementQ Opcode = 0x16
	OpQuitQ      Opcode = 0x17
	OpFlushQ     Opcode = 0x18
	OpAppendQ    Opcode = 0x19
	OpPrependQ   Opcode = 0x1A

	OpTouch Opcode = 0x1C
	OpGAT   Opcode = 0x1D
	OpGATQ  Opcode = 0x1E
)

var opcodeNames = map[Opcode]string{
	OpGet: "get", OpSet: "set", OpAdd: "add", OpReplace: "replace",
	OpDelete: "delete", OpIncrement: "increment", OpDecrement: "decrement",
	OpQuit: "quit", OpFlush: "flush", OpGetQ: "get", OpNoop: "noop",
	OpVersion: "version", OpGetK: "get", OpGetKQ: "get", OpAppend: "append",
	OpPrepend: "prepend", OpSetQ: "set", OpAddQ: "add", OpReplaceQ: "replace",
	OpDeleteQ: "delete", OpIncrementQ: "increment", OpDecrementQ: "decrement",
	OpQuitQ: "quit", OpFlushQ: "flush", OpAppendQ: "append", OpPrependQ: "prepend",
	OpTouch: "touch", OpGAT: "gat", OpGATQ: "gat",
}

// String returns the command name used for metrics labeling, collapsing
// quiet variants onto their base command.
func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return "unknown"
}

// Status is the 16-bit response status field.
type Status uint16

const (
	StatusOK               Status = 0x0000
	StatusKeyNotFound      Status = 0x0001
	StatusKeyExists        Status = 0x0002
	StatusValueTooLarge    Status = 0x0003
	StatusInvalidArguments Status = 0x0004
	StatusItemNotStored    Status = 0x0005
	StatusNonNumeric       Status = 0x0006
	StatusUnknownCommand   Status = 0x0081
	StatusOutOfMemory      Status = 0x0082
)

// Header is the 24-byte fixed frame header, shared verbatim by requests and
// responses (bytes 6-7 mean vbucket id on a request, status on a response).
type Header struct {
	Magic           byte
	Opcode          Opcode
	KeyLen          uint16
	ExtrasLen       uint8
	DataType        uint8
	VBucketOrStatus uint16
	BodyLen         uint32
	Opaque          uint32
	Cas             uint64
}

// BinaryRequest is a fully decoded request frame.
type BinaryRequest struct {
	Header Header
	Extras []byte
	Key    []byte
	Value  []byte
}

// BinaryResponse is a frame ready to encode back to the wire.
type BinaryResponse struct {
	Opcode Opcode
	Status Status
	Opaque uint32
	Cas    uint64
	Extras []byte
	Key    []byte
	Value  []byte
}

// IsQuiet reports whether opcode is one of the quiet variants that suppress
// a success response.
func (o Opcode) IsQuiet() bool {
	switch o {
	case OpGetQ, OpGetKQ, OpSetQ, OpAddQ, OpReplaceQ, OpDeleteQ,
		OpIncrementQ, OpDecrementQ, OpQuitQ, OpFlushQ, OpAppendQ, OpPrependQ, OpGATQ:
		return true
	default:
		return false
	}
}

func decodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderLen {
		return Header{}, store.ErrDecode
	}
	if buf[0] != ReqMagic {
		return Header{}, store.ErrDecode
	}
	return Header{
		Magic:           buf[0],
		Opcode:          Opcode(buf[1]),
		KeyLen:          binary.BigEndian.Uint16(buf[2:4]),
		ExtrasLen:       buf[4],
		DataType:        buf[5],
		VBucketOrStatus: binary.BigEndian.Uint16(buf[6:8]),
		BodyLen:         binary.BigEndian.Uint32(buf[8:12]),
		Opaque:          binary.BigEndian.Uint32(buf[12:16]),
		Cas:             binary.BigEndian.Uint64(buf[16:24]),
	}, nil
}

func encodeHeader(buf []byte, h Header) {
	buf[0] = h.Magic
	buf[1] = byte(h.Opcode)
	binary.BigEndian.PutUint16(buf[2:4], h.KeyLen)
	buf[4] = h.ExtrasLen
	buf[5] = h.DataType
	binary.BigEndian.PutUint16(buf[6:8], h.VBucketOrStatus)
	binary.BigEndian.PutUint32(buf[8:12], h.BodyLen)
	binary.BigEndian.PutUint32(buf[12:16], h.Opaque)
	binary.BigEndian.PutUint64(buf[16:24], h.Cas)
}

// Decode parses a single, already fully-buffered frame (header plus body).
// It is a pure function: same bytes in, same BinaryRequest (or error) out,
// and it never reads past len(frame). The live connection path uses
// ReadRequest, which splits the body the same way without calling Decode.
func Decode(frame []byte) (BinaryRequest, error) {
	h, err := decodeHeader(frame)
	if err != nil {
		return BinaryRequest{}, err
	}
	body := frame[HeaderLen:]
	if uint32(len(body)) != h.BodyLen {
		return BinaryRequest{}, store.ErrDecode
	}
	if uint32(h.ExtrasLen)+uint32(h.KeyLen) > h.BodyLen {
		return BinaryRequest{}, store.ErrDecode
	}
	extras := body[:h.ExtrasLen]
	key := body[h.ExtrasLen : uint32(h.ExtrasLen)+uint32(h.KeyLen)]
	value := body[uint32(h.ExtrasLen)+uint32(h.KeyLen):]
	return BinaryRequest{Header: h, Extras: extras, Key: key, Value: value}, nil
}

// ReadRequest reads one frame off r, enforcing maxBodyLen as the
// item_memory_limit. It is the only place in the codec that performs I/O;
// everything else is pure.
func ReadRequest(r io.Reader, maxBodyLen uint32) (BinaryRequest, error) {
	headerBuf := make([]byte, HeaderLen)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return BinaryRequest{}, err
	}
	h, err := decodeHeader(headerBuf)
	if err != nil {
		return BinaryRequest{}, err
	}
	if h.BodyLen > maxBodyLen {
		// Oversize frames are connection-fatal: the body has not been
		// consumed, so the stream cannot be resynchronized at the next
		// frame boundary.
		return BinaryRequest{}, store.ErrValueTooLarge
	}
	bodyBuf := make([]byte, h.BodyLen)
	if _, err := io.ReadFull(r, bodyBuf); err != nil {
		return BinaryRequest{}, err
	}
	if uint32(h.ExtrasLen)+uint32(h.KeyLen) > h.BodyLen {
		return BinaryRequest{}, store.ErrDecode
	}
	extras := bodyBuf[:h.ExtrasLen]
	key := bodyBuf[h.ExtrasLen : uint32(h.ExtrasLen)+uint32(h.KeyLen)]
	value := bodyBuf[uint32(h.ExtrasLen)+uint32(h.KeyLen):]
	return BinaryRequest{Header: h, Extras: extras, Key: key, Value: value}, nil
}

// Encode serializes resp to its wire form.
func Encode(resp BinaryResponse) []byte {
	bodyLen := uint32(len(resp.Extras) + len(resp.Key) + len(resp.Value))
	buf := make([]byte, HeaderLen+bodyLen)
	encodeHeader(buf, Header{
		Magic:           ResMagic,
		Opcode:          resp.Opcode,
		KeyLen:          uint16(len(resp.Key)),
		ExtrasLen:       uint8(len(resp.Extras)),
		VBucketOrStatus: uint16(resp.Status),
		BodyLen:         bodyLen,
		Opaque:          resp.Opaque,
		Cas:             resp.Cas,
	})
	n := HeaderLen
	n += copy(buf[n:], resp.Extras)
	n += copy(buf[n:], resp.Key)
	copy(buf[n:], resp.Value)
	return buf
}

// RawFrame returns the raw bytes of a request. It reconstructs the exact
// frame Decode would need to reproduce req.
func RawFrame(req BinaryRequest) []byte {
	bodyLen := uint32(len(req.Extras) + len(req.Key) + len(req.Value))
	buf := make([]byte, HeaderLen+bodyLen)
	h := req.Header
	h.BodyLen = bodyLen
	encodeHeader(buf, h)
	n := HeaderLen
	n += copy(buf[n:], req.Extras)
	n += copy(buf[n:], req.Key)
	copy(buf[n:], req.Value)
	return buf
}
